//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Package rep3 defines the shared error taxonomy and result helpers
// for the 3-party replicated secret sharing engine.
package rep3

import (
	"fmt"
	"strconv"

	"github.com/cockroachdb/errors"
)

// Error classes. Every failure of the engine wraps exactly one of
// these so that callers can classify with errors.Is and map the
// session outcome to a process exit code.
var (
	// ErrMalformedCircuit is raised at load time, before any network
	// activity: cycles, dangling wire references, double assignment,
	// unknown operations, bad input owners.
	ErrMalformedCircuit = errors.New("malformed circuit")

	// ErrNetwork covers connection establishment and I/O failures
	// during SETUP or EVALUATING.
	ErrNetwork = errors.New("network error")

	// ErrTimeout is raised when a round barrier is not satisfied
	// within the configured window.
	ErrTimeout = errors.New("round timeout")

	// ErrInconsistency is raised by the verification checkpoint when
	// transcript digests diverge. Output is never released after it.
	ErrInconsistency = errors.New("share inconsistency")
)

// Exit codes for the process invocation surface.
const (
	ExitOK               = 0
	ExitFailure          = 1
	ExitMalformedCircuit = 2
	ExitNetwork          = 3
	ExitTimeout          = 4
	ExitInconsistency    = 5
)

// ExitCode maps an error to its process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrMalformedCircuit):
		return ExitMalformedCircuit
	case errors.Is(err, ErrTimeout):
		return ExitTimeout
	case errors.Is(err, ErrInconsistency):
		return ExitInconsistency
	case errors.Is(err, ErrNetwork):
		return ExitNetwork
	default:
		return ExitFailure
	}
}

// PrintResults prints the reconstructed output values.
func PrintResults(results []uint64, base int) {
	if base == 0 {
		base = 10
	}
	for idx, v := range results {
		fmt.Printf("Result[%d]: %s\n", idx, strconv.FormatUint(v, base))
	}
}
