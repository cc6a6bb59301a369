//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package rep3

import (
	"testing"

	"github.com/cockroachdb/errors"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{nil, ExitOK},
		{errors.New("unclassified"), ExitFailure},
		{ErrMalformedCircuit, ExitMalformedCircuit},
		{ErrNetwork, ExitNetwork},
		{ErrTimeout, ExitTimeout},
		{ErrInconsistency, ExitInconsistency},
		{errors.Wrap(ErrMalformedCircuit, "gate 4"), ExitMalformedCircuit},
		{errors.Wrapf(ErrNetwork, "peer %d", 2), ExitNetwork},
		{errors.Wrap(ErrTimeout, "round 7"), ExitTimeout},
		{errors.Wrap(ErrInconsistency, "party 1"), ExitInconsistency},
	}
	for _, test := range tests {
		if code := ExitCode(test.err); code != test.code {
			t.Errorf("ExitCode(%v): got %d, expected %d",
				test.err, code, test.code)
		}
	}
}
