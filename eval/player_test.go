//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package eval

import (
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/markkurossi/rep3"
	"github.com/markkurossi/rep3/circuit"
	"github.com/markkurossi/rep3/p2p"
	"github.com/markkurossi/rep3/prg"
	"github.com/markkurossi/rep3/ring"
)

const testMul32 = `
rep3 3 32
in 0 0
in 1 1
mul 0 1 2
out 2
`

const testDeep = `
rep3 8 64
in 0 0
in 0 1
in 1 2
in 2 3
mul 0 2 4
add 4 3 5
mul 5 1 6
neg 6 7
out 7
out 4
`

func parseCircuit(t *testing.T, data string) *circuit.Circuit {
	t.Helper()
	c, err := circuit.Parse(strings.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	return c
}

// pipeConns wires a full mesh of in-memory connections.
func pipeConns() [ring.NumParties]map[int]net.Conn {
	var conns [ring.NumParties]map[int]net.Conn
	for i := range conns {
		conns[i] = make(map[int]net.Conn)
	}
	for i := 0; i < ring.NumParties; i++ {
		for j := i + 1; j < ring.NumParties; j++ {
			ci, cj := net.Pipe()
			conns[i][j] = ci
			conns[j][i] = cj
		}
	}
	return conns
}

type sessionResult struct {
	results []uint64
	state   State
	err     error
}

// runSession runs all parties of one session concurrently and
// collects the per-party outcomes.
func runSession(t *testing.T, circ *circuit.Circuit,
	inputs [ring.NumParties][]uint64, cfg Config,
	conns [ring.NumParties]map[int]net.Conn) [ring.NumParties]sessionResult {

	t.Helper()

	var results [ring.NumParties]sessionResult
	var wg sync.WaitGroup

	for i := 0; i < ring.NumParties; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()

			c := cfg
			c.Party = id
			player, err := NewPlayer(c, circ)
			if err != nil {
				results[id] = sessionResult{err: err, state: Init}
				return
			}
			nw := p2p.NewTestNetwork(id, conns[id])
			res, err := player.Run(nw, inputs[id])
			results[id] = sessionResult{
				results: res,
				state:   player.State(),
				err:     err,
			}
		}(i)
	}
	wg.Wait()

	return results
}

func TestMul1Bit(t *testing.T) {
	circ := parseCircuit(t, `
rep3 3 1
in 0 0
in 1 1
mul 0 1 2
out 2
`)
	for _, vals := range [][2]uint64{{0, 0}, {0, 1}, {1, 0}, {1, 1}} {
		inputs := [ring.NumParties][]uint64{{vals[0]}, {vals[1]}, nil}
		results := runSession(t, circ, inputs, Config{}, pipeConns())

		expected := vals[0] & vals[1]
		for id, r := range results {
			if r.err != nil {
				t.Fatalf("party %d: %v", id, r.err)
			}
			if r.state != Terminated {
				t.Errorf("party %d: state %s", id, r.state)
			}
			if len(r.results) != 1 || r.results[0] != expected {
				t.Errorf("party %d: %d*%d: got %v, expected [%d]",
					id, vals[0], vals[1], r.results, expected)
			}
		}
	}
}

func TestMul32(t *testing.T) {
	circ := parseCircuit(t, testMul32)
	inputs := [ring.NumParties][]uint64{{123456789}, {987654321}, nil}

	expected, err := circ.Compute(inputs)
	if err != nil {
		t.Fatal(err)
	}

	results := runSession(t, circ, inputs, Config{}, pipeConns())
	for id, r := range results {
		if r.err != nil {
			t.Fatalf("party %d: %v", id, r.err)
		}
		if len(r.results) != 1 || r.results[0] != expected[0] {
			t.Errorf("party %d: got %v, expected %v", id, r.results, expected)
		}
	}
}

func TestAdd32(t *testing.T) {
	circ := parseCircuit(t, `
rep3 3 32
in 0 0
in 1 1
add 0 1 2
out 2
`)
	inputs := [ring.NumParties][]uint64{{5}, {7}, nil}
	results := runSession(t, circ, inputs, Config{}, pipeConns())
	for id, r := range results {
		if r.err != nil {
			t.Fatalf("party %d: %v", id, r.err)
		}
		if len(r.results) != 1 || r.results[0] != 12 {
			t.Errorf("party %d: got %v, expected [12]", id, r.results)
		}
	}
}

func TestDeepCircuit(t *testing.T) {
	circ := parseCircuit(t, testDeep)
	inputs := [ring.NumParties][]uint64{
		{0xdeadbeef, 42},
		{0xcafe},
		{7777777},
	}
	expected, err := circ.Compute(inputs)
	if err != nil {
		t.Fatal(err)
	}

	// Verify after every multiplicative layer.
	cfg := Config{
		Timeout:     10 * time.Second,
		VerifyEvery: 1,
	}
	results := runSession(t, circ, inputs, cfg, pipeConns())
	for id, r := range results {
		if r.err != nil {
			t.Fatalf("party %d: %v", id, r.err)
		}
		if len(r.results) != len(expected) {
			t.Fatalf("party %d: got %v, expected %v", id, r.results, expected)
		}
		for i, v := range expected {
			if r.results[i] != v {
				t.Errorf("party %d: output %d: got %d, expected %d",
					id, i, r.results[i], v)
			}
		}
	}
}

func TestInputCount(t *testing.T) {
	circ := parseCircuit(t, testMul32)
	player, err := NewPlayer(Config{Party: 0}, circ)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := player.Run(nil, []uint64{1, 2}); err == nil {
		t.Error("Run accepted wrong input count")
	}
}

// corruptConn flips one bit of the byte at the argument stream
// offset.
type corruptConn struct {
	net.Conn
	offset int64
	pos    int64
}

func (c *corruptConn) Read(b []byte) (int, error) {
	n, err := c.Conn.Read(b)
	if n > 0 && c.pos <= c.offset && c.offset < c.pos+int64(n) {
		b[c.offset-c.pos] ^= 0x01
	}
	c.pos += int64(n)
	return n, err
}

func TestTamperedComponent(t *testing.T) {
	circ := parseCircuit(t, testMul32)
	inputs := [ring.NumParties][]uint64{{3}, {5}, nil}

	conns := pipeConns()

	// Party 1 to party 0 carries the seed contribution, one input
	// component, and then the multiplication components. Flip the low
	// byte of the first multiplication component in flight.
	const headerSize = 5
	const offset = (headerSize + 4 + prg.ContributionSize) +
		(headerSize + 4 + 8) +
		(headerSize + 4) + 7
	conns[0][1] = &corruptConn{
		Conn:   conns[0][1],
		offset: offset,
	}

	results := runSession(t, circ, inputs, Config{}, conns)

	for id, r := range results {
		if r.err == nil {
			t.Fatalf("party %d: session succeeded after tampering", id)
		}
		if r.results != nil {
			t.Fatalf("party %d: output released after tampering", id)
		}
		if r.state != Aborted {
			t.Errorf("party %d: state %s", id, r.state)
		}
	}
	// The tampered flow is between parties 0 and 1: both detect the
	// transcript divergence. Party 2's transcripts are clean; it
	// fails on the aborted peers.
	for _, id := range []int{0, 1} {
		if !errors.Is(results[id].err, rep3.ErrInconsistency) {
			t.Errorf("party %d: wrong error class: %v", id, results[id].err)
		}
	}
}

func TestSilentParty(t *testing.T) {
	circ := parseCircuit(t, testMul32)
	inputs := [ring.NumParties][]uint64{{3}, {5}, nil}

	conns := pipeConns()

	// Party 2 consumes its peers' traffic but never responds.
	for _, conn := range conns[2] {
		go io.Copy(io.Discard, conn)
		defer conn.Close()
	}

	cfg := Config{Timeout: 200 * time.Millisecond}

	var results [2]sessionResult
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()

			c := cfg
			c.Party = id
			player, err := NewPlayer(c, circ)
			if err != nil {
				results[id] = sessionResult{err: err}
				return
			}
			nw := p2p.NewTestNetwork(id, conns[id])
			res, err := player.Run(nw, inputs[id])
			results[id] = sessionResult{results: res, err: err}
		}(i)
	}
	wg.Wait()

	for id, r := range results {
		if !errors.Is(r.err, rep3.ErrTimeout) {
			t.Errorf("party %d: wrong error class: %v", id, r.err)
		}
		if r.results != nil {
			t.Errorf("party %d: output released after timeout", id)
		}
	}
}

func TestDroppedParty(t *testing.T) {
	circ := parseCircuit(t, testMul32)
	inputs := [ring.NumParties][]uint64{{3}, {5}, nil}

	conns := pipeConns()
	for _, conn := range conns[2] {
		conn.Close()
	}

	var results [2]sessionResult
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()

			player, err := NewPlayer(Config{Party: id}, circ)
			if err != nil {
				results[id] = sessionResult{err: err}
				return
			}
			nw := p2p.NewTestNetwork(id, conns[id])
			res, err := player.Run(nw, inputs[id])
			results[id] = sessionResult{results: res, err: err}
		}(i)
	}
	wg.Wait()

	for id, r := range results {
		if !errors.Is(r.err, rep3.ErrNetwork) {
			t.Errorf("party %d: wrong error class: %v", id, r.err)
		}
		if r.results != nil {
			t.Errorf("party %d: output released after disconnect", id)
		}
	}
}

func TestStateString(t *testing.T) {
	if Init.String() != "INIT" || Aborted.String() != "ABORTED" {
		t.Error("state names")
	}
	if len(State(42).String()) == 0 {
		t.Error("unknown state name")
	}
}
