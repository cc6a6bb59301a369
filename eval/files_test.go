//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package eval

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseRoster(t *testing.T) {
	data := `
# local 3-party setup
0 localhost:7000
1 localhost:7001
2 localhost:7002
`
	roster, err := ParseRoster(strings.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if len(roster) != 3 || roster[1] != "localhost:7001" {
		t.Errorf("got %v", roster)
	}
}

func TestParseRosterMalformed(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty", ""},
		{"missing party", "0 a:1\n1 b:2\n"},
		{"extra party", "0 a:1\n1 b:2\n2 c:3\n3 d:4\n"},
		{"duplicate", "0 a:1\n1 b:2\n1 c:3\n"},
		{"bad index", "x a:1\n1 b:2\n2 c:3\n"},
		{"bad fields", "0 a:1 extra\n1 b:2\n2 c:3\n"},
	}
	for _, test := range tests {
		if _, err := ParseRoster(strings.NewReader(test.data)); err == nil {
			t.Errorf("%s: parse succeeded", test.name)
		}
	}
}

func TestParseInputs(t *testing.T) {
	data := `
# inputs of party 0
42
0x10
0b101
`
	inputs, err := ParseInputs(strings.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if len(inputs) != 3 || inputs[0] != 42 || inputs[1] != 16 ||
		inputs[2] != 5 {
		t.Errorf("got %v", inputs)
	}

	if _, err := ParseInputs(strings.NewReader("12\nnope\n")); err == nil {
		t.Error("parse succeeded for invalid value")
	}
}

func TestWriteResults(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteResults(&buf, []uint64{1, 2, 3}); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "1\n2\n3\n" {
		t.Errorf("got %q", buf.String())
	}
}
