//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package eval

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/markkurossi/rep3/ring"
)

// ParseRoster parses a party roster. Each line names one party:
//
//	<index> <host>:<port>
//
// Empty lines and lines starting with '#' are ignored. The roster
// must name exactly one address per party.
func ParseRoster(r io.Reader) (map[int]string, error) {
	roster := make(map[int]string)

	scanner := bufio.NewScanner(r)
	var lineno int
	for scanner.Scan() {
		lineno++
		line := strings.TrimSpace(scanner.Text())
		if len(line) == 0 || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, errors.Newf("roster line %d: expected 2 fields, got %d",
				lineno, len(fields))
		}
		id, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, errors.Newf("roster line %d: invalid party: %v",
				lineno, err)
		}
		if id < 0 || id >= ring.NumParties {
			return nil, errors.Newf(
				"roster line %d: invalid party %d: expected [0...%d[",
				lineno, id, ring.NumParties)
		}
		if _, ok := roster[id]; ok {
			return nil, errors.Newf("roster line %d: duplicate party %d",
				lineno, id)
		}
		roster[id] = fields[1]
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(roster) != ring.NumParties {
		return nil, errors.Newf("roster names %d parties, expected %d",
			len(roster), ring.NumParties)
	}
	return roster, nil
}

// LoadRoster parses the roster file.
func LoadRoster(name string) (map[int]string, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseRoster(f)
}

// ParseInputs parses this party's input values, one value per line.
// Values accept the 0x, 0o, and 0b prefixes. Empty lines and lines
// starting with '#' are ignored.
func ParseInputs(r io.Reader) ([]uint64, error) {
	var inputs []uint64

	scanner := bufio.NewScanner(r)
	var lineno int
	for scanner.Scan() {
		lineno++
		line := strings.TrimSpace(scanner.Text())
		if len(line) == 0 || strings.HasPrefix(line, "#") {
			continue
		}
		v, err := strconv.ParseUint(line, 0, 64)
		if err != nil {
			return nil, errors.Newf("input line %d: invalid value: %v",
				lineno, err)
		}
		inputs = append(inputs, v)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return inputs, nil
}

// LoadInputs parses the input file.
func LoadInputs(name string) ([]uint64, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseInputs(f)
}

// WriteResults writes the output values, one decimal value per line.
func WriteResults(w io.Writer, results []uint64) error {
	for _, v := range results {
		if _, err := fmt.Fprintf(w, "%d\n", v); err != nil {
			return err
		}
	}
	return nil
}

// SaveResults writes the output values to the file. The caller must
// invoke it only for a successful session; a failed session leaves no
// partial output behind.
func SaveResults(name string, results []uint64) error {
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	if err := WriteResults(f, results); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
