//
// main.go
//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/markkurossi/rep3"
	"github.com/markkurossi/rep3/circuit"
	"github.com/markkurossi/rep3/eval"
	"github.com/markkurossi/rep3/p2p"
)

const connectRetries = 10

func main() {
	party := flag.Int("p", 0, "party index")
	roster := flag.String("r", "roster.txt", "party roster file")
	input := flag.String("i", "", "input file, one value per line")
	output := flag.String("o", "", "output file, written only on success")
	timeout := flag.Duration("t", 30*time.Second, "round timeout, 0 disables")
	verifyEvery := flag.Int("k", 0,
		"verify every N multiplicative layers, 0 verifies once")
	verbose := flag.Bool("v", false, "verbose output")
	flag.Parse()

	if len(flag.Args()) != 1 {
		fmt.Fprintf(os.Stderr, "Usage: rep3 [options] circuit\n")
		flag.PrintDefaults()
		os.Exit(rep3.ExitFailure)
	}

	err := run(flag.Arg(0), *party, *roster, *input, *output, *timeout,
		*verifyEvery, *verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rep3: %s\n", err)
	}
	os.Exit(rep3.ExitCode(err))
}

func run(circuitFile string, party int, rosterFile, inputFile, outputFile string,
	timeout time.Duration, verifyEvery int, verbose bool) error {

	timing := circuit.NewTiming()

	circ, err := circuit.ParseFile(circuitFile)
	if err != nil {
		return err
	}
	if verbose {
		fmt.Printf("Circuit: %v\n", circ)
	}
	timing.Sample("Parse", nil)

	roster, err := eval.LoadRoster(rosterFile)
	if err != nil {
		return err
	}

	var inputs []uint64
	if len(inputFile) > 0 {
		inputs, err = eval.LoadInputs(inputFile)
		if err != nil {
			return err
		}
	}

	addr, ok := roster[party]
	if !ok {
		return errors.Newf("party %d not in roster", party)
	}

	nw, err := p2p.NewNetwork(addr, party)
	if err != nil {
		return err
	}
	if err := nw.Connect(roster, connectRetries, verbose); err != nil {
		nw.Close()
		return err
	}
	timing.Sample("Connect", nil)

	player, err := eval.NewPlayer(eval.Config{
		Party:       party,
		Timeout:     timeout,
		VerifyEvery: verifyEvery,
		Verbose:     verbose,
	}, circ)
	if err != nil {
		nw.Close()
		return err
	}

	results, err := player.Run(nw, inputs)
	timing.Sample("Run", nil)
	if err != nil {
		return err
	}

	rep3.PrintResults(results, 10)
	if len(outputFile) > 0 {
		if err := eval.SaveResults(outputFile, results); err != nil {
			return err
		}
	}
	if verbose {
		timing.Print(nw.Stats())
	}
	return nil
}
