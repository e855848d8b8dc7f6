// pitsx: a parallel runner for ITSx on large FASTA files.
// Copyright (c) 2017-2021 imec vzw.

// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version, and Additional Terms
// (see below).

// This program is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.

// You should have received a copy of the GNU Affero General Public
// License and Additional Terms along with this program. If not, see
// <https://github.com/ExaScience/pitsx/blob/master/LICENSE.txt>.

package cmd

import (
	"bytes"
	"flag"
	"fmt"
	"log"
	"os"
	"runtime"

	"github.com/exascience/pitsx/itsx"
	"github.com/exascience/pitsx/samples"
)

// SplitHelp is the help string for this command.
const SplitHelp = "\nsplit parameters:\n" +
	"pitsx split fasta-file /path/to/output\n" +
	"[--nr-of-threads n]\n" +
	"[--timed]\n" +
	"[--profile file]\n" +
	"[--log-path path]\n"

// Split implements the pitsx split command.
func Split() error {
	var (
		profile, logPath string
		nrOfThreads      int
		timed            bool
	)

	var flags flag.FlagSet

	flags.IntVar(&nrOfThreads, "nr-of-threads", 0, "number of partitions to balance the input for")
	flags.BoolVar(&timed, "timed", false, "measure the runtime")
	flags.StringVar(&profile, "profile", "", "write a runtime profile to the specified file(s)")
	flags.StringVar(&logPath, "log-path", "", "write log files to the specified directory")

	parseFlags(&flags, 4, SplitHelp)

	input := getFilename(os.Args[2], SplitHelp)
	output := getFilename(os.Args[3], SplitHelp)

	setLogOutput(logPath)

	// sanity checks

	var sanityChecksFailed bool

	if !checkExist("", input) {
		sanityChecksFailed = true
	}

	sample, err := samples.SampleFromPath(input)
	if err != nil {
		log.Println("Error:", err)
		sanityChecksFailed = true
	}

	if !checkDirectory("", output) {
		sanityChecksFailed = true
	}

	if profile != "" && !checkCreate("--profile", profile) {
		sanityChecksFailed = true
	}

	if nrOfThreads < 0 {
		sanityChecksFailed = true
		log.Println("Error: Invalid nr-of-threads: ", nrOfThreads)
	}

	if sanityChecksFailed {
		fmt.Fprint(os.Stderr, SplitHelp)
		os.Exit(1)
	}

	if nrOfThreads == 0 {
		nrOfThreads = runtime.NumCPU()
	}

	// building output command line

	var command bytes.Buffer
	fmt.Fprint(&command, os.Args[0], " split ", input, " ", output)
	writeFlags(&command, &flags)

	// executing command

	log.Println("Executing command:\n", command.String())

	runner, err := samples.NewRunner(samples.Config{
		Workers:    nrOfThreads,
		OutputRoot: output,
		Tool:       itsx.DefaultOptions(),
	})
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	return timedRun(timed, profile, "Splitting "+input+".", 1, func() error {
		jobs, err := runner.Split(ctx, sample)
		if err != nil {
			return err
		}
		for _, job := range jobs {
			log.Println("Created", job.Input)
		}
		return nil
	})
}
