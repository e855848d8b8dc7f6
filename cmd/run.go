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
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/exascience/pitsx/itsx"
	"github.com/exascience/pitsx/samples"
)

// RunHelp is the help string for this command.
const RunHelp = "\nrun parameters:\n" +
	"pitsx run fasta-file[,fasta-file...] /path/to/output\n" +
	"[--nr-of-threads n]\n" +
	"[--queue-size n]\n" +
	"[--strict-summary[=true|false]]\n" +
	"[--clean-intermediate]\n" +
	"[--progress]\n" +
	ToolHelp +
	"[--timed]\n" +
	"[--profile file]\n" +
	"[--log-path path]\n"

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, unix.SIGTERM)
}

// Run implements the pitsx run command.
func Run() error {
	var (
		profile, logPath       string
		nrOfThreads, queueSize int
		timed, strict          bool
		cleanIntermediate      bool
		progress               bool
	)

	options := itsx.DefaultOptions()

	var flags flag.FlagSet

	flags.IntVar(&nrOfThreads, "nr-of-threads", 0, "number of ITSx processes that run in parallel")
	flags.IntVar(&queueSize, "queue-size", 0, "number of jobs that may wait for a free worker")
	flags.BoolVar(&strict, "strict-summary", true, "reject summary reports with different numbers of lines")
	flags.BoolVar(&cleanIntermediate, "clean-intermediate", false, "remove partition directories after a successful merge")
	flags.BoolVar(&progress, "progress", false, "report the progress of each sample")
	addToolFlags(&flags, &options)
	flags.BoolVar(&timed, "timed", false, "measure the runtime")
	flags.StringVar(&profile, "profile", "", "write a runtime profile to the specified file(s)")
	flags.StringVar(&logPath, "log-path", "", "write log files to the specified directory")

	parseFlags(&flags, 4, RunHelp)

	inputs := getFilename(os.Args[2], RunHelp)
	output := getFilename(os.Args[3], RunHelp)

	stderr := setLogOutput(logPath)

	// sanity checks

	var sanityChecksFailed bool

	var batch []samples.Sample
	names := make(map[string]bool)
	for _, input := range strings.Split(inputs, ",") {
		if !checkExist("", input) {
			sanityChecksFailed = true
			continue
		}
		sample, err := samples.SampleFromPath(input)
		if err != nil {
			log.Println("Error:", err)
			sanityChecksFailed = true
			continue
		}
		if names[sample.Name] {
			log.Printf("Error: Sample name %v is used more than once.\n", sample.Name)
			sanityChecksFailed = true
		}
		names[sample.Name] = true
		batch = append(batch, sample)
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

	if queueSize < 0 {
		sanityChecksFailed = true
		log.Println("Error: Invalid queue-size: ", queueSize)
	}

	if !checkTool(&options) {
		sanityChecksFailed = true
	}

	if sanityChecksFailed {
		fmt.Fprint(os.Stderr, RunHelp)
		os.Exit(1)
	}

	if nrOfThreads == 0 {
		nrOfThreads = runtime.NumCPU()
	}

	// building output command line

	var command bytes.Buffer
	fmt.Fprint(&command, os.Args[0], " run ", inputs, " ", output)
	writeFlags(&command, &flags)

	// executing command

	log.Println("Executing command:\n", command.String())
	log.Println("Using", nrOfThreads, "workers:", options.String())

	config := samples.Config{
		Workers:           nrOfThreads,
		OutputRoot:        output,
		Tool:              options,
		Strict:            strict,
		CleanIntermediate: cleanIntermediate,
		QueueSize:         queueSize,
	}
	if progress {
		config.Progress = stderr
	}
	runner, err := samples.NewRunner(config)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	return timedRun(timed, profile, "Running ITSx on "+inputs+".", 1, func() error {
		return runner.Batch(ctx, batch)
	})
}
