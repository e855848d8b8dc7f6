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
	"path/filepath"

	"github.com/exascience/pitsx/internal"
	"github.com/exascience/pitsx/itsx"
	"github.com/exascience/pitsx/samples"
)

// MergeHelp is the help string for this command.
const MergeHelp = "\nmerge parameters:\n" +
	"pitsx merge /path/to/results sample-name\n" +
	"[--strict-summary[=true|false]]\n" +
	ToolHelp +
	"[--timed]\n" +
	"[--profile file]\n" +
	"[--log-path path]\n"

// Merge implements the pitsx merge command.
func Merge() error {
	var (
		profile, logPath string
		timed, strict    bool
	)

	options := itsx.DefaultOptions()

	var flags flag.FlagSet

	flags.BoolVar(&strict, "strict-summary", true, "reject summary reports with different numbers of lines")
	addToolFlags(&flags, &options)
	flags.BoolVar(&timed, "timed", false, "measure the runtime")
	flags.StringVar(&profile, "profile", "", "write a runtime profile to the specified file(s)")
	flags.StringVar(&logPath, "log-path", "", "write log files to the specified directory")

	parseFlags(&flags, 4, MergeHelp)

	input := getFilename(os.Args[2], MergeHelp)
	name := getFilename(os.Args[3], MergeHelp)

	setLogOutput(logPath)

	// sanity checks

	var sanityChecksFailed bool

	if !checkExist("", input) {
		sanityChecksFailed = true
	}

	if profile != "" && !checkCreate("--profile", profile) {
		sanityChecksFailed = true
	}

	fullInputPath, err := filepath.Abs(input)
	if err != nil {
		return err
	}
	groups, err := internal.NumberedDirectories(fullInputPath)
	if err != nil {
		log.Printf("Given directory %v causes error %v.\n", input, err)
		sanityChecksFailed = true
	} else if len(groups) == 0 {
		log.Printf("Given directory %v does not contain any partition directories. These should have been created by a pitsx run or split invocation.\n", input)
		sanityChecksFailed = true
	}

	if !checkTool(&options) {
		sanityChecksFailed = true
	}

	if sanityChecksFailed {
		fmt.Fprint(os.Stderr, MergeHelp)
		os.Exit(1)
	}

	// building output command line

	var command bytes.Buffer
	fmt.Fprint(&command, os.Args[0], " merge ", input, " ", name)
	writeFlags(&command, &flags)

	// executing command

	log.Println("Executing command:\n", command.String())

	runner, err := samples.NewRunner(samples.Config{
		Workers:    1,
		OutputRoot: filepath.Dir(fullInputPath),
		Tool:       options,
		Strict:     strict,
	})
	if err != nil {
		return err
	}

	return timedRun(timed, profile, fmt.Sprintf("Merging %v partitions of %v.", len(groups), name), 1, func() error {
		report, err := runner.Merge(fullInputPath, name)
		if err != nil {
			return err
		}
		for _, file := range report.Files {
			log.Println("Merged", file)
		}
		log.Println("Merged", report.Summary)
		return nil
	})
}
