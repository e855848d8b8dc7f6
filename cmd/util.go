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
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"github.com/exascience/pitsx/internal"
	"github.com/exascience/pitsx/itsx"
	"github.com/exascience/pitsx/utils"
)

// ProgramMessage is the first line printed when the pitsx binary is
// called.
var ProgramMessage = fmt.Sprint(
	"\n", utils.ProgramName, " version ", utils.ProgramVersion,
	" compiled with ", runtime.Version(),
	" - see ", utils.ProgramURL, " for more information.\n",
)

// HelpMessage is printed to show the --help flag
const HelpMessage = "Print command details:\n" +
	"[--help]\n"

// ToolHelp lists the flags that are forwarded to ITSx.
const ToolHelp = "[--itsx path]\n" +
	"[--profile-dir path]\n" +
	"[--profile-set list]\n" +
	"[--cpu-per-job n]\n" +
	"[--evalue e]\n" +
	"[--score s]\n" +
	"[--search-eval e | --search-score s]\n" +
	"[--allow-single-domain [F | evalue,score]]\n" +
	"[--selection-priority [sum | domains | eval | score]]\n" +
	"[--anchor [n | HMM]]\n" +
	"[--partial n]\n" +
	"[--minlen n]\n" +
	"[--save-regions list]\n" +
	"[--complement[=T|F]] [--heuristics[=T|F]] [--allow-reorder[=T|F]] [--multi-thread[=T|F]]\n" +
	"[--summary[=T|F]] [--graphical[=T|F]] [--fasta[=T|F]] [--positions[=T|F]]\n" +
	"[--not-found[=T|F]] [--table[=T|F]] [--concat[=T|F]] [--only-full[=T|F]]\n" +
	"[--truncate[=T|F]] [--save-raw[=T|F]] [--silent[=T|F]]\n" +
	"[--itsx-debug]\n" +
	"[--log-tool-output]\n" +
	"[--job-timeout duration]\n"

func getFilename(s, help string) string {
	switch s {
	case "-h", "--h", "-help", "--help":
		fmt.Fprint(os.Stderr, help)
		os.Exit(0)
	default:
		if strings.HasPrefix(s, "-") {
			log.Println("Filename(s) in command line missing.")
			fmt.Fprint(os.Stderr, help)
			os.Exit(1)
		}
	}
	return s
}

func parseFlags(flags *flag.FlagSet, requiredArgs int, help string) {
	if len(os.Args) < requiredArgs {
		fmt.Fprintln(os.Stderr, "Incorrect number of parameters.")
		fmt.Fprint(os.Stderr, help)
		os.Exit(1)
	}
	flags.SetOutput(io.Discard)
	if err := flags.Parse(os.Args[requiredArgs:]); err != nil {
		x := 0
		if err != flag.ErrHelp {
			fmt.Fprintln(os.Stderr, err)
			x = 1
		}
		fmt.Fprint(os.Stderr, help)
		os.Exit(x)
	}
	if flags.NArg() > 0 {
		fmt.Fprintln(os.Stderr, "Cannot parse remaining parameters:", flags.Args())
		fmt.Fprint(os.Stderr, help)
		os.Exit(1)
	}
}

type saveRegionsValue struct {
	regions *[]string
}

func (v saveRegionsValue) String() string {
	if v.regions == nil {
		return ""
	}
	return strings.Join(*v.regions, ",")
}

func (v saveRegionsValue) Set(value string) error {
	*v.regions = nil
	for _, region := range strings.Split(value, ",") {
		if region = strings.TrimSpace(region); region != "" {
			*v.regions = append(*v.regions, region)
		}
	}
	return nil
}

// addToolFlags registers the flags that configure ITSx.
func addToolFlags(flags *flag.FlagSet, o *itsx.Options) {
	flags.StringVar(&o.Executable, "itsx", o.Executable, "the ITSx executable")
	flags.StringVar(&o.ProfileDir, "profile-dir", o.ProfileDir, "directory containing the HMM profiles")
	flags.StringVar(&o.ProfileSet, "profile-set", o.ProfileSet, "comma-separated list of profile sets")
	flags.IntVar(&o.CPU, "cpu-per-job", o.CPU, "number of cores used by each ITSx process")
	flags.BoolVar(&o.Debug, "itsx-debug", o.Debug, "let ITSx print debug information")

	flags.Var(&o.EValue, "evalue", "domain E-value cutoff")
	flags.Var(&o.Score, "score", "domain score cutoff")
	flags.Var(&o.SearchEval, "search-eval", "E-value cutoff for the search phase")
	flags.Var(&o.SearchScore, "search-score", "score cutoff for the search phase")

	flags.StringVar(&o.AllowSingleDomain, "allow-single-domain", o.AllowSingleDomain, "F, or E-value and score of single domains to accept")
	flags.StringVar(&o.SelectionPriority, "selection-priority", o.SelectionPriority, "how to select between hits")
	flags.StringVar(&o.Anchor, "anchor", o.Anchor, "number of bases to keep around extracted regions, or HMM")
	flags.IntVar(&o.Partial, "partial", o.Partial, "minimum length of partial regions to save")
	flags.IntVar(&o.MinLen, "minlen", o.MinLen, "minimum length of extracted regions")
	flags.Var(saveRegionsValue{&o.SaveRegions}, "save-regions", "comma-separated list of regions to save")

	flags.Var(&o.Complement, "complement", "also search the reverse complement")
	flags.Var(&o.Heuristics, "heuristics", "use heuristic filtering")
	flags.Var(&o.AllowReorder, "allow-reorder", "allow domains in the wrong order")
	flags.Var(&o.MultiThread, "multi-thread", "let ITSx use several threads")
	flags.Var(&o.Summary, "summary", "write a summary report")
	flags.Var(&o.Graphical, "graphical", "write graphical output")
	flags.Var(&o.Fasta, "fasta", "write extracted regions as FASTA")
	flags.Var(&o.Positions, "positions", "write region positions")
	flags.Var(&o.NotFound, "not-found", "write sequences without detections")
	flags.Var(&o.Table, "table", "write a table of detections")
	flags.Var(&o.Concat, "concat", "write concatenated regions")
	flags.Var(&o.OnlyFull, "only-full", "only save full-length regions")
	flags.Var(&o.Truncate, "truncate", "truncate regions at the edges of domains")
	flags.Var(&o.SaveRaw, "save-raw", "keep the raw HMMER output")
	flags.Var(&o.Silent, "silent", "suppress ITSx progress output")

	flags.BoolVar(&o.LogOutput, "log-tool-output", o.LogOutput, "write the output of each ITSx process to a .log file next to its results")
	flags.DurationVar(&o.Timeout, "job-timeout", o.Timeout, "maximum run time of a single ITSx process")
}

// writeFlags appends all flags that were set on the command line to command.
func writeFlags(command io.Writer, flags *flag.FlagSet) {
	flags.Visit(func(f *flag.Flag) {
		if b, ok := f.Value.(interface{ IsBoolFlag() bool }); ok && b.IsBoolFlag() {
			if s := f.Value.String(); s == "true" || s == "T" {
				fmt.Fprint(command, " --", f.Name)
				return
			}
			fmt.Fprint(command, " --", f.Name, "=", f.Value)
			return
		}
		fmt.Fprint(command, " --", f.Name, " ", f.Value)
	})
}

func logCheckFile(parameter, format string, v ...interface{}) {
	if parameter != "" {
		log.Printf(format+" for command line parameter %v.\n", append(v, parameter)...)
	} else {
		log.Printf(format+".\n", v...)
	}
}

func checkExist(parameter, filename string) bool {
	if len(filename) == 0 {
		logCheckFile(parameter, "Error: Missing filename")
		return false
	}
	if filename[0] == '-' {
		logCheckFile(parameter, "Error: Missing filename before %v", filename)
		return false
	}
	if _, err := os.Stat(filename); err == nil {
		return true
	} else if os.IsNotExist(err) {
		logCheckFile(parameter, "Error: File %v does not exist", filename)
		return false
	} else if os.IsPermission(err) {
		logCheckFile(parameter, "Error: No permission to read file %v", filename)
		return false
	} else {
		logCheckFile(parameter, "Error %v when trying to access file %v", err, filename)
		return false
	}
}

func checkCreate(parameter, filename string) bool {
	if len(filename) == 0 {
		logCheckFile(parameter, "Error: Missing filename")
		return false
	}
	if filename[0] == '-' {
		logCheckFile(parameter, "Error: Missing filename before %v", filename)
		return false
	}
	if _, err := os.Stat(filename); err == nil {
		// Assume that the file has been written by previous pitsx runs, and can be overwritten.
		return true
	}
	err := os.MkdirAll(filepath.Dir(filename), 0700)
	if err == nil {
		err = os.WriteFile(filename, nil, 0666)
	}
	if err != nil {
		if os.IsPermission(err) {
			logCheckFile(parameter, "Error: No permission to create file %v", filename)
		} else {
			logCheckFile(parameter, "Error %v when trying to create file %v", err, filename)
		}
		return false
	}
	_ = os.Remove(filename)
	return true
}

func checkDirectory(parameter, dirname string) bool {
	if len(dirname) == 0 {
		logCheckFile(parameter, "Error: Missing directory name")
		return false
	}
	if dirname[0] == '-' {
		logCheckFile(parameter, "Error: Missing directory name before %v", dirname)
		return false
	}
	if err := internal.MakePath(dirname); err != nil {
		if errors.Is(err, os.ErrPermission) {
			logCheckFile(parameter, "Error: No permission to create directory %v", dirname)
		} else {
			logCheckFile(parameter, "Error %v when trying to create directory %v", err, dirname)
		}
		return false
	}
	return true
}

func checkTool(options *itsx.Options) bool {
	if err := options.Validate(); err != nil {
		log.Println("Error:", err)
		return false
	}
	return true
}

func createLogFilename() string {
	t := time.Now()
	zone, _ := t.Zone()
	return fmt.Sprintf("logs/pitsx/pitsx-%d-%02d-%02d-%02d-%02d-%02d-%09d-%v.log", t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), zone)
}

// setLogOutput also redirects stderr to the log file, and returns the
// original stderr.
func setLogOutput(path string) *os.File {
	logPath := createLogFilename()
	var fullPath string
	if path == "" {
		fullPath = filepath.Join(os.Getenv("HOME"), logPath)
	} else {
		fullPath = filepath.Join(path, logPath)
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0700); err != nil {
		log.Panic(err)
	}
	f, err := os.Create(fullPath)
	if err != nil {
		log.Panic(err)
	}
	fmt.Fprintln(f, ProgramMessage)

	orgStderr, err := unix.Dup(2)
	if err != nil {
		log.Panic(err)
	}
	ferr := os.NewFile(uintptr(orgStderr), "/dev/stderr")
	if err := unix.Dup2(int(f.Fd()), 2); err != nil {
		log.Panic(err)
	}

	multi := io.MultiWriter(f, ferr)

	log.SetOutput(multi)
	log.Println("Created log file at", fullPath)
	log.Println("Command line:", os.Args)
	return ferr
}

func timedRun(timed bool, profile, msg string, phase int64, f func() error) (err error) {
	if profile != "" {
		filename := profile + strconv.FormatInt(phase, 10) + ".prof"
		file, ferr := os.Create(filename)
		if ferr != nil {
			return ferr
		}
		defer internal.Close(file, &err)
		if perr := pprof.StartCPUProfile(file); perr != nil {
			return perr
		}
		defer pprof.StopCPUProfile()
	}
	if timed {
		log.Println(msg)
		start := time.Now()
		defer func() {
			end := time.Now()
			log.Println("Elapsed time: ", end.Sub(start))
		}()
	}
	return f()
}
