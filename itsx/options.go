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

// Package itsx describes and runs invocations of the ITSx classifier.
//
// Options is the typed set of pass-through options. It serializes into
// a fixed argument template, in which the minimal number of domains is
// always 2 and detailed results and header preservation are always on.
package itsx

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/exascience/pitsx/utils"
)

// A Switch is an ITSx T/F option that can also be left unset, in which
// case ITSx uses its own default.
type Switch int8

// Switch values.
const (
	Unset Switch = iota
	On
	Off
)

func (s Switch) String() string {
	switch s {
	case On:
		return "T"
	case Off:
		return "F"
	default:
		return ""
	}
}

// Set implements flag.Value.
func (s *Switch) Set(value string) error {
	switch strings.ToUpper(value) {
	case "T", "TRUE", "1", "ON", "YES":
		*s = On
	case "F", "FALSE", "0", "OFF", "NO":
		*s = Off
	case "":
		*s = Unset
	default:
		return fmt.Errorf("invalid T/F value %q", value)
	}
	return nil
}

// IsBoolFlag lets a bare --flag mean T.
func (s *Switch) IsBoolFlag() bool { return true }

// Enabled reports whether the switch is on, using def if it is unset.
func (s Switch) Enabled(def bool) bool {
	switch s {
	case On:
		return true
	case Off:
		return false
	default:
		return def
	}
}

// A Number is an optional numeric option.
type Number struct {
	Value float64
	IsSet bool
}

// SetNumber returns a Number that is set to v.
func SetNumber(v float64) Number {
	return Number{Value: v, IsSet: true}
}

func (n Number) String() string {
	if !n.IsSet {
		return ""
	}
	return strconv.FormatFloat(n.Value, 'g', -1, 64)
}

// Set implements flag.Value.
func (n *Number) Set(value string) error {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid number %q", value)
	}
	*n = SetNumber(v)
	return nil
}

// Selection priorities accepted by --selection_priority.
var selectionPriorities = []string{"sum", "domains", "eval", "score"}

// Regions that can be saved as separate FASTA files, with the file
// suffix ITSx uses for each of them.
var regions = []struct{ name, suffix string }{
	{"SSU", ".SSU.fasta"},
	{"ITS1", ".ITS1.fasta"},
	{"5.8S", ".5_8S.fasta"},
	{"ITS2", ".ITS2.fasta"},
	{"LSU", ".LSU.fasta"},
}

// DefaultSaveRegions are the regions ITSx saves when --save_regions is not given.
var DefaultSaveRegions = []string{"ITS1", "ITS2"}

// MinimumDomains is the fixed value passed as -N.
const MinimumDomains = 2

// Options are the ITSx options forwarded to every job.
type Options struct {
	// Executable is the ITSx program; it is looked up in PATH when it
	// does not contain a path separator.
	Executable string

	ProfileDir string // -p
	ProfileSet string // -t, comma-separated
	CPU        int    // --cpu per job
	Debug      bool

	EValue      Number // -E
	Score       Number // -S
	SearchEval  Number // --search_eval
	SearchScore Number // --search_score

	AllowSingleDomain string // "F" or "evalue,score"
	SelectionPriority string
	Anchor            string // integer or "HMM"
	Partial           int
	MinLen            int
	SaveRegions       []string

	Complement   Switch
	Heuristics   Switch
	AllowReorder Switch
	MultiThread  Switch

	Summary   Switch
	Graphical Switch
	Fasta     Switch
	Positions Switch
	NotFound  Switch
	Table     Switch
	Concat    Switch
	OnlyFull  Switch
	Truncate  Switch
	SaveRaw   Switch
	Silent    Switch

	// LogOutput streams the standard output and error of each job to
	// <prefix>.log instead of discarding them.
	LogOutput bool

	// Timeout bounds the run time of a single job; zero means no limit.
	Timeout time.Duration
}

// DefaultOptions returns options that run ITSx from PATH on all
// profile sets with one core per job.
func DefaultOptions() Options {
	return Options{
		Executable: utils.DefaultTool,
		ProfileSet: "all",
		CPU:        1,
	}
}

func validNumberPair(s string) bool {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return false
	}
	for _, part := range parts {
		if _, err := strconv.ParseFloat(strings.TrimSpace(part), 64); err != nil {
			return false
		}
	}
	return true
}

func validRegion(name string) bool {
	switch strings.ToLower(name) {
	case "all", "none":
		return true
	}
	for _, r := range regions {
		if strings.EqualFold(r.name, name) {
			return true
		}
	}
	return false
}

// Validate checks the options for consistency.
func (o *Options) Validate() error {
	var errs []string
	if o.Executable == "" {
		errs = append(errs, "missing ITSx executable")
	}
	if strings.TrimSpace(o.ProfileSet) == "" {
		errs = append(errs, "missing profile set")
	}
	if o.CPU < 1 {
		errs = append(errs, fmt.Sprintf("invalid number of cores per job %v", o.CPU))
	}
	if o.EValue.IsSet && o.EValue.Value < 0 {
		errs = append(errs, fmt.Sprintf("invalid domain E-value cutoff %v", o.EValue))
	}
	if o.SearchEval.IsSet && o.SearchScore.IsSet {
		errs = append(errs, "search E-value and search score cutoffs cannot be used together")
	}
	if o.SearchEval.IsSet && o.SearchEval.Value < 0 {
		errs = append(errs, fmt.Sprintf("invalid search E-value cutoff %v", o.SearchEval))
	}
	if s := o.AllowSingleDomain; s != "" && !strings.EqualFold(s, "F") && !validNumberPair(s) {
		errs = append(errs, fmt.Sprintf("invalid single domain setting %q, expected F or evalue,score", s))
	}
	if p := o.SelectionPriority; p != "" {
		valid := false
		for _, q := range selectionPriorities {
			if p == q {
				valid = true
				break
			}
		}
		if !valid {
			errs = append(errs, fmt.Sprintf("invalid selection priority %q, expected one of %v", p, strings.Join(selectionPriorities, ", ")))
		}
	}
	if a := o.Anchor; a != "" && a != "HMM" {
		if n, err := strconv.Atoi(a); err != nil || n < 0 {
			errs = append(errs, fmt.Sprintf("invalid anchor %q, expected a number of bases or HMM", a))
		}
	}
	if o.Partial < 0 {
		errs = append(errs, fmt.Sprintf("invalid partial cutoff %v", o.Partial))
	}
	if o.MinLen < 0 {
		errs = append(errs, fmt.Sprintf("invalid minimum length %v", o.MinLen))
	}
	for _, r := range o.SaveRegions {
		if !validRegion(r) {
			errs = append(errs, fmt.Sprintf("invalid region %q", r))
		}
	}
	if o.Summary == Off {
		errs = append(errs, "the summary output cannot be disabled")
	}
	if o.Timeout < 0 {
		errs = append(errs, fmt.Sprintf("invalid job timeout %v", o.Timeout))
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// Args returns the ITSx command line arguments for one job. The
// result only depends on the options and the two paths.
func (o *Options) Args(input, prefix string) []string {
	args := []string{"-i", input, "-o", prefix, "-t", o.ProfileSet}
	if o.ProfileDir != "" {
		args = append(args, "-p", o.ProfileDir)
	}
	if o.Debug {
		args = append(args, "--debug")
	}
	args = append(args,
		"--cpu", strconv.Itoa(o.CPU),
		"-N", strconv.Itoa(MinimumDomains),
		"--detailed_results", "T",
		"--preserve", "T",
	)

	numbers := []struct {
		flag  string
		value Number
	}{
		{"-E", o.EValue},
		{"-S", o.Score},
		{"--search_eval", o.SearchEval},
		{"--search_score", o.SearchScore},
	}
	for _, n := range numbers {
		if n.value.IsSet {
			args = append(args, n.flag, n.value.String())
		}
	}
	if o.AllowSingleDomain != "" {
		args = append(args, "--allow_single_domain", o.AllowSingleDomain)
	}
	if o.SelectionPriority != "" {
		args = append(args, "--selection_priority", o.SelectionPriority)
	}
	if o.Anchor != "" {
		args = append(args, "--anchor", o.Anchor)
	}
	if o.Partial > 0 {
		args = append(args, "--partial", strconv.Itoa(o.Partial))
	}
	if o.MinLen > 0 {
		args = append(args, "--minlen", strconv.Itoa(o.MinLen))
	}
	if len(o.SaveRegions) > 0 {
		args = append(args, "--save_regions", strings.Join(o.SaveRegions, ","))
	}

	for _, s := range o.switches() {
		if s.value != Unset {
			args = append(args, s.flag, s.value.String())
		}
	}
	return args
}

type switchOption struct {
	flag  string
	value Switch
}

func (o *Options) switches() []switchOption {
	return []switchOption{
		{"--complement", o.Complement},
		{"--heuristics", o.Heuristics},
		{"--allow_reorder", o.AllowReorder},
		{"--multi_thread", o.MultiThread},
		{"--summary", o.Summary},
		{"--graphical", o.Graphical},
		{"--fasta", o.Fasta},
		{"--positions", o.Positions},
		{"--not_found", o.NotFound},
		{"--table", o.Table},
		{"--concat", o.Concat},
		{"--only_full", o.OnlyFull},
		{"--truncate", o.Truncate},
		{"--save_raw", o.SaveRaw},
		{"--silent", o.Silent},
	}
}

// String renders the options the way they are passed to ITSx, with
// placeholders for the per-job paths.
func (o *Options) String() string {
	return o.Executable + " " + strings.Join(o.Args("<input>", "<prefix>"), " ")
}
