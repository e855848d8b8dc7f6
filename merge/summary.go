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

package merge

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math/big"
	"os"
	"regexp"
	"strings"

	"github.com/exascience/pitsx/internal"
)

// ErrSummaryShape is returned when summary reports that are merged in
// strict mode do not have the same number of lines.
var ErrSummaryShape = errors.New("summary reports have different numbers of lines")

var trailingNumber = regexp.MustCompile(`\d+$`)

// A SummaryAggregator adds up summary reports line by line.
//
// The first report is taken over verbatim. For every later report, each
// line that ends in a number in both the aggregate and the report is
// replaced by the text before the number, followed by the sum of both
// numbers. The text before the number comes from whichever of the two
// lines has its number starting first. Other lines are left unchanged.
type SummaryAggregator struct {
	// Strict rejects reports whose number of lines differs from the
	// aggregate. Otherwise, lines present in only one report are kept
	// as they are.
	Strict bool

	lines   []string
	reports int
}

// readLines returns the lines of r including their line terminators.
func readLines(r io.Reader) ([]string, error) {
	var lines []string
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if len(line) > 0 {
			lines = append(lines, line)
		}
		if err == io.EOF {
			return lines, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

func trimEOL(line string) string {
	return strings.TrimRight(line, "\r\n")
}

// addLine merges two summary lines.
func addLine(aggregate, line string) string {
	a, l := trimEOL(aggregate), trimEOL(line)
	am := trailingNumber.FindStringIndex(a)
	lm := trailingNumber.FindStringIndex(l)
	if am == nil || lm == nil {
		return aggregate
	}
	var x, y big.Int
	x.SetString(a[am[0]:am[1]], 10)
	y.SetString(l[lm[0]:lm[1]], 10)
	prefix := a[:am[0]]
	if lm[0] < am[0] {
		prefix = l[:lm[0]]
	}
	return prefix + x.Add(&x, &y).String() + "\n"
}

// Add folds one summary report into the aggregate.
func (s *SummaryAggregator) Add(r io.Reader) error {
	lines, err := readLines(r)
	if err != nil {
		return err
	}
	if s.reports == 0 {
		s.lines = lines
		s.reports = 1
		return nil
	}
	if s.Strict && len(lines) != len(s.lines) {
		return fmt.Errorf("%w: %v lines in report %v, %v lines before", ErrSummaryShape, len(lines), s.reports+1, len(s.lines))
	}
	s.reports++
	for i, line := range lines {
		if i < len(s.lines) {
			s.lines[i] = addLine(s.lines[i], line)
		} else {
			s.lines = append(s.lines, line)
		}
	}
	return nil
}

// AddFile folds the named summary report into the aggregate.
func (s *SummaryAggregator) AddFile(filename string) (err error) {
	f, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer internal.Close(f, &err)
	if err = s.Add(f); err != nil {
		return fmt.Errorf("%v: %w", filename, err)
	}
	return nil
}

// Lines returns the aggregated lines, including line terminators.
func (s *SummaryAggregator) Lines() []string {
	return append([]string(nil), s.lines...)
}

// WriteTo writes the aggregated report to w.
func (s *SummaryAggregator) WriteTo(w io.Writer) (n int64, err error) {
	for _, line := range s.lines {
		m, err := io.WriteString(w, line)
		n += int64(m)
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

// WriteFile writes the aggregated report to the named file.
func (s *SummaryAggregator) WriteFile(filename string) (err error) {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer internal.Close(f, &err)
	bw := bufio.NewWriter(f)
	if _, err = s.WriteTo(bw); err != nil {
		return err
	}
	return bw.Flush()
}
