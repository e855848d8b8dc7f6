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

// Package samples splits FASTA samples into balanced partitions, runs
// ITSx on every partition in parallel, and merges the results.
package samples

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/exascience/pitsx/itsx"
)

// Config configures a Runner.
type Config struct {
	// Workers is the number of ITSx processes that run at the same
	// time. It also determines the number of partitions per sample.
	Workers int

	// OutputRoot is the directory that receives one results
	// directory per sample.
	OutputRoot string

	Tool itsx.Options

	// Strict rejects summary reports of different lengths.
	Strict bool

	// CleanIntermediate removes the partition directories of a sample
	// after a successful merge.
	CleanIntermediate bool

	// QueueSize bounds the number of jobs waiting for a worker. Zero
	// selects a default.
	QueueSize int

	// Progress, if not nil, receives progress reports.
	Progress io.Writer
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("invalid number of workers %v", c.Workers)
	}
	if c.OutputRoot == "" {
		return errors.New("missing output directory")
	}
	if c.QueueSize < 0 {
		return fmt.Errorf("invalid queue size %v", c.QueueSize)
	}
	return c.Tool.Validate()
}

// A Sample is a FASTA file processed as a unit. Its name determines
// the name of its results directory and of its merged output files.
type Sample struct {
	Name  string
	Input string
}

// SampleFromPath returns the sample for the given FASTA file, named
// after the file without directory and extensions.
func SampleFromPath(path string) (Sample, error) {
	name := filepath.Base(path)
	name = strings.TrimSuffix(name, ".gz")
	name = strings.TrimSuffix(name, filepath.Ext(name))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return Sample{}, fmt.Errorf("cannot derive a sample name from %v", path)
	}
	return Sample{Name: name, Input: path}, nil
}

// ResultsDir returns the directory that receives all files of the
// sample below root.
func (s Sample) ResultsDir(root string) string {
	return filepath.Join(root, s.Name)
}

func (s Sample) partitionDir(root string, index int) string {
	return filepath.Join(s.ResultsDir(root), strconv.Itoa(index+1))
}

// PartitionPrefix returns the prefix of the files that belong to the
// partition with the given zero-based index.
func (s Sample) PartitionPrefix(root string, index int) string {
	return groupPrefix(s.ResultsDir(root), s.Name, index+1)
}

func groupPrefix(resultsDir, name string, group int) string {
	return filepath.Join(resultsDir, strconv.Itoa(group), fmt.Sprintf("%v_group_%v", name, group))
}
