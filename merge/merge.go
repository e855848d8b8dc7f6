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
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/exascience/pitsx/internal"
	"github.com/exascience/pitsx/itsx"
)

// A MergeIncompleteError reports expected output files that are
// missing after all jobs of a sample have finished.
type MergeIncompleteError struct {
	Sample  string
	Missing []string
}

func (e *MergeIncompleteError) Error() string {
	return fmt.Sprintf("no output generated for %v: missing %v", e.Sample, strings.Join(e.Missing, ", "))
}

// A Merger merges per-partition outputs into one set of files per sample.
type Merger struct {
	Categories []itsx.Category
	Strict     bool
}

// A Report lists the files a merge produced.
type Report struct {
	Sample     string
	Partitions int
	Files      []string // one merged file per category, summary excluded
	Summary    string
}

// Merge combines the outputs of the given job prefixes, which must be
// in partition order, into files named <resultsDir>/<sample><suffix>.
//
// Optional categories are merged from the partitions that produced
// them. Other merged files are only complete when every partition
// produced its file; otherwise Merge returns a *MergeIncompleteError
// and does not write a summary.
func (m *Merger) Merge(resultsDir, sample string, prefixes []string) (*Report, error) {
	if len(prefixes) == 0 {
		return nil, fmt.Errorf("nothing to merge for %v", sample)
	}
	base := filepath.Join(resultsDir, sample)
	report := &Report{Sample: sample, Partitions: len(prefixes)}
	if err := os.Remove(itsx.Summary.Path(base)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	var missing []string

	for _, category := range m.Categories {
		if category == itsx.Summary {
			continue
		}
		dst := category.Path(base)
		if err := os.Remove(dst); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		var srcs []string
		complete := true
		for _, prefix := range prefixes {
			src := category.Path(prefix)
			switch {
			case internal.FileExists(src):
				srcs = append(srcs, src)
			case !category.Optional:
				missing = append(missing, src)
				complete = false
			}
		}
		if !complete || len(srcs) == 0 {
			continue
		}
		if err := ConcatFiles(dst, srcs); err != nil {
			return nil, fmt.Errorf("merging %v files of %v: %w", category.Name, sample, err)
		}
		report.Files = append(report.Files, dst)
	}

	for _, file := range report.Files {
		if !internal.FileExists(file) {
			missing = append(missing, file)
		}
	}
	summaries := make([]string, len(prefixes))
	for i, prefix := range prefixes {
		summaries[i] = itsx.Summary.Path(prefix)
		if !internal.FileExists(summaries[i]) {
			missing = append(missing, summaries[i])
		}
	}
	if len(missing) > 0 {
		return nil, &MergeIncompleteError{Sample: sample, Missing: missing}
	}

	aggregator := SummaryAggregator{Strict: m.Strict}
	for _, summary := range summaries {
		if err := aggregator.AddFile(summary); err != nil {
			return nil, fmt.Errorf("summary of %v: %w", sample, err)
		}
	}
	report.Summary = itsx.Summary.Path(base)
	if err := aggregator.WriteFile(report.Summary); err != nil {
		return nil, err
	}
	return report, nil
}
