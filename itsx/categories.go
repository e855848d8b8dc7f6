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

package itsx

import "strings"

// A Category is one kind of output file ITSx writes for every job,
// named <prefix><Suffix>.
type Category struct {
	Name   string
	Suffix string

	// Optional outputs are only written by ITSx for some inputs.
	Optional bool
}

// Path returns the file of this category for the given output prefix.
func (c Category) Path(prefix string) string {
	return prefix + c.Suffix
}

// Summary is the per-job summary report. Its numbers are added up
// instead of concatenated when merging.
var Summary = Category{Name: "summary", Suffix: ".summary.txt"}

// Problematic lists sequences whose domains ITSx could not place
// consistently.
var Problematic = Category{Name: "problematic", Suffix: ".problematic.txt", Optional: true}

func saveRegions(names []string) []Category {
	if len(names) == 0 {
		names = DefaultSaveRegions
	}
	selected := make(map[string]bool)
	for _, name := range names {
		switch strings.ToLower(name) {
		case "all":
			for _, r := range regions {
				selected[r.name] = true
			}
		case "none":
		default:
			for _, r := range regions {
				if strings.EqualFold(r.name, name) {
					selected[r.name] = true
				}
			}
		}
	}
	var result []Category
	for _, r := range regions {
		if selected[r.name] {
			result = append(result, Category{Name: r.name, Suffix: r.suffix})
		}
	}
	return result
}

// Categories returns the output categories a job produces with these
// options, in a fixed order. Summary is always the first one.
func (o *Options) Categories() []Category {
	result := []Category{
		Summary,
		{Name: "extraction results", Suffix: ".extraction.results"},
		Problematic,
	}
	if o.Positions.Enabled(true) {
		result = append(result, Category{Name: "positions", Suffix: ".positions.txt"})
	}
	if o.Graphical.Enabled(true) {
		result = append(result, Category{Name: "graph", Suffix: ".graph"})
	}
	if o.NotFound.Enabled(true) {
		result = append(result,
			Category{Name: "no detections fasta", Suffix: "_no_detections.fasta"},
			Category{Name: "no detections", Suffix: "_no_detections.txt"},
		)
	}
	if o.Table.Enabled(false) {
		result = append(result, Category{Name: "table", Suffix: ".table.txt"})
	}
	if o.Fasta.Enabled(true) {
		result = append(result, Category{Name: "full", Suffix: ".full.fasta"})
		regions := saveRegions(o.SaveRegions)
		result = append(result, regions...)
		if o.Partial > 0 {
			result = append(result, Category{Name: "full and partial", Suffix: ".full_and_partial.fasta"})
			for _, r := range regions {
				result = append(result, Category{
					Name:   r.Name + " full and partial",
					Suffix: strings.TrimSuffix(r.Suffix, ".fasta") + ".full_and_partial.fasta",
				})
			}
		}
		if o.Concat.Enabled(false) {
			result = append(result, Category{Name: "concatenated", Suffix: ".concat.fasta"})
		}
	}
	return result
}
