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

package dispatch

import (
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/term"
)

// Progress reports job completion to a writer. A nil *Progress reports
// nothing.
type Progress struct {
	mu          sync.Mutex
	w           io.Writer
	interactive bool
	total       int
	completed   int
	errorCount  int
}

// NewProgress returns a Progress writing to w. When w is a terminal,
// the status line is overwritten in place.
func NewProgress(w io.Writer) *Progress {
	p := &Progress{w: w}
	if f, ok := w.(*os.File); ok {
		p.interactive = term.IsTerminal(int(f.Fd()))
	}
	return p
}

// Add announces n more jobs.
func (p *Progress) Add(n int) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.total += n
}

// JobDone records the end of a job with the given error, if any.
func (p *Progress) JobDone(err error) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err == nil {
		p.completed++
	} else {
		p.errorCount++
		if p.interactive {
			fmt.Fprintf(p.w, "\r%s                                    \n", err)
		} else {
			fmt.Fprintf(p.w, "%s\n", err)
		}
	}
	ratio := 100.0
	if p.total > 0 {
		ratio = 100.0 * (float64(p.completed) / float64(p.total))
	}
	if p.interactive {
		fmt.Fprintf(p.w, "\r%d of %d jobs complete (%0.2f%% done, %d errors)",
			p.completed, p.total, ratio, p.errorCount)
	} else {
		fmt.Fprintf(p.w, "%d of %d jobs complete (%0.2f%% done, %d errors)\n",
			p.completed, p.total, ratio, p.errorCount)
	}
}

// Close terminates the status line.
func (p *Progress) Close() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.interactive {
		fmt.Fprintln(p.w)
	}
}
