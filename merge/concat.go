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

// Package merge combines the outputs of the jobs of one sample.
//
// Most output categories are merged by plain concatenation in partition
// order. Summary reports are merged by adding up the number at the end
// of each line.
package merge

import (
	"fmt"
	"io"
	"os"

	"github.com/exascience/pitsx/internal"
)

// ConcatFiles writes the contents of srcs, in order and without any
// separators, to dst. An existing dst is truncated.
func ConcatFiles(dst string, srcs []string) (err error) {
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0666)
	if err != nil {
		return err
	}
	defer internal.Close(out, &err)

	buf := internal.ReserveByteBuffer()
	defer internal.ReleaseByteBuffer(buf)

	for _, src := range srcs {
		if err = appendFile(out, src, buf); err != nil {
			return err
		}
	}
	return nil
}

func appendFile(out io.Writer, src string, buf []byte) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer internal.Close(in, &err)
	for {
		n, rerr := in.Read(buf)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				return werr
			}
		}
		if rerr == io.EOF {
			return nil
		}
		if rerr != nil {
			return fmt.Errorf("reading %v: %w", src, rerr)
		}
	}
}
