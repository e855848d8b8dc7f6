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

// Package fasta reads and writes the FASTA files that pitsx partitions.
//
// Parsing and serialization are done with biogo; this package only adds
// gzip handling, error context and a parallel length sum.
package fasta

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/biogo/biogo/alphabet"
	"github.com/biogo/biogo/io/seqio"
	"github.com/biogo/biogo/io/seqio/fasta"
	"github.com/biogo/biogo/seq/linear"
	"github.com/exascience/pargo/parallel"
	"github.com/klauspost/compress/gzip"
)

// LineWidth is the number of sequence letters written per line.
const LineWidth = 60

type gzipFile struct {
	*gzip.Reader
	file *os.File
}

func (g gzipFile) Close() error {
	err := g.Reader.Close()
	if nerr := g.file.Close(); err == nil {
		err = nerr
	}
	return err
}

type bufferedFile struct {
	*bufio.Reader
	file *os.File
}

func (b bufferedFile) Close() error {
	return b.file.Close()
}

// IsGzip checks if the given reader produces a gzip stream by
// looking at the first two bytes, without consuming them.
func IsGzip(r *bufio.Reader) (bool, error) {
	magic, err := r.Peek(2)
	if err == io.EOF {
		return false, nil
	} else if err != nil {
		return false, err
	}
	return magic[0] == 0x1f && magic[1] == 0x8b, nil
}

// Open opens a FASTA file for reading. Gzip-compressed files are
// decompressed on the fly.
func Open(filename string) (io.ReadCloser, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	buf := bufio.NewReader(f)
	ok, err := IsGzip(buf)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%v: %w", filename, err)
	}
	if !ok {
		return bufferedFile{buf, f}, nil
	}
	r, err := gzip.NewReader(buf)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%v: %w", filename, err)
	}
	return gzipFile{r, f}, nil
}

// ReadFasta sequentially parses FASTA records from r, in file order.
func ReadFasta(r io.Reader) (records []*linear.Seq, err error) {
	sc := seqio.NewScanner(fasta.NewReader(r, linear.NewSeq("", nil, alphabet.DNAredundant)))
	for sc.Next() {
		s, ok := sc.Seq().(*linear.Seq)
		if !ok {
			return nil, fmt.Errorf("unexpected sequence type %T", sc.Seq())
		}
		records = append(records, s)
	}
	if err := sc.Error(); err != nil {
		return nil, err
	}
	return records, nil
}

// ParseFasta parses the named FASTA file into an ordered slice of records.
func ParseFasta(filename string) (records []*linear.Seq, err error) {
	f, err := Open(filename)
	if err != nil {
		return nil, err
	}
	defer func() {
		if nerr := f.Close(); err == nil {
			err = nerr
		}
	}()
	records, err = ReadFasta(f)
	if err != nil {
		return nil, fmt.Errorf("invalid fasta file %v: %w", filename, err)
	}
	return records, nil
}

// WriteFasta writes records in order to w. Identifiers and
// descriptions are written back unchanged.
func WriteFasta(w io.Writer, records []*linear.Seq) error {
	bw := bufio.NewWriter(w)
	fw := fasta.NewWriter(bw, LineWidth)
	for _, s := range records {
		if _, err := fw.Write(s); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// CreateFasta creates (or truncates) the named file and writes records to it.
func CreateFasta(filename string, records []*linear.Seq) (err error) {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() {
		if nerr := f.Close(); err == nil {
			err = nerr
		}
	}()
	if err = WriteFasta(f, records); err != nil {
		return fmt.Errorf("writing fasta file %v: %w", filename, err)
	}
	return nil
}

// TotalLength returns the sum of the lengths of the given records.
func TotalLength(records []*linear.Seq) int {
	if len(records) == 0 {
		return 0
	}
	return parallel.RangeReduceInt(0, len(records), 0,
		func(low, high int) (sum int) {
			for i := low; i < high; i++ {
				sum += records[i].Len()
			}
			return sum
		},
		func(x, y int) int { return x + y })
}
