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

package fasta

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `>contig_1 length=12 depth=3.1x
ACGTACGTACGT
>contig_2
ACGTAC
GTACGT
ACG
>contig_3 circular=true
NNRYACGT
`

func writeTemp(t *testing.T, name string, data []byte) string {
	t.Helper()
	filename := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(filename, data, 0600))
	return filename
}

func TestParseFasta(t *testing.T) {
	records, err := ParseFasta(writeTemp(t, "in.fasta", []byte(sample)))
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, "contig_1", records[0].Name())
	assert.Equal(t, "length=12 depth=3.1x", records[0].Description())
	assert.Equal(t, 12, records[0].Len())
	assert.Equal(t, "contig_2", records[1].Name())
	assert.Equal(t, 15, records[1].Len())
	assert.Equal(t, 8, records[2].Len())
	assert.Equal(t, 35, TotalLength(records))
}

func TestParseGzipFasta(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(sample))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	records, err := ParseFasta(writeTemp(t, "in.fasta.gz", buf.Bytes()))
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, 35, TotalLength(records))
}

func TestParseMissingFile(t *testing.T) {
	_, err := ParseFasta(filepath.Join(t.TempDir(), "missing.fasta"))
	require.Error(t, err)
	assert.True(t, os.IsNotExist(err))
}

func TestCreateFastaRoundTrip(t *testing.T) {
	records, err := ParseFasta(writeTemp(t, "in.fasta", []byte(sample)))
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "out.fasta")
	require.NoError(t, CreateFasta(out, records[1:]))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), ">contig_2\n"))
	assert.Contains(t, string(data), ">contig_3 circular=true\n")

	again, err := ParseFasta(out)
	require.NoError(t, err)
	require.Len(t, again, 2)
	for i, s := range again {
		assert.Equal(t, records[i+1].Name(), s.Name())
		assert.Equal(t, records[i+1].Description(), s.Description())
		assert.Equal(t, records[i+1].Len(), s.Len())
	}
}

func TestTotalLengthEmpty(t *testing.T) {
	assert.Equal(t, 0, TotalLength(nil))
}
