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

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArgsTemplate(t *testing.T) {
	options := DefaultOptions()
	options.ProfileSet = "F,B"
	options.CPU = 4
	assert.Equal(t, []string{
		"-i", "in.fasta", "-o", "out/prefix", "-t", "F,B",
		"--cpu", "4", "-N", "2", "--detailed_results", "T", "--preserve", "T",
	}, options.Args("in.fasta", "out/prefix"))
}

func TestArgsAllOptions(t *testing.T) {
	options := DefaultOptions()
	options.ProfileDir = "/db/hmm"
	options.Debug = true
	options.EValue = SetNumber(1e-5)
	options.Score = SetNumber(0)
	options.SearchScore = SetNumber(10.5)
	options.AllowSingleDomain = "1e-9,0"
	options.SelectionPriority = "domains"
	options.Anchor = "HMM"
	options.Partial = 50
	options.MinLen = 100
	options.SaveRegions = []string{"ITS1", "5.8S"}
	options.Complement = Off
	options.Graphical = Off
	options.Silent = On

	args := options.Args("a.fasta", "a")
	assert.Equal(t, []string{
		"-i", "a.fasta", "-o", "a", "-t", "all", "-p", "/db/hmm", "--debug",
		"--cpu", "1", "-N", "2", "--detailed_results", "T", "--preserve", "T",
		"-E", "1e-05", "-S", "0", "--search_score", "10.5",
		"--allow_single_domain", "1e-9,0", "--selection_priority", "domains",
		"--anchor", "HMM", "--partial", "50", "--minlen", "100",
		"--save_regions", "ITS1,5.8S",
		"--complement", "F", "--graphical", "F", "--silent", "T",
	}, args)
	assert.Equal(t, args, options.Args("a.fasta", "a"))
	require.NoError(t, options.Validate())
}

func TestValidate(t *testing.T) {
	options := DefaultOptions()
	require.NoError(t, options.Validate())

	invalid := []func(*Options){
		func(o *Options) { o.Executable = "" },
		func(o *Options) { o.ProfileSet = " " },
		func(o *Options) { o.CPU = 0 },
		func(o *Options) { o.SearchEval, o.SearchScore = SetNumber(0.01), SetNumber(0) },
		func(o *Options) { o.SelectionPriority = "best" },
		func(o *Options) { o.Anchor = "-3" },
		func(o *Options) { o.Anchor = "hmm" },
		func(o *Options) { o.AllowSingleDomain = "1e-9" },
		func(o *Options) { o.Partial = -1 },
		func(o *Options) { o.MinLen = -1 },
		func(o *Options) { o.SaveRegions = []string{"ITS3"} },
		func(o *Options) { o.Summary = Off },
		func(o *Options) { o.Timeout = -time.Second },
		func(o *Options) { o.EValue = SetNumber(-1) },
	}
	for i, modify := range invalid {
		o := DefaultOptions()
		modify(&o)
		assert.Error(t, o.Validate(), "case %v", i)
		_, err := NewTool(o)
		assert.Error(t, err, "case %v", i)
	}
}

func TestSwitchAndNumberFlags(t *testing.T) {
	var s Switch
	require.NoError(t, s.Set("true"))
	assert.Equal(t, On, s)
	require.NoError(t, s.Set("F"))
	assert.Equal(t, Off, s)
	assert.Error(t, s.Set("maybe"))
	assert.True(t, Unset.Enabled(true))
	assert.False(t, Off.Enabled(true))

	var n Number
	assert.Equal(t, "", n.String())
	require.NoError(t, n.Set("1e-9"))
	assert.Equal(t, "1e-09", n.String())
	assert.Error(t, n.Set("x"))
}

func suffixes(categories []Category) (result []string) {
	for _, c := range categories {
		result = append(result, c.Suffix)
	}
	return result
}

func TestCategories(t *testing.T) {
	options := DefaultOptions()
	assert.Equal(t, []string{
		".summary.txt", ".extraction.results", ".problematic.txt", ".positions.txt", ".graph",
		"_no_detections.fasta", "_no_detections.txt",
		".full.fasta", ".ITS1.fasta", ".ITS2.fasta",
	}, suffixes(options.Categories()))

	options.Graphical = Off
	options.NotFound = Off
	options.Positions = Off
	options.SaveRegions = []string{"all"}
	options.Partial = 100
	options.Concat = On
	assert.Equal(t, []string{
		".summary.txt", ".extraction.results", ".problematic.txt",
		".full.fasta", ".SSU.fasta", ".ITS1.fasta", ".5_8S.fasta", ".ITS2.fasta", ".LSU.fasta",
		".full_and_partial.fasta",
		".SSU.full_and_partial.fasta", ".ITS1.full_and_partial.fasta", ".5_8S.full_and_partial.fasta",
		".ITS2.full_and_partial.fasta", ".LSU.full_and_partial.fasta",
		".concat.fasta",
	}, suffixes(options.Categories()))

	options.Fasta = Off
	assert.Equal(t, []string{".summary.txt", ".extraction.results", ".problematic.txt"}, suffixes(options.Categories()))
	assert.Equal(t, "x/y.summary.txt", Summary.Path("x/y"))
	for _, category := range options.Categories() {
		assert.Equal(t, category == Problematic, category.Optional, category.Name)
	}
}

const stubScript = `#!/bin/sh
while [ $# -gt 0 ]; do
  case "$1" in
    -i) in="$2"; shift 2;;
    -o) out="$2"; shift 2;;
    *) shift;;
  esac
done
echo "processing $in"
echo "some warning" >&2
case "$in" in
  *fail*) exit 3;;
  *hang*) sleep 30; exit 0;;
esac
echo "Detected: 1" > "$out.summary.txt"
`

func stubTool(t *testing.T, modify func(*Options)) *Tool {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("no shell available")
	}
	exe := filepath.Join(t.TempDir(), "ITSx")
	require.NoError(t, os.WriteFile(exe, []byte(stubScript), 0755))
	options := DefaultOptions()
	options.Executable = exe
	if modify != nil {
		modify(&options)
	}
	tool, err := NewTool(options)
	require.NoError(t, err)
	return tool
}

func TestRun(t *testing.T) {
	tool := stubTool(t, nil)
	prefix := filepath.Join(t.TempDir(), "sample_group_1")

	result, err := tool.Run(context.Background(), "sample.fasta", prefix)
	require.NoError(t, err)
	assert.Equal(t, 0, result.ExitCode)
	assert.Contains(t, string(result.Output), "processing sample.fasta")
	assert.Contains(t, string(result.Output), "some warning")

	data, err := os.ReadFile(Summary.Path(prefix))
	require.NoError(t, err)
	assert.Equal(t, "Detected: 1\n", string(data))
	_, err = os.Stat(prefix + ".log")
	assert.True(t, os.IsNotExist(err))
}

func TestRunLogOutput(t *testing.T) {
	tool := stubTool(t, func(o *Options) { o.LogOutput = true })
	prefix := filepath.Join(t.TempDir(), "p")

	_, err := tool.Run(context.Background(), "in.fasta", prefix)
	require.NoError(t, err)
	data, err := os.ReadFile(prefix + ".log")
	require.NoError(t, err)
	assert.Contains(t, string(data), "processing in.fasta")
}

func TestRunFailure(t *testing.T) {
	tool := stubTool(t, nil)
	result, err := tool.Run(context.Background(), "fail.fasta", filepath.Join(t.TempDir(), "p"))
	require.Error(t, err)
	var runErr *RunError
	require.True(t, errors.As(err, &runErr))
	assert.Equal(t, 3, runErr.ExitCode)
	assert.Equal(t, 3, result.ExitCode)
	assert.Equal(t, "fail.fasta", runErr.Input)
	assert.True(t, strings.Contains(err.Error(), "exit code 3"))
}

func TestRunMissingExecutable(t *testing.T) {
	options := DefaultOptions()
	options.Executable = filepath.Join(t.TempDir(), "does-not-exist")
	tool, err := NewTool(options)
	require.NoError(t, err)
	result, err := tool.Run(context.Background(), "in.fasta", "p")
	require.Error(t, err)
	assert.Equal(t, -1, result.ExitCode)
}

func TestRunTimeout(t *testing.T) {
	tool := stubTool(t, func(o *Options) { o.Timeout = 100 * time.Millisecond })
	start := time.Now()
	_, err := tool.Run(context.Background(), "hang.fasta", filepath.Join(t.TempDir(), "p"))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), killDelay)
}

func TestRunCancel(t *testing.T) {
	tool := stubTool(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)
	_, err := tool.Run(ctx, "hang.fasta", filepath.Join(t.TempDir(), "p"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTailBuffer(t *testing.T) {
	tail := newTailBuffer(5)
	_, _ = tail.Write([]byte("abc"))
	_, _ = tail.Write([]byte("def"))
	assert.Equal(t, "bcdef", string(tail.Bytes()))
	_, _ = tail.Write([]byte("0123456789"))
	assert.Equal(t, "56789", string(tail.Bytes()))
}
