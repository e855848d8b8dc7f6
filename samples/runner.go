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

package samples

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"time"

	"github.com/biogo/biogo/seq/linear"
	"github.com/exascience/pargo/parallel"
	"go.uber.org/multierr"

	"github.com/exascience/pitsx/bins"
	"github.com/exascience/pitsx/dispatch"
	"github.com/exascience/pitsx/fasta"
	"github.com/exascience/pitsx/internal"
	"github.com/exascience/pitsx/itsx"
	"github.com/exascience/pitsx/merge"
)

// A Report describes a successfully processed sample.
type Report struct {
	Sample      Sample
	Records     int
	TotalLength int
	Capacity    int
	Jobs        []dispatch.Outcome
	Merged      *merge.Report
	Duration    time.Duration
}

// A Runner processes samples with a fixed configuration.
type Runner struct {
	config Config
	tool   *itsx.Tool
	run    dispatch.RunFunc
}

// NewRunner validates config and returns a Runner using it.
func NewRunner(config Config) (*Runner, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	tool, err := itsx.NewTool(config.Tool)
	if err != nil {
		return nil, err
	}
	r := &Runner{config: config, tool: tool}
	r.run = r.runITSx
	return r, nil
}

func (r *Runner) runITSx(ctx context.Context, job dispatch.Job) error {
	result, err := r.tool.Run(ctx, job.Input, job.OutputPrefix)
	if err != nil {
		return err
	}
	log.Printf("Finished %v on %v in %v.\n", job, job.Input, result.Duration)
	return nil
}

type partitioning struct {
	records     int
	totalLength int
	capacity    int
	jobs        []dispatch.Job
}

func (r *Runner) partition(ctx context.Context, sample Sample) (*partitioning, error) {
	records, err := fasta.ParseFasta(sample.Input)
	if err != nil {
		return nil, &PartitionError{Sample: sample.Name, Err: err}
	}
	if len(records) == 0 {
		return nil, &PartitionError{Sample: sample.Name, Err: fmt.Errorf("no records in %v", sample.Input)}
	}
	p := &partitioning{
		records:     len(records),
		totalLength: fasta.TotalLength(records),
	}
	p.capacity = bins.Capacity(p.totalLength, r.config.Workers)
	packed, err := bins.Pack(records, p.capacity)
	if err != nil {
		return nil, &PartitionError{Sample: sample.Name, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	log.Printf("Splitting %v (%v records, total length %v) into %v partitions of capacity %v.\n",
		sample.Name, p.records, p.totalLength, len(packed), p.capacity)

	if err := r.removeStalePartitions(sample, len(packed)); err != nil {
		return nil, &PartitionError{Sample: sample.Name, Err: err}
	}

	p.jobs = make([]dispatch.Job, len(packed))
	errs := make([]error, len(packed))
	parallel.Range(0, len(packed), len(packed), func(low, high int) {
		for i := low; i < high; i++ {
			errs[i] = r.writePartition(sample, i, packed[i], &p.jobs[i])
		}
	})
	if err := multierr.Combine(errs...); err != nil {
		return nil, &PartitionError{Sample: sample.Name, Err: err}
	}
	return p, nil
}

func (r *Runner) writePartition(sample Sample, index int, bin *bins.Bin[*linear.Seq], job *dispatch.Job) error {
	if err := internal.MakePath(sample.partitionDir(r.config.OutputRoot, index)); err != nil {
		return err
	}
	prefix := sample.PartitionPrefix(r.config.OutputRoot, index)
	for _, category := range r.tool.Categories() {
		if err := removeFile(category.Path(prefix)); err != nil {
			return err
		}
	}
	if err := removeFile(prefix + ".log"); err != nil {
		return err
	}
	input := prefix + ".fasta"
	if err := fasta.CreateFasta(input, bin.Members); err != nil {
		return err
	}
	*job = dispatch.NewJob(index, input, prefix)
	return nil
}

func removeFile(filename string) error {
	if err := os.Remove(filename); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// removeStalePartitions removes the partition directories of earlier
// runs that split the sample into more than n partitions.
func (r *Runner) removeStalePartitions(sample Sample, n int) error {
	groups, err := internal.NumberedDirectories(sample.ResultsDir(r.config.OutputRoot))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	} else if err != nil {
		return err
	}
	for _, group := range groups {
		if group > n {
			if err := os.RemoveAll(sample.partitionDir(r.config.OutputRoot, group-1)); err != nil {
				return err
			}
		}
	}
	return nil
}

// Split writes the partition files of sample and returns one job per
// partition, without running them.
func (r *Runner) Split(ctx context.Context, sample Sample) ([]dispatch.Job, error) {
	p, err := r.partition(ctx, sample)
	if err != nil {
		return nil, err
	}
	return p.jobs, nil
}

// Process partitions sample, runs ITSx on every partition, and merges
// the results once all jobs have succeeded.
func (r *Runner) Process(ctx context.Context, sample Sample) (*Report, error) {
	start := time.Now()
	p, err := r.partition(ctx, sample)
	if err != nil {
		return nil, err
	}
	report := &Report{
		Sample:      sample,
		Records:     p.records,
		TotalLength: p.totalLength,
		Capacity:    p.capacity,
	}

	outcomes, err := r.dispatch(ctx, p.jobs)
	report.Jobs = outcomes
	if err != nil {
		return report, err
	}
	var failures []JobFailure
	for _, outcome := range outcomes {
		if outcome.Failed() {
			failures = append(failures, JobFailure{Job: outcome.Job, Err: outcome.Err})
		}
	}
	if len(failures) > 0 {
		return report, &JobExecutionError{Sample: sample.Name, Failures: failures}
	}

	prefixes := make([]string, len(p.jobs))
	for i, job := range p.jobs {
		prefixes[i] = job.OutputPrefix
	}
	if report.Merged, err = r.merge(sample.ResultsDir(r.config.OutputRoot), sample.Name, prefixes); err != nil {
		return report, err
	}

	if r.config.CleanIntermediate {
		for i := range p.jobs {
			if err := os.RemoveAll(sample.partitionDir(r.config.OutputRoot, i)); err != nil {
				return report, err
			}
		}
	}
	report.Duration = time.Since(start)
	return report, nil
}

func (r *Runner) merge(resultsDir, name string, prefixes []string) (*merge.Report, error) {
	merger := merge.Merger{Categories: r.tool.Categories(), Strict: r.config.Strict}
	return merger.Merge(resultsDir, name, prefixes)
}

// Merge merges the partition outputs that an earlier run of the sample
// with the given name left in resultsDir.
func (r *Runner) Merge(resultsDir, name string) (*merge.Report, error) {
	groups, err := internal.NumberedDirectories(resultsDir)
	if err != nil {
		return nil, err
	}
	if len(groups) == 0 {
		return nil, fmt.Errorf("no partition directories in %v", resultsDir)
	}
	prefixes := make([]string, len(groups))
	for i, group := range groups {
		prefixes[i] = groupPrefix(resultsDir, name, group)
	}
	return r.merge(resultsDir, name, prefixes)
}

func (r *Runner) dispatch(ctx context.Context, jobs []dispatch.Job) ([]dispatch.Outcome, error) {
	queueSize := r.config.QueueSize
	if queueSize == 0 {
		queueSize = dispatch.DefaultQueueSize
	}
	options := []dispatch.Option{dispatch.WithQueueSize(queueSize)}
	if r.config.Progress != nil {
		options = append(options, dispatch.WithProgress(dispatch.NewProgress(r.config.Progress)))
	}
	d, err := dispatch.New(ctx, r.config.Workers, r.run, options...)
	if err != nil {
		return nil, err
	}
	defer d.Close()
	for _, job := range jobs {
		if err := d.Submit(ctx, job); err != nil {
			return nil, err
		}
	}
	return d.Drain(ctx)
}

// Batch processes the samples one after the other. A failing sample is
// logged and does not prevent the remaining samples from being
// processed. The returned error combines the errors of all failed
// samples.
func (r *Runner) Batch(ctx context.Context, samples []Sample) (err error) {
	for _, sample := range samples {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return multierr.Append(err, ctxErr)
		}
		log.Println("Processing sample", sample.Name)
		report, perr := r.Process(ctx, sample)
		if perr != nil {
			log.Printf("Error: sample %v failed: %v\n", sample.Name, perr)
			err = multierr.Append(err, fmt.Errorf("sample %v: %w", sample.Name, perr))
			continue
		}
		log.Printf("Sample %v: %v partitions merged into %v in %v.\n",
			sample.Name, len(report.Jobs), sample.ResultsDir(r.config.OutputRoot), report.Duration)
	}
	return err
}

