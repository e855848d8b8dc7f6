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

// Package dispatch runs one external tool invocation per job on a fixed
// pool of workers.
//
// A Dispatcher owns a Queue and its worker goroutines. Producers Submit
// jobs and then Drain, which blocks until every submitted job has been
// processed and returns one Outcome per job. Close cancels outstanding
// work and joins all workers.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// A Job pairs an input file with the prefix under which the external
// tool writes its results. Index is the partition index of the input
// file and determines merge order.
type Job struct {
	Index        int
	ID           uuid.UUID
	Input        string
	OutputPrefix string
}

// NewJob returns a job with a fresh identifier.
func NewJob(index int, input, outputPrefix string) Job {
	return Job{
		Index:        index,
		ID:           uuid.New(),
		Input:        input,
		OutputPrefix: outputPrefix,
	}
}

func (job Job) String() string {
	return fmt.Sprintf("job %d (%v)", job.Index+1, job.ID)
}

// RunFunc processes a single job. It must block until the job's work
// has finished and should return promptly once ctx is done.
type RunFunc func(ctx context.Context, job Job) error

// An Outcome records how a job ended.
type Outcome struct {
	Job      Job
	Err      error
	Duration time.Duration
}

// Failed is true if the job returned an error.
func (o Outcome) Failed() bool {
	return o.Err != nil
}
