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
	"fmt"

	"github.com/exascience/pitsx/dispatch"
	"go.uber.org/multierr"
)

// A PartitionError reports that the input of a sample could not be
// partitioned. No jobs are run for such a sample.
type PartitionError struct {
	Sample string
	Err    error
}

func (e *PartitionError) Error() string {
	return fmt.Sprintf("cannot partition %v: %v", e.Sample, e.Err)
}

func (e *PartitionError) Unwrap() error {
	return e.Err
}

// A JobFailure is a job that did not complete successfully.
type JobFailure struct {
	Job dispatch.Job
	Err error
}

// A JobExecutionError reports the failed jobs of a sample. The outputs
// of such a sample are not merged.
type JobExecutionError struct {
	Sample   string
	Failures []JobFailure
}

func (e *JobExecutionError) combined() error {
	var err error
	for _, f := range e.Failures {
		err = multierr.Append(err, fmt.Errorf("%v: %w", f.Job, f.Err))
	}
	return err
}

func (e *JobExecutionError) Error() string {
	return fmt.Sprintf("%v of the jobs for %v failed: %v", len(e.Failures), e.Sample, e.combined())
}

func (e *JobExecutionError) Unwrap() []error {
	return multierr.Errors(e.combined())
}
