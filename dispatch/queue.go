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
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bits-and-blooms/bitset"
)

// ErrClosed is returned when submitting to a closed queue.
var ErrClosed = errors.New("job queue closed")

// DefaultQueueSize is the number of jobs a Queue buffers before Put blocks.
const DefaultQueueSize = 64

// A Queue is a FIFO job queue for any number of producers and consumers,
// with a barrier that waits until every submitted job is done.
//
// Each job index can be submitted and completed only once.
type Queue struct {
	jobs      chan Job
	closed    chan struct{}
	closeOnce sync.Once

	mu        sync.Mutex
	pending   int
	inFlight  int
	submitted *bitset.BitSet
	completed *bitset.BitSet
	idle      chan struct{}
}

// NewQueue returns an empty queue that buffers up to size jobs.
func NewQueue(size int) *Queue {
	if size < 1 {
		size = DefaultQueueSize
	}
	idle := make(chan struct{})
	close(idle)
	return &Queue{
		jobs:      make(chan Job, size),
		closed:    make(chan struct{}),
		submitted: bitset.New(0),
		completed: bitset.New(0),
		idle:      idle,
	}
}

func (q *Queue) busy() {
	if q.pending+q.inFlight == 0 {
		q.idle = make(chan struct{})
	}
}

func (q *Queue) settle() {
	if q.pending+q.inFlight == 0 {
		close(q.idle)
	}
}

// Put adds job to the queue, blocking while the queue is full.
func (q *Queue) Put(ctx context.Context, job Job) error {
	if job.Index < 0 {
		return fmt.Errorf("invalid job index %v", job.Index)
	}
	index := uint(job.Index)
	q.mu.Lock()
	if q.submitted.Test(index) {
		q.mu.Unlock()
		return fmt.Errorf("%v already submitted", job)
	}
	q.submitted.Set(index)
	q.busy()
	q.pending++
	q.mu.Unlock()

	var err error
	select {
	case <-q.closed:
		err = ErrClosed
	default:
		select {
		case q.jobs <- job:
			return nil
		case <-ctx.Done():
			err = ctx.Err()
		case <-q.closed:
			err = ErrClosed
		}
	}

	q.mu.Lock()
	q.submitted.Clear(index)
	q.pending--
	q.settle()
	q.mu.Unlock()
	return err
}

// Get takes the next job from the queue, blocking while the queue is
// empty. It returns false when ctx is done or the queue is closed.
func (q *Queue) Get(ctx context.Context) (Job, bool) {
	if ctx.Err() != nil {
		return Job{}, false
	}
	select {
	case job := <-q.jobs:
		q.mu.Lock()
		q.pending--
		q.inFlight++
		q.mu.Unlock()
		return job, true
	case <-ctx.Done():
		return Job{}, false
	case <-q.closed:
		return Job{}, false
	}
}

// Done marks a job obtained from Get as completed.
func (q *Queue) Done(job Job) error {
	if job.Index < 0 {
		return fmt.Errorf("invalid job index %v", job.Index)
	}
	index := uint(job.Index)
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.submitted.Test(index) {
		return fmt.Errorf("%v was never submitted", job)
	}
	if q.completed.Test(index) {
		return fmt.Errorf("%v already completed", job)
	}
	if q.inFlight == 0 {
		return fmt.Errorf("%v is not in flight", job)
	}
	q.completed.Set(index)
	q.inFlight--
	q.settle()
	return nil
}

// Wait blocks until no job is pending or in flight, or until ctx is done.
func (q *Queue) Wait(ctx context.Context) error {
	q.mu.Lock()
	idle := q.idle
	q.mu.Unlock()
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pending returns the number of submitted jobs not yet taken by a worker.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending
}

// InFlight returns the number of jobs taken by a worker but not yet done.
func (q *Queue) InFlight() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.inFlight
}

// Completed reports whether the job with the given index is done.
func (q *Queue) Completed(index int) bool {
	if index < 0 {
		return false
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.completed.Test(uint(index))
}

// Close stops the queue. Blocked Put and Get calls return, and jobs
// still buffered are never handed out.
func (q *Queue) Close() {
	q.closeOnce.Do(func() { close(q.closed) })
}
