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
	"log"
	"sort"
	"sync"
	"time"
)

// A Dispatcher runs submitted jobs on a fixed number of workers.
type Dispatcher struct {
	queue    *Queue
	run      RunFunc
	progress *Progress

	ctx     context.Context
	cancel  context.CancelFunc
	workers sync.WaitGroup

	mu       sync.Mutex
	outcomes []Outcome
}

type config struct {
	queueSize int
	progress  *Progress
}

// An Option configures a Dispatcher.
type Option func(*config)

// WithQueueSize sets how many jobs can be submitted ahead of the workers.
func WithQueueSize(size int) Option {
	return func(c *config) { c.queueSize = size }
}

// WithProgress reports job completion to p.
func WithProgress(p *Progress) Option {
	return func(c *config) { c.progress = p }
}

// New starts a dispatcher with the given number of workers, each of
// which calls run for one job at a time. The workers stop when ctx is
// done or Close is called.
func New(ctx context.Context, workers int, run RunFunc, options ...Option) (*Dispatcher, error) {
	if workers < 1 {
		return nil, fmt.Errorf("invalid number of workers %v", workers)
	}
	if run == nil {
		return nil, errors.New("missing run function")
	}
	cfg := config{queueSize: DefaultQueueSize}
	for _, option := range options {
		option(&cfg)
	}
	d := &Dispatcher{
		queue:    NewQueue(cfg.queueSize),
		run:      run,
		progress: cfg.progress,
	}
	d.ctx, d.cancel = context.WithCancel(ctx)
	d.workers.Add(workers)
	for i := 0; i < workers; i++ {
		go d.work()
	}
	return d, nil
}

func (d *Dispatcher) work() {
	defer d.workers.Done()
	for {
		job, ok := d.queue.Get(d.ctx)
		if !ok {
			return
		}
		start := time.Now()
		err := d.runJob(job)
		outcome := Outcome{Job: job, Err: err, Duration: time.Since(start)}
		d.mu.Lock()
		d.outcomes = append(d.outcomes, outcome)
		d.mu.Unlock()
		d.progress.JobDone(err)
		if err := d.queue.Done(job); err != nil {
			log.Panic(err)
		}
	}
}

func (d *Dispatcher) runJob(job Job) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%v panicked: %v", job, p)
		}
	}()
	return d.run(d.ctx, job)
}

// Queue returns the dispatcher's job queue.
func (d *Dispatcher) Queue() *Queue {
	return d.queue
}

// Submit enqueues job, blocking while the queue is full.
func (d *Dispatcher) Submit(ctx context.Context, job Job) error {
	if err := d.ctx.Err(); err != nil {
		return err
	}
	d.progress.Add(1)
	if err := d.queue.Put(ctx, job); err != nil {
		d.progress.Add(-1)
		return err
	}
	return nil
}

// Drain blocks until every submitted job has been processed, and
// returns the outcomes of the jobs that finished since the previous
// Drain, ordered by job index. If ctx is done or the dispatcher is
// stopped first, Drain returns the outcomes collected so far together
// with the cancellation error.
func (d *Dispatcher) Drain(ctx context.Context) ([]Outcome, error) {
	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(d.ctx, cancel)
	defer stop()

	err := d.queue.Wait(waitCtx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		} else if dErr := d.ctx.Err(); dErr != nil {
			err = dErr
		}
	}

	d.mu.Lock()
	outcomes := d.outcomes
	d.outcomes = nil
	d.mu.Unlock()
	sort.Slice(outcomes, func(i, j int) bool {
		return outcomes[i].Job.Index < outcomes[j].Job.Index
	})
	return outcomes, err
}

// Close stops accepting jobs, cancels running jobs, and waits until all
// workers have returned.
func (d *Dispatcher) Close() {
	d.cancel()
	d.queue.Close()
	d.workers.Wait()
	d.progress.Close()
}
