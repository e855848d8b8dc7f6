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
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcherRunsEveryJobOnce(t *testing.T) {
	var calls [40]int32
	run := func(_ context.Context, job Job) error {
		atomic.AddInt32(&calls[job.Index], 1)
		time.Sleep(time.Millisecond)
		return nil
	}
	d, err := New(context.Background(), 3, run, WithQueueSize(4))
	require.NoError(t, err)
	defer d.Close()

	for i := range calls {
		require.NoError(t, d.Submit(context.Background(), NewJob(i, fmt.Sprintf("in%d", i), fmt.Sprintf("out%d", i))))
	}
	outcomes, err := d.Drain(context.Background())
	require.NoError(t, err)
	require.Len(t, outcomes, len(calls))

	for i, outcome := range outcomes {
		assert.Equal(t, i, outcome.Job.Index)
		assert.False(t, outcome.Failed())
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls[i]))
		assert.True(t, d.Queue().Completed(i))
	}
	assert.Equal(t, 0, d.Queue().Pending())
	assert.Equal(t, 0, d.Queue().InFlight())
}

func TestDispatcherLimitsConcurrency(t *testing.T) {
	const workers = 2
	var running, peak int32
	run := func(_ context.Context, _ Job) error {
		n := atomic.AddInt32(&running, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&running, -1)
		return nil
	}
	d, err := New(context.Background(), workers, run)
	require.NoError(t, err)
	defer d.Close()

	for i := 0; i < 12; i++ {
		require.NoError(t, d.Submit(context.Background(), NewJob(i, "", "")))
	}
	_, err = d.Drain(context.Background())
	require.NoError(t, err)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(workers))
	assert.Greater(t, atomic.LoadInt32(&peak), int32(0))
}

func TestDispatcherRecordsFailures(t *testing.T) {
	errOdd := errors.New("odd job")
	run := func(_ context.Context, job Job) error {
		if job.Index%2 == 1 {
			return errOdd
		}
		if job.Index == 4 {
			panic("boom")
		}
		return nil
	}
	d, err := New(context.Background(), 4, run)
	require.NoError(t, err)
	defer d.Close()

	for i := 0; i < 6; i++ {
		require.NoError(t, d.Submit(context.Background(), NewJob(i, "", "")))
	}
	outcomes, err := d.Drain(context.Background())
	require.NoError(t, err)
	require.Len(t, outcomes, 6)
	for _, outcome := range outcomes {
		switch {
		case outcome.Job.Index%2 == 1:
			assert.ErrorIs(t, outcome.Err, errOdd)
		case outcome.Job.Index == 4:
			require.Error(t, outcome.Err)
			assert.Contains(t, outcome.Err.Error(), "panicked")
		default:
			assert.NoError(t, outcome.Err)
		}
	}
}

func TestDispatcherDrainTwice(t *testing.T) {
	d, err := New(context.Background(), 2, func(context.Context, Job) error { return nil })
	require.NoError(t, err)
	defer d.Close()

	require.NoError(t, d.Submit(context.Background(), NewJob(0, "", "")))
	first, err := d.Drain(context.Background())
	require.NoError(t, err)
	assert.Len(t, first, 1)

	require.NoError(t, d.Submit(context.Background(), NewJob(1, "", "")))
	second, err := d.Drain(context.Background())
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, 1, second[0].Job.Index)

	assert.Error(t, d.Submit(context.Background(), NewJob(0, "", "")))
}

func TestDispatcherCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{}, 8)
	run := func(ctx context.Context, _ Job) error {
		started <- struct{}{}
		<-ctx.Done()
		return ctx.Err()
	}
	d, err := New(ctx, 2, run)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, d.Submit(ctx, NewJob(i, "", "")))
	}
	<-started
	cancel()

	_, err = d.Drain(context.Background())
	assert.ErrorIs(t, err, context.Canceled)

	done := make(chan struct{})
	go func() {
		d.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("workers did not stop")
	}
	assert.Error(t, d.Submit(context.Background(), NewJob(9, "", "")))
}

func TestDispatcherDrainTimeout(t *testing.T) {
	release := make(chan struct{})
	d, err := New(context.Background(), 1, func(context.Context, Job) error {
		<-release
		return nil
	})
	require.NoError(t, err)
	defer d.Close()
	defer close(release)

	require.NoError(t, d.Submit(context.Background(), NewJob(0, "", "")))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = d.Drain(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewDispatcherValidation(t *testing.T) {
	_, err := New(context.Background(), 0, func(context.Context, Job) error { return nil })
	assert.Error(t, err)
	_, err = New(context.Background(), 1, nil)
	assert.Error(t, err)
}

func TestQueueBookkeeping(t *testing.T) {
	q := NewQueue(2)
	ctx := context.Background()
	require.NoError(t, q.Wait(ctx))

	job := NewJob(0, "a", "b")
	require.NoError(t, q.Put(ctx, job))
	assert.Error(t, q.Put(ctx, job))
	assert.Equal(t, 1, q.Pending())

	got, ok := q.Get(ctx)
	require.True(t, ok)
	assert.Equal(t, job, got)
	assert.Equal(t, 0, q.Pending())
	assert.Equal(t, 1, q.InFlight())

	waited := make(chan error, 1)
	go func() { waited <- q.Wait(ctx) }()
	select {
	case <-waited:
		t.Fatal("Wait returned with a job in flight")
	case <-time.After(10 * time.Millisecond):
	}

	require.NoError(t, q.Done(got))
	require.NoError(t, <-waited)
	assert.Error(t, q.Done(got))
	assert.Error(t, q.Done(NewJob(7, "", "")))
	assert.True(t, q.Completed(0))
	assert.Error(t, q.Put(ctx, job))

	q.Close()
	assert.ErrorIs(t, q.Put(ctx, NewJob(1, "", "")), ErrClosed)
	_, ok = q.Get(ctx)
	assert.False(t, ok)
}

func TestQueuePutBlocksWhenFull(t *testing.T) {
	q := NewQueue(1)
	require.NoError(t, q.Put(context.Background(), NewJob(0, "", "")))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.Put(ctx, NewJob(1, "", "")), context.DeadlineExceeded)
	assert.Equal(t, 1, q.Pending())

	// a rejected job can be submitted again later
	_, ok := q.Get(context.Background())
	require.True(t, ok)
	require.NoError(t, q.Put(context.Background(), NewJob(1, "", "")))
}

func TestProgress(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgress(&buf)
	p.Add(2)
	p.JobDone(nil)
	p.JobDone(errors.New("job 2 failed"))
	p.Close()
	assert.Equal(t, "1 of 2 jobs complete (50.00% done, 0 errors)\n"+
		"job 2 failed\n"+
		"1 of 2 jobs complete (50.00% done, 1 errors)\n", buf.String())

	var nilProgress *Progress
	nilProgress.Add(1)
	nilProgress.JobDone(nil)
	nilProgress.Close()
}

func TestProgressConcurrent(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgress(&buf)
	p.Add(10)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.JobDone(nil)
		}()
	}
	wg.Wait()
	assert.Contains(t, buf.String(), "10 of 10 jobs complete (100.00% done, 0 errors)")
}
