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

// Package bins splits sequence records into length-balanced groups.
//
// Packing uses a deterministic first-fit strategy: every record goes to
// the first bin, in creation order, that still has room for it. A record
// that is longer than the nominal bin capacity gets a dedicated bin of
// exactly its own length.
package bins

import "fmt"

// Sized is implemented by anything that has a length, such as
// *linear.Seq records.
type Sized interface {
	Len() int
}

// A Bin holds records up to a total length of Capacity.
type Bin[T Sized] struct {
	Capacity  int
	Members   []T
	Occupied  int
	oversized bool
}

// NewBin returns an empty bin with the given capacity.
func NewBin[T Sized](capacity int) *Bin[T] {
	return &Bin[T]{Capacity: capacity}
}

// Add appends x to the bin.
func (b *Bin[T]) Add(x T) {
	b.Members = append(b.Members, x)
	b.Occupied += x.Len()
}

// FreeCapacity returns how much length the bin can still take.
func (b *Bin[T]) FreeCapacity() int {
	return b.Capacity - b.Occupied
}

// Empty is true if no record has been added to the bin.
func (b *Bin[T]) Empty() bool {
	return len(b.Members) == 0
}

// Oversized is true for a bin dedicated to one record that exceeds the
// nominal capacity.
func (b *Bin[T]) Oversized() bool {
	return b.oversized
}

// Pack distributes items over bins of the given capacity.
//
// Items keep their relative input order inside each bin. The result
// always contains at least one bin, and the same input always produces
// the same bins.
func Pack[T Sized](items []T, capacity int) ([]*Bin[T], error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("invalid bin capacity %v", capacity)
	}
	bins := []*Bin[T]{NewBin[T](capacity)}
	for _, item := range items {
		size := item.Len()
		if size < 0 {
			return nil, fmt.Errorf("invalid item length %v", size)
		}
		for i := 0; i < len(bins); i++ {
			bin := bins[i]
			if size > capacity {
				if bin.Empty() {
					bin.Add(item)
					bin.Capacity = size
					bin.oversized = true
					break
				}
			} else if !bin.oversized && bin.FreeCapacity() >= size {
				bin.Add(item)
				break
			}
			if i == len(bins)-1 {
				bins = append(bins, NewBin[T](capacity))
			}
		}
	}
	return bins, nil
}

// Capacity computes the per-bin capacity for spreading totalLength over
// the given number of workers: the ceiling of the even share, plus an
// overhead of 1/20000th of that share.
func Capacity(totalLength, workers int) int {
	if workers < 1 {
		workers = 1
	}
	capacity := (totalLength + workers - 1) / workers
	capacity += capacity / 20000
	if capacity < 1 {
		capacity = 1
	}
	return capacity
}
