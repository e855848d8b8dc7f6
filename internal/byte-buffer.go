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

package internal

import "sync"

// ByteBufferSize is the size of the blocks handed out by ReserveByteBuffer.
const ByteBufferSize = 1024 * 1024

var bufPool = sync.Pool{New: func() interface{} {
	return make([]byte, ByteBufferSize)
}}

/*
ReserveByteBuffer returns a slice of ByteBufferSize bytes, either
freshly allocated or taken from an internal sync.Pool. Return it with
ReleaseByteBuffer once it is not used anymore.
*/
func ReserveByteBuffer() []byte {
	return bufPool.Get().([]byte)[:ByteBufferSize]
}

/*
ReleaseByteBuffer returns the given slice of bytes to the internal
sync.Pool from which ReserveByteBuffer can fetch it again.
*/
func ReleaseByteBuffer(buf []byte) {
	bufPool.Put(buf)
}
