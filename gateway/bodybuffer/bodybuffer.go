// Copyright 2015 Light Code Labs, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package bodybuffer adapts a one-shot request or response body stream
// into a re-readable byte source bounded by a soft cap, so that several
// pipeline stages (signature scanning, upstream forwarding, retries
// across fall-through links) can each see the same bytes.
package bodybuffer

import (
	"errors"
	"io"
)

// ErrOverflow is returned once the buffer has exceeded its soft cap.
// All subsequent reads on the Buffer return this error until a new
// Buffer is created; there is no way to recover an overflowed buffer.
var ErrOverflow = errors.New("bodybuffer: soft cap exceeded")

// ErrPayloadTooLarge is returned by DrainToBytes when limit is exceeded.
var ErrPayloadTooLarge = errors.New("bodybuffer: payload too large")

// Buffer wraps a stream so it can be read more than once. The first
// pass through the data pulls from the upstream stream and appends to
// an internal, append-only slice; after Reset, reads replay that slice
// before falling back to further upstream pulls.
//
// A Buffer is not safe for concurrent use by multiple goroutines, but
// the byte slice it has already buffered is immutable once written, so
// independent Readers created via NewReader may safely run in
// different goroutines as long as no concurrent Read/Reset is racing
// ahead of them.
type Buffer struct {
	stream   io.Reader
	softCap  int64
	buf      []byte
	cursor   int64 // replay position
	eof      bool  // upstream exhausted
	overflow bool
}

// New wraps stream, bounding total buffered size to softCap bytes. No
// bytes are read until the first call to Read.
func New(stream io.Reader, softCap int64) *Buffer {
	return &Buffer{stream: stream, softCap: softCap}
}

// Read implements io.Reader. While replaying (cursor < len(buf)), bytes
// come from the buffer; once replay catches up, bytes are pulled from
// the upstream stream and appended before being returned.
func (b *Buffer) Read(p []byte) (int, error) {
	if b.overflow {
		return 0, ErrOverflow
	}

	if b.cursor < int64(len(b.buf)) {
		n := copy(p, b.buf[b.cursor:])
		b.cursor += int64(n)
		return n, nil
	}

	if b.eof {
		return 0, io.EOF
	}

	n, err := b.stream.Read(p)
	if n > 0 {
		if b.softCap > 0 && int64(len(b.buf))+int64(n) > b.softCap {
			b.overflow = true
			return 0, ErrOverflow
		}
		b.buf = append(b.buf, p[:n]...)
		b.cursor += int64(n)
	}
	if err == io.EOF {
		b.eof = true
	} else if err != nil {
		return n, err
	}
	return n, err
}

// Reset rewinds the replay cursor to the start of the buffered bytes.
// It fails if the buffer has already overflowed; replaying up to the
// point EOF was last observed remains deterministic afterward.
func (b *Buffer) Reset() error {
	if b.overflow {
		return ErrOverflow
	}
	b.cursor = 0
	return nil
}

// NewReader returns an independent reader over the bytes already
// buffered plus whatever remains upstream, without disturbing this
// Buffer's own cursor. Used to hand the same logical body to a second
// pipeline stage (e.g. ModSecurity scanning a request body that the
// inner handler will also read).
func (b *Buffer) NewReader() io.Reader {
	return &replayReader{owner: b}
}

type replayReader struct {
	owner  *Buffer
	cursor int64
}

func (r *replayReader) Read(p []byte) (int, error) {
	b := r.owner
	if b.overflow {
		return 0, ErrOverflow
	}
	if r.cursor < int64(len(b.buf)) {
		n := copy(p, b.buf[r.cursor:])
		r.cursor += int64(n)
		return n, nil
	}
	if r.cursor == int64(len(b.buf)) && b.eof {
		return 0, io.EOF
	}
	// need more bytes than currently buffered: pull through the owner
	// so every reader observes identical bytes.
	n, err := b.Read(p)
	r.cursor += int64(n)
	return n, err
}

// DrainToBytes pulls the whole stream into memory, failing with
// ErrPayloadTooLarge if more than limit bytes would be required. It is a
// convenience wrapper; it does not bypass the soft cap already enforced
// by Read.
func (b *Buffer) DrainToBytes(limit int64) ([]byte, error) {
	var out []byte
	buf := make([]byte, 32*1024)
	for {
		n, err := b.Read(buf)
		if n > 0 {
			if limit > 0 && int64(len(out))+int64(n) > limit {
				return nil, ErrPayloadTooLarge
			}
			out = append(out, buf[:n]...)
		}
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

// Overflowed reports whether the soft cap has been exceeded.
func (b *Buffer) Overflowed() bool { return b.overflow }

// EOF reports whether the upstream stream has been fully consumed at
// least once.
func (b *Buffer) EOF() bool { return b.eof }
