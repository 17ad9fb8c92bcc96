// Copyright 2025 The vc Authors. All rights reserved
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package vc

import (
	"sync"
)

var xbufFree = sync.Pool{
	New: func() interface{} { return new(buffer) },
}

// buffer is an append-only byte buffer. It avoids the interface
// indirection of bytes.Buffer in the expansion hot path.
type buffer struct {
	buf       []byte
	bootstrap [64]byte // memory to hold first slice
}

func newXbuf() *buffer {
	b := xbufFree.Get().(*buffer)
	b.Reset()
	return b
}

func (b *buffer) release() {
	if cap(b.buf) > 4096 {
		return
	}
	b.Reset()
	xbufFree.Put(b)
}

func (b *buffer) Write(data []byte) (int, error) {
	b.buf = append(b.buf, data...)
	return len(data), nil
}

func (b *buffer) WriteByte(c byte) error {
	b.buf = append(b.buf, c)
	return nil
}

func (b *buffer) WriteString(s string) (int, error) {
	b.buf = append(b.buf, []byte(s)...)
	return len(s), nil
}

func (b *buffer) Bytes() []byte  { return b.buf }
func (b *buffer) Len() int       { return len(b.buf) }
func (b *buffer) String() string { return string(b.buf) }

func (b *buffer) Reset() {
	if b.buf == nil {
		b.buf = b.bootstrap[:0]
	}
	b.buf = b.buf[:0]
}
