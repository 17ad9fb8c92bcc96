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
	"testing"
)

// chainFunc builds a function computing a long dependency chain with n
// simultaneously live values.
func chainFunc(nLive int) *irFunc {
	b := newIRBuilder()
	b.emitFuncBegin("f")
	vals := make([]int, nLive)
	for i := range vals {
		vals[i] = b.emitConst(int64(i), tyInt)
	}
	acc := vals[0]
	for i := 1; i < nLive; i++ {
		acc = b.emitBin(opAdd, acc, vals[i], tyInt)
	}
	b.emitReturn(acc)
	b.emitFuncEnd()
	return &irFunc{name: "f", b: b}
}

func TestAllocateEveryValueLocated(t *testing.T) {
	fn := chainFunc(10)
	a := allocate(fn)
	for in := fn.b.head; in != nil; in = in.next {
		if in.dest == 0 {
			continue
		}
		loc := a.loc[in.dest]
		if loc == locUnassigned {
			t.Errorf("v%d has no location", in.dest)
		}
		if loc < 0 && -loc > a.slots {
			t.Errorf("v%d slot %d out of range (slots=%d)", in.dest, -loc, a.slots)
		}
		if loc >= numGPRegs {
			t.Errorf("v%d register %d out of range", in.dest, loc)
		}
	}
}

func TestAllocateSpillsWhenExhausted(t *testing.T) {
	// 10 simultaneously live values cannot fit 5 allocatable registers
	fn := chainFunc(10)
	a := allocate(fn)
	if a.slots == 0 {
		t.Error("expected spills with 10 live values, got none")
	}
}

func TestAllocateScratchNeverUsed(t *testing.T) {
	fn := chainFunc(12)
	a := allocate(fn)
	for v, loc := range a.loc {
		if loc == scratchReg {
			t.Errorf("v%d assigned the scratch register", v)
		}
	}
}

// liveRanges maps each value that is used as a source to its definition
// index and its last-use index.
func liveRanges(fn *irFunc) map[int][2]int {
	insts := fn.b.insts()
	def := make(map[int]int)
	last := make(map[int]int)
	for idx, in := range insts {
		if in.dest != 0 {
			def[in.dest] = idx
		}
		if in.src1 != 0 {
			last[in.src1] = idx
		}
		if in.src2 != 0 {
			last[in.src2] = idx
		}
	}
	r := make(map[int][2]int)
	for v, d := range def {
		if l, ok := last[v]; ok {
			r[v] = [2]int{d, l}
		}
	}
	return r
}

func TestAllocateNoOverlappingRegisters(t *testing.T) {
	fn := chainFunc(9)
	a := allocate(fn)
	ranges := liveRanges(fn)
	for v1, r1 := range ranges {
		for v2, r2 := range ranges {
			if v1 >= v2 {
				continue
			}
			l1, l2 := a.loc[v1], a.loc[v2]
			if l1 != l2 || l1 < 0 {
				continue
			}
			// same register: ranges must not overlap in their
			// interiors (a register freed at idx goes to a value
			// defined after idx)
			if r1[0] < r2[1] && r2[0] < r1[1] {
				t.Errorf("v%d and v%d share register %d with overlapping ranges %v %v",
					v1, v2, l1, r1, r2)
			}
		}
	}
}

func TestAllocateLastUseFrees(t *testing.T) {
	b := newIRBuilder()
	b.emitFuncBegin("f")
	v1 := b.emitConst(1, tyInt)
	v2 := b.emitConst(2, tyInt)
	v3 := b.emitBin(opAdd, v1, v2, tyInt) // v1, v2 die here
	v4 := b.emitConst(4, tyInt)           // may reuse a freed register
	v5 := b.emitBin(opAdd, v3, v4, tyInt)
	b.emitReturn(v5)
	b.emitFuncEnd()
	fn := &irFunc{name: "f", b: b}
	a := allocate(fn)
	if a.slots != 0 {
		t.Errorf("short function spilled: slots=%d", a.slots)
	}
	if a.loc[v4] != a.loc[v1] && a.loc[v4] != a.loc[v2] {
		t.Errorf("v4 (reg %d) did not reuse a freed register (v1=%d v2=%d)",
			a.loc[v4], a.loc[v1], a.loc[v2])
	}
}

func TestAllocateReturnAggPinsReturnReg(t *testing.T) {
	b := newIRBuilder()
	b.emitFuncBegin("f")
	p := b.emitLoadParam(0, tyPtr)
	v := b.emitConst(1, tyInt)
	_ = v
	b.emitReturnAgg(p, 16)
	b.emitFuncEnd()
	fn := &irFunc{name: "f", b: b}
	a := allocate(fn)
	if a.loc[p] != returnReg {
		t.Errorf("aggregate-return pointer in %d, want the return register", a.loc[p])
	}
	if a.loc[v] == returnReg {
		t.Errorf("unrelated value shares the reserved return register")
	}
}

func TestAllocateWideValuesGetSlots(t *testing.T) {
	b := newIRBuilder()
	b.emitFuncBegin("f")
	c := b.emitCplxConst(1, 2)
	l := b.emitBin(opLFAdd, c, c, tyLongDouble)
	b.emitReturn(l)
	b.emitFuncEnd()
	fn := &irFunc{name: "f", b: b}
	a := allocate(fn)
	if a.isReg(c) || a.isReg(l) {
		t.Errorf("complex/long-double values must live in slots (c=%d l=%d)", a.loc[c], a.loc[l])
	}
}
