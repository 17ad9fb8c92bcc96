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
	"github.com/golang/glog"
)

// The GP bank. Index 0 is the return register; the highest index is the
// emitter's reload scratch and never enters the free pool.
const (
	numGPRegs  = 6
	returnReg  = 0
	scratchReg = numGPRegs - 1
)

// locUnassigned marks a value not yet visited as a destination.
const locUnassigned = -1 << 30

// allocation is the result of linear-scan allocation: loc is indexed by
// value id; entries >= 0 name a register, negative entries encode stack
// slot -(loc), slots is the total slot count.
type allocation struct {
	loc   []int
	slots int
}

// isReg reports whether value v lives in a register.
func (a *allocation) isReg(v int) bool {
	return a.loc[v] >= 0
}

// slot returns the 1-based spill slot of value v.
func (a *allocation) slot(v int) int {
	return -a.loc[v]
}

// allocate assigns every value in the function a register or spill
// slot with one linear pass over the instruction list.
func allocate(fn *irFunc) *allocation {
	insts := fn.b.insts()
	maxVal := fn.b.maxVal()

	// last-use pass: the largest instruction index where each value
	// appears as a source
	last := make([]int, maxVal+1)
	for v := range last {
		last[v] = -1
	}
	for idx, in := range insts {
		if in.src1 != 0 {
			last[in.src1] = idx
		}
		if in.src2 != 0 {
			last[in.src2] = idx
		}
	}

	// aggregate returns pin the return register
	retReserved := false
	for _, in := range insts {
		if in.op == opReturnAgg {
			retReserved = true
			break
		}
	}

	// free stack: push descending so low registers pop first; the
	// scratch register stays out of the pool entirely
	var free []int
	for r := scratchReg - 1; r >= 0; r-- {
		if retReserved && r == returnReg {
			continue
		}
		free = append(free, r)
	}

	a := &allocation{loc: make([]int, maxVal+1)}
	for v := range a.loc {
		a.loc[v] = locUnassigned
	}
	freed := make([]bool, maxVal+1)

	for idx, in := range insts {
		if in.dest != 0 && a.loc[in.dest] == locUnassigned {
			switch {
			case in.typ == tyComplex || in.typ == tyLongDouble:
				// wide values do not fit the GP bank
				a.slots++
				a.loc[in.dest] = -a.slots
			case retReserved && in.op == opLoadParam && in.imm == 0:
				a.loc[in.dest] = returnReg
			case len(free) > 0:
				a.loc[in.dest] = free[len(free)-1]
				free = free[:len(free)-1]
			default:
				a.slots++
				a.loc[in.dest] = -a.slots
			}
			glog.V(2).Infof("alloc v%d -> %d at %d", in.dest, a.loc[in.dest], idx)
		}
		// free registers whose value dies here
		for _, v := range [3]int{in.src1, in.src2, in.dest} {
			if v == 0 || freed[v] {
				continue
			}
			if r := a.loc[v]; r >= 0 && last[v] == idx {
				if retReserved && r == returnReg {
					continue
				}
				free = append(free, r)
				freed[v] = true
			}
		}
	}
	return a
}
