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
	"fmt"
)

type irOp int

const (
	opConst irOp = iota
	opCplxConst
	opGlobString
	opGlobWString

	opAdd
	opSub
	opMul
	opDiv
	opMod
	opShl
	opShr
	opAnd
	opOr
	opXor

	opFAdd
	opFSub
	opFMul
	opFDiv

	opLFAdd
	opLFSub
	opLFMul
	opLFDiv

	opCplxAdd
	opCplxSub
	opCplxMul
	opCplxDiv

	opPtrAdd
	opPtrDiff

	opCast

	opCmpEQ
	opCmpNE
	opCmpLT
	opCmpGT
	opCmpLE
	opCmpGE

	opLogAnd
	opLogOr

	opLoad
	opLoadVol
	opLoadPtr
	opLoadIdx
	opLoadIdxVol
	opLoadParam
	opStore
	opStoreVol
	opStorePtr
	opStoreIdx
	opStoreIdxVol
	opStoreParam
	opAddr
	opAlloca

	opLabel
	opBr
	opBcond
	opReturn
	opReturnAgg
	opFuncBegin
	opFuncEnd

	opArg
	opCall
	opCallPtr

	numOps
)

var opNames = [numOps]string{
	opConst:       "const",
	opCplxConst:   "cplx_const",
	opGlobString:  "glob_string",
	opGlobWString: "glob_wstring",
	opAdd:         "add",
	opSub:         "sub",
	opMul:         "mul",
	opDiv:         "div",
	opMod:         "mod",
	opShl:         "shl",
	opShr:         "shr",
	opAnd:         "and",
	opOr:          "or",
	opXor:         "xor",
	opFAdd:        "fadd",
	opFSub:        "fsub",
	opFMul:        "fmul",
	opFDiv:        "fdiv",
	opLFAdd:       "lfadd",
	opLFSub:       "lfsub",
	opLFMul:       "lfmul",
	opLFDiv:       "lfdiv",
	opCplxAdd:     "cplx_add",
	opCplxSub:     "cplx_sub",
	opCplxMul:     "cplx_mul",
	opCplxDiv:     "cplx_div",
	opPtrAdd:      "ptr_add",
	opPtrDiff:     "ptr_diff",
	opCast:        "cast",
	opCmpEQ:       "cmpeq",
	opCmpNE:       "cmpne",
	opCmpLT:       "cmplt",
	opCmpGT:       "cmpgt",
	opCmpLE:       "cmple",
	opCmpGE:       "cmpge",
	opLogAnd:      "logand",
	opLogOr:       "logor",
	opLoad:        "load",
	opLoadVol:     "load_vol",
	opLoadPtr:     "load_ptr",
	opLoadIdx:     "load_idx",
	opLoadIdxVol:  "load_idx_vol",
	opLoadParam:   "load_param",
	opStore:       "store",
	opStoreVol:    "store_vol",
	opStorePtr:    "store_ptr",
	opStoreIdx:    "store_idx",
	opStoreIdxVol: "store_idx_vol",
	opStoreParam:  "store_param",
	opAddr:        "addr",
	opAlloca:      "alloca",
	opLabel:       "label",
	opBr:          "br",
	opBcond:       "bcond",
	opReturn:      "return",
	opReturnAgg:   "return_agg",
	opFuncBegin:   "func_begin",
	opFuncEnd:     "func_end",
	opArg:         "arg",
	opCall:        "call",
	opCallPtr:     "call_ptr",
}

func (op irOp) String() string {
	if op >= 0 && op < numOps {
		return opNames[op]
	}
	return fmt.Sprintf("op(%d)", int(op))
}

// irType is the coarse operand type an instruction computes with.
type irType int

const (
	tyInt irType = iota
	tyFloat
	tyDouble
	tyLongDouble
	tyComplex
	tyPtr
	tyVoid
)

// castPair packs a source/destination type pair into the cast immediate:
// high 32 bits source, low 32 bits destination.
func castPair(from, to irType) int64 {
	return int64(from)<<32 | int64(to)
}

func castSrc(imm int64) irType { return irType(imm >> 32) }
func castDst(imm int64) irType { return irType(imm & 0xffffffff) }

// inst is one IR instruction. dest is 0 when the instruction produces no
// value. Payloads are typed fields rather than an untyped pointer: str
// for string data, wstr for wide strings, cplx for complex constants.
type inst struct {
	op    irOp
	dest  int
	src1  int
	src2  int
	imm   int64
	str   string
	wstr  []int64
	cplx  [2]float64
	name  string
	typ   irType
	alias int
	pos   srcpos
	col   int
	next  *inst
}

// aliasSet maps one variable name to its integer alias-set id.
type aliasSet struct {
	name string
	id   int
	next *aliasSet
}

// irBuilder accumulates one function's instruction list.
type irBuilder struct {
	head    *inst
	tail    *inst
	nextVal int
	aliases *aliasSet
	nAlias  int
	pos     srcpos
	col     int
}

func newIRBuilder() *irBuilder {
	return &irBuilder{nextVal: 1}
}

// setPos updates the source location stamped onto appended instructions.
func (b *irBuilder) setPos(pos srcpos, col int) {
	b.pos = pos
	b.col = col
}

// maxVal is the highest value id handed out so far.
func (b *irBuilder) maxVal() int {
	return b.nextVal - 1
}

func (b *irBuilder) append(in *inst) *inst {
	in.pos = b.pos
	in.col = b.col
	if b.tail == nil {
		b.head = in
		b.tail = in
	} else {
		b.tail.next = in
		b.tail = in
	}
	return in
}

// newVal allocates the next value id.
func (b *irBuilder) newVal() int {
	v := b.nextVal
	b.nextVal++
	return v
}

// remove unlinks a previously appended instruction.
func (b *irBuilder) remove(target *inst) {
	var prev *inst
	for in := b.head; in != nil; in = in.next {
		if in == target {
			if prev == nil {
				b.head = in.next
			} else {
				prev.next = in.next
			}
			if b.tail == in {
				b.tail = prev
			}
			return
		}
		prev = in
	}
}

// insertAfter links a blank instruction after pos and returns it for the
// caller to fill.
func (b *irBuilder) insertAfter(pos *inst) *inst {
	in := &inst{pos: pos.pos, col: pos.col}
	in.next = pos.next
	pos.next = in
	if b.tail == pos {
		b.tail = in
	}
	return in
}

// getAlias returns the alias-set id for name, allocating one on first
// use. Distinct names get distinct ids; the lowering code registers each
// restrict-qualified pointer under its own variable name.
func (b *irBuilder) getAlias(name string) int {
	for a := b.aliases; a != nil; a = a.next {
		if a.name == name {
			return a.id
		}
	}
	b.nAlias++
	b.aliases = &aliasSet{name: name, id: b.nAlias, next: b.aliases}
	return b.nAlias
}

// insts materializes the list as a slice; the index of each entry is its
// instruction index for last-use computation.
func (b *irBuilder) insts() []*inst {
	var out []*inst
	for in := b.head; in != nil; in = in.next {
		out = append(out, in)
	}
	return out
}

// --- constructors, one per opcode group ---

func (b *irBuilder) emitConst(v int64, typ irType) int {
	dest := b.newVal()
	b.append(&inst{op: opConst, dest: dest, imm: v, typ: typ})
	return dest
}

func (b *irBuilder) emitCplxConst(re, im float64) int {
	dest := b.newVal()
	b.append(&inst{op: opCplxConst, dest: dest, cplx: [2]float64{re, im}, typ: tyComplex})
	return dest
}

func (b *irBuilder) emitGlobString(label, s string) int {
	dest := b.newVal()
	b.append(&inst{op: opGlobString, dest: dest, name: label, str: s, typ: tyPtr})
	return dest
}

func (b *irBuilder) emitGlobWString(label string, runes []int64) int {
	dest := b.newVal()
	b.append(&inst{op: opGlobWString, dest: dest, name: label, wstr: runes, typ: tyPtr})
	return dest
}

func (b *irBuilder) emitBin(op irOp, l, r int, typ irType) int {
	dest := b.newVal()
	b.append(&inst{op: op, dest: dest, src1: l, src2: r, typ: typ})
	return dest
}

func (b *irBuilder) emitPtrAdd(base, index int, elemSize int64) int {
	dest := b.newVal()
	b.append(&inst{op: opPtrAdd, dest: dest, src1: base, src2: index, imm: elemSize, typ: tyPtr})
	return dest
}

func (b *irBuilder) emitPtrDiff(l, r int, elemSize int64) int {
	dest := b.newVal()
	b.append(&inst{op: opPtrDiff, dest: dest, src1: l, src2: r, imm: elemSize, typ: tyInt})
	return dest
}

func (b *irBuilder) emitCast(src int, from, to irType) int {
	dest := b.newVal()
	b.append(&inst{op: opCast, dest: dest, src1: src, imm: castPair(from, to), typ: to})
	return dest
}

func (b *irBuilder) emitLoad(op irOp, name string, typ irType) int {
	dest := b.newVal()
	b.append(&inst{op: op, dest: dest, name: name, typ: typ, alias: b.getAlias(name)})
	return dest
}

func (b *irBuilder) emitLoadPtr(ptr int, typ irType) int {
	dest := b.newVal()
	b.append(&inst{op: opLoadPtr, dest: dest, src1: ptr, typ: typ})
	return dest
}

func (b *irBuilder) emitLoadIdx(op irOp, name string, index int, elemSize int64, typ irType) int {
	dest := b.newVal()
	b.append(&inst{op: op, dest: dest, src1: index, imm: elemSize, name: name, typ: typ, alias: b.getAlias(name)})
	return dest
}

func (b *irBuilder) emitLoadParam(idx int64, typ irType) int {
	dest := b.newVal()
	b.append(&inst{op: opLoadParam, dest: dest, imm: idx, typ: typ})
	return dest
}

func (b *irBuilder) emitStore(op irOp, name string, val int, typ irType) {
	b.append(&inst{op: op, src1: val, name: name, typ: typ, alias: b.getAlias(name)})
}

func (b *irBuilder) emitStorePtr(ptr, val int, typ irType) {
	b.append(&inst{op: opStorePtr, src1: ptr, src2: val, typ: typ})
}

func (b *irBuilder) emitStoreIdx(op irOp, name string, index, val int, elemSize int64, typ irType) {
	b.append(&inst{op: op, src1: index, src2: val, imm: elemSize, name: name, typ: typ, alias: b.getAlias(name)})
}

func (b *irBuilder) emitStoreParam(idx int64, val int, typ irType) {
	b.append(&inst{op: opStoreParam, src1: val, imm: idx, typ: typ})
}

func (b *irBuilder) emitAddr(name string) int {
	dest := b.newVal()
	b.append(&inst{op: opAddr, dest: dest, name: name, typ: tyPtr, alias: b.getAlias(name)})
	return dest
}

func (b *irBuilder) emitAlloca(size int64) int {
	dest := b.newVal()
	b.append(&inst{op: opAlloca, dest: dest, imm: size, typ: tyPtr})
	return dest
}

func (b *irBuilder) emitLabel(name string) {
	b.append(&inst{op: opLabel, name: name})
}

func (b *irBuilder) emitBr(name string) {
	b.append(&inst{op: opBr, name: name})
}

func (b *irBuilder) emitBcond(cond int, name string) {
	b.append(&inst{op: opBcond, src1: cond, name: name})
}

func (b *irBuilder) emitReturn(v int) {
	b.append(&inst{op: opReturn, src1: v})
}

func (b *irBuilder) emitReturnAgg(ptr int, size int64) {
	b.append(&inst{op: opReturnAgg, src1: ptr, imm: size})
}

func (b *irBuilder) emitFuncBegin(name string) {
	b.append(&inst{op: opFuncBegin, name: name})
}

func (b *irBuilder) emitFuncEnd() {
	b.append(&inst{op: opFuncEnd})
}

func (b *irBuilder) emitArg(v int, typ irType) {
	b.append(&inst{op: opArg, src1: v, typ: typ})
}

func (b *irBuilder) emitCall(name string, typ irType) int {
	dest := b.newVal()
	b.append(&inst{op: opCall, dest: dest, name: name, typ: typ})
	return dest
}

func (b *irBuilder) emitCallPtr(fn int, typ irType) int {
	dest := b.newVal()
	b.append(&inst{op: opCallPtr, dest: dest, src1: fn, typ: typ})
	return dest
}

// dump renders the list for --dump-ir.
func (b *irBuilder) dump(out *buffer) {
	idx := 0
	for in := b.head; in != nil; in = in.next {
		fmt.Fprintf(out, "%4d: %-12s", idx, in.op)
		if in.dest != 0 {
			fmt.Fprintf(out, " v%d =", in.dest)
		}
		if in.src1 != 0 {
			fmt.Fprintf(out, " v%d", in.src1)
		}
		if in.src2 != 0 {
			fmt.Fprintf(out, " v%d", in.src2)
		}
		if in.name != "" {
			fmt.Fprintf(out, " %s", in.name)
		}
		if in.op == opConst || in.op == opPtrAdd || in.op == opCast || in.op == opLoadParam {
			fmt.Fprintf(out, " imm=%d", in.imm)
		}
		out.WriteByte('\n')
		idx++
	}
}
