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
	"math"

	"github.com/golang/glog"
)

var (
	gpRegs64 = [numGPRegs]string{"rax", "rcx", "rdx", "rbx", "rsi", "rdi"}
	gpRegs32 = [numGPRegs]string{"eax", "ecx", "edx", "ebx", "esi", "edi"}
)

const numXMMRegs = 8

// emitter translates allocated IR into assembly text. It is
// parameterized by target width and syntax; everything else is driven
// by the instruction list.
type emitter struct {
	cfg   *Config
	out   *buffer
	fn    *irFunc
	alloc *allocation

	localOff  map[string]int64 // name -> positive offset below the base pointer
	localBase int64            // bytes of named locals in the frame
	frameSize int64
	globals   map[string]bool

	labels   labelGen // shared by all functions; picks up the lowering's counter
	argBytes int64
	xmmFree  []int
	rodata   []*inst // string payloads, flushed after the text section
}

func newEmitter(cfg *Config, out *buffer, globals map[string]bool) *emitter {
	return &emitter{cfg: cfg, out: out, globals: globals}
}

func (e *emitter) intel() bool { return e.cfg.IntelSyntax }
func (e *emitter) x64() bool   { return e.cfg.X64 }

func (e *emitter) stride() int64 { return e.cfg.stackStride() }

// sfx is the AT&T width suffix for full-width integer operations.
func (e *emitter) sfx() string {
	if e.x64() {
		return "q"
	}
	return "l"
}

func (e *emitter) reg(i int) string {
	var name string
	if e.x64() {
		name = gpRegs64[i]
	} else {
		name = gpRegs32[i]
	}
	if e.intel() {
		return name
	}
	return "%" + name
}

func (e *emitter) xmm(i int) string {
	if e.intel() {
		return fmt.Sprintf("xmm%d", i)
	}
	return fmt.Sprintf("%%xmm%d", i)
}

func (e *emitter) bp() string {
	if e.x64() {
		if e.intel() {
			return "rbp"
		}
		return "%rbp"
	}
	if e.intel() {
		return "ebp"
	}
	return "%ebp"
}

func (e *emitter) sp() string {
	if e.x64() {
		if e.intel() {
			return "rsp"
		}
		return "%rsp"
	}
	if e.intel() {
		return "esp"
	}
	return "%esp"
}

func (e *emitter) imm(v int64) string {
	if e.intel() {
		return fmt.Sprintf("%d", v)
	}
	return fmt.Sprintf("$%d", v)
}

// bpMem formats a base-pointer-relative operand at off bytes below rbp.
func (e *emitter) bpMem(off int64) string {
	if e.intel() {
		if e.x64() {
			return fmt.Sprintf("[rbp-%d]", off)
		}
		return fmt.Sprintf("[ebp-%d]", off)
	}
	if e.x64() {
		return fmt.Sprintf("-%d(%%rbp)", off)
	}
	return fmt.Sprintf("-%d(%%ebp)", off)
}

// slotMem is the memory operand of spill slot n (1-based). Spill slots
// sit below the named locals.
func (e *emitter) slotMem(n int) string {
	return e.bpMem(e.localBase + int64(n)*e.stride())
}

// loc formats value v's location: register name or spill-slot memory.
func (e *emitter) loc(v int) string {
	if e.alloc.isReg(v) {
		return e.reg(e.alloc.loc[v])
	}
	return e.slotMem(e.alloc.slot(v))
}

// symMem formats a memory operand for a global symbol.
func (e *emitter) symMem(name string) string {
	if e.x64() {
		if e.intel() {
			return fmt.Sprintf("[rel %s]", name)
		}
		return fmt.Sprintf("%s(%%rip)", name)
	}
	if e.intel() {
		return fmt.Sprintf("[%s]", name)
	}
	return name
}

// varMem formats the operand for a named variable: a frame slot for
// locals, a symbol reference for file-scope variables.
func (e *emitter) varMem(name string) string {
	if off, ok := e.localOff[name]; ok {
		return e.bpMem(off)
	}
	return e.symMem(name)
}

// ins writes one instruction line.
func (e *emitter) ins(f string, args ...interface{}) {
	e.out.WriteByte('\t')
	fmt.Fprintf(e.out, f, args...)
	e.out.WriteByte('\n')
}

// op2 emits a two-operand integer instruction with AT&T suffix and
// operand order, or Intel order, as configured.
func (e *emitter) op2(mn, src, dst string) {
	if e.intel() {
		e.ins("%s %s, %s", mn, dst, src)
		return
	}
	e.ins("%s%s %s, %s", mn, e.sfx(), src, dst)
}

// op2n emits a two-operand instruction with no width suffix (SSE and
// other fixed-width forms).
func (e *emitter) op2n(mn, src, dst string) {
	if e.intel() {
		e.ins("%s %s, %s", mn, dst, src)
		return
	}
	e.ins("%s %s, %s", mn, src, dst)
}

func (e *emitter) mov(src, dst string) {
	if src == dst {
		return
	}
	e.op2("mov", src, dst)
}

// toReg materializes value v in a register, reloading a spilled value
// through the reserved scratch register.
func (e *emitter) toReg(v int) string {
	if e.alloc.isReg(v) {
		return e.reg(e.alloc.loc[v])
	}
	s := e.reg(scratchReg)
	e.mov(e.loc(v), s)
	return s
}

// destReg picks the register an instruction computes into: the value's
// own register, or the accumulator as staging when the destination was
// spilled. writeBack stores the staged result afterwards.
func (e *emitter) destReg(v int) (string, bool) {
	if e.alloc.isReg(v) {
		return e.reg(e.alloc.loc[v]), false
	}
	return e.reg(returnReg), true
}

func (e *emitter) writeBack(v int, r string, spilled bool) {
	if spilled {
		e.mov(r, e.slotMem(e.alloc.slot(v)))
	}
}

func (e *emitter) xmmGet() int {
	if len(e.xmmFree) == 0 {
		// pool exhausted: spill the highest register to the reserved
		// backing store and hand it out
		e.spillXMM(numXMMRegs - 1)
		return numXMMRegs - 1
	}
	x := e.xmmFree[len(e.xmmFree)-1]
	e.xmmFree = e.xmmFree[:len(e.xmmFree)-1]
	return x
}

func (e *emitter) xmmPut(x int) {
	e.xmmFree = append(e.xmmFree, x)
}

func (e *emitter) spillXMM(x int) {
	e.op2n("movaps", e.xmm(x), e.bpMem(e.frameSize))
}

// EmitProgram lowers every function plus the file-scope data into one
// assembly text buffer.
func EmitProgram(cfg *Config, prog *program, funcs []*irFunc) (string, error) {
	out := newXbuf()
	defer out.release()
	globals := make(map[string]bool)
	var globList []*cglobal
	if prog != nil {
		for _, g := range prog.globals {
			globals[g.name] = true
			globList = append(globList, g)
		}
	}
	e := newEmitter(cfg, out, globals)
	if e.intel() {
		out.WriteString("section .text\n")
	} else {
		out.WriteString(".text\n")
	}
	for _, fn := range funcs {
		alloc := allocate(fn)
		if err := e.emitFunc(fn, alloc); err != nil {
			return "", err
		}
	}
	if err := e.emitData(globList, cfg); err != nil {
		return "", err
	}
	return out.String(), nil
}

func (e *emitter) emitFunc(fn *irFunc, alloc *allocation) error {
	e.fn = fn
	e.alloc = alloc
	if fn.labels.next > e.labels.next {
		e.labels = fn.labels
	}
	e.argBytes = 0
	e.xmmFree = e.xmmFree[:0]
	for x := numXMMRegs - 1; x >= 0; x-- {
		e.xmmFree = append(e.xmmFree, x)
	}

	// frame layout: named locals first, spill slots below them, then a
	// 16-byte store for XMM spills
	e.localOff = make(map[string]int64)
	off := int64(0)
	for _, li := range fn.locals {
		sz := li.size
		if sz < e.stride() {
			sz = e.stride()
		}
		sz = (sz + e.stride() - 1) / e.stride() * e.stride()
		off += sz
		e.localOff[li.name] = off
	}
	e.localBase = off
	e.frameSize = e.localBase + int64(alloc.slots)*e.stride() + 16

	glog.V(1).Infof("emit %s: frame=%d slots=%d", fn.name, e.frameSize, alloc.slots)
	for in := fn.b.head; in != nil; in = in.next {
		if err := e.emitInst(in); err != nil {
			return err
		}
	}
	return nil
}

func (e *emitter) prologue(name string) {
	if e.intel() {
		fmt.Fprintf(e.out, "global %s\n%s:\n", name, name)
		e.ins("push %s", e.bp())
		e.ins("mov %s, %s", e.bp(), e.sp())
		if e.frameSize > 0 {
			e.ins("sub %s, %d", e.sp(), e.frameSize)
		}
		return
	}
	fmt.Fprintf(e.out, ".globl %s\n%s:\n", name, name)
	e.ins("push%s %s", e.sfx(), e.bp())
	e.ins("mov%s %s, %s", e.sfx(), e.sp(), e.bp())
	if e.frameSize > 0 {
		e.ins("sub%s $%d, %s", e.sfx(), e.frameSize, e.sp())
	}
}

func (e *emitter) epilogue() {
	e.ins("leave")
	e.ins("ret")
}

func (e *emitter) emitInst(in *inst) error {
	switch in.op {
	case opFuncBegin:
		e.prologue(in.name)
	case opFuncEnd:
		e.epilogue()
	case opLabel:
		fmt.Fprintf(e.out, "%s:\n", in.name)
	case opBr:
		e.ins("jmp %s", in.name)
	case opBcond:
		r := e.toReg(in.src1)
		e.op2("cmp", e.imm(0), r)
		e.ins("je %s", in.name)

	case opConst:
		switch in.typ {
		case tyFloat, tyDouble:
			// materialize the bit pattern, the consumer moves it
			// into an XMM register
			r, sp := e.destReg(in.dest)
			e.mov(e.imm(in.imm), r)
			e.writeBack(in.dest, r, sp)
		default:
			e.mov(e.imm(in.imm), e.loc(in.dest))
		}
	case opCplxConst:
		// complex values live in frame slots; stage each component's
		// bit pattern through the accumulator
		acc := e.reg(returnReg)
		e.mov(e.imm(int64(mathBits(in.cplx[0]))), acc)
		e.mov(acc, e.cplxMem(in.dest, 0))
		e.mov(e.imm(int64(mathBits(in.cplx[1]))), acc)
		e.mov(acc, e.cplxMem(in.dest, 1))

	case opGlobString, opGlobWString:
		e.rodata = append(e.rodata, in)
		e.leaSymbol(in.name, in.dest)

	case opAdd, opSub, opAnd, opOr, opXor:
		e.intBinary(in, map[irOp]string{
			opAdd: "add", opSub: "sub", opAnd: "and", opOr: "or", opXor: "xor",
		}[in.op])
	case opMul:
		e.intBinary(in, "imul")
	case opDiv, opMod:
		e.divMod(in)
	case opShl, opShr:
		e.shift(in)
	case opCmpEQ, opCmpNE, opCmpLT, opCmpGT, opCmpLE, opCmpGE:
		e.compare(in)
	case opLogAnd, opLogOr:
		e.shortCircuit(in)

	case opFAdd, opFSub, opFMul, opFDiv:
		e.floatBinary(in)
	case opLFAdd, opLFSub, opLFMul, opLFDiv:
		e.x87Binary(in)
	case opCplxAdd, opCplxSub:
		e.complexAddSub(in)
	case opCplxMul:
		e.complexMul(in)
	case opCplxDiv:
		e.complexDiv(in)

	case opPtrAdd:
		e.ptrAdd(in)
	case opPtrDiff:
		e.ptrDiff(in)
	case opCast:
		e.cast(in)

	case opLoad, opLoadVol:
		r, sp := e.destReg(in.dest)
		e.mov(e.varMem(in.name), r)
		e.writeBack(in.dest, r, sp)
	case opStore, opStoreVol:
		r := e.toReg(in.src1)
		e.mov(r, e.varMem(in.name))
	case opLoadPtr:
		p := e.toReg(in.src1)
		r, sp := e.destReg(in.dest)
		e.mov(e.indirect(p), r)
		e.writeBack(in.dest, r, sp)
	case opStorePtr:
		p := e.toReg(in.src1)
		v := e.loc(in.src2)
		if !e.alloc.isReg(in.src2) {
			// two memory operands need a staging register
			acc := e.reg(returnReg)
			e.mov(v, acc)
			v = acc
		}
		e.mov(v, e.indirect(p))
	case opLoadIdx, opLoadIdxVol:
		e.loadIdx(in)
	case opStoreIdx, opStoreIdxVol:
		e.storeIdx(in)
	case opLoadParam:
		// parameters sit above the saved base pointer and return
		// address
		off := 2*e.stride() + in.imm*e.stride()
		r, sp := e.destReg(in.dest)
		e.movFromParam(off, r)
		e.writeBack(in.dest, r, sp)
	case opStoreParam:
		off := 2*e.stride() + in.imm*e.stride()
		r := e.toReg(in.src1)
		e.movToParam(off, r)
	case opAddr:
		e.leaVar(in.name, in.dest)
	case opAlloca:
		size := (in.imm + 15) / 16 * 16
		e.op2("sub", e.imm(size), e.sp())
		r, sp := e.destReg(in.dest)
		e.mov(e.sp(), r)
		e.writeBack(in.dest, r, sp)

	case opReturn:
		if in.src1 != 0 {
			e.mov(e.loc(in.src1), e.reg(returnReg))
		}
		e.epilogue()
	case opReturnAgg:
		e.mov(e.loc(in.src1), e.reg(returnReg))
		e.epilogue()

	case opArg:
		if e.intel() {
			e.ins("push %s", e.loc(in.src1))
		} else {
			e.ins("push%s %s", e.sfx(), e.loc(in.src1))
		}
		e.argBytes += e.stride()
	case opCall:
		e.ins("call %s", in.name)
		e.rewindArgs()
		e.moveResult(in.dest)
	case opCallPtr:
		r := e.toReg(in.src1)
		if e.intel() {
			e.ins("call %s", r)
		} else {
			e.ins("call *%s", r)
		}
		e.rewindArgs()
		e.moveResult(in.dest)
	default:
		return fmt.Errorf("cannot emit opcode %s", in.op)
	}
	return nil
}

func (e *emitter) rewindArgs() {
	if e.argBytes == 0 {
		return
	}
	e.op2("add", e.imm(e.argBytes), e.sp())
	e.argBytes = 0
}

func (e *emitter) moveResult(dest int) {
	if dest == 0 {
		return
	}
	e.mov(e.reg(returnReg), e.loc(dest))
}

func (e *emitter) indirect(reg string) string {
	if e.intel() {
		return fmt.Sprintf("[%s]", reg)
	}
	return fmt.Sprintf("(%s)", reg)
}

func (e *emitter) movFromParam(off int64, dst string) {
	var src string
	if e.intel() {
		src = fmt.Sprintf("[%s+%d]", stripPct(e.bp()), off)
	} else {
		src = fmt.Sprintf("%d(%s)", off, e.bp())
	}
	e.mov(src, dst)
}

func (e *emitter) movToParam(off int64, src string) {
	var dst string
	if e.intel() {
		dst = fmt.Sprintf("[%s+%d]", stripPct(e.bp()), off)
	} else {
		dst = fmt.Sprintf("%d(%s)", off, e.bp())
	}
	e.mov(src, dst)
}

func stripPct(s string) string {
	if len(s) > 0 && s[0] == '%' {
		return s[1:]
	}
	return s
}

// intBinary is the generic reg/slot two-operand pattern: stage src1 in
// the destination (or the accumulator when the destination spilled),
// apply src2, write back.
func (e *emitter) intBinary(in *inst, mn string) {
	r, sp := e.destReg(in.dest)
	e.mov(e.loc(in.src1), r)
	e.op2(mn, e.loc(in.src2), r)
	e.writeBack(in.dest, r, sp)
}

// divMod uses the hardware dividend registers: rax for the quotient,
// rdx for the remainder.
func (e *emitter) divMod(in *inst) {
	rax := e.reg(0)
	rdx := e.reg(2)
	e.mov(e.loc(in.src1), rax)
	if e.x64() {
		if e.intel() {
			e.ins("cqo")
		} else {
			e.ins("cqto")
		}
	} else {
		if e.intel() {
			e.ins("cdq")
		} else {
			e.ins("cltd")
		}
	}
	d := e.toReg(in.src2)
	if e.intel() {
		e.ins("idiv %s", d)
	} else {
		e.ins("idiv%s %s", e.sfx(), d)
	}
	if in.op == opDiv {
		e.mov(rax, e.loc(in.dest))
	} else {
		e.mov(rdx, e.loc(in.dest))
	}
}

// shift moves the count into the count register and shifts by %cl. The
// destination must not alias the count.
func (e *emitter) shift(in *inst) {
	rcx := e.reg(1)
	e.mov(e.loc(in.src2), rcx)
	r, sp := e.destReg(in.dest)
	e.mov(e.loc(in.src1), r)
	mn := "shl"
	if in.op == opShr {
		mn = "sar"
	}
	cl := "%cl"
	if e.intel() {
		cl = "cl"
	}
	if e.intel() {
		e.ins("%s %s, %s", mn, r, cl)
	} else {
		e.ins("%s%s %s, %s", mn, e.sfx(), cl, r)
	}
	e.writeBack(in.dest, r, sp)
}

var setccOf = map[irOp]string{
	opCmpEQ: "sete",
	opCmpNE: "setne",
	opCmpLT: "setl",
	opCmpGT: "setg",
	opCmpLE: "setle",
	opCmpGE: "setge",
}

func (e *emitter) compare(in *inst) {
	r, sp := e.destReg(in.dest)
	e.mov(e.loc(in.src1), r)
	e.op2("cmp", e.loc(in.src2), r)
	al := "%al"
	if e.intel() {
		al = "al"
	}
	e.ins("%s %s", setccOf[in.op], al)
	if e.intel() {
		e.ins("movzx %s, %s", r, al)
	} else {
		e.ins("movzb%s %s, %s", e.sfx(), al, r)
	}
	e.writeBack(in.dest, r, sp)
}

// shortCircuit lowers logand/logor with a fresh label pair.
func (e *emitter) shortCircuit(in *inst) {
	id := e.labels.id()
	end := e.labels.format(id, "end")
	r, sp := e.destReg(in.dest)
	if in.op == opLogAnd {
		falseLbl := e.labels.format(id, "false")
		l := e.toReg(in.src1)
		e.op2("cmp", e.imm(0), l)
		e.ins("je %s", falseLbl)
		x := e.toReg(in.src2)
		e.op2("cmp", e.imm(0), x)
		e.ins("je %s", falseLbl)
		e.mov(e.imm(1), r)
		e.ins("jmp %s", end)
		fmt.Fprintf(e.out, "%s:\n", falseLbl)
		e.mov(e.imm(0), r)
	} else {
		trueLbl := e.labels.format(id, "true")
		l := e.toReg(in.src1)
		e.op2("cmp", e.imm(0), l)
		e.ins("jne %s", trueLbl)
		x := e.toReg(in.src2)
		e.op2("cmp", e.imm(0), x)
		e.ins("jne %s", trueLbl)
		e.mov(e.imm(0), r)
		e.ins("jmp %s", end)
		fmt.Fprintf(e.out, "%s:\n", trueLbl)
		e.mov(e.imm(1), r)
	}
	fmt.Fprintf(e.out, "%s:\n", end)
	e.writeBack(in.dest, r, sp)
}

// ptrAdd scales the index by the element size and adds the base:
// mov src2, dest; imul imm, dest; add src1, dest. A zero element size
// zeroes the index instead of multiplying.
func (e *emitter) ptrAdd(in *inst) {
	r, sp := e.destReg(in.dest)
	e.mov(e.loc(in.src2), r)
	if in.imm == 0 {
		e.op2("xor", r, r)
	} else {
		// scale multiply keeps the width suffix in both syntaxes
		if e.intel() {
			e.ins("imul%s %s, %d", e.sfx(), r, in.imm)
		} else {
			e.ins("imul%s $%d, %s", e.sfx(), in.imm, r)
		}
	}
	e.op2("add", e.loc(in.src1), r)
	e.writeBack(in.dest, r, sp)
}

// ptrDiff subtracts and then divides by the element size with an
// arithmetic shift.
func (e *emitter) ptrDiff(in *inst) {
	r, sp := e.destReg(in.dest)
	e.mov(e.loc(in.src1), r)
	e.op2("sub", e.loc(in.src2), r)
	if sh := log2(in.imm); sh > 0 {
		if e.intel() {
			e.ins("sar %s, %d", r, sh)
		} else {
			e.ins("sar%s $%d, %s", e.sfx(), sh, r)
		}
	}
	e.writeBack(in.dest, r, sp)
}

func log2(n int64) int {
	sh := 0
	for n > 1 {
		n >>= 1
		sh++
	}
	return sh
}

// movGPToXMM moves a GP-resident scalar into an XMM register.
func (e *emitter) movGPToXMM(src string, x int) {
	mn := "movd"
	if e.x64() {
		mn = "movq"
	}
	e.op2n(mn, src, e.xmm(x))
}

func (e *emitter) movXMMToGP(x int, dst string) {
	mn := "movd"
	if e.x64() {
		mn = "movq"
	}
	e.op2n(mn, e.xmm(x), dst)
}

var sseOf = map[irOp]string{
	opFAdd: "add", opFSub: "sub", opFMul: "mul", opFDiv: "div",
}

// floatBinary routes scalar float math through the XMM pool.
func (e *emitter) floatBinary(in *inst) {
	suffix := "ss"
	if in.typ == tyDouble {
		suffix = "sd"
	}
	xa := e.xmmGet()
	xb := e.xmmGet()
	e.movGPToXMM(e.toReg(in.src1), xa)
	e.movGPToXMM(e.loc2reg(in.src2), xb)
	e.op2n(sseOf[in.op]+suffix, e.xmm(xb), e.xmm(xa))
	r, sp := e.destReg(in.dest)
	e.movXMMToGP(xa, r)
	e.writeBack(in.dest, r, sp)
	e.xmmPut(xb)
	e.xmmPut(xa)
}

// loc2reg is toReg but staged through the accumulator so the scratch
// register stays free for the first operand.
func (e *emitter) loc2reg(v int) string {
	if e.alloc.isReg(v) {
		return e.reg(e.alloc.loc[v])
	}
	acc := e.reg(returnReg)
	e.mov(e.loc(v), acc)
	return acc
}

var x87Of = map[irOp]string{
	opLFAdd: "faddp", opLFSub: "fsubp", opLFMul: "fmulp", opLFDiv: "fdivp",
}

// x87Binary uses the x87 stack for long doubles; operands live in
// frame slots.
func (e *emitter) x87Binary(in *inst) {
	e.ins("fldt %s", e.loc(in.src1))
	e.ins("fldt %s", e.loc(in.src2))
	e.ins("%s", x87Of[in.op])
	e.ins("fstpt %s", e.loc(in.dest))
}

// complexAddSub operates componentwise: two SSE ops, real and
// imaginary.
func (e *emitter) complexAddSub(in *inst) {
	mn := "addsd"
	if in.op == opCplxSub {
		mn = "subsd"
	}
	xa := e.xmmGet()
	xb := e.xmmGet()
	for comp := 0; comp < 2; comp++ {
		e.op2n("movsd", e.cplxMem(in.src1, comp), e.xmm(xa))
		e.op2n("movsd", e.cplxMem(in.src2, comp), e.xmm(xb))
		e.op2n(mn, e.xmm(xb), e.xmm(xa))
		e.op2n("movsd", e.xmm(xa), e.cplxMem(in.dest, comp))
	}
	e.xmmPut(xb)
	e.xmmPut(xa)
}

// complexMul implements (a+bi)(c+di) = (ac-bd) + (ad+bc)i.
func (e *emitter) complexMul(in *inst) {
	a, b, c, d := e.xmmGet(), e.xmmGet(), e.xmmGet(), e.xmmGet()
	t := e.xmmGet()
	e.op2n("movsd", e.cplxMem(in.src1, 0), e.xmm(a))
	e.op2n("movsd", e.cplxMem(in.src1, 1), e.xmm(b))
	e.op2n("movsd", e.cplxMem(in.src2, 0), e.xmm(c))
	e.op2n("movsd", e.cplxMem(in.src2, 1), e.xmm(d))
	// real: ac - bd
	e.op2n("movsd", e.xmm(a), e.xmm(t))
	e.op2n("mulsd", e.xmm(c), e.xmm(t))
	e.op2n("movsd", e.xmm(b), e.xmm(a))
	e.op2n("mulsd", e.xmm(d), e.xmm(a))
	e.op2n("subsd", e.xmm(a), e.xmm(t))
	e.op2n("movsd", e.xmm(t), e.cplxMem(in.dest, 0))
	// imag: ad + bc
	e.op2n("movsd", e.cplxMem(in.src1, 0), e.xmm(t))
	e.op2n("mulsd", e.xmm(d), e.xmm(t))
	e.op2n("movsd", e.cplxMem(in.src1, 1), e.xmm(a))
	e.op2n("mulsd", e.xmm(c), e.xmm(a))
	e.op2n("addsd", e.xmm(a), e.xmm(t))
	e.op2n("movsd", e.xmm(t), e.cplxMem(in.dest, 1))
	e.xmmPut(t)
	e.xmmPut(d)
	e.xmmPut(c)
	e.xmmPut(b)
	e.xmmPut(a)
}

// complexDiv implements (a+bi)/(c+di) via the conjugate identity with
// denominator c*c + d*d.
func (e *emitter) complexDiv(in *inst) {
	c, d, den, t := e.xmmGet(), e.xmmGet(), e.xmmGet(), e.xmmGet()
	e.op2n("movsd", e.cplxMem(in.src2, 0), e.xmm(c))
	e.op2n("movsd", e.cplxMem(in.src2, 1), e.xmm(d))
	e.op2n("movsd", e.xmm(c), e.xmm(den))
	e.op2n("mulsd", e.xmm(c), e.xmm(den))
	e.op2n("movsd", e.xmm(d), e.xmm(t))
	e.op2n("mulsd", e.xmm(d), e.xmm(t))
	e.op2n("addsd", e.xmm(t), e.xmm(den))
	// real: (ac + bd) / den
	e.op2n("movsd", e.cplxMem(in.src1, 0), e.xmm(t))
	e.op2n("mulsd", e.xmm(c), e.xmm(t))
	a := e.xmmGet()
	e.op2n("movsd", e.cplxMem(in.src1, 1), e.xmm(a))
	e.op2n("mulsd", e.xmm(d), e.xmm(a))
	e.op2n("addsd", e.xmm(a), e.xmm(t))
	e.op2n("divsd", e.xmm(den), e.xmm(t))
	e.op2n("movsd", e.xmm(t), e.cplxMem(in.dest, 0))
	// imag: (bc - ad) / den
	e.op2n("movsd", e.cplxMem(in.src1, 1), e.xmm(t))
	e.op2n("mulsd", e.xmm(c), e.xmm(t))
	e.op2n("movsd", e.cplxMem(in.src1, 0), e.xmm(a))
	e.op2n("mulsd", e.xmm(d), e.xmm(a))
	e.op2n("subsd", e.xmm(a), e.xmm(t))
	e.op2n("divsd", e.xmm(den), e.xmm(t))
	e.op2n("movsd", e.xmm(t), e.cplxMem(in.dest, 1))
	e.xmmPut(a)
	e.xmmPut(t)
	e.xmmPut(den)
	e.xmmPut(d)
	e.xmmPut(c)
}

// cplxMem addresses one 8-byte component of a complex value. Complex
// values always receive frame slots (see allocate).
func (e *emitter) cplxMem(v, comp int) string {
	off := e.localBase + int64(e.alloc.slot(v))*e.stride() - int64(comp)*8
	return e.bpMem(off)
}

// cast dispatches on the (source, destination) type pair packed into
// the immediate.
func (e *emitter) cast(in *inst) {
	from, to := castSrc(in.imm), castDst(in.imm)
	switch {
	case from == tyInt && (to == tyFloat || to == tyDouble):
		x := e.xmmGet()
		mn := "cvtsi2ss"
		if to == tyDouble {
			mn = "cvtsi2sd"
		}
		e.op2n(mn, e.toReg(in.src1), e.xmm(x))
		r, sp := e.destReg(in.dest)
		e.movXMMToGP(x, r)
		e.writeBack(in.dest, r, sp)
		e.xmmPut(x)
	case (from == tyFloat || from == tyDouble) && to == tyInt:
		x := e.xmmGet()
		e.movGPToXMM(e.toReg(in.src1), x)
		mn := "cvttss2si"
		if from == tyDouble {
			mn = "cvttsd2si"
		}
		r, sp := e.destReg(in.dest)
		e.op2n(mn, e.xmm(x), r)
		e.writeBack(in.dest, r, sp)
		e.xmmPut(x)
	case from == tyFloat && to == tyDouble:
		x := e.xmmGet()
		e.movGPToXMM(e.toReg(in.src1), x)
		e.op2n("cvtss2sd", e.xmm(x), e.xmm(x))
		r, sp := e.destReg(in.dest)
		e.movXMMToGP(x, r)
		e.writeBack(in.dest, r, sp)
		e.xmmPut(x)
	case from == tyDouble && to == tyFloat:
		x := e.xmmGet()
		e.movGPToXMM(e.toReg(in.src1), x)
		e.op2n("cvtsd2ss", e.xmm(x), e.xmm(x))
		r, sp := e.destReg(in.dest)
		e.movXMMToGP(x, r)
		e.writeBack(in.dest, r, sp)
		e.xmmPut(x)
	default:
		r, sp := e.destReg(in.dest)
		e.mov(e.loc(in.src1), r)
		e.writeBack(in.dest, r, sp)
	}
}

// loadIdx reads name[index] with base+index addressing. The index is
// copied into the scratch register before scaling so the source value
// survives.
func (e *emitter) loadIdx(in *inst) {
	ir := e.reg(scratchReg)
	e.mov(e.loc(in.src1), ir)
	if in.imm > 1 {
		if e.intel() {
			e.ins("imul%s %s, %d", e.sfx(), ir, in.imm)
		} else {
			e.ins("imul%s $%d, %s", e.sfx(), in.imm, ir)
		}
	}
	r, sp := e.destReg(in.dest)
	e.mov(e.idxMem(in.name, ir), r)
	e.writeBack(in.dest, r, sp)
}

func (e *emitter) storeIdx(in *inst) {
	ir := e.reg(scratchReg)
	e.mov(e.loc(in.src1), ir)
	if in.imm > 1 {
		if e.intel() {
			e.ins("imul%s %s, %d", e.sfx(), ir, in.imm)
		} else {
			e.ins("imul%s $%d, %s", e.sfx(), in.imm, ir)
		}
	}
	v := e.loc(in.src2)
	if !e.alloc.isReg(in.src2) {
		acc := e.reg(returnReg)
		e.mov(v, acc)
		v = acc
	}
	e.mov(v, e.idxMem(in.name, ir))
}

// idxMem forms the scaled memory operand for indexed variable access.
func (e *emitter) idxMem(name, idxReg string) string {
	if off, ok := e.localOff[name]; ok {
		if e.intel() {
			return fmt.Sprintf("[%s+%s-%d]", stripPct(e.bp()), idxReg, off)
		}
		return fmt.Sprintf("-%d(%s,%s,1)", off, e.bp(), idxReg)
	}
	if e.intel() {
		return fmt.Sprintf("[%s+%s]", name, idxReg)
	}
	return fmt.Sprintf("%s(,%s,1)", name, idxReg)
}

// leaVar loads the address of a named variable.
func (e *emitter) leaVar(name string, dest int) {
	r, sp := e.destReg(dest)
	if off, ok := e.localOff[name]; ok {
		if e.intel() {
			e.ins("lea %s, %s", r, e.bpMem(off))
		} else {
			e.ins("lea%s %s, %s", e.sfx(), e.bpMem(off), r)
		}
	} else {
		e.leaSymbolReg(name, r)
	}
	e.writeBack(dest, r, sp)
}

func (e *emitter) leaSymbol(name string, dest int) {
	r, sp := e.destReg(dest)
	e.leaSymbolReg(name, r)
	e.writeBack(dest, r, sp)
}

func (e *emitter) leaSymbolReg(name, r string) {
	if e.x64() {
		if e.intel() {
			e.ins("lea %s, [rel %s]", r, name)
		} else {
			e.ins("leaq %s(%%rip), %s", name, r)
		}
		return
	}
	if e.intel() {
		e.ins("mov %s, %s", r, name)
	} else {
		e.ins("movl $%s, %s", name, r)
	}
}

// emitData writes the rodata strings collected during emission and the
// file-scope variables.
func (e *emitter) emitData(globals []*cglobal, cfg *Config) error {
	if len(e.rodata) > 0 {
		if e.intel() {
			e.out.WriteString("section .rodata\n")
		} else {
			e.out.WriteString(".section .rodata\n")
		}
		for _, in := range e.rodata {
			fmt.Fprintf(e.out, "%s:\n", in.name)
			if in.op == opGlobWString {
				for _, r := range in.wstr {
					if e.intel() {
						e.ins("dd %d", r)
					} else {
						e.ins(".long %d", r)
					}
				}
				continue
			}
			if e.intel() {
				e.ins("db %s, 0", asmQuote(in.str))
			} else {
				e.ins(".string %s", asmQuote(in.str))
			}
		}
	}
	if len(globals) == 0 {
		return nil
	}
	if e.intel() {
		e.out.WriteString("section .data\n")
	} else {
		e.out.WriteString(".data\n")
	}
	for _, g := range globals {
		var init int64
		if g.init != nil {
			v, ok := evalConst(g.init, cfg.ptrSize())
			if !ok {
				return g.pos.errorf("initializer for %q is not a constant expression", g.name)
			}
			init = v
		}
		size := g.typ.sizeOf(cfg.ptrSize())
		if e.intel() {
			fmt.Fprintf(e.out, "global %s\n%s:\n", g.name, g.name)
			switch {
			case g.init == nil:
				e.ins("times %d db 0", size)
			case size == 8:
				e.ins("dq %d", init)
			case size == 2:
				e.ins("dw %d", init)
			case size == 1:
				e.ins("db %d", init)
			default:
				e.ins("dd %d", init)
			}
			continue
		}
		fmt.Fprintf(e.out, ".globl %s\n%s:\n", g.name, g.name)
		switch {
		case g.init == nil:
			e.ins(".zero %d", size)
		case size == 8:
			e.ins(".quad %d", init)
		case size == 2:
			e.ins(".value %d", init)
		case size == 1:
			e.ins(".byte %d", init)
		default:
			e.ins(".long %d", init)
		}
	}
	return nil
}

// asmQuote renders a string for .string/db with minimal escaping.
func asmQuote(s string) string {
	var b []byte
	b = append(b, '"')
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case ch == '"' || ch == '\\':
			b = append(b, '\\', ch)
		case ch == '\n':
			b = append(b, '\\', 'n')
		case ch == '\t':
			b = append(b, '\\', 't')
		case ch < 0x20 || ch >= 0x7f:
			b = append(b, []byte(fmt.Sprintf("\\%03o", ch))...)
		default:
			b = append(b, ch)
		}
	}
	b = append(b, '"')
	return string(b)
}

func mathBits(f float64) uint64 {
	return math.Float64bits(f)
}
