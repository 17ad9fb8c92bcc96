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

// localInfo records a named local's storage requirement for the
// emitter's frame layout.
type localInfo struct {
	name string
	size int64
}

// irFunc is one lowered function: the instruction list plus what the
// optimizer and emitter need to know about it.
type irFunc struct {
	name    string
	b       *irBuilder
	ret     irType
	nparams int
	inline  bool
	locals  []localInfo
	labels  labelGen // continued by the emitter so ids stay unique
}

// lowerer translates a semantically checked AST into IR.
type lowerer struct {
	cfg     *Config
	protos  map[string]*cfunc
	globals map[string]*cglobal

	fn       *cfunc
	b        *irBuilder
	labels   labelGen
	locals   map[string]*ctype
	localSz  map[string]int64
	localOrd []string
	breakLbl []string
	contLbl  []string
	tmpCount int
}

// lowerProgram lowers every function with a body. Prototypes contribute
// call-arity checking only.
func lowerProgram(cfg *Config, prog *program) ([]*irFunc, error) {
	lo := &lowerer{
		cfg:     cfg,
		protos:  make(map[string]*cfunc),
		globals: make(map[string]*cglobal),
	}
	for _, fn := range prog.funcs {
		lo.protos[fn.name] = fn
	}
	for _, g := range prog.globals {
		lo.globals[g.name] = g
	}
	var out []*irFunc
	for _, fn := range prog.funcs {
		if fn.body == nil {
			continue
		}
		f, err := lo.lowerFunc(fn)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

func (lo *lowerer) lowerFunc(fn *cfunc) (*irFunc, error) {
	lo.fn = fn
	lo.b = newIRBuilder()
	// lo.labels is shared across functions so every label in the
	// translation unit stays unique
	lo.locals = make(map[string]*ctype)
	lo.localSz = make(map[string]int64)
	lo.localOrd = nil
	lo.breakLbl = nil
	lo.contLbl = nil
	glog.V(1).Infof("lower %s", fn.name)

	lo.b.setPos(fn.pos, 0)
	lo.b.emitFuncBegin(fn.name)
	for i, prm := range fn.params {
		lo.declareLocal(prm.name, prm.typ)
		v := lo.b.emitLoadParam(int64(i), prm.typ.irType())
		lo.b.emitStore(lo.storeOp(prm.typ), prm.name, v, prm.typ.irType())
	}
	for _, st := range fn.body {
		if err := lo.stmt(st); err != nil {
			return nil, err
		}
	}
	// fall off the end: return 0. No source position, so the
	// unreachable pass stays quiet when the body already returned.
	lo.b.setPos(srcpos{}, 0)
	z := lo.b.emitConst(0, tyInt)
	lo.b.emitReturn(z)
	lo.b.emitFuncEnd()

	f := &irFunc{
		name:    fn.name,
		b:       lo.b,
		ret:     fn.ret.irType(),
		nparams: len(fn.params),
		inline:  fn.inline,
		labels:  lo.labels,
	}
	for _, name := range lo.localOrd {
		f.locals = append(f.locals, localInfo{name: name, size: lo.localSz[name]})
	}
	return f, nil
}

func (lo *lowerer) declareLocal(name string, typ *ctype) {
	if _, ok := lo.locals[name]; !ok {
		lo.localOrd = append(lo.localOrd, name)
	}
	lo.locals[name] = typ
	lo.localSz[name] = typ.sizeOf(lo.cfg.ptrSize())
	if typ.restrict {
		// a fresh alias set: restrict-qualified pointers never alias
		lo.b.getAlias(name)
	}
}

func (lo *lowerer) newTmp() string {
	lo.tmpCount++
	return fmt.Sprintf(".t%d", lo.tmpCount)
}

func (lo *lowerer) loadOp(t *ctype) irOp {
	if t.volatile {
		return opLoadVol
	}
	return opLoad
}

func (lo *lowerer) storeOp(t *ctype) irOp {
	if t.volatile {
		return opStoreVol
	}
	return opStore
}

func (lo *lowerer) typeOf(name string, pos srcpos) (*ctype, error) {
	if t, ok := lo.locals[name]; ok {
		return t, nil
	}
	if g, ok := lo.globals[name]; ok {
		return g.typ, nil
	}
	return nil, pos.errorf("undefined symbol %q", name)
}

// --- statements ---

func (lo *lowerer) stmt(n *cnode) error {
	if n == nil {
		return nil
	}
	lo.b.setPos(n.pos, 0)
	switch n.kind {
	case ndBlock:
		for _, st := range n.body {
			if err := lo.stmt(st); err != nil {
				return err
			}
		}
		return nil
	case ndDecl:
		lo.declareLocal(n.name, n.typ)
		if n.lhs != nil {
			v, vt, err := lo.expr(n.lhs)
			if err != nil {
				return err
			}
			v = lo.convert(v, vt, n.typ)
			lo.b.emitStore(lo.storeOp(n.typ), n.name, v, n.typ.irType())
		}
		return nil
	case ndExprStmt:
		_, _, err := lo.expr(n.lhs)
		return err
	case ndReturn:
		if n.lhs == nil {
			z := lo.b.emitConst(0, tyInt)
			lo.b.emitReturn(z)
			return nil
		}
		v, vt, err := lo.expr(n.lhs)
		if err != nil {
			return err
		}
		v = lo.convert(v, vt, lo.fn.ret)
		lo.b.emitReturn(v)
		return nil
	case ndIf:
		cond, _, err := lo.expr(n.cond)
		if err != nil {
			return err
		}
		elseLbl := lo.labels.format(lo.labels.id(), "else")
		endLbl := lo.labels.format(lo.labels.id(), "end")
		lo.b.emitBcond(cond, elseLbl)
		if err := lo.stmt(n.then); err != nil {
			return err
		}
		lo.b.emitBr(endLbl)
		lo.b.emitLabel(elseLbl)
		if err := lo.stmt(n.els); err != nil {
			return err
		}
		lo.b.emitLabel(endLbl)
		return nil
	case ndWhile:
		head := lo.labels.format(lo.labels.id(), "loop")
		end := lo.labels.format(lo.labels.id(), "endloop")
		lo.b.emitLabel(head)
		cond, _, err := lo.expr(n.cond)
		if err != nil {
			return err
		}
		lo.b.emitBcond(cond, end)
		lo.breakLbl = append(lo.breakLbl, end)
		lo.contLbl = append(lo.contLbl, head)
		err = lo.stmt(n.then)
		lo.breakLbl = lo.breakLbl[:len(lo.breakLbl)-1]
		lo.contLbl = lo.contLbl[:len(lo.contLbl)-1]
		if err != nil {
			return err
		}
		lo.b.emitBr(head)
		lo.b.emitLabel(end)
		return nil
	case ndFor:
		if err := lo.stmt(n.initStmt); err != nil {
			return err
		}
		head := lo.labels.format(lo.labels.id(), "for")
		cont := lo.labels.format(lo.labels.id(), "forpost")
		end := lo.labels.format(lo.labels.id(), "endfor")
		lo.b.emitLabel(head)
		if n.cond != nil {
			cond, _, err := lo.expr(n.cond)
			if err != nil {
				return err
			}
			lo.b.emitBcond(cond, end)
		}
		lo.breakLbl = append(lo.breakLbl, end)
		lo.contLbl = append(lo.contLbl, cont)
		err := lo.stmt(n.then)
		lo.breakLbl = lo.breakLbl[:len(lo.breakLbl)-1]
		lo.contLbl = lo.contLbl[:len(lo.contLbl)-1]
		if err != nil {
			return err
		}
		lo.b.emitLabel(cont)
		if err := lo.stmt(n.post); err != nil {
			return err
		}
		lo.b.emitBr(head)
		lo.b.emitLabel(end)
		return nil
	case ndBreak:
		if len(lo.breakLbl) == 0 {
			return n.pos.errorf("break outside a loop")
		}
		lo.b.emitBr(lo.breakLbl[len(lo.breakLbl)-1])
		return nil
	case ndContinue:
		if len(lo.contLbl) == 0 {
			return n.pos.errorf("continue outside a loop")
		}
		lo.b.emitBr(lo.contLbl[len(lo.contLbl)-1])
		return nil
	}
	return n.pos.errorf("unsupported statement")
}

// --- expressions ---

// expr lowers one expression and returns the produced value id and its
// C type.
func (lo *lowerer) expr(n *cnode) (int, *ctype, error) {
	lo.b.setPos(n.pos, 0)
	switch n.kind {
	case ndIntLit:
		return lo.b.emitConst(n.ival, tyInt), typeInt, nil
	case ndFloatLit:
		v := lo.b.emitConst(int64(math.Float64bits(n.fval)), tyDouble)
		return v, typeDouble, nil
	case ndStrLit:
		lbl := lo.labels.format(lo.labels.id(), "str")
		if n.wide {
			runes := make([]int64, 0, len(n.sval)+1)
			for _, r := range n.sval {
				runes = append(runes, int64(r))
			}
			runes = append(runes, 0)
			return lo.b.emitGlobWString(lbl, runes), ptrTo(typeInt), nil
		}
		return lo.b.emitGlobString(lbl, n.sval), ptrTo(typeChar), nil
	case ndIdent:
		t, err := lo.typeOf(n.name, n.pos)
		if err != nil {
			return 0, nil, err
		}
		if t.kind == ctArray {
			return lo.b.emitAddr(n.name), ptrTo(t.elem), nil
		}
		return lo.b.emitLoad(lo.loadOp(t), n.name, t.irType()), t, nil
	case ndSizeof:
		sz, ok := lo.sizeofValue(n)
		if !ok {
			return 0, nil, n.pos.errorf("cannot compute sizeof here")
		}
		return lo.b.emitConst(sz, tyInt), typeLong, nil
	case ndUnary:
		return lo.unary(n)
	case ndBinary:
		return lo.binary(n)
	case ndAssign:
		return lo.assign(n)
	case ndCond:
		return lo.condValue(n)
	case ndIndex:
		v, t, err := lo.indexAddr(n, false)
		return v, t, err
	case ndCall:
		return lo.call(n)
	}
	return 0, nil, n.pos.errorf("unsupported expression")
}

func (lo *lowerer) sizeofValue(n *cnode) (int64, bool) {
	if n.typ != nil {
		return n.typ.sizeOf(lo.cfg.ptrSize()), true
	}
	if n.lhs != nil {
		if n.lhs.kind == ndIdent {
			if t, err := lo.typeOf(n.lhs.name, n.lhs.pos); err == nil {
				return t.sizeOf(lo.cfg.ptrSize()), true
			}
		}
		if v, ok := evalConst(n.lhs, lo.cfg.ptrSize()); ok {
			_ = v
			return int64(4), true // int-valued constant expression
		}
	}
	return 0, false
}

func (lo *lowerer) unary(n *cnode) (int, *ctype, error) {
	switch n.op {
	case "cast":
		v, vt, err := lo.expr(n.lhs)
		if err != nil {
			return 0, nil, err
		}
		return lo.convert(v, vt, n.typ), n.typ, nil
	case "-":
		v, vt, err := lo.expr(n.lhs)
		if err != nil {
			return 0, nil, err
		}
		if vt.isFloat() {
			z := lo.b.emitConst(0, vt.irType())
			return lo.b.emitBin(floatOp(opFSub, vt), z, v, vt.irType()), vt, nil
		}
		z := lo.b.emitConst(0, tyInt)
		return lo.b.emitBin(opSub, z, v, tyInt), vt, nil
	case "+":
		return lo.expr(n.lhs)
	case "!":
		v, _, err := lo.expr(n.lhs)
		if err != nil {
			return 0, nil, err
		}
		z := lo.b.emitConst(0, tyInt)
		return lo.b.emitBin(opCmpEQ, v, z, tyInt), typeInt, nil
	case "~":
		v, vt, err := lo.expr(n.lhs)
		if err != nil {
			return 0, nil, err
		}
		m := lo.b.emitConst(-1, tyInt)
		return lo.b.emitBin(opXor, v, m, tyInt), vt, nil
	case "*":
		v, vt, err := lo.expr(n.lhs)
		if err != nil {
			return 0, nil, err
		}
		if vt.kind != ctPtr {
			return 0, nil, n.pos.errorf("cannot dereference non-pointer")
		}
		return lo.b.emitLoadPtr(v, vt.elem.irType()), vt.elem, nil
	case "&":
		if n.lhs.kind != ndIdent {
			return 0, nil, n.pos.errorf("cannot take the address of this expression")
		}
		t, err := lo.typeOf(n.lhs.name, n.pos)
		if err != nil {
			return 0, nil, err
		}
		return lo.b.emitAddr(n.lhs.name), ptrTo(t), nil
	case "++pre", "--pre", "++post", "--post":
		return lo.incDec(n)
	}
	return 0, nil, n.pos.errorf("unsupported unary operator %q", n.op)
}

func (lo *lowerer) incDec(n *cnode) (int, *ctype, error) {
	if n.lhs.kind != ndIdent {
		return 0, nil, n.pos.errorf("operand of %q must be a variable", n.op)
	}
	name := n.lhs.name
	t, err := lo.typeOf(name, n.pos)
	if err != nil {
		return 0, nil, err
	}
	old := lo.b.emitLoad(lo.loadOp(t), name, t.irType())
	one := lo.b.emitConst(1, tyInt)
	var upd int
	if t.kind == ctPtr {
		step := t.elem.sizeOf(lo.cfg.ptrSize())
		if n.op == "--pre" || n.op == "--post" {
			neg := lo.b.emitConst(-1, tyInt)
			upd = lo.b.emitPtrAdd(old, neg, step)
		} else {
			upd = lo.b.emitPtrAdd(old, one, step)
		}
	} else {
		op := opAdd
		if n.op == "--pre" || n.op == "--post" {
			op = opSub
		}
		upd = lo.b.emitBin(op, old, one, t.irType())
	}
	lo.b.emitStore(lo.storeOp(t), name, upd, t.irType())
	if n.op == "++post" || n.op == "--post" {
		return old, t, nil
	}
	return upd, t, nil
}

// floatOp shifts a float opcode to its long-double or complex variant.
func floatOp(base irOp, t *ctype) irOp {
	switch t.kind {
	case ctLongDouble:
		return base + (opLFAdd - opFAdd)
	case ctComplex:
		return base + (opCplxAdd - opFAdd)
	}
	return base
}

var intBinOps = map[string]irOp{
	"+": opAdd, "-": opSub, "*": opMul, "/": opDiv, "%": opMod,
	"<<": opShl, ">>": opShr, "&": opAnd, "|": opOr, "^": opXor,
}

var cmpOps = map[string]irOp{
	"==": opCmpEQ, "!=": opCmpNE, "<": opCmpLT,
	">": opCmpGT, "<=": opCmpLE, ">=": opCmpGE,
}

var floatBinOps = map[string]irOp{
	"+": opFAdd, "-": opFSub, "*": opFMul, "/": opFDiv,
}

func (lo *lowerer) binary(n *cnode) (int, *ctype, error) {
	if n.op == "," {
		if _, _, err := lo.expr(n.lhs); err != nil {
			return 0, nil, err
		}
		return lo.expr(n.rhs)
	}
	if n.op == "&&" || n.op == "||" {
		l, _, err := lo.expr(n.lhs)
		if err != nil {
			return 0, nil, err
		}
		r, _, err := lo.expr(n.rhs)
		if err != nil {
			return 0, nil, err
		}
		op := opLogAnd
		if n.op == "||" {
			op = opLogOr
		}
		return lo.b.emitBin(op, l, r, tyInt), typeInt, nil
	}
	l, lt, err := lo.expr(n.lhs)
	if err != nil {
		return 0, nil, err
	}
	r, rt, err := lo.expr(n.rhs)
	if err != nil {
		return 0, nil, err
	}
	// pointer arithmetic
	if lt.kind == ctPtr || rt.kind == ctPtr {
		return lo.pointerBinary(n, l, lt, r, rt)
	}
	if op, ok := cmpOps[n.op]; ok {
		if lt.isFloat() || rt.isFloat() {
			ft := widerFloat(lt, rt)
			l = lo.convert(l, lt, ft)
			r = lo.convert(r, rt, ft)
		}
		return lo.b.emitBin(op, l, r, tyInt), typeInt, nil
	}
	if lt.isFloat() || rt.isFloat() || lt.kind == ctComplex || rt.kind == ctComplex {
		ft := widerFloat(lt, rt)
		fop, ok := floatBinOps[n.op]
		if !ok {
			return 0, nil, n.pos.errorf("invalid operands of %q", n.op)
		}
		l = lo.convert(l, lt, ft)
		r = lo.convert(r, rt, ft)
		return lo.b.emitBin(floatOp(fop, ft), l, r, ft.irType()), ft, nil
	}
	op, ok := intBinOps[n.op]
	if !ok {
		return 0, nil, n.pos.errorf("unsupported binary operator %q", n.op)
	}
	t := typeInt
	if lt.kind == ctLong || rt.kind == ctLong {
		t = typeLong
	}
	return lo.b.emitBin(op, l, r, t.irType()), t, nil
}

func (lo *lowerer) pointerBinary(n *cnode, l int, lt *ctype, r int, rt *ctype) (int, *ctype, error) {
	switch n.op {
	case "+":
		if lt.kind == ctPtr && rt.isInteger() {
			return lo.b.emitPtrAdd(l, r, lt.elem.sizeOf(lo.cfg.ptrSize())), lt, nil
		}
		if rt.kind == ctPtr && lt.isInteger() {
			return lo.b.emitPtrAdd(r, l, rt.elem.sizeOf(lo.cfg.ptrSize())), rt, nil
		}
	case "-":
		if lt.kind == ctPtr && rt.kind == ctPtr {
			return lo.b.emitPtrDiff(l, r, lt.elem.sizeOf(lo.cfg.ptrSize())), typeLong, nil
		}
		if lt.kind == ctPtr && rt.isInteger() {
			neg := lo.b.emitBin(opSub, lo.b.emitConst(0, tyInt), r, tyInt)
			return lo.b.emitPtrAdd(l, neg, lt.elem.sizeOf(lo.cfg.ptrSize())), lt, nil
		}
	default:
		if op, ok := cmpOps[n.op]; ok {
			return lo.b.emitBin(op, l, r, tyInt), typeInt, nil
		}
	}
	return 0, nil, n.pos.errorf("invalid pointer arithmetic with %q", n.op)
}

func widerFloat(a, b *ctype) *ctype {
	rank := func(t *ctype) int {
		switch t.kind {
		case ctComplex:
			return 4
		case ctLongDouble:
			return 3
		case ctDouble:
			return 2
		case ctFloat:
			return 1
		}
		return 0
	}
	if rank(a) >= rank(b) {
		if rank(a) == 0 {
			return typeDouble
		}
		return a
	}
	return b
}

// convert inserts an IR cast when from and to differ in representation.
func (lo *lowerer) convert(v int, from, to *ctype) int {
	if from == nil || to == nil {
		return v
	}
	fi, ti := from.irType(), to.irType()
	if fi == ti {
		return v
	}
	if ti == tyVoid {
		return v
	}
	return lo.b.emitCast(v, fi, ti)
}

func (lo *lowerer) assign(n *cnode) (int, *ctype, error) {
	// compound assignment loads the target first
	var rhs int
	var rt *ctype
	if n.op != "" {
		bin := &cnode{kind: ndBinary, op: n.op, lhs: n.lhs, rhs: n.rhs, pos: n.pos}
		v, t, err := lo.expr(bin)
		if err != nil {
			return 0, nil, err
		}
		rhs, rt = v, t
	} else {
		v, t, err := lo.expr(n.rhs)
		if err != nil {
			return 0, nil, err
		}
		rhs, rt = v, t
	}
	switch n.lhs.kind {
	case ndIdent:
		t, err := lo.typeOf(n.lhs.name, n.lhs.pos)
		if err != nil {
			return 0, nil, err
		}
		if t.isConst {
			return 0, nil, n.pos.errorf("assignment of read-only variable %q", n.lhs.name)
		}
		rhs = lo.convert(rhs, rt, t)
		lo.b.emitStore(lo.storeOp(t), n.lhs.name, rhs, t.irType())
		return rhs, t, nil
	case ndIndex:
		return lo.indexStore(n.lhs, rhs, rt)
	case ndUnary:
		if n.lhs.op == "*" {
			ptr, pt, err := lo.expr(n.lhs.lhs)
			if err != nil {
				return 0, nil, err
			}
			if pt.kind != ctPtr {
				return 0, nil, n.pos.errorf("cannot dereference non-pointer")
			}
			rhs = lo.convert(rhs, rt, pt.elem)
			lo.b.emitStorePtr(ptr, rhs, pt.elem.irType())
			return rhs, pt.elem, nil
		}
	}
	return 0, nil, n.pos.errorf("expression is not assignable")
}

// indexAddr lowers a[i] reads. Arrays named directly use the indexed
// load forms; pointer bases fall back to ptr_add + load_ptr.
func (lo *lowerer) indexAddr(n *cnode, forStore bool) (int, *ctype, error) {
	idx, _, err := lo.expr(n.rhs)
	if err != nil {
		return 0, nil, err
	}
	if n.lhs.kind == ndIdent {
		if t, err2 := lo.typeOf(n.lhs.name, n.lhs.pos); err2 == nil && t.kind == ctArray {
			op := opLoadIdx
			if t.elem.volatile || t.volatile {
				op = opLoadIdxVol
			}
			sz := t.elem.sizeOf(lo.cfg.ptrSize())
			return lo.b.emitLoadIdx(op, n.lhs.name, idx, sz, t.elem.irType()), t.elem, nil
		}
	}
	base, bt, err := lo.expr(n.lhs)
	if err != nil {
		return 0, nil, err
	}
	if bt.kind != ctPtr {
		return 0, nil, n.pos.errorf("subscripted value is not an array or pointer")
	}
	p := lo.b.emitPtrAdd(base, idx, bt.elem.sizeOf(lo.cfg.ptrSize()))
	return lo.b.emitLoadPtr(p, bt.elem.irType()), bt.elem, nil
}

func (lo *lowerer) indexStore(n *cnode, val int, vt *ctype) (int, *ctype, error) {
	idx, _, err := lo.expr(n.rhs)
	if err != nil {
		return 0, nil, err
	}
	if n.lhs.kind == ndIdent {
		if t, err2 := lo.typeOf(n.lhs.name, n.lhs.pos); err2 == nil && t.kind == ctArray {
			op := opStoreIdx
			if t.elem.volatile || t.volatile {
				op = opStoreIdxVol
			}
			val = lo.convert(val, vt, t.elem)
			sz := t.elem.sizeOf(lo.cfg.ptrSize())
			lo.b.emitStoreIdx(op, n.lhs.name, idx, val, sz, t.elem.irType())
			return val, t.elem, nil
		}
	}
	base, bt, err := lo.expr(n.lhs)
	if err != nil {
		return 0, nil, err
	}
	if bt.kind != ctPtr {
		return 0, nil, n.pos.errorf("subscripted value is not an array or pointer")
	}
	p := lo.b.emitPtrAdd(base, idx, bt.elem.sizeOf(lo.cfg.ptrSize()))
	val = lo.convert(val, vt, bt.elem)
	lo.b.emitStorePtr(p, val, bt.elem.irType())
	return val, bt.elem, nil
}

// condValue lowers ?: through a compiler temporary.
func (lo *lowerer) condValue(n *cnode) (int, *ctype, error) {
	cond, _, err := lo.expr(n.cond)
	if err != nil {
		return 0, nil, err
	}
	elseLbl := lo.labels.format(lo.labels.id(), "false")
	endLbl := lo.labels.format(lo.labels.id(), "end")
	tmp := lo.newTmp()
	lo.b.emitBcond(cond, elseLbl)
	tv, tt, err := lo.expr(n.then)
	if err != nil {
		return 0, nil, err
	}
	lo.declareLocal(tmp, tt)
	lo.b.emitStore(opStore, tmp, tv, tt.irType())
	lo.b.emitBr(endLbl)
	lo.b.emitLabel(elseLbl)
	fv, ft, err := lo.expr(n.els)
	if err != nil {
		return 0, nil, err
	}
	fv = lo.convert(fv, ft, tt)
	lo.b.emitStore(opStore, tmp, fv, tt.irType())
	lo.b.emitLabel(endLbl)
	return lo.b.emitLoad(opLoad, tmp, tt.irType()), tt, nil
}

func (lo *lowerer) call(n *cnode) (int, *ctype, error) {
	// function name or pointer expression
	direct := n.lhs.kind == ndIdent
	var callee *cfunc
	if direct {
		callee = lo.protos[n.lhs.name]
		if callee != nil {
			fixed := len(callee.params)
			if len(n.args) < fixed {
				return 0, nil, n.pos.errorf("too few arguments to function %q", n.lhs.name)
			}
			if len(n.args) > fixed && !callee.variadic {
				return 0, nil, n.pos.errorf("too many arguments to function %q", n.lhs.name)
			}
		}
	}
	vals := make([]int, len(n.args))
	typs := make([]*ctype, len(n.args))
	for i, a := range n.args {
		v, t, err := lo.expr(a)
		if err != nil {
			return 0, nil, err
		}
		if callee != nil && i < len(callee.params) {
			v = lo.convert(v, t, callee.params[i].typ)
			t = callee.params[i].typ
		}
		vals[i] = v
		typs[i] = t
	}
	// arguments push right to left
	for i := len(vals) - 1; i >= 0; i-- {
		lo.b.emitArg(vals[i], typs[i].irType())
	}
	ret := typeInt
	if callee != nil {
		ret = callee.ret
	}
	if direct {
		if _, isVar := lo.locals[n.lhs.name]; !isVar {
			if _, isGlob := lo.globals[n.lhs.name]; !isGlob {
				return lo.b.emitCall(n.lhs.name, ret.irType()), ret, nil
			}
		}
	}
	fp, ft, err := lo.expr(n.lhs)
	if err != nil {
		return 0, nil, err
	}
	if ft.kind == ctPtr && ft.elem != nil && ft.elem.kind == ctFunc {
		ret = ft.elem.elem
	}
	return lo.b.emitCallPtr(fp, ret.irType()), ret, nil
}
