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

func opsOf(fn *irFunc) []irOp {
	var ops []irOp
	for in := fn.b.head; in != nil; in = in.next {
		ops = append(ops, in.op)
	}
	return ops
}

func TestConstPropFoldsBinary(t *testing.T) {
	b := newIRBuilder()
	b.emitFuncBegin("f")
	v1 := b.emitConst(3, tyInt)
	v2 := b.emitConst(4, tyInt)
	v3 := b.emitBin(opAdd, v1, v2, tyInt)
	b.emitReturn(v3)
	b.emitFuncEnd()
	fn := &irFunc{name: "f", b: b}
	constProp(fn)
	var folded *inst
	for in := fn.b.head; in != nil; in = in.next {
		if in.dest == v3 {
			folded = in
		}
	}
	if folded == nil || folded.op != opConst || folded.imm != 7 {
		t.Fatalf("add not folded to const 7: %+v", folded)
	}
	if folded.src1 != 0 || folded.src2 != 0 {
		t.Errorf("folded const keeps stale sources: %+v", folded)
	}
}

func TestConstPropDivByZeroNotFolded(t *testing.T) {
	b := newIRBuilder()
	b.emitFuncBegin("f")
	v1 := b.emitConst(3, tyInt)
	v2 := b.emitConst(0, tyInt)
	v3 := b.emitBin(opDiv, v1, v2, tyInt)
	b.emitReturn(v3)
	b.emitFuncEnd()
	fn := &irFunc{name: "f", b: b}
	constProp(fn)
	for in := fn.b.head; in != nil; in = in.next {
		if in.dest == v3 && in.op != opDiv {
			t.Errorf("division by zero must stay in the IR, became %s", in.op)
		}
	}
}

func TestConstPropForwardsSingleStore(t *testing.T) {
	b := newIRBuilder()
	b.emitFuncBegin("f")
	c := b.emitConst(42, tyInt)
	b.emitStore(opStore, "x", c, tyInt)
	l := b.emitLoad(opLoad, "x", tyInt)
	b.emitReturn(l)
	b.emitFuncEnd()
	fn := &irFunc{name: "f", b: b}
	constProp(fn)
	for in := fn.b.head; in != nil; in = in.next {
		if in.dest == l {
			if in.op != opConst || in.imm != 42 {
				t.Errorf("load not forwarded: %+v", in)
			}
		}
	}
}

func TestConstPropTwoStoresNotForwarded(t *testing.T) {
	b := newIRBuilder()
	b.emitFuncBegin("f")
	c1 := b.emitConst(1, tyInt)
	b.emitStore(opStore, "x", c1, tyInt)
	c2 := b.emitConst(2, tyInt)
	b.emitStore(opStore, "x", c2, tyInt)
	l := b.emitLoad(opLoad, "x", tyInt)
	b.emitReturn(l)
	b.emitFuncEnd()
	fn := &irFunc{name: "f", b: b}
	constProp(fn)
	for in := fn.b.head; in != nil; in = in.next {
		if in.dest == l && in.op != opLoad {
			t.Errorf("load of twice-stored variable was forwarded: %+v", in)
		}
	}
}

func TestRemoveDeadValues(t *testing.T) {
	b := newIRBuilder()
	b.emitFuncBegin("f")
	dead := b.emitConst(99, tyInt)
	_ = dead
	live := b.emitConst(1, tyInt)
	b.emitReturn(live)
	b.emitFuncEnd()
	fn := &irFunc{name: "f", b: b}
	removeDeadValues(fn)
	for in := fn.b.head; in != nil; in = in.next {
		if in.dest == dead {
			t.Errorf("dead const survived")
		}
	}
}

func TestRemoveDeadValuesKeepsVolatile(t *testing.T) {
	b := newIRBuilder()
	b.emitFuncBegin("f")
	v := b.emitLoad(opLoadVol, "x", tyInt)
	_ = v
	r := b.emitConst(0, tyInt)
	b.emitReturn(r)
	b.emitFuncEnd()
	fn := &irFunc{name: "f", b: b}
	removeDeadValues(fn)
	found := false
	for in := fn.b.head; in != nil; in = in.next {
		if in.op == opLoadVol {
			found = true
		}
	}
	if !found {
		t.Errorf("volatile load was removed")
	}
}

func TestRemoveUnreachable(t *testing.T) {
	b := newIRBuilder()
	b.emitFuncBegin("f")
	v := b.emitConst(1, tyInt)
	b.emitReturn(v)
	b.setPos(srcpos{filename: "f.c", lineno: 3}, 0)
	w := b.emitConst(2, tyInt) // unreachable
	b.emitReturn(w)            // unreachable
	b.setPos(srcpos{}, 0)
	b.emitLabel("after")
	x := b.emitConst(3, tyInt) // reachable again
	b.emitReturn(x)
	b.emitFuncEnd()
	fn := &irFunc{name: "f", b: b}
	removeUnreachable(fn)
	ops := opsOf(fn)
	want := []irOp{opFuncBegin, opConst, opReturn, opLabel, opConst, opReturn, opFuncEnd}
	if len(ops) != len(want) {
		t.Fatalf("ops=%v, want %v", ops, want)
	}
	for i := range want {
		if ops[i] != want[i] {
			t.Fatalf("ops[%d]=%s, want %s", i, ops[i], want[i])
		}
	}
}

func TestInlineSmallCallee(t *testing.T) {
	// callee: inline int twice(int n) { return n + n; }
	cb := newIRBuilder()
	cb.emitFuncBegin("twice")
	p := cb.emitLoadParam(0, tyInt)
	s := cb.emitBin(opAdd, p, p, tyInt)
	cb.emitReturn(s)
	cb.emitFuncEnd()
	callee := &irFunc{name: "twice", b: cb, ret: tyInt, nparams: 1, inline: true}

	// caller: return twice(21);
	b := newIRBuilder()
	b.emitFuncBegin("main")
	c := b.emitConst(21, tyInt)
	b.emitArg(c, tyInt)
	r := b.emitCall("twice", tyInt)
	b.emitReturn(r)
	b.emitFuncEnd()
	caller := &irFunc{name: "main", b: b, ret: tyInt}

	inlineCalls(caller, map[string]*irFunc{"twice": callee, "main": caller})

	for in := caller.b.head; in != nil; in = in.next {
		if in.op == opCall {
			t.Fatalf("call was not inlined")
		}
		if in.op == opArg {
			t.Fatalf("argument push was not removed")
		}
	}
	// the inlined body must contain the add on the caller's argument
	foundAdd := false
	for in := caller.b.head; in != nil; in = in.next {
		if in.op == opAdd && in.src1 == c && in.src2 == c {
			foundAdd = true
		}
	}
	if !foundAdd {
		t.Errorf("inlined body does not reference the caller argument")
	}
}

func TestInlineRespectsSizeLimit(t *testing.T) {
	cb := newIRBuilder()
	cb.emitFuncBegin("big")
	acc := cb.emitConst(0, tyInt)
	for i := 0; i < inlineSizeLimit; i++ {
		one := cb.emitConst(1, tyInt)
		acc = cb.emitBin(opAdd, acc, one, tyInt)
	}
	cb.emitReturn(acc)
	cb.emitFuncEnd()
	callee := &irFunc{name: "big", b: cb, ret: tyInt, inline: true}

	b := newIRBuilder()
	b.emitFuncBegin("main")
	r := b.emitCall("big", tyInt)
	b.emitReturn(r)
	b.emitFuncEnd()
	caller := &irFunc{name: "main", b: b, ret: tyInt}

	inlineCalls(caller, map[string]*irFunc{"big": callee, "main": caller})
	found := false
	for in := caller.b.head; in != nil; in = in.next {
		if in.op == opCall {
			found = true
		}
	}
	if !found {
		t.Errorf("oversized callee was inlined")
	}
}
