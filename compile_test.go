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
	"math"
	"strings"
	"testing"
)

func lowerSource(t *testing.T, src string) ([]*irFunc, error) {
	t.Helper()
	cfg := NewConfig()
	prog, err := parseProgram(cfg, src, "test.c")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return lowerProgram(cfg, prog)
}

func TestLowerSemanticErrors(t *testing.T) {
	for _, tc := range []struct {
		name string
		src  string
		errs string
	}{
		{
			name: "undefined symbol",
			src:  "int f(void){return nope;}",
			errs: "undefined symbol",
		},
		{
			name: "too few call arguments",
			src:  "int g(int a, int b);\nint f(void){return g(1);}",
			errs: "too few arguments",
		},
		{
			name: "too many call arguments",
			src:  "int g(int a);\nint f(void){return g(1, 2);}",
			errs: "too many arguments",
		},
		{
			name: "assign to const",
			src:  "int f(void){const int c = 1; c = 2; return c;}",
			errs: "read-only",
		},
		{
			name: "deref non-pointer",
			src:  "int f(int a){return *a;}",
			errs: "dereference",
		},
		{
			name: "break outside loop",
			src:  "int f(void){break; return 0;}",
			errs: "break outside",
		},
	} {
		_, err := lowerSource(t, tc.src)
		if err == nil {
			t.Errorf("%s: lower succeeded, want error containing %q", tc.name, tc.errs)
			continue
		}
		if !strings.Contains(err.Error(), tc.errs) {
			t.Errorf("%s: error %q does not contain %q", tc.name, err, tc.errs)
		}
	}
}

func TestLowerVariadicCallAllowed(t *testing.T) {
	_, err := lowerSource(t, "int printf(char *fmt, ...);\nint f(void){return printf(\"%d %d\", 1, 2);}")
	if err != nil {
		t.Errorf("variadic call rejected: %v", err)
	}
}

func TestLowerFuncShape(t *testing.T) {
	funcs, err := lowerSource(t, "int add(int a, int b){return a+b;}")
	if err != nil {
		t.Fatal(err)
	}
	if len(funcs) != 1 {
		t.Fatalf("len(funcs)=%d, want 1", len(funcs))
	}
	fn := funcs[0]
	if fn.name != "add" || fn.nparams != 2 {
		t.Errorf("fn=%q nparams=%d, want add/2", fn.name, fn.nparams)
	}
	insts := fn.b.insts()
	if insts[0].op != opFuncBegin || insts[len(insts)-1].op != opFuncEnd {
		t.Errorf("function not delimited by func_begin/func_end")
	}
	// both parameters land in named locals
	if len(fn.locals) != 2 {
		t.Errorf("locals=%v, want a and b", fn.locals)
	}
}

func TestLowerVolatileUsesVolatileOps(t *testing.T) {
	funcs, err := lowerSource(t, "int f(void){volatile int v = 1; v = 2; return v;}")
	if err != nil {
		t.Fatal(err)
	}
	var vol int
	for _, in := range funcs[0].b.insts() {
		if in.op == opLoadVol || in.op == opStoreVol {
			vol++
		}
	}
	if vol < 2 {
		t.Errorf("volatile accesses use %d volatile ops, want at least 2", vol)
	}
}

func TestLowerPointerArithmeticScales(t *testing.T) {
	funcs, err := lowerSource(t, "int f(int *p, int i){return p[i];}")
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, in := range funcs[0].b.insts() {
		if in.op == opPtrAdd && in.imm == 4 {
			found = true
		}
	}
	if !found {
		t.Errorf("pointer index missing scaled ptr_add")
	}
}

func TestLowerArrayUsesIndexedOps(t *testing.T) {
	funcs, err := lowerSource(t, "int f(int i){int a[8]; a[i] = 1; return a[i];}")
	if err != nil {
		t.Fatal(err)
	}
	var loads, stores int
	for _, in := range funcs[0].b.insts() {
		switch in.op {
		case opLoadIdx:
			loads++
		case opStoreIdx:
			stores++
		}
	}
	if loads == 0 || stores == 0 {
		t.Errorf("array access lowered without indexed ops (loads=%d stores=%d)", loads, stores)
	}
}

func TestConstFold(t *testing.T) {
	cfg := NewConfig()
	for _, tc := range []struct {
		src  string
		want int64
	}{
		{src: "int a[3+4];", want: 7},
		{src: "int a[1<<4];", want: 16},
		{src: "int a[sizeof(int)];", want: 4},
		{src: "int a[sizeof(long)];", want: 4}, // 32-bit target
	} {
		prog, err := parseProgram(cfg, tc.src, "test.c")
		if err != nil {
			t.Errorf("parse %q: %v", tc.src, err)
			continue
		}
		g := prog.globals[0]
		if g.typ.kind != ctArray || g.typ.arrayLen != tc.want {
			t.Errorf("%q: array length %d, want %d", tc.src, g.typ.arrayLen, tc.want)
		}
	}
	if _, err := parseProgram(cfg, "int f(int n){int a[n]; return 0;}", "test.c"); err == nil {
		t.Errorf("non-constant array bound accepted")
	}
}

func TestConstFold64BitSizeof(t *testing.T) {
	cfg := NewConfig()
	cfg.X64 = true
	prog, err := parseProgram(cfg, "int a[sizeof(long)];", "test.c")
	if err != nil {
		t.Fatal(err)
	}
	if got := prog.globals[0].typ.arrayLen; got != 8 {
		t.Errorf("sizeof(long) on 64-bit = %d, want 8", got)
	}
}

func TestEvalConstEdgeCases(t *testing.T) {
	for _, tc := range []struct {
		n    *cnode
		want int64
	}{
		{
			n: &cnode{kind: ndBinary, op: "/",
				lhs: &cnode{kind: ndIntLit, ival: 5},
				rhs: &cnode{kind: ndIntLit, ival: 0}},
			want: 0,
		},
		{
			n: &cnode{kind: ndBinary, op: "<<",
				lhs: &cnode{kind: ndIntLit, ival: 1},
				rhs: &cnode{kind: ndIntLit, ival: 100}},
			want: math.MinInt64, // count clamps to 63
		},
	} {
		got, ok := evalConst(tc.n, 4)
		if !ok || got != tc.want {
			t.Errorf("evalConst=%d,%v; want %d,true", got, ok, tc.want)
		}
	}
}
