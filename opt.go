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

	"github.com/golang/glog"
)

// inlineSizeLimit is the instruction-count ceiling for trivial inlining.
const inlineSizeLimit = 24

// optimize runs constant propagation, trivial inlining, dead-value
// elimination, and unreachable-code removal over every function.
func optimize(cfg *Config, funcs []*irFunc) {
	byName := make(map[string]*irFunc, len(funcs))
	for _, fn := range funcs {
		byName[fn.name] = fn
	}
	for _, fn := range funcs {
		if !cfg.NoInline {
			inlineCalls(fn, byName)
		}
		if !cfg.NoCprop {
			constProp(fn)
		}
		removeDeadValues(fn)
		removeUnreachable(fn)
	}
}

func foldIROp(op irOp, l, r int64) (int64, bool) {
	switch op {
	case opAdd:
		return l + r, true
	case opSub:
		return l - r, true
	case opMul:
		return l * r, true
	case opDiv:
		if r == 0 {
			return 0, false
		}
		return l / r, true
	case opMod:
		if r == 0 {
			return 0, false
		}
		return l % r, true
	case opShl:
		return l << clampShift(r), true
	case opShr:
		return l >> clampShift(r), true
	case opAnd:
		return l & r, true
	case opOr:
		return l | r, true
	case opXor:
		return l ^ r, true
	case opCmpEQ:
		return b2i(l == r), true
	case opCmpNE:
		return b2i(l != r), true
	case opCmpLT:
		return b2i(l < r), true
	case opCmpGT:
		return b2i(l > r), true
	case opCmpLE:
		return b2i(l <= r), true
	case opCmpGE:
		return b2i(l >= r), true
	case opLogAnd:
		return b2i(l != 0 && r != 0), true
	case opLogOr:
		return b2i(l != 0 || r != 0), true
	}
	return 0, false
}

// constProp folds integer binary ops whose sources are known constants
// and forwards loads from variables with a single constant store.
func constProp(fn *irFunc) {
	consts := make(map[int]int64)

	// per-alias store census: forwarding is only safe for a variable
	// with exactly one store in the whole function and no address
	// taken
	storeCount := make(map[int]int)
	addrTaken := make(map[int]bool)
	for in := fn.b.head; in != nil; in = in.next {
		switch in.op {
		case opStore, opStoreVol, opStoreIdx, opStoreIdxVol:
			storeCount[in.alias]++
		case opAddr:
			addrTaken[in.alias] = true
		}
	}
	storeVal := make(map[int]int64)
	storeIsConst := make(map[int]bool)

	for in := fn.b.head; in != nil; in = in.next {
		switch in.op {
		case opConst:
			if in.typ == tyInt {
				consts[in.dest] = in.imm
			}
		case opStore:
			if v, ok := consts[in.src1]; ok && storeCount[in.alias] == 1 && !addrTaken[in.alias] {
				storeVal[in.alias] = v
				storeIsConst[in.alias] = true
			}
		case opLoad:
			if storeIsConst[in.alias] {
				glog.V(2).Infof("cprop: load %s -> %d", in.name, storeVal[in.alias])
				v := storeVal[in.alias]
				in.op = opConst
				in.imm = v
				in.name = ""
				in.alias = 0
				consts[in.dest] = v
			}
		default:
			if in.dest == 0 || in.src1 == 0 || in.src2 == 0 || in.typ != tyInt {
				continue
			}
			l, lok := consts[in.src1]
			r, rok := consts[in.src2]
			if !lok || !rok {
				continue
			}
			v, ok := foldIROp(in.op, l, r)
			if !ok {
				continue
			}
			glog.V(2).Infof("cprop: fold %s %d,%d -> %d", in.op, l, r, v)
			in.op = opConst
			in.imm = v
			in.src1 = 0
			in.src2 = 0
			consts[in.dest] = v
		}
	}
}

// removeDeadValues drops pure value-producing instructions whose result
// is never consumed. Runs to a fixed point so constant chains collapse.
func removeDeadValues(fn *irFunc) {
	for {
		used := make(map[int]bool)
		for in := fn.b.head; in != nil; in = in.next {
			if in.src1 != 0 {
				used[in.src1] = true
			}
			if in.src2 != 0 {
				used[in.src2] = true
			}
		}
		removed := false
		for in := fn.b.head; in != nil; in = in.next {
			if in.dest == 0 || used[in.dest] {
				continue
			}
			switch in.op {
			case opConst, opCplxConst, opAdd, opSub, opMul, opDiv, opMod,
				opShl, opShr, opAnd, opOr, opXor, opCmpEQ, opCmpNE,
				opCmpLT, opCmpGT, opCmpLE, opCmpGE, opLogAnd, opLogOr,
				opPtrAdd, opPtrDiff, opCast, opLoad, opLoadIdx,
				opLoadParam, opAddr:
				fn.b.remove(in)
				removed = true
			}
		}
		if !removed {
			return
		}
	}
}

// inlineCalls substitutes small inline-flagged callees into their call
// sites with fresh value ids, renamed labels, and renamed locals.
func inlineCalls(fn *irFunc, byName map[string]*irFunc) {
	site := 0
	for in := fn.b.head; in != nil; in = in.next {
		if in.op != opCall {
			continue
		}
		callee, ok := byName[in.name]
		if !ok || !callee.inline || callee == fn {
			continue
		}
		if len(callee.b.insts()) > inlineSizeLimit {
			continue
		}
		// the callee's arguments must be the opArg run immediately
		// before the call; give up on anything fancier
		args := collectArgRun(fn, in, callee.nparams)
		if args == nil {
			continue
		}
		site++
		if !substituteInline(fn, in, callee, args, site) {
			continue
		}
		glog.V(1).Infof("inlined %s into %s", callee.name, fn.name)
	}
}

// collectArgRun finds the n opArg instructions directly preceding call,
// returning those instructions nearest-first (the last argument first).
func collectArgRun(fn *irFunc, call *inst, n int) []*inst {
	run := []*inst{}
	var prev []*inst
	for in := fn.b.head; in != call; in = in.next {
		prev = append(prev, in)
	}
	for i := len(prev) - 1; i >= 0 && len(run) < n; i-- {
		if prev[i].op != opArg {
			return nil
		}
		run = append(run, prev[i])
	}
	if len(run) != n {
		return nil
	}
	return run
}

func substituteInline(fn *irFunc, call *inst, callee *irFunc, argInsts []*inst, site int) bool {
	prefix := fmt.Sprintf(".inl%d.", site)
	retName := prefix + "ret"
	endLbl := prefix + "end"

	// args were pushed in reverse: argInsts[0] is parameter n-1
	paramVal := make([]int, callee.nparams)
	for i, ai := range argInsts {
		paramVal[callee.nparams-1-i] = ai.src1
	}

	offset := fn.b.nextVal - 1
	fn.b.nextVal += callee.b.maxVal()
	remap := func(v int) int {
		if v == 0 {
			return 0
		}
		return v + offset
	}

	// the body is spliced in front of the call site so the return
	// slot is stored before the call (rewritten below into a load of
	// that slot) reads it
	var pos *inst
	for in := fn.b.head; in != nil && in != call; in = in.next {
		pos = in
	}
	if pos == nil {
		return false
	}

	// map the callee's load_param dests straight onto caller values
	paramOf := make(map[int]int)
	for _, cin := range callee.b.insts() {
		switch cin.op {
		case opFuncBegin, opFuncEnd:
			continue
		case opLoadParam:
			idx := int(cin.imm)
			if idx < 0 || idx >= len(paramVal) {
				return false
			}
			paramOf[remap(cin.dest)] = paramVal[idx]
			continue
		}
		ni := fn.b.insertAfter(pos)
		pos = ni
		*ni = inst{
			op:   cin.op,
			dest: remap(cin.dest),
			src1: remap(cin.src1),
			src2: remap(cin.src2),
			imm:  cin.imm,
			str:  cin.str,
			wstr: cin.wstr,
			cplx: cin.cplx,
			name: cin.name,
			typ:  cin.typ,
			pos:  cin.pos,
			col:  cin.col,
			next: ni.next,
		}
		switch ni.op {
		case opLoad, opLoadVol, opLoadIdx, opLoadIdxVol,
			opStore, opStoreVol, opStoreIdx, opStoreIdxVol, opAddr:
			ni.name = prefix + cin.name
			ni.alias = fn.b.getAlias(ni.name)
		case opLabel, opBr, opBcond:
			ni.name = prefix + cin.name
		case opReturn:
			ni.op = opStore
			ni.name = retName
			ni.alias = fn.b.getAlias(retName)
			ni.typ = callee.ret
			br := fn.b.insertAfter(ni)
			br.op = opBr
			br.name = endLbl
			pos = br
		}
	}
	end := fn.b.insertAfter(pos)
	end.op = opLabel
	end.name = endLbl

	// resolve parameter references introduced by the remap
	for in := fn.b.head; in != nil; in = in.next {
		if v, ok := paramOf[in.src1]; ok {
			in.src1 = v
		}
		if v, ok := paramOf[in.src2]; ok {
			in.src2 = v
		}
	}

	// the call becomes a load of the inline return slot, and the
	// pushed arguments disappear
	call.op = opLoad
	call.name = retName
	call.alias = fn.b.getAlias(retName)
	call.typ = callee.ret
	for _, ai := range argInsts {
		fn.b.remove(ai)
	}
	for _, li := range callee.locals {
		fn.locals = append(fn.locals, localInfo{name: prefix + li.name, size: li.size})
	}
	fn.locals = append(fn.locals, localInfo{name: retName, size: 8})
	return true
}

// removeUnreachable drops instructions that cannot execute: after an
// unconditional branch or return, until the next label. The first
// dropped statement that originated in source produces a warning.
func removeUnreachable(fn *irFunc) {
	reachable := true
	warned := false
	for in := fn.b.head; in != nil; {
		next := in.next
		switch in.op {
		case opFuncBegin:
			reachable = true
		case opLabel:
			reachable = true
		case opFuncEnd:
			in = next
			continue
		default:
			if !reachable {
				if !warned && in.pos.filename != "" {
					warn(in.pos, "statement is unreachable")
					warned = true
				}
				fn.b.remove(in)
				in = next
				continue
			}
		}
		if in.op == opBr || in.op == opReturn || in.op == opReturnAgg {
			reachable = false
		}
		in = next
	}
}
