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

// evalConst folds a compile-time integer constant over the AST. The
// second result is false when the expression is not constant. Shift and
// division edge cases match the #if evaluator so that the two folders
// never disagree.
func evalConst(n *cnode, ptrSize int) (int64, bool) {
	switch n.kind {
	case ndIntLit:
		return n.ival, true
	case ndSizeof:
		if n.typ != nil {
			return n.typ.sizeOf(ptrSize), true
		}
		if n.lhs != nil && n.lhs.typ != nil {
			return n.lhs.typ.sizeOf(ptrSize), true
		}
		return 0, false
	case ndUnary:
		v, ok := evalConst(n.lhs, ptrSize)
		if !ok {
			return 0, false
		}
		switch n.op {
		case "+":
			return v, true
		case "-":
			return -v, true
		case "~":
			return ^v, true
		case "!":
			return b2i(v == 0), true
		}
		return 0, false
	case ndBinary:
		l, ok := evalConst(n.lhs, ptrSize)
		if !ok {
			return 0, false
		}
		// short-circuit operators may have a non-constant rhs
		switch n.op {
		case "&&":
			if l == 0 {
				return 0, true
			}
		case "||":
			if l != 0 {
				return 1, true
			}
		}
		r, ok := evalConst(n.rhs, ptrSize)
		if !ok {
			return 0, false
		}
		return foldBinary(n.op, l, r)
	case ndCond:
		c, ok := evalConst(n.cond, ptrSize)
		if !ok {
			return 0, false
		}
		if c != 0 {
			return evalConst(n.then, ptrSize)
		}
		return evalConst(n.els, ptrSize)
	}
	return 0, false
}

func foldBinary(op string, l, r int64) (int64, bool) {
	switch op {
	case "+":
		return l + r, true
	case "-":
		return l - r, true
	case "*":
		return l * r, true
	case "/":
		if r == 0 {
			return 0, true
		}
		return l / r, true
	case "%":
		if r == 0 {
			return 0, true
		}
		return l % r, true
	case "<<":
		return l << clampShift(r), true
	case ">>":
		return l >> clampShift(r), true
	case "&":
		return l & r, true
	case "|":
		return l | r, true
	case "^":
		return l ^ r, true
	case "==":
		return b2i(l == r), true
	case "!=":
		return b2i(l != r), true
	case "<":
		return b2i(l < r), true
	case "<=":
		return b2i(l <= r), true
	case ">":
		return b2i(l > r), true
	case ">=":
		return b2i(l >= r), true
	case "&&":
		return b2i(l != 0 && r != 0), true
	case "||":
		return b2i(l != 0 || r != 0), true
	}
	return 0, false
}
