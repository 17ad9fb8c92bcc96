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

// cparser consumes the token stream of a preprocessed translation unit.
// It accepts the C subset the code generator supports; everything else
// is a parse error naming the offending token.
type cparser struct {
	toks []token
	i    int
	cfg  *Config
	prog *program
}

// parseProgram parses preprocessed source text into a program.
func parseProgram(cfg *Config, src, filename string) (*program, error) {
	toks, err := tokenize(src, filename)
	if err != nil {
		return nil, err
	}
	p := &cparser{toks: toks, cfg: cfg, prog: &program{}}
	for !p.atEOF() {
		if err := p.topLevel(); err != nil {
			return nil, err
		}
	}
	return p.prog, nil
}

func (p *cparser) cur() token  { return p.toks[p.i] }
func (p *cparser) atEOF() bool { return p.toks[p.i].kind == tokEOF }
func (p *cparser) pos() srcpos { return p.toks[p.i].pos }

func (p *cparser) advance() token {
	t := p.toks[p.i]
	if t.kind != tokEOF {
		p.i++
	}
	return t
}

func (p *cparser) acceptPunct(text string) bool {
	if t := p.cur(); t.kind == tokPunct && t.text == text {
		p.i++
		return true
	}
	return false
}

func (p *cparser) acceptIdent(text string) bool {
	if t := p.cur(); t.kind == tokIdent && t.text == text {
		p.i++
		return true
	}
	return false
}

func (p *cparser) expectPunct(text string) error {
	if p.acceptPunct(text) {
		return nil
	}
	return p.pos().errorf("expected %q, found %q", text, p.cur().text)
}

var typeWords = map[string]bool{
	"void": true, "char": true, "int": true, "long": true,
	"short": true, "float": true, "double": true,
	"signed": true, "unsigned": true, "_Complex": true,
}

var declQualifiers = map[string]bool{
	"const": true, "volatile": true, "static": true, "extern": true,
	"inline": true, "register": true, "restrict": true, "__restrict": true,
}

func (p *cparser) atTypeStart() bool {
	t := p.cur()
	return t.kind == tokIdent && (typeWords[t.text] || declQualifiers[t.text])
}

// declSpec reads qualifiers and type words and resolves a base type.
func (p *cparser) declSpec() (*ctype, bool, error) {
	inline := false
	var words []string
	isConst, volatile := false, false
	for p.cur().kind == tokIdent {
		w := p.cur().text
		if declQualifiers[w] {
			p.i++
			switch w {
			case "inline":
				inline = true
			case "const":
				isConst = true
			case "volatile":
				volatile = true
			}
			continue
		}
		if typeWords[w] {
			p.i++
			words = append(words, w)
			continue
		}
		break
	}
	base, err := resolveTypeWords(words, p.pos())
	if err != nil {
		return nil, false, err
	}
	if isConst || volatile {
		t := *base
		t.isConst = isConst
		t.volatile = volatile
		base = &t
	}
	return base, inline, nil
}

func resolveTypeWords(words []string, pos srcpos) (*ctype, error) {
	long, cplx := 0, false
	var base *ctype
	for _, w := range words {
		switch w {
		case "void":
			base = typeVoid
		case "char":
			base = typeChar
		case "int":
			if base == nil {
				base = typeInt
			}
		case "short":
			base = typeInt
		case "long":
			long++
		case "float":
			base = typeFloat
		case "double":
			base = typeDouble
		case "_Complex":
			cplx = true
		case "signed", "unsigned":
			if base == nil {
				base = typeInt
			}
		}
	}
	if base == nil {
		if long == 0 && !cplx {
			return nil, pos.errorf("declaration missing a type specifier")
		}
		base = typeInt
	}
	if long > 0 {
		if base == typeDouble {
			base = typeLongDouble
		} else {
			base = typeLong
		}
	}
	if cplx {
		base = &ctype{kind: ctComplex, elem: base}
	}
	return base, nil
}

// declarator reads pointer stars, the name, and array suffixes.
func (p *cparser) declarator(base *ctype) (string, *ctype, error) {
	t := base
	for p.acceptPunct("*") {
		t = ptrTo(t)
		for p.cur().kind == tokIdent && declQualifiers[p.cur().text] {
			if w := p.cur().text; w == "restrict" || w == "__restrict" {
				nt := *t
				nt.restrict = true
				t = &nt
			}
			p.i++
		}
	}
	nameTok := p.cur()
	if nameTok.kind != tokIdent {
		return "", nil, p.pos().errorf("expected declarator name, found %q", nameTok.text)
	}
	p.i++
	for p.acceptPunct("[") {
		lenExpr, err := p.assignExpr()
		if err != nil {
			return "", nil, err
		}
		n, ok := evalConst(lenExpr, p.cfg.ptrSize())
		if !ok {
			return "", nil, lenExpr.pos.errorf("array bound is not a constant expression")
		}
		if n < 0 {
			return "", nil, lenExpr.pos.errorf("array bound %d out of range", n)
		}
		if err := p.expectPunct("]"); err != nil {
			return "", nil, err
		}
		t = &ctype{kind: ctArray, elem: t, arrayLen: n}
	}
	return nameTok.text, t, nil
}

func (p *cparser) topLevel() error {
	if !p.atTypeStart() {
		return p.pos().errorf("expected declaration, found %q", p.cur().text)
	}
	base, inline, err := p.declSpec()
	if err != nil {
		return err
	}
	name, typ, err := p.declarator(base)
	if err != nil {
		return err
	}
	pos := p.pos()
	if p.acceptPunct("(") {
		return p.funcRest(name, typ, inline, pos)
	}
	// file-scope variable, possibly with initializer
	for {
		g := &cglobal{name: name, typ: typ, pos: pos}
		if p.acceptPunct("=") {
			init, err := p.assignExpr()
			if err != nil {
				return err
			}
			g.init = init
		}
		p.prog.globals = append(p.prog.globals, g)
		glog.V(2).Infof("global %s", name)
		if p.acceptPunct(",") {
			name, typ, err = p.declarator(base)
			if err != nil {
				return err
			}
			continue
		}
		return p.expectPunct(";")
	}
}

func (p *cparser) funcRest(name string, ret *ctype, inline bool, pos srcpos) error {
	fn := &cfunc{name: name, ret: ret, inline: inline, pos: pos}
	if !p.acceptPunct(")") {
		for {
			if p.acceptPunct("...") {
				fn.variadic = true
				break
			}
			if p.cur().kind == tokIdent && p.cur().text == "void" &&
				p.toks[p.i+1].kind == tokPunct && p.toks[p.i+1].text == ")" {
				p.i++
				break
			}
			base, _, err := p.declSpec()
			if err != nil {
				return err
			}
			pname, ptyp, err := p.declarator(base)
			if err != nil {
				return err
			}
			fn.params = append(fn.params, &param{name: pname, typ: ptyp})
			if !p.acceptPunct(",") {
				break
			}
		}
		if err := p.expectPunct(")"); err != nil {
			return err
		}
	}
	if p.acceptPunct(";") {
		// prototype only
		p.prog.funcs = append(p.prog.funcs, fn)
		return nil
	}
	if err := p.expectPunct("{"); err != nil {
		return err
	}
	body, err := p.blockItems()
	if err != nil {
		return err
	}
	fn.body = body
	p.prog.funcs = append(p.prog.funcs, fn)
	return nil
}

func (p *cparser) blockItems() ([]*cnode, error) {
	var items []*cnode
	for !p.acceptPunct("}") {
		if p.atEOF() {
			return nil, p.pos().errorf("unexpected end of file in block")
		}
		st, err := p.statement()
		if err != nil {
			return nil, err
		}
		if st != nil {
			items = append(items, st)
		}
	}
	return items, nil
}

func (p *cparser) statement() (*cnode, error) {
	pos := p.pos()
	switch {
	case p.acceptPunct("{"):
		body, err := p.blockItems()
		if err != nil {
			return nil, err
		}
		return &cnode{kind: ndBlock, body: body, pos: pos}, nil
	case p.acceptPunct(";"):
		return nil, nil
	case p.acceptIdent("return"):
		n := &cnode{kind: ndReturn, pos: pos}
		if !p.acceptPunct(";") {
			e, err := p.expr()
			if err != nil {
				return nil, err
			}
			n.lhs = e
			if err := p.expectPunct(";"); err != nil {
				return nil, err
			}
		}
		return n, nil
	case p.acceptIdent("if"):
		if err := p.expectPunct("("); err != nil {
			return nil, err
		}
		cond, err := p.expr()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct(")"); err != nil {
			return nil, err
		}
		then, err := p.statement()
		if err != nil {
			return nil, err
		}
		n := &cnode{kind: ndIf, cond: cond, then: then, pos: pos}
		if p.acceptIdent("else") {
			els, err := p.statement()
			if err != nil {
				return nil, err
			}
			n.els = els
		}
		return n, nil
	case p.acceptIdent("while"):
		if err := p.expectPunct("("); err != nil {
			return nil, err
		}
		cond, err := p.expr()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct(")"); err != nil {
			return nil, err
		}
		body, err := p.statement()
		if err != nil {
			return nil, err
		}
		return &cnode{kind: ndWhile, cond: cond, then: body, pos: pos}, nil
	case p.acceptIdent("for"):
		if err := p.expectPunct("("); err != nil {
			return nil, err
		}
		n := &cnode{kind: ndFor, pos: pos}
		if !p.acceptPunct(";") {
			var err error
			if p.atTypeStart() {
				n.initStmt, err = p.declStatement()
			} else {
				var e *cnode
				e, err = p.expr()
				n.initStmt = &cnode{kind: ndExprStmt, lhs: e, pos: pos}
				if err == nil {
					err = p.expectPunct(";")
				}
			}
			if err != nil {
				return nil, err
			}
		}
		if !p.acceptPunct(";") {
			cond, err := p.expr()
			if err != nil {
				return nil, err
			}
			n.cond = cond
			if err := p.expectPunct(";"); err != nil {
				return nil, err
			}
		}
		if !p.acceptPunct(")") {
			post, err := p.expr()
			if err != nil {
				return nil, err
			}
			n.post = &cnode{kind: ndExprStmt, lhs: post, pos: pos}
			if err := p.expectPunct(")"); err != nil {
				return nil, err
			}
		}
		body, err := p.statement()
		if err != nil {
			return nil, err
		}
		n.then = body
		return n, nil
	case p.acceptIdent("break"):
		if err := p.expectPunct(";"); err != nil {
			return nil, err
		}
		return &cnode{kind: ndBreak, pos: pos}, nil
	case p.acceptIdent("continue"):
		if err := p.expectPunct(";"); err != nil {
			return nil, err
		}
		return &cnode{kind: ndContinue, pos: pos}, nil
	}
	if p.atTypeStart() {
		return p.declStatement()
	}
	e, err := p.expr()
	if err != nil {
		return nil, err
	}
	if err := p.expectPunct(";"); err != nil {
		return nil, err
	}
	return &cnode{kind: ndExprStmt, lhs: e, pos: pos}, nil
}

// declStatement parses one local declaration, possibly with multiple
// declarators. The result is a block of ndDecl nodes.
func (p *cparser) declStatement() (*cnode, error) {
	pos := p.pos()
	base, _, err := p.declSpec()
	if err != nil {
		return nil, err
	}
	var decls []*cnode
	for {
		name, typ, err := p.declarator(base)
		if err != nil {
			return nil, err
		}
		d := &cnode{kind: ndDecl, name: name, typ: typ, pos: pos}
		if p.acceptPunct("=") {
			init, err := p.assignExpr()
			if err != nil {
				return nil, err
			}
			d.lhs = init
		}
		decls = append(decls, d)
		if !p.acceptPunct(",") {
			break
		}
	}
	if err := p.expectPunct(";"); err != nil {
		return nil, err
	}
	if len(decls) == 1 {
		return decls[0], nil
	}
	return &cnode{kind: ndBlock, body: decls, pos: pos}, nil
}

// --- expressions ---

func (p *cparser) expr() (*cnode, error) {
	e, err := p.assignExpr()
	if err != nil {
		return nil, err
	}
	for p.acceptPunct(",") {
		r, err := p.assignExpr()
		if err != nil {
			return nil, err
		}
		e = &cnode{kind: ndBinary, op: ",", lhs: e, rhs: r, pos: e.pos}
	}
	return e, nil
}

var assignOps = map[string]string{
	"=": "", "+=": "+", "-=": "-", "*=": "*", "/=": "/", "%=": "%",
	"<<=": "<<", ">>=": ">>", "&=": "&", "|=": "|", "^=": "^",
}

func (p *cparser) assignExpr() (*cnode, error) {
	lhs, err := p.condExpr()
	if err != nil {
		return nil, err
	}
	t := p.cur()
	if t.kind == tokPunct {
		if bin, ok := assignOps[t.text]; ok {
			p.i++
			rhs, err := p.assignExpr()
			if err != nil {
				return nil, err
			}
			return &cnode{kind: ndAssign, op: bin, lhs: lhs, rhs: rhs, pos: t.pos}, nil
		}
	}
	return lhs, nil
}

func (p *cparser) condExpr() (*cnode, error) {
	c, err := p.binaryExpr(0)
	if err != nil {
		return nil, err
	}
	if !p.acceptPunct("?") {
		return c, nil
	}
	then, err := p.expr()
	if err != nil {
		return nil, err
	}
	if err := p.expectPunct(":"); err != nil {
		return nil, err
	}
	els, err := p.condExpr()
	if err != nil {
		return nil, err
	}
	return &cnode{kind: ndCond, cond: c, then: then, els: els, pos: c.pos}, nil
}

// binary operator precedence, tightest last.
var binLevels = [][]string{
	{"||"},
	{"&&"},
	{"|"},
	{"^"},
	{"&"},
	{"==", "!="},
	{"<", "<=", ">", ">="},
	{"<<", ">>"},
	{"+", "-"},
	{"*", "/", "%"},
}

func (p *cparser) binaryExpr(level int) (*cnode, error) {
	if level == len(binLevels) {
		return p.unaryExpr()
	}
	lhs, err := p.binaryExpr(level + 1)
	if err != nil {
		return nil, err
	}
	for {
		t := p.cur()
		if t.kind != tokPunct || !containsOp(binLevels[level], t.text) {
			return lhs, nil
		}
		p.i++
		rhs, err := p.binaryExpr(level + 1)
		if err != nil {
			return nil, err
		}
		lhs = &cnode{kind: ndBinary, op: t.text, lhs: lhs, rhs: rhs, pos: t.pos}
	}
}

func containsOp(ops []string, s string) bool {
	for _, op := range ops {
		if op == s {
			return true
		}
	}
	return false
}

func (p *cparser) unaryExpr() (*cnode, error) {
	pos := p.pos()
	t := p.cur()
	if t.kind == tokPunct {
		switch t.text {
		case "-", "+", "!", "~", "*", "&":
			p.i++
			e, err := p.unaryExpr()
			if err != nil {
				return nil, err
			}
			return &cnode{kind: ndUnary, op: t.text, lhs: e, pos: pos}, nil
		case "++", "--":
			p.i++
			e, err := p.unaryExpr()
			if err != nil {
				return nil, err
			}
			return &cnode{kind: ndUnary, op: t.text + "pre", lhs: e, pos: pos}, nil
		case "(":
			// cast: "(" type ")" unary
			if p.i+1 < len(p.toks) && p.toks[p.i+1].kind == tokIdent && typeWords[p.toks[p.i+1].text] {
				p.i++
				base, _, err := p.declSpec()
				if err != nil {
					return nil, err
				}
				for p.acceptPunct("*") {
					base = ptrTo(base)
				}
				if err := p.expectPunct(")"); err != nil {
					return nil, err
				}
				e, err := p.unaryExpr()
				if err != nil {
					return nil, err
				}
				return &cnode{kind: ndUnary, op: "cast", lhs: e, typ: base, pos: pos}, nil
			}
		}
	}
	if t.kind == tokIdent && t.text == "sizeof" {
		p.i++
		if p.acceptPunct("(") {
			if p.atTypeStart() {
				base, _, err := p.declSpec()
				if err != nil {
					return nil, err
				}
				for p.acceptPunct("*") {
					base = ptrTo(base)
				}
				if err := p.expectPunct(")"); err != nil {
					return nil, err
				}
				return &cnode{kind: ndSizeof, typ: base, pos: pos}, nil
			}
			e, err := p.expr()
			if err != nil {
				return nil, err
			}
			if err := p.expectPunct(")"); err != nil {
				return nil, err
			}
			return &cnode{kind: ndSizeof, lhs: e, pos: pos}, nil
		}
		e, err := p.unaryExpr()
		if err != nil {
			return nil, err
		}
		return &cnode{kind: ndSizeof, lhs: e, pos: pos}, nil
	}
	return p.postfixExpr()
}

func (p *cparser) postfixExpr() (*cnode, error) {
	e, err := p.primaryExpr()
	if err != nil {
		return nil, err
	}
	for {
		pos := p.pos()
		switch {
		case p.acceptPunct("("):
			call := &cnode{kind: ndCall, lhs: e, name: e.name, pos: pos}
			if !p.acceptPunct(")") {
				for {
					arg, err := p.assignExpr()
					if err != nil {
						return nil, err
					}
					call.args = append(call.args, arg)
					if !p.acceptPunct(",") {
						break
					}
				}
				if err := p.expectPunct(")"); err != nil {
					return nil, err
				}
			}
			e = call
		case p.acceptPunct("["):
			idx, err := p.expr()
			if err != nil {
				return nil, err
			}
			if err := p.expectPunct("]"); err != nil {
				return nil, err
			}
			e = &cnode{kind: ndIndex, lhs: e, rhs: idx, pos: pos}
		case p.acceptPunct("++"):
			e = &cnode{kind: ndUnary, op: "++post", lhs: e, pos: pos}
		case p.acceptPunct("--"):
			e = &cnode{kind: ndUnary, op: "--post", lhs: e, pos: pos}
		default:
			return e, nil
		}
	}
}

func (p *cparser) primaryExpr() (*cnode, error) {
	t := p.cur()
	switch t.kind {
	case tokInt, tokChar:
		p.i++
		return &cnode{kind: ndIntLit, ival: t.ival, pos: t.pos}, nil
	case tokFloat:
		p.i++
		return &cnode{kind: ndFloatLit, fval: t.fval, pos: t.pos}, nil
	case tokStr:
		p.i++
		return &cnode{kind: ndStrLit, sval: t.sval, wide: t.wide, pos: t.pos}, nil
	case tokIdent:
		p.i++
		return &cnode{kind: ndIdent, name: t.text, pos: t.pos}, nil
	case tokPunct:
		if t.text == "(" {
			p.i++
			e, err := p.expr()
			if err != nil {
				return nil, err
			}
			if err := p.expectPunct(")"); err != nil {
				return nil, err
			}
			return e, nil
		}
	}
	return nil, t.pos.errorf("unexpected token %q", t.text)
}
