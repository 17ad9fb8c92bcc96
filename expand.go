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
	"strconv"
	"strings"

	"github.com/golang/glog"
)

// expandState carries the set of macros currently being expanded, so the
// macro table itself stays read-only during expansion. A macro whose
// name is in the set is emitted verbatim instead of re-entered.
type expandState struct {
	pp        *preprocessor
	expanding map[string]bool
	depth     int
}

// expandLine macro-expands one logical line.
func (pp *preprocessor) expandLine(line []byte) ([]byte, error) {
	st := &expandState{pp: pp, expanding: make(map[string]bool)}
	out := newXbuf()
	defer out.release()
	if err := st.expand(line, out); err != nil {
		return nil, err
	}
	res := make([]byte, out.Len())
	copy(res, out.Bytes())
	return res, nil
}

func (st *expandState) expand(s []byte, out *buffer) error {
	st.depth++
	defer func() { st.depth-- }()
	if st.depth > st.pp.cfg.MaxMacroDepth {
		return st.pp.pos().errorf("Macro expansion limit exceeded")
	}
	i := 0
	for i < len(s) {
		ch := s[i]
		if ch == '"' || ch == '\'' {
			e := skipQuoted(s, i)
			out.Write(s[i:e])
			i = e
			continue
		}
		if !isIdentStart(ch) {
			out.WriteByte(ch)
			i++
			continue
		}
		n := scanIdent(s[i:])
		name := string(s[i : i+n])
		if name == "_Pragma" {
			if consumed, ok := st.pragmaOperator(s[i+n:], out); ok {
				i += n + consumed
				continue
			}
		}
		if handled := st.builtin(name, out); handled {
			i += n
			if err := st.checkSize(out); err != nil {
				return err
			}
			continue
		}
		m, ok := st.pp.macros.lookup(name)
		if !ok {
			out.WriteString(name)
			i += n
			continue
		}
		if st.expanding[name] {
			// self-reference stays inert: the name, and for a
			// function-like macro its whole argument list, are
			// copied through untouched
			out.WriteString(name)
			i += n
			if m.funcLike {
				j := i
				for j < len(s) && isWhitespace(s[j]) {
					j++
				}
				if j < len(s) && s[j] == '(' {
					e := matchParen(s, j)
					out.Write(s[i:e])
					i = e
				}
			}
			continue
		}
		var subst []byte
		if m.funcLike {
			args, consumed, callOK, malformed := parseMacroArgs(s[i+n:], m)
			if !callOK {
				if malformed != nil {
					return st.pp.pos().error(malformed)
				}
				// no '(' follows, or arity mismatch that keeps
				// the call text intact
				out.WriteString(name)
				i += n
				if consumed > 0 {
					out.Write(s[i : i+consumed])
					i += consumed
				}
				continue
			}
			subst = substituteBody(m, args)
			i += n + consumed
		} else {
			subst = substituteBody(m, nil)
			i += n
		}
		glog.V(3).Infof("expand %s -> %q", name, subst)
		st.expanding[name] = true
		err := st.expand(subst, out)
		delete(st.expanding, name)
		if err != nil {
			return err
		}
		if err := st.checkSize(out); err != nil {
			return err
		}
	}
	return nil
}

func (st *expandState) checkSize(out *buffer) error {
	if max := st.pp.cfg.MaxExpandSize; max > 0 && out.Len() > max {
		return st.pp.pos().errorf("Macro expansion size limit exceeded")
	}
	return nil
}

// builtin expands the computed builtin macros. It reports false for
// names it does not own, including __has_include, which only the #if
// evaluator understands.
func (st *expandState) builtin(name string, out *buffer) bool {
	pp := st.pp
	switch name {
	case "__LINE__":
		fmt.Fprintf(out, "%d", pp.line+pp.lineDelta)
	case "__FILE__":
		out.WriteString(cQuote(pp.file))
	case "__BASE_FILE__":
		out.WriteString(cQuote(pp.baseFile))
	case "__COUNTER__":
		fmt.Fprintf(out, "%d", pp.counter)
		pp.counter++ // wraps to zero at uint64 overflow
	case "__INCLUDE_LEVEL__":
		fmt.Fprintf(out, "%d", len(pp.includes)-1)
	case "__DATE__":
		out.WriteString(cQuote(pp.date))
	case "__TIME__":
		out.WriteString(cQuote(pp.timeOfDay))
	case "__STDC__":
		out.WriteString("1")
	case "__STDC_VERSION__":
		out.WriteString("199901L")
	case "__func__":
		fn := pp.curFunc
		if fn == "" {
			fn = "<unknown>"
		}
		out.WriteString(cQuote(fn))
	default:
		return false
	}
	return true
}

// pragmaOperator handles _Pragma("...") by decoding the string literal
// and injecting a fresh #pragma line for the dispatcher.
func (st *expandState) pragmaOperator(s []byte, out *buffer) (int, bool) {
	i := 0
	for i < len(s) && isWhitespace(s[i]) {
		i++
	}
	if i >= len(s) || s[i] != '(' {
		return 0, false
	}
	i++
	for i < len(s) && isWhitespace(s[i]) {
		i++
	}
	if i >= len(s) || s[i] != '"' {
		return 0, false
	}
	e := skipQuoted(s, i)
	lit := string(s[i:e])
	i = e
	for i < len(s) && isWhitespace(s[i]) {
		i++
	}
	if i >= len(s) || s[i] != ')' {
		return 0, false
	}
	i++
	decoded, err := strconv.Unquote(lit)
	if err != nil {
		// keep escapes as-is when the literal does not decode
		decoded = lit[1 : len(lit)-1]
	}
	out.WriteString("\n#pragma ")
	out.WriteString(decoded)
	out.WriteByte('\n')
	return i, true
}

// matchParen returns the index just past the ')' matching the '(' at
// s[open], skipping nested parens and quoted literals. An unbalanced
// list consumes the rest of the line.
func matchParen(s []byte, open int) int {
	depth := 0
	i := open
	for i < len(s) {
		switch s[i] {
		case '"', '\'':
			i = skipQuoted(s, i)
			continue
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i + 1
			}
		}
		i++
	}
	return i
}

// parseMacroArgs reads a function-like macro's argument list from s
// (positioned just after the macro name). It returns the substitution
// map, the number of bytes consumed, whether the call is well formed,
// and a hard error for a malformed call (too few fixed arguments).
// A missing '(' or a surplus argument on a non-variadic macro returns
// callOK=false with no error so the caller copies the text verbatim.
func parseMacroArgs(s []byte, m *macro) (map[string]string, int, bool, error) {
	i := 0
	for i < len(s) && isWhitespace(s[i]) {
		i++
	}
	if i >= len(s) || s[i] != '(' {
		return nil, 0, false, nil
	}
	open := i
	end := matchParen(s, open)
	if end <= open || s[end-1] != ')' {
		return nil, 0, false, fmt.Errorf("unterminated argument list invoking macro %q", m.name)
	}
	inner := s[open+1 : end-1]
	var raw []string
	depth := 0
	start := 0
	for j := 0; j <= len(inner); j++ {
		if j == len(inner) {
			raw = append(raw, string(trimSpaceBytes(inner[start:j])))
			break
		}
		switch inner[j] {
		case '"', '\'':
			j = skipQuoted(inner, j) - 1
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case ',':
			if depth == 0 {
				raw = append(raw, string(trimSpaceBytes(inner[start:j])))
				start = j + 1
			}
		}
	}
	if len(raw) == 1 && raw[0] == "" && len(m.params) == 0 {
		raw = nil
	}
	if len(raw) < len(m.params) {
		return nil, 0, false, fmt.Errorf("macro %q requires %d arguments, but only %d given", m.name, len(m.params), len(raw))
	}
	if len(raw) > len(m.params) && !m.variadic {
		return nil, end, false, nil
	}
	args := make(map[string]string, len(m.params)+1)
	for k, p := range m.params {
		args[p] = raw[k]
	}
	if m.variadic {
		args["__VA_ARGS__"] = strings.Join(raw[len(m.params):], ", ")
	}
	return args, end, true, nil
}

// substituteBody performs one substitution pass over the replacement
// text: `# param` stringifies the raw argument, `##` pastes adjacent
// tokens, and plain parameter references become the argument text. The
// caller re-scans the result.
func substituteBody(m *macro, args map[string]string) []byte {
	body := []byte(m.body)
	var out []byte
	i := 0
	for i < len(body) {
		ch := body[i]
		if ch == '"' || ch == '\'' {
			e := skipQuoted(body, i)
			out = append(out, body[i:e]...)
			i = e
			continue
		}
		if ch == '#' {
			if i+1 < len(body) && body[i+1] == '#' {
				out = trimRightSpaceBytes(out)
				i += 2
				for i < len(body) && isWhitespace(body[i]) {
					i++
				}
				continue
			}
			j := i + 1
			for j < len(body) && isWhitespace(body[j]) {
				j++
			}
			n := scanIdent(body[j:])
			if n > 0 {
				if arg, ok := args[string(body[j:j+n])]; ok {
					out = append(out, cQuote(arg)...)
					i = j + n
					continue
				}
			}
			out = append(out, '#')
			i++
			continue
		}
		if isIdentStart(ch) {
			n := scanIdent(body[i:])
			name := string(body[i : i+n])
			if arg, ok := args[name]; ok {
				out = append(out, arg...)
			} else {
				out = append(out, name...)
			}
			i += n
			continue
		}
		out = append(out, ch)
		i++
	}
	return out
}

// cQuote renders s as a C string literal, escaping backslash and quote.
func cQuote(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\', '"':
			b.WriteByte('\\')
		}
		b.WriteByte(s[i])
	}
	b.WriteByte('"')
	return b.String()
}
