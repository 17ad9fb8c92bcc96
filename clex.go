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
	"strconv"
	"strings"
)

type tokKind int

const (
	tokEOF tokKind = iota
	tokIdent
	tokInt
	tokFloat
	tokStr
	tokChar
	tokPunct
)

type token struct {
	kind tokKind
	text string
	ival int64
	fval float64
	sval string
	wide bool
	pos  srcpos
}

// three- and two-byte punctuators, longest first.
var puncts = []string{
	"<<=", ">>=", "...",
	"<<", ">>", "<=", ">=", "==", "!=", "&&", "||",
	"+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=", "++", "--", "->",
}

// tokenize scans preprocessed source. Lines of the form `# N "file"`
// reset the reported position so diagnostics point at the original
// source.
func tokenize(src, filename string) ([]token, error) {
	var toks []token
	pos := srcpos{filename: filename, lineno: 1}
	for _, rawLine := range strings.Split(src, "\n") {
		line := rawLine
		if strings.HasPrefix(strings.TrimLeft(line, " \t"), "#") {
			t := strings.TrimLeft(line, " \t")
			t = strings.TrimLeft(t[1:], " \t")
			if len(t) > 0 && t[0] >= '0' && t[0] <= '9' {
				i := 0
				for i < len(t) && t[i] >= '0' && t[i] <= '9' {
					i++
				}
				if n, err := strconv.Atoi(t[:i]); err == nil {
					pos.lineno = n - 1
					rest := strings.TrimLeft(t[i:], " \t")
					if len(rest) >= 2 && rest[0] == '"' {
						if e := strings.IndexByte(rest[1:], '"'); e >= 0 {
							pos.filename = rest[1 : 1+e]
						}
					}
				}
			}
			pos.lineno++
			continue
		}
		lineToks, err := tokenizeLine([]byte(line), pos)
		if err != nil {
			return nil, err
		}
		toks = append(toks, lineToks...)
		pos.lineno++
	}
	toks = append(toks, token{kind: tokEOF, pos: pos})
	return toks, nil
}

func tokenizeLine(s []byte, pos srcpos) ([]token, error) {
	var toks []token
	i := 0
	for i < len(s) {
		ch := s[i]
		if isWhitespace(ch) {
			i++
			continue
		}
		if isIdentStart(ch) {
			n := scanIdent(s[i:])
			name := string(s[i : i+n])
			// wide string/char prefix
			if name == "L" && i+n < len(s) && (s[i+n] == '"' || s[i+n] == '\'') {
				e := skipQuoted(s, i+n)
				t, err := literalToken(s[i+n:e], pos)
				if err != nil {
					return nil, err
				}
				t.wide = true
				toks = append(toks, t)
				i = e
				continue
			}
			toks = append(toks, token{kind: tokIdent, text: name, pos: pos})
			i += n
			continue
		}
		if ch >= '0' && ch <= '9' || ch == '.' && i+1 < len(s) && s[i+1] >= '0' && s[i+1] <= '9' {
			t, n, err := numberToken(s[i:], pos)
			if err != nil {
				return nil, err
			}
			toks = append(toks, t)
			i += n
			continue
		}
		if ch == '"' || ch == '\'' {
			e := skipQuoted(s, i)
			t, err := literalToken(s[i:e], pos)
			if err != nil {
				return nil, err
			}
			toks = append(toks, t)
			i = e
			continue
		}
		matched := false
		for _, p := range puncts {
			if i+len(p) <= len(s) && string(s[i:i+len(p)]) == p {
				toks = append(toks, token{kind: tokPunct, text: p, pos: pos})
				i += len(p)
				matched = true
				break
			}
		}
		if matched {
			continue
		}
		toks = append(toks, token{kind: tokPunct, text: string(ch), pos: pos})
		i++
	}
	return toks, nil
}

func numberToken(s []byte, pos srcpos) (token, int, error) {
	i := 0
	isFloat := false
	hex := len(s) > 1 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X')
	if hex {
		i = 2
		for i < len(s) && isHexDigit(s[i]) {
			i++
		}
	} else {
		for i < len(s) && (s[i] >= '0' && s[i] <= '9' || s[i] == '.') {
			if s[i] == '.' {
				isFloat = true
			}
			i++
		}
		if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
			isFloat = true
			i++
			if i < len(s) && (s[i] == '+' || s[i] == '-') {
				i++
			}
			for i < len(s) && s[i] >= '0' && s[i] <= '9' {
				i++
			}
		}
	}
	text := string(s[:i])
	for i < len(s) {
		switch s[i] {
		case 'u', 'U', 'l', 'L':
			i++
			continue
		case 'f', 'F':
			if !hex {
				isFloat = true
				i++
				continue
			}
		}
		break
	}
	if isFloat {
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return token{}, 0, pos.errorf("invalid float literal %q", text)
		}
		return token{kind: tokFloat, text: text, fval: f, pos: pos}, i, nil
	}
	v, err := strconv.ParseInt(text, 0, 64)
	if err != nil {
		if ne, ok := err.(*strconv.NumError); !ok || ne.Err != strconv.ErrRange {
			return token{}, 0, pos.errorf("invalid integer literal %q", text)
		}
	}
	return token{kind: tokInt, text: text, ival: v, pos: pos}, i, nil
}

func literalToken(lit []byte, pos srcpos) (token, error) {
	if lit[0] == '\'' {
		if len(lit) < 3 || lit[len(lit)-1] != '\'' {
			return token{}, pos.errorf("malformed character literal %s", lit)
		}
		v, _, err := decodeCharEscape(lit[1 : len(lit)-1])
		if err != nil {
			return token{}, pos.error(err)
		}
		return token{kind: tokChar, text: string(lit), ival: v, pos: pos}, nil
	}
	if len(lit) < 2 || lit[len(lit)-1] != '"' {
		return token{}, pos.errorf("unterminated string literal")
	}
	var b strings.Builder
	body := lit[1 : len(lit)-1]
	for j := 0; j < len(body); {
		v, n, err := decodeCharEscape(body[j:])
		if err != nil {
			return token{}, pos.error(err)
		}
		b.WriteByte(byte(v))
		j += n
	}
	return token{kind: tokStr, text: string(lit), sval: b.String(), pos: pos}, nil
}
