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
	"bytes"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/golang/glog"
)

// preprocessor is the per-translation-unit state: macro table,
// conditional stack, include stack, pragma-once set, dependency list,
// pack stack, and the builtin-macro counters.
type preprocessor struct {
	cfg    *Config
	macros *macroTable
	conds  condStack

	includes []includeFrame
	onceSeen map[string]bool
	deps     []string
	depSeen  map[string]bool

	packStack []int64
	packAlign int64       // 0 means default alignment
	packHook  func(int64) // mirrored into AST layout

	file      string // reported file (overridable by #line)
	line      int    // 1-based physical line in the current file
	lineDelta int    // from #line

	baseFile     string
	counter      uint64
	inComment    bool
	systemHeader bool
	curFunc      string

	date, timeOfDay string

	out buffer
	sys sysIncCache
}

func newPreprocessor(cfg *Config) *preprocessor {
	pp := &preprocessor{
		cfg:      cfg,
		macros:   newMacroTable(),
		onceSeen: make(map[string]bool),
		depSeen:  make(map[string]bool),
	}
	now := time.Now()
	pp.date = now.Format("Jan _2 2006")
	pp.timeOfDay = now.Format("15:04:05")
	for name, val := range cfg.Defines {
		pp.macros.define(&macro{name: name, body: val})
	}
	for _, name := range cfg.Undefs {
		pp.macros.undef(name)
	}
	return pp
}

func (pp *preprocessor) pos() srcpos {
	return srcpos{filename: pp.file, lineno: pp.line + pp.lineDelta}
}

// Preprocess runs the preprocessor over path and returns the expanded
// text and the dependency list (canonical paths, deduplicated, in first-
// include order).
func Preprocess(cfg *Config, path string) (string, []string, error) {
	pp := newPreprocessor(cfg)
	err := pp.processFile(path, canonicalPath(path), foundInCurrentDir)
	if err != nil {
		return "", nil, err
	}
	return pp.out.String(), pp.deps, nil
}

func (pp *preprocessor) processFile(path, canonical string, matchedIdx int) error {
	f, err := loadFile(path)
	if err != nil {
		return err
	}
	pp.pushInclude(canonical, matchedIdx)
	defer pp.popInclude()

	savedFile, savedLine, savedDelta := pp.file, pp.line, pp.lineDelta
	pp.file = path
	pp.lineDelta = 0
	condDepth := pp.conds.depth()

	for i, line := range f.lines {
		pp.line = i + 1
		if err := pp.processLine(line); err != nil {
			return err
		}
	}
	if pp.inComment {
		return pp.pos().errorf("unterminated comment")
	}
	if pp.conds.depth() > condDepth {
		f := pp.conds.frames[len(pp.conds.frames)-1]
		return srcpos{filename: path, lineno: f.originLine}.errorf("unterminated conditional directive")
	}

	pp.file, pp.line, pp.lineDelta = savedFile, savedLine, savedDelta
	return nil
}

func (pp *preprocessor) processLine(line []byte) error {
	line, inComment := stripComments(line, pp.inComment)
	pp.inComment = inComment
	s := trimLeftSpaceBytes(line)
	if len(s) > 0 && s[0] == '#' {
		return pp.processDirective(s)
	}
	if !pp.conds.active() {
		return nil
	}
	if len(trimSpaceBytes(s)) == 0 {
		// preserve blank lines so unexpanded output stays line-accurate
		pp.out.WriteByte('\n')
		return nil
	}
	return pp.emitText(line)
}

// processDirective handles one '#' line. Whitespace between '#' and the
// directive word is collapsed before matching.
func (pp *preprocessor) processDirective(s []byte) error {
	data := trimLeftSpaceBytes(s[1:])
	if len(data) == 0 {
		return nil // null directive
	}
	if data[0] >= '0' && data[0] <= '9' {
		return pp.handleLineMarker(data)
	}
	n := scanIdent(data)
	if n == 0 {
		if pp.conds.active() {
			return pp.pos().errorf("invalid preprocessing directive %q", s)
		}
		return nil
	}
	name := string(data[:n])
	rest := trimLeftSpaceBytes(data[n:])
	if d, ok := cppDirectives[name]; ok {
		glog.V(2).Infof("%s: #%s %q", pp.pos(), name, rest)
		return d(pp, rest)
	}
	if pp.conds.active() {
		return pp.pos().errorf("invalid preprocessing directive #%s", name)
	}
	return nil
}

type directiveFunc func(*preprocessor, []byte) error

var cppDirectives map[string]directiveFunc

func init() {
	cppDirectives = map[string]directiveFunc{
		"define":       (*preprocessor).handleDefine,
		"undef":        (*preprocessor).handleUndef,
		"ifdef":        (*preprocessor).handleIfdef,
		"ifndef":       (*preprocessor).handleIfndef,
		"if":           (*preprocessor).handleIf,
		"elif":         (*preprocessor).handleElif,
		"else":         (*preprocessor).handleElse,
		"endif":        (*preprocessor).handleEndif,
		"include":      (*preprocessor).handleInclude,
		"include_next": (*preprocessor).handleIncludeNext,
		"line":         (*preprocessor).handleLine,
		"pragma":       (*preprocessor).handlePragma,
		"error":        (*preprocessor).handleError,
		"warning":      (*preprocessor).handleWarning,
	}
}

func (pp *preprocessor) handleDefine(data []byte) error {
	if !pp.conds.active() {
		return nil
	}
	n := scanIdent(data)
	if n == 0 {
		return pp.pos().errorf("macro name missing in #define")
	}
	m := &macro{name: string(data[:n]), pos: pp.pos()}
	rest := data[n:]
	if len(rest) > 0 && rest[0] == '(' {
		m.funcLike = true
		var err error
		rest, err = pp.parseMacroParams(m, rest[1:])
		if err != nil {
			return err
		}
	}
	m.body = string(trimSpaceBytes(rest))
	pp.macros.define(m)
	return nil
}

func (pp *preprocessor) parseMacroParams(m *macro, s []byte) ([]byte, error) {
	seen := make(map[string]bool)
	for {
		s = trimLeftSpaceBytes(s)
		if len(s) == 0 {
			return nil, pp.pos().errorf("missing ')' in macro parameter list")
		}
		if s[0] == ')' {
			return s[1:], nil
		}
		if bytes.HasPrefix(s, []byte("...")) {
			m.variadic = true
			s = trimLeftSpaceBytes(s[3:])
			if len(s) == 0 || s[0] != ')' {
				return nil, pp.pos().errorf("missing ')' after '...' in macro parameter list")
			}
			return s[1:], nil
		}
		n := scanIdent(s)
		if n == 0 {
			return nil, pp.pos().errorf("invalid macro parameter list for %q", m.name)
		}
		p := string(s[:n])
		if seen[p] {
			return nil, pp.pos().errorf("duplicate macro parameter %q", p)
		}
		seen[p] = true
		m.params = append(m.params, p)
		s = trimLeftSpaceBytes(s[n:])
		if len(s) > 0 && s[0] == ',' {
			s = s[1:]
			continue
		}
		if len(s) > 0 && s[0] == ')' {
			return s[1:], nil
		}
		if len(s) == 0 {
			return nil, pp.pos().errorf("missing ')' in macro parameter list")
		}
	}
}

func (pp *preprocessor) handleUndef(data []byte) error {
	if !pp.conds.active() {
		return nil
	}
	n := scanIdent(data)
	if n == 0 {
		return pp.pos().errorf("macro name missing in #undef")
	}
	pp.macros.undef(string(data[:n]))
	return nil
}

func (pp *preprocessor) handleIfdef(data []byte) error {
	return pp.pushDefinedCond(data, false)
}

func (pp *preprocessor) handleIfndef(data []byte) error {
	return pp.pushDefinedCond(data, true)
}

func (pp *preprocessor) pushDefinedCond(data []byte, negate bool) error {
	n := scanIdent(data)
	if n == 0 && pp.conds.active() {
		return pp.pos().errorf("macro name missing after #ifdef")
	}
	cond := pp.macros.isDefined(string(data[:n]))
	if negate {
		cond = !cond
	}
	pp.conds.push(cond, pp.line)
	return nil
}

func (pp *preprocessor) handleIf(data []byte) error {
	if !pp.conds.active() {
		pp.conds.push(false, pp.line)
		return nil
	}
	cond, err := pp.evalIfExpr(data)
	if err != nil {
		return err
	}
	pp.conds.push(cond, pp.line)
	return nil
}

func (pp *preprocessor) handleElif(data []byte) error {
	err := pp.conds.elif(func() (bool, error) {
		return pp.evalIfExpr(data)
	})
	if err == errNoConditional {
		return pp.pos().errorf("#elif without #if")
	}
	return err
}

func (pp *preprocessor) handleElse(data []byte) error {
	if err := pp.conds.elseBranch(); err != nil {
		return pp.pos().errorf("#else without #if")
	}
	return nil
}

func (pp *preprocessor) handleEndif(data []byte) error {
	if err := pp.conds.pop(); err != nil {
		return pp.pos().errorf("#endif without #if")
	}
	return nil
}

// parseHeaderName splits an include operand into the name and its end
// character ('"' or '>').
func parseHeaderName(s []byte) (string, byte, bool) {
	s = trimSpaceBytes(s)
	if len(s) < 2 {
		return "", 0, false
	}
	switch s[0] {
	case '"':
		e := bytes.IndexByte(s[1:], '"')
		if e < 0 {
			return "", 0, false
		}
		return string(s[1 : 1+e]), '"', true
	case '<':
		e := bytes.IndexByte(s[1:], '>')
		if e < 0 {
			return "", 0, false
		}
		return string(s[1 : 1+e]), '>', true
	}
	return "", 0, false
}

func (pp *preprocessor) handleInclude(data []byte) error {
	return pp.include(data, false)
}

func (pp *preprocessor) handleIncludeNext(data []byte) error {
	return pp.include(data, true)
}

func (pp *preprocessor) include(data []byte, next bool) error {
	if !pp.conds.active() {
		return nil
	}
	expanded, err := pp.expandLine(data)
	if err != nil {
		return err
	}
	fname, endc, ok := parseHeaderName(expanded)
	if !ok {
		return pp.pos().errorf("malformed #include: %q", data)
	}
	cur := pp.includes[len(pp.includes)-1]
	start := 0
	if next {
		if len(pp.includes) < 2 {
			return pp.pos().errorf("#include_next outside a header")
		}
		start = cur.matchedIdx + 1
	}
	curDir := filepath.Dir(pp.file)
	path, idx, found := resolveInclude(fname, endc, curDir, pp.cfg.IncludeDirs, start, next, pp.cfg, &pp.sys)
	if !found {
		return pp.pos().errorf("%s: No such file or directory (searched: %s)",
			fname, strings.Join(searchedDirs(curDir, pp.cfg.IncludeDirs, pp.cfg, &pp.sys), ", "))
	}
	canonical := canonicalPath(path)
	if pp.onceSeen[canonical] {
		glog.V(1).Infof("%s: skipping %s (#pragma once)", pp.pos(), path)
		return nil
	}
	if len(pp.includes) >= pp.cfg.MaxIncludeDepth {
		return pp.pos().errorf("include depth limit (%d) exceeded including %q", pp.cfg.MaxIncludeDepth, fname)
	}
	if pp.onIncludeStack(canonical) {
		return pp.pos().errorf("Include cycle detected: %q", fname)
	}
	if pp.cfg.VerboseIncl {
		fmt.Fprintf(diagWriter, "%*s%s\n", len(pp.includes), "", path)
	}
	return pp.processFile(path, canonical, idx)
}

func (pp *preprocessor) handleLine(data []byte) error {
	if !pp.conds.active() {
		return nil
	}
	expanded, err := pp.expandLine(data)
	if err != nil {
		return err
	}
	expanded = trimSpaceBytes(expanded)
	i := 0
	for i < len(expanded) && expanded[i] >= '0' && expanded[i] <= '9' {
		i++
	}
	if i == 0 {
		return pp.pos().errorf("invalid line number in #line: %q", data)
	}
	n, err := strconv.Atoi(string(expanded[:i]))
	if err != nil || n < 1 {
		return pp.pos().errorf("invalid line number in #line: %q", data)
	}
	file := pp.file
	rest := trimLeftSpaceBytes(expanded[i:])
	if len(rest) >= 2 && rest[0] == '"' {
		if e := bytes.IndexByte(rest[1:], '"'); e >= 0 {
			file = string(rest[1 : 1+e])
		}
	}
	pp.lineDelta = n - (pp.line + 1)
	pp.file = file
	fmt.Fprintf(&pp.out, "# %d %q\n", n, file)
	return nil
}

// handleLineMarker accepts GCC-style `# N "file" [flags]` lines.
func (pp *preprocessor) handleLineMarker(data []byte) error {
	if !pp.conds.active() {
		return nil
	}
	i := 0
	for i < len(data) && data[i] >= '0' && data[i] <= '9' {
		i++
	}
	n, err := strconv.Atoi(string(data[:i]))
	if err != nil || n < 1 {
		return pp.pos().errorf("invalid line marker: %q", data)
	}
	rest := trimLeftSpaceBytes(data[i:])
	if len(rest) >= 2 && rest[0] == '"' {
		if e := bytes.IndexByte(rest[1:], '"'); e >= 0 {
			pp.file = string(rest[1 : 1+e])
		}
	}
	pp.lineDelta = n - (pp.line + 1)
	pp.out.WriteByte('#')
	pp.out.WriteByte(' ')
	pp.out.Write(data)
	pp.out.WriteByte('\n')
	return nil
}

func (pp *preprocessor) handlePragma(data []byte) error {
	if !pp.conds.active() {
		return nil
	}
	n := scanIdent(data)
	word := string(data[:n])
	rest := trimLeftSpaceBytes(data[n:])
	switch word {
	case "once":
		pp.onceSeen[pp.includes[len(pp.includes)-1].canonical] = true
		return nil
	case "pack":
		return pp.handlePragmaPack(rest)
	case "GCC":
		if bytes.HasPrefix(rest, []byte("system_header")) {
			pp.systemHeader = true
			return nil
		}
	}
	expanded, err := pp.expandLine(data)
	if err != nil {
		return err
	}
	pp.out.WriteString("#pragma ")
	pp.out.Write(expanded)
	pp.out.WriteByte('\n')
	return nil
}

func (pp *preprocessor) handlePragmaPack(s []byte) error {
	s = trimSpaceBytes(s)
	if len(s) < 2 || s[0] != '(' || s[len(s)-1] != ')' {
		warnNoPrefix(pp.pos(), "malformed #pragma pack: %q", s)
		return nil
	}
	inner := trimSpaceBytes(s[1 : len(s)-1])
	switch {
	case bytes.Equal(inner, []byte("pop")):
		if len(pp.packStack) == 0 {
			warnNoPrefix(pp.pos(), "#pragma pack(pop) with empty stack")
			return nil
		}
		pp.packAlign = pp.packStack[len(pp.packStack)-1]
		pp.packStack = pp.packStack[:len(pp.packStack)-1]
	case bytes.Equal(inner, []byte("push")):
		pp.packStack = append(pp.packStack, pp.packAlign)
	case bytes.HasPrefix(inner, []byte("push")):
		rest := trimLeftSpaceBytes(inner[4:])
		if len(rest) == 0 || rest[0] != ',' {
			warnNoPrefix(pp.pos(), "malformed #pragma pack: %q", s)
			return nil
		}
		n, err := strconv.ParseInt(string(trimSpaceBytes(rest[1:])), 10, 64)
		if err != nil || n < 1 {
			warnNoPrefix(pp.pos(), "invalid #pragma pack alignment: %q", s)
			return nil
		}
		pp.packStack = append(pp.packStack, pp.packAlign)
		pp.packAlign = n
	default:
		warnNoPrefix(pp.pos(), "malformed #pragma pack: %q", s)
		return nil
	}
	if pp.packHook != nil {
		pp.packHook(pp.packAlign)
	}
	return nil
}

func (pp *preprocessor) handleError(data []byte) error {
	if !pp.conds.active() {
		return nil
	}
	expanded, err := pp.expandLine(data)
	if err != nil {
		return err
	}
	return pp.pos().errorf("#error %s", trimSpaceBytes(expanded))
}

func (pp *preprocessor) handleWarning(data []byte) error {
	if !pp.conds.active() {
		return nil
	}
	expanded, err := pp.expandLine(data)
	if err != nil {
		return err
	}
	warn(pp.pos(), "#warning %s", trimSpaceBytes(expanded))
	return nil
}

// emitText macro-expands a regular line and appends it to the output.
// _Pragma operators inject "\n#pragma ...\n" into the expansion; those
// sub-lines are routed back to the directive dispatcher.
func (pp *preprocessor) emitText(line []byte) error {
	expanded, err := pp.expandLine(line)
	if err != nil {
		return err
	}
	if bytes.IndexByte(expanded, '\n') < 0 {
		pp.out.Write(expanded)
		pp.out.WriteByte('\n')
		return nil
	}
	for _, sub := range bytes.Split(expanded, []byte{'\n'}) {
		t := trimLeftSpaceBytes(sub)
		if len(t) > 0 && t[0] == '#' {
			if err := pp.processDirective(t); err != nil {
				return err
			}
			continue
		}
		if len(trimSpaceBytes(sub)) == 0 {
			continue
		}
		pp.out.Write(sub)
		pp.out.WriteByte('\n')
	}
	return nil
}
