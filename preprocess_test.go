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
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sergi/go-diff/diffmatchpatch"
)

func writeTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0777); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0666); err != nil {
		t.Fatal(err)
	}
	return path
}

// stripBlank drops empty lines and line markers so tests compare the
// meaningful output only.
func stripBlank(s string) string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		t := strings.TrimSpace(line)
		if t == "" || strings.HasPrefix(t, "# ") {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

func diffText(want, got string) string {
	dmp := diffmatchpatch.New()
	return dmp.DiffPrettyText(dmp.DiffMain(want, got, false))
}

type ppTest struct {
	name    string
	files   map[string]string
	main    string
	include []string
	defines map[string]string
	want    string
	errs    string // substring of the expected error
}

func runPPTest(t *testing.T, tc ppTest) {
	t.Helper()
	dir := t.TempDir()
	for name, content := range tc.files {
		writeTestFile(t, dir, name, content)
	}
	mainPath := writeTestFile(t, dir, "main.c", tc.main)
	cfg := NewConfig()
	for _, inc := range tc.include {
		cfg.IncludeDirs = append(cfg.IncludeDirs, filepath.Join(dir, inc))
	}
	for name, val := range tc.defines {
		cfg.Defines[name] = val
	}
	got, _, err := Preprocess(cfg, mainPath)
	if tc.errs != "" {
		if err == nil {
			t.Errorf("%s: Preprocess()=_, nil; want error containing %q", tc.name, tc.errs)
			return
		}
		if !strings.Contains(err.Error(), tc.errs) {
			t.Errorf("%s: Preprocess() error %q does not contain %q", tc.name, err, tc.errs)
		}
		return
	}
	if err != nil {
		t.Errorf("%s: Preprocess()=_, %v; want nil error", tc.name, err)
		return
	}
	if g, w := stripBlank(got), strings.TrimRight(tc.want, "\n"); g != w {
		t.Errorf("%s: preprocessed output mismatch:\n%s", tc.name, diffText(w, g))
	}
}

func TestPreprocessBasics(t *testing.T) {
	for _, tc := range []ppTest{
		{
			name: "plain text",
			main: "int x;\n",
			want: "int x;",
		},
		{
			name: "object macro",
			main: "#define N 3\nint a[N];\n",
			want: "int a[3];",
		},
		{
			name: "function macro",
			main: "#define SQ(x) ((x)*(x))\nint y = SQ(1+2);\n",
			want: "int y = ((1+2)*(1+2));",
		},
		{
			name: "nested expansion",
			main: "#define A B\n#define B 42\nint v = A;\n",
			want: "int v = 42;",
		},
		{
			name: "macros inert inside strings",
			main: "#define X 1\nchar *s = \"X\";\n",
			want: "char *s = \"X\";",
		},
		{
			name: "undef",
			main: "#define X 1\n#undef X\nint v = X;\n",
			want: "int v = X;",
		},
		{
			name: "redefinition wins",
			main: "#define X 1\n#define X 2\nint v = X;\n",
			want: "int v = 2;",
		},
		{
			name: "self-reference stays inert",
			main: "#define loop loop\nint loop;\n",
			want: "int loop;",
		},
		{
			name: "mutual recursion terminates",
			main: "#define A B\n#define B A\nint x = A;\n",
			want: "int x = A;",
		},
		{
			name: "function-like without parens is literal",
			main: "#define F(x) x\nint F;\n",
			want: "int F;",
		},
		{
			name: "comments stripped",
			main: "int a; // one\nint /* two */ b;\n",
			want: "int a; \nint   b;",
		},
		{
			name: "block comment spans lines",
			main: "int a;\n/* gone\nstill gone */\nint b;\n",
			want: "int a;\nint b;",
		},
	} {
		runPPTest(t, tc)
	}
}

func TestPreprocessStringizeAndPaste(t *testing.T) {
	for _, tc := range []ppTest{
		{
			name: "stringize",
			main: "#define STR(x) #x\nchar *s = STR(hello);\n",
			want: "char *s = \"hello\";",
		},
		{
			name: "stringize escapes quotes and backslashes",
			main: "#define STR(x) #x\nchar *s = STR(\"a\\\"b\\\\c\");\n",
			want: "char *s = \"\\\"a\\\\\\\"b\\\\\\\\c\\\"\";",
		},
		{
			name: "token paste",
			main: "#define GLUE(a, b) a ## b\nint GLUE(foo, bar) = 1;\n",
			want: "int foobar = 1;",
		},
		{
			name: "variadic with fixed arg",
			main: "#define LOG(fmt, ...) printf(fmt, __VA_ARGS__)\nLOG(\"%d\", 1);\n",
			want: "printf(\"%d\", 1);",
		},
		{
			name: "variadic joins trailing args",
			main: "#define LOG(fmt, ...) printf(fmt, __VA_ARGS__)\nLOG(\"%d %d\", 1, 2);\n",
			want: "printf(\"%d %d\", 1, 2);",
		},
		{
			name: "nested parens in arguments",
			main: "#define ID(x) x\nint v = ID(f(1, 2));\n",
			want: "int v = f(1, 2);",
		},
		{
			name: "too few arguments",
			main: "#define TWO(a, b) a b\nTWO(1);\n",
			errs: "requires 2 arguments",
		},
	} {
		runPPTest(t, tc)
	}
}

func TestPreprocessConditionals(t *testing.T) {
	for _, tc := range []ppTest{
		{
			name: "if defined chain",
			main: "#define X 1\n#define Y 1\n#if defined(X) && Y\nint yes;\n#endif\n" +
				"#undef X\n#if defined(X) && Y\nint no;\n#endif\n",
			want: "int yes;",
		},
		{
			name: "ifdef",
			main: "#ifdef NOPE\nint a;\n#else\nint b;\n#endif\n",
			want: "int b;",
		},
		{
			name: "ifndef",
			main: "#ifndef NOPE\nint a;\n#endif\n",
			want: "int a;",
		},
		{
			name: "elif chain takes first match",
			main: "#define V 2\n#if V == 1\nint one;\n#elif V == 2\nint two;\n#elif V == 2\nint again;\n#else\nint other;\n#endif\n",
			want: "int two;",
		},
		{
			name: "nested inactive blocks stay inactive",
			main: "#if 0\n#if 1\nint hidden;\n#endif\n#endif\nint seen;\n",
			want: "int seen;",
		},
		{
			name: "else of inactive if",
			main: "#if 0\nint a;\n#else\nint b;\n#endif\n",
			want: "int b;",
		},
		{
			name: "defines ignored when inactive",
			main: "#if 0\n#define X 1\n#endif\n#ifdef X\nint defined_;\n#else\nint not_defined;\n#endif\n",
			want: "int not_defined;",
		},
		{
			name: "unterminated conditional",
			main: "#if 1\nint x;\n",
			errs: "unterminated conditional",
		},
		{
			name: "endif without if",
			main: "#endif\n",
			errs: "#endif without #if",
		},
		{
			name: "elif without if",
			main: "#elif 1\n",
			errs: "#elif without #if",
		},
	} {
		runPPTest(t, tc)
	}
}

func TestPreprocessInclude(t *testing.T) {
	for _, tc := range []ppTest{
		{
			name: "include search path",
			files: map[string]string{
				"includes/val.h": "#define VAL 42\n",
			},
			include: []string{"includes"},
			main:    "#include \"val.h\"\nint v = VAL;\n",
			want:    "int v = 42;",
		},
		{
			name: "angle include",
			files: map[string]string{
				"includes/sys.h": "int from_sys;\n",
			},
			include: []string{"includes"},
			main:    "#include <sys.h>\n",
			want:    "int from_sys;",
		},
		{
			name: "quoted include prefers current dir",
			files: map[string]string{
				"hdr.h":          "int local_one;\n",
				"includes/hdr.h": "int search_one;\n",
			},
			include: []string{"includes"},
			main:    "#include \"hdr.h\"\n",
			want:    "int local_one;",
		},
		{
			name: "pragma once",
			files: map[string]string{
				"hdr.h": "#pragma once\nint a;\n",
			},
			main: "#include \"hdr.h\"\n#include \"hdr.h\"\n",
			want: "int a;",
		},
		{
			name: "include not found",
			main: "#include \"missing.h\"\n",
			errs: "No such file or directory",
		},
		{
			name: "include cycle",
			files: map[string]string{
				"a.h": "#include \"b.h\"\n",
				"b.h": "#include \"a.h\"\n",
			},
			main: "#include \"a.h\"\n",
			errs: "Include cycle detected",
		},
		{
			name: "include suppressed when inactive",
			main: "#if 0\n#include \"missing.h\"\n#endif\nint ok;\n",
			want: "int ok;",
		},
		{
			name: "include_next outside header",
			main: "#include_next \"x.h\"\n",
			errs: "#include_next outside a header",
		},
	} {
		runPPTest(t, tc)
	}
}

func TestPreprocessIncludeNext(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "first/wrap.h", "int first;\n#include_next \"wrap.h\"\n")
	writeTestFile(t, dir, "second/wrap.h", "int second;\n")
	mainPath := writeTestFile(t, dir, "main.c", "#include \"wrap.h\"\n")
	cfg := NewConfig()
	cfg.IncludeDirs = []string{filepath.Join(dir, "first"), filepath.Join(dir, "second")}
	got, _, err := Preprocess(cfg, mainPath)
	if err != nil {
		t.Fatalf("Preprocess()=_, %v; want nil error", err)
	}
	want := "int first;\nint second;"
	if g := stripBlank(got); g != want {
		t.Errorf("include_next output mismatch:\n%s", diffText(want, g))
	}
}

func TestPreprocessIncludeDepth(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "deep.h", "#include \"deep2.h\"\n")
	writeTestFile(t, dir, "deep2.h", "int bottom;\n")
	mainPath := writeTestFile(t, dir, "main.c", "#include \"deep.h\"\n")
	cfg := NewConfig()
	cfg.MaxIncludeDepth = 2
	_, _, err := Preprocess(cfg, mainPath)
	if err == nil || !strings.Contains(err.Error(), "include depth limit") {
		t.Errorf("Preprocess()=_, %v; want include depth error", err)
	}
}

func TestPreprocessBuiltins(t *testing.T) {
	for _, tc := range []ppTest{
		{
			name: "line and file",
			main: "int l = __LINE__;\n",
			want: "int l = 1;",
		},
		{
			name: "stdc",
			main: "int a = __STDC__;\nlong v = __STDC_VERSION__;\n",
			want: "int a = 1;\nlong v = 199901L;",
		},
		{
			name: "include level",
			files: map[string]string{
				"lvl.h": "int lvl = __INCLUDE_LEVEL__;\n",
			},
			main: "int top = __INCLUDE_LEVEL__;\n#include \"lvl.h\"\n",
			want: "int top = 0;\nint lvl = 1;",
		},
		{
			name: "line directive changes reporting",
			main: "#line 100\nint l = __LINE__;\n",
			want: "int l = 100;",
		},
	} {
		runPPTest(t, tc)
	}
}

func TestPreprocessCounter(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "mid.h", "int b = __COUNTER__;\n")
	mainPath := writeTestFile(t, dir, "main.c",
		"int a = __COUNTER__;\n#include \"mid.h\"\nint c = __COUNTER__;\n")
	cfg := NewConfig()
	got, _, err := Preprocess(cfg, mainPath)
	if err != nil {
		t.Fatalf("Preprocess()=_, %v; want nil error", err)
	}
	want := "int a = 0;\nint b = 1;\nint c = 2;"
	if g := stripBlank(got); g != want {
		t.Errorf("__COUNTER__ output mismatch:\n%s", diffText(want, g))
	}
}

func TestPreprocessPragma(t *testing.T) {
	for _, tc := range []ppTest{
		{
			name: "unknown pragma passes through",
			main: "#pragma GCC optimize(2)\n",
			want: "#pragma GCC optimize(2)",
		},
		{
			name: "pragma operator",
			main: "_Pragma(\"pack(push, 4)\")\nint x;\n",
			want: "int x;",
		},
		{
			name: "warning continues",
			main: "#warning something odd\nint after;\n",
			want: "int after;",
		},
		{
			name: "error fails",
			main: "#error broken here\n",
			errs: "#error broken here",
		},
		{
			name: "error suppressed when inactive",
			main: "#if 0\n#error never seen\n#endif\nint ok;\n",
			want: "int ok;",
		},
	} {
		runPPTest(t, tc)
	}
}

func TestPreprocessPragmaPack(t *testing.T) {
	dir := t.TempDir()
	mainPath := writeTestFile(t, dir, "main.c",
		"#pragma pack(push, 4)\n#pragma pack(push, 8)\n#pragma pack(pop)\nint x;\n")
	cfg := NewConfig()
	pp := newPreprocessor(cfg)
	var aligns []int64
	pp.packHook = func(n int64) { aligns = append(aligns, n) }
	if err := pp.processFile(mainPath, canonicalPath(mainPath), foundInCurrentDir); err != nil {
		t.Fatalf("processFile: %v", err)
	}
	want := []int64{4, 8, 4}
	if len(aligns) != len(want) {
		t.Fatalf("pack hook calls = %v, want %v", aligns, want)
	}
	for i := range want {
		if aligns[i] != want[i] {
			t.Errorf("pack align[%d] = %d, want %d", i, aligns[i], want[i])
		}
	}
}

func TestPreprocessIdempotent(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "includes/val.h", "#define VAL 42\nint sub = VAL;\n")
	mainPath := writeTestFile(t, dir, "main.c",
		"#define SQ(x) ((x)*(x))\nint a = SQ(2);\n#include \"includes/val.h\"\n#if VAL > 40\nint big;\n#endif\n")
	cfg := NewConfig()
	first, _, err := Preprocess(cfg, mainPath)
	if err != nil {
		t.Fatalf("first Preprocess: %v", err)
	}
	secondPath := writeTestFile(t, dir, "second.c", first)
	second, _, err := Preprocess(NewConfig(), secondPath)
	if err != nil {
		t.Fatalf("second Preprocess: %v", err)
	}
	if f, s := stripBlank(first), stripBlank(second); f != s {
		t.Errorf("preprocessing is not idempotent:\n%s", diffText(f, s))
	}
}

func TestPreprocessDependencyList(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "a.h", "int a;\n")
	writeTestFile(t, dir, "b.h", "#include \"a.h\"\n#pragma once\nint b;\n")
	mainPath := writeTestFile(t, dir, "main.c",
		"#include \"a.h\"\n#include \"b.h\"\n")
	cfg := NewConfig()
	_, deps, err := Preprocess(cfg, mainPath)
	if err != nil {
		t.Fatalf("Preprocess: %v", err)
	}
	// a.h included twice: once from main, once from b.h; it appears once
	seen := make(map[string]int)
	for _, d := range deps {
		seen[filepath.Base(d)]++
	}
	for _, name := range []string{"main.c", "a.h", "b.h"} {
		if seen[name] != 1 {
			t.Errorf("dependency %s appears %d times, want 1 (deps=%v)", name, seen[name], deps)
		}
	}
}

func TestPreprocessExpansionLimit(t *testing.T) {
	dir := t.TempDir()
	mainPath := writeTestFile(t, dir, "main.c",
		"#define A(x) x x x x x x x x\nint v = A(A(A(A(verylongtokenhere))));\n")
	cfg := NewConfig()
	cfg.MaxExpandSize = 256
	_, _, err := Preprocess(cfg, mainPath)
	if err == nil || !strings.Contains(err.Error(), "size limit") {
		t.Errorf("Preprocess()=_, %v; want expansion size error", err)
	}
}

func TestPreprocessLineMarkers(t *testing.T) {
	dir := t.TempDir()
	mainPath := writeTestFile(t, dir, "main.c",
		"#line 50 \"other.c\"\nint l = __LINE__;\nchar *f = __FILE__;\n")
	cfg := NewConfig()
	got, _, err := Preprocess(cfg, mainPath)
	if err != nil {
		t.Fatalf("Preprocess: %v", err)
	}
	if !strings.Contains(got, "# 50 \"other.c\"") {
		t.Errorf("output lost the #line marker:\n%s", got)
	}
	if !strings.Contains(got, "int l = 50;") {
		t.Errorf("__LINE__ did not honor #line:\n%s", got)
	}
	if !strings.Contains(got, "char *f = \"other.c\";") {
		t.Errorf("__FILE__ did not honor #line:\n%s", got)
	}
}
