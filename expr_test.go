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

func newTestPP(t *testing.T) *preprocessor {
	t.Helper()
	pp := newPreprocessor(NewConfig())
	pp.pushInclude("/test/main.c", foundInCurrentDir)
	pp.file = "main.c"
	pp.line = 1
	return pp
}

func TestEvalIfExpr(t *testing.T) {
	for _, tc := range []struct {
		in      string
		defines map[string]string
		want    bool
		isErr   bool
	}{
		{in: "1", want: true},
		{in: "0", want: false},
		{in: "3 + 4", want: true},
		{in: "3 - 3", want: false},
		{in: "2 * 3 == 6", want: true},
		{in: "7 / 2 == 3", want: true},
		{in: "7 % 2 == 1", want: true},

		// division and modulus by zero yield 0, no trap
		{in: "1 / 0", want: false},
		{in: "1 % 0", want: false},
		{in: "1 / 0 == 0", want: true},

		// shift counts clamp to 0..63
		{in: "(1 << 64) == (1 << 63)", want: true},
		{in: "(1 << -5) == 1", want: true},
		{in: "(-8 >> 100) == (-8 >> 63)", want: true},

		// precedence and grouping
		{in: "1 + 2 * 3 == 7", want: true},
		{in: "(1 + 2) * 3 == 9", want: true},
		{in: "1 | 2 & 3", want: true},
		{in: "1 ^ 1", want: false},
		{in: "!0", want: true},
		{in: "~0 == -1", want: true},
		{in: "-(-5) == 5", want: true},
		{in: "1 ? 2 : 3", want: true},
		{in: "0 ? 0 : 5", want: true},
		{in: "1 < 2 && 2 <= 2 && 3 > 2 && 3 >= 3", want: true},
		{in: "1 != 1 || 2 == 2", want: true},

		// literals
		{in: "0x10 == 16", want: true},
		{in: "010 == 8", want: true},
		{in: "42u == 42", want: true},
		{in: "42ul == 42", want: true},
		{in: "'A' == 65", want: true},
		{in: "'\\n' == 10", want: true},
		{in: "'\\x41' == 65", want: true},
		{in: "'\\101' == 65", want: true},

		// strtoll overflow saturates
		{in: "99999999999999999999999 == 9223372036854775807", want: true},

		// unknown identifiers evaluate to 0
		{in: "not_defined_anywhere", want: false},
		{in: "bogus + 1", want: true},

		// defined operator
		{in: "defined(FOO)", defines: map[string]string{"FOO": "1"}, want: true},
		{in: "defined FOO", defines: map[string]string{"FOO": "1"}, want: true},
		{in: "defined(FOO)", want: false},
		{in: "defined(__FILE__)", want: true},
		{in: "defined(offsetof)", want: true},
		{in: "defined(FOO) && FOO == 2", defines: map[string]string{"FOO": "2"}, want: true},

		// macro expansion inside the expression
		{in: "VAL > 40", defines: map[string]string{"VAL": "42"}, want: true},

		{in: "defined()", isErr: true},
		{in: "(1 + 2", isErr: true},
		{in: "1 +", isErr: true},
	} {
		pp := newTestPP(t)
		for name, val := range tc.defines {
			pp.macros.define(&macro{name: name, body: val})
		}
		got, err := pp.evalIfExpr([]byte(tc.in))
		if tc.isErr {
			if err == nil {
				t.Errorf("evalIfExpr(%q)=_, nil; want error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("evalIfExpr(%q)=_, %v; want nil error", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("evalIfExpr(%q)=%v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestEvalIfExprHasInclude(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "present.h", "")
	pp := newTestPP(t)
	pp.cfg.IncludeDirs = []string{dir}

	for _, tc := range []struct {
		in   string
		want bool
	}{
		{in: `__has_include(<present.h>)`, want: true},
		{in: `__has_include("present.h")`, want: true},
		{in: `__has_include(<absent.h>)`, want: false},
		{in: `!__has_include(<absent.h>)`, want: true},
	} {
		got, err := pp.evalIfExpr([]byte(tc.in))
		if err != nil {
			t.Errorf("evalIfExpr(%q)=_, %v; want nil error", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("evalIfExpr(%q)=%v, want %v", tc.in, got, tc.want)
		}
	}
}
