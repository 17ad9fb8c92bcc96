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
	"reflect"
	"testing"
)

func TestJoinContinuations(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want string
	}{
		{
			in:   "int x;\n",
			want: "int x;\n",
		},
		{
			in:   "a\\\nb\n",
			want: "ab\n",
		},
		{
			in:   "a\\\r\nb\r\n",
			want: "ab\n",
		},
		{
			in:   "line\r\n",
			want: "line\n",
		},
		{
			in:   "tail\\",
			want: "tail\\",
		},
		{
			// the second backslash splices the newline; the first
			// survives as a literal
			in:   "a\\\\\nb",
			want: "a\\b",
		},
	} {
		got := string(joinContinuations([]byte(tc.in)))
		if got != tc.want {
			t.Errorf("joinContinuations(%q)=%q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSplitLines(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want []string
	}{
		{
			in:   "a\nb\n",
			want: []string{"a", "b"},
		},
		{
			in:   "a\nb",
			want: []string{"a", "b"},
		},
		{
			in:   "",
			want: nil,
		},
		{
			in:   "\n\n",
			want: []string{"", ""},
		},
	} {
		var got []string
		for _, l := range splitLines([]byte(tc.in)) {
			got = append(got, string(l))
		}
		if !reflect.DeepEqual(got, tc.want) {
			t.Errorf("splitLines(%q)=%q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestStripComments(t *testing.T) {
	for _, tc := range []struct {
		in        string
		inComment bool
		want      string
		stillIn   bool
	}{
		{
			in:   "int x; // trailing",
			want: "int x; ",
		},
		{
			in:   "a /* b */ c",
			want: "a   c",
		},
		{
			in:      "before /* spans",
			want:    "before ",
			stillIn: true,
		},
		{
			in:        "still in */ after",
			inComment: true,
			want:      "  after",
		},
		{
			in:        "nothing closes here",
			inComment: true,
			want:      "",
			stillIn:   true,
		},
		{
			in:   `s = "/* not a comment */";`,
			want: `s = "/* not a comment */";`,
		},
		{
			in:   `c = '/'; d = '*'; // x`,
			want: `c = '/'; d = '*'; `,
		},
		{
			in:   `s = "a\"b // c";`,
			want: `s = "a\"b // c";`,
		},
	} {
		got, stillIn := stripComments([]byte(tc.in), tc.inComment)
		if string(got) != tc.want || stillIn != tc.stillIn {
			t.Errorf("stripComments(%q, %v)=%q,%v; want %q,%v",
				tc.in, tc.inComment, got, stillIn, tc.want, tc.stillIn)
		}
	}
}

func TestScanIdent(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want int
	}{
		{in: "foo_bar1 baz", want: 8},
		{in: "_x", want: 2},
		{in: "1abc", want: 0},
		{in: "", want: 0},
		{in: "+x", want: 0},
	} {
		if got := scanIdent([]byte(tc.in)); got != tc.want {
			t.Errorf("scanIdent(%q)=%d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestSkipQuoted(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want int
	}{
		{in: `"abc" x`, want: 5},
		{in: `"a\"b" x`, want: 6},
		{in: `'c' x`, want: 3},
		{in: `"unterminated`, want: 13},
	} {
		if got := skipQuoted([]byte(tc.in), 0); got != tc.want {
			t.Errorf("skipQuoted(%q)=%d, want %d", tc.in, got, tc.want)
		}
	}
}
