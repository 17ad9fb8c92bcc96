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

// macro is one #define entry. funcLike distinguishes "#define F(x)" from
// "#define F (x)"; a variadic macro declared its last parameter as "...",
// and __VA_ARGS__ then names the trailing arguments.
type macro struct {
	name     string
	params   []string
	funcLike bool
	variadic bool
	body     string
	pos      srcpos
}

// macroTable holds at most one macro per name. The table itself is
// read-only during expansion; the set of macros currently being expanded
// travels with the expansion recursion instead (see expand.go).
type macroTable struct {
	m map[string]*macro
}

func newMacroTable() *macroTable {
	return &macroTable{m: make(map[string]*macro)}
}

func (t *macroTable) define(m *macro) {
	if old, ok := t.m[m.name]; ok {
		if old.body != m.body {
			warn(m.pos, "%q redefined", m.name)
		}
	}
	glog.V(2).Infof("define %s(%v)=%q", m.name, m.params, m.body)
	t.m[m.name] = m
}

// undef removes a name. Removing an absent name is a no-op.
func (t *macroTable) undef(name string) {
	delete(t.m, name)
}

func (t *macroTable) lookup(name string) (*macro, bool) {
	m, ok := t.m[name]
	return m, ok
}

// builtinMacros always report as defined even when absent from the table.
var builtinMacros = map[string]bool{
	"__FILE__":          true,
	"__LINE__":          true,
	"__DATE__":          true,
	"__TIME__":          true,
	"__STDC__":          true,
	"__STDC_VERSION__":  true,
	"__func__":          true,
	"__COUNTER__":       true,
	"__BASE_FILE__":     true,
	"__INCLUDE_LEVEL__": true,
	"offsetof":          true,
}

// isDefined implements the `defined` operator: table entries and the
// reserved builtin names both count.
func (t *macroTable) isDefined(name string) bool {
	if _, ok := t.m[name]; ok {
		return true
	}
	return builtinMacros[name]
}
