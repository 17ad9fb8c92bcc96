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

const (
	defaultMaxIncludeDepth = 20
	defaultMaxMacroDepth   = 4096
)

// Config carries one compilation's resolved options. The zero value is
// not usable; call NewConfig.
type Config struct {
	IncludeDirs []string          // -I and VCPATH/CPATH roots, in order
	Defines     map[string]string // -D name[=value]
	Undefs      []string          // -U

	X64          bool // --x86-64
	IntelSyntax  bool // --intel-syntax
	InternalLibc bool // --internal-libc
	LibcDir      string
	Sysroot      string
	SysInclude   string // VC_SYSINCLUDE override

	OptLevel int
	NoCprop  bool
	NoInline bool

	PreprocessOnly bool // -E
	AssemblyOnly   bool // -S
	CompileOnly    bool // -c
	Output         string

	DepFile     string // -M / -MD target
	DepOnly     bool   // -M: stop after writing deps
	DumpIR      bool
	DumpAsm     bool
	VerboseIncl bool
	Stats       bool

	LinkLibs []string // -l
	LibDirs  []string // -L

	MaxIncludeDepth int
	MaxExpandSize   int // bytes of expanded output per line; 0 = unlimited
	MaxMacroDepth   int
}

func NewConfig() *Config {
	return &Config{
		Defines:         make(map[string]string),
		MaxIncludeDepth: defaultMaxIncludeDepth,
		MaxMacroDepth:   defaultMaxMacroDepth,
	}
}

// ptrSize is the target pointer width in bytes.
func (c *Config) ptrSize() int {
	if c.X64 {
		return 8
	}
	return 4
}

// stackStride is the per-slot stack frame stride for the target.
func (c *Config) stackStride() int64 {
	if c.X64 {
		return 8
	}
	return 4
}
