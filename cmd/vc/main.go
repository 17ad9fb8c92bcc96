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

package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang/glog"
	"github.com/splanck/vc"
)

type listFlag []string

func (l *listFlag) String() string { return strings.Join(*l, ",") }

func (l *listFlag) Set(v string) error {
	*l = append(*l, v)
	return nil
}

var (
	includeDirs  listFlag
	defines      listFlag
	undefs       listFlag
	libDirs      listFlag
	linkLibs     listFlag
	preprocess   bool
	assemblyOnly bool
	compileOnly  bool
	output       string
	x64          bool
	intelSyntax  bool
	internalLibc bool
	sysroot      string
	depsOnly     bool
	depsFile     string
	optLevel     int
	noCprop      bool
	noInline     bool
	debugFlag    bool
	emitDwarf    bool
	dumpIR       bool
	dumpAsm      bool
	verboseIncl  bool
	maxIncDepth  int
	stdFlag      string
	statsFlag    bool
)

func parseFlags() {
	flag.Var(&includeDirs, "I", "add `dir` to the include search path")
	flag.Var(&defines, "D", "define macro `name[=value]`")
	flag.Var(&undefs, "U", "undefine macro `name`")
	flag.Var(&libDirs, "L", "add `dir` to the library search path")
	flag.Var(&linkLibs, "l", "link against `lib`")
	flag.BoolVar(&preprocess, "E", false, "preprocess only")
	flag.BoolVar(&assemblyOnly, "S", false, "stop after generating assembly")
	flag.BoolVar(&compileOnly, "c", false, "compile and assemble, do not link")
	flag.StringVar(&output, "o", "", "write output to `file`")
	flag.BoolVar(&x64, "x86-64", false, "generate 64-bit code")
	flag.BoolVar(&intelSyntax, "intel-syntax", false, "emit Intel (NASM) syntax")
	flag.BoolVar(&internalLibc, "internal-libc", false, "link against the bundled libc")
	flag.StringVar(&sysroot, "sysroot", "", "prepend `dir` to the system include roots")
	flag.BoolVar(&depsOnly, "M", false, "write a dependency rule and stop")
	flag.StringVar(&depsFile, "MD", "", "write a dependency rule to `file` while compiling")
	flag.IntVar(&optLevel, "O", 1, "optimization level (0 disables all passes)")
	flag.BoolVar(&noCprop, "no-cprop", false, "disable constant propagation")
	flag.BoolVar(&noInline, "no-inline", false, "disable inlining")
	flag.BoolVar(&debugFlag, "debug", false, "keep intermediate files")
	flag.BoolVar(&emitDwarf, "emit-dwarf", false, "emit DWARF line info (unimplemented)")
	flag.BoolVar(&dumpIR, "dump-ir", false, "dump the IR after optimization")
	flag.BoolVar(&dumpAsm, "dump-asm", false, "dump the generated assembly")
	flag.BoolVar(&verboseIncl, "verbose-includes", false, "trace include resolution")
	flag.IntVar(&maxIncDepth, "fmax-include-depth", 0, "maximum include nesting `depth`")
	flag.StringVar(&stdFlag, "std", "c99", "language standard (accepted and ignored beyond c99)")
	flag.BoolVar(&statsFlag, "stats", false, "print per-phase statistics")
	flag.Parse()
}

// prependEnvFlags splices $VCFLAGS in front of the command-line
// arguments before parsing.
func prependEnvFlags() {
	extra := os.Getenv("VCFLAGS")
	if extra == "" {
		return
	}
	var args []string
	args = append(args, os.Args[0])
	args = append(args, strings.Fields(extra)...)
	args = append(args, os.Args[1:]...)
	os.Args = args
}

// envIncludeDirs collects include roots from the environment, in the
// order the preprocessor should search them.
func envIncludeDirs() []string {
	var dirs []string
	for _, name := range []string{"VCPATH", "VCINC", "CPATH", "C_INCLUDE_PATH"} {
		v := os.Getenv(name)
		if v == "" {
			continue
		}
		for _, dir := range filepath.SplitList(v) {
			if dir != "" {
				dirs = append(dirs, dir)
			}
		}
	}
	return dirs
}

func main() {
	prependEnvFlags()
	parseFlags()
	defer glog.Flush()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "vc: no input files")
		os.Exit(2)
	}

	cfg := vc.NewConfig()
	cfg.IncludeDirs = append([]string(includeDirs), envIncludeDirs()...)
	for _, d := range defines {
		name, val := d, "1"
		if i := strings.IndexByte(d, '='); i >= 0 {
			name, val = d[:i], d[i+1:]
		}
		cfg.Defines[name] = val
	}
	cfg.Undefs = undefs
	cfg.LibDirs = libDirs
	cfg.LinkLibs = linkLibs
	cfg.PreprocessOnly = preprocess
	cfg.AssemblyOnly = assemblyOnly
	cfg.CompileOnly = compileOnly
	cfg.Output = output
	cfg.X64 = x64
	cfg.IntelSyntax = intelSyntax
	cfg.InternalLibc = internalLibc
	cfg.Sysroot = sysroot
	cfg.SysInclude = os.Getenv("VC_SYSINCLUDE")
	cfg.DepOnly = depsOnly
	cfg.DepFile = depsFile
	cfg.OptLevel = optLevel
	cfg.NoCprop = noCprop
	cfg.NoInline = noInline
	cfg.DumpIR = dumpIR
	cfg.DumpAsm = dumpAsm
	cfg.VerboseIncl = verboseIncl
	cfg.Stats = statsFlag
	if maxIncDepth > 0 {
		cfg.MaxIncludeDepth = maxIncDepth
	}

	if err := vc.Build(cfg, flag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "vc: %v\n", err)
		os.Exit(1)
	}
	if statsFlag {
		vc.DumpStats(os.Stderr)
	}
}
