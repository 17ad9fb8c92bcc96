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
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/golang/glog"
)

// CompileFile drives one translation unit: preprocess, parse, lower,
// optimize, allocate, emit, then assemble unless an earlier stop was
// requested. It returns the object (or assembly/preprocessed) path it
// produced.
func CompileFile(cfg *Config, path string) (string, error) {
	t0 := phaseBegin("preprocess")
	text, deps, err := Preprocess(cfg, path)
	phaseEnd("preprocess", t0)
	if err != nil {
		return "", err
	}
	if cfg.DepFile != "" || cfg.DepOnly {
		if err := writeDepFile(cfg, path, deps); err != nil {
			return "", err
		}
		if cfg.DepOnly {
			return "", nil
		}
	}
	if cfg.PreprocessOnly {
		return "", writeOutput(cfg, path, ".i", text, true)
	}

	t0 = phaseBegin("parse")
	prog, err := parseProgram(cfg, text, path)
	phaseEnd("parse", t0)
	if err != nil {
		return "", err
	}

	t0 = phaseBegin("lower")
	funcs, err := lowerProgram(cfg, prog)
	phaseEnd("lower", t0)
	if err != nil {
		return "", err
	}

	t0 = phaseBegin("optimize")
	if cfg.OptLevel > 0 {
		optimize(cfg, funcs)
	}
	phaseEnd("optimize", t0)
	if cfg.DumpIR {
		buf := newXbuf()
		for _, fn := range funcs {
			fmt.Fprintf(buf, "; %s\n", fn.name)
			fn.b.dump(buf)
		}
		fmt.Fprint(diagWriter, buf.String())
		buf.release()
	}

	t0 = phaseBegin("emit")
	asm, err := EmitProgram(cfg, prog, funcs)
	phaseEnd("emit", t0)
	if err != nil {
		return "", err
	}
	if cfg.DumpAsm {
		fmt.Fprint(diagWriter, asm)
	}
	if cfg.AssemblyOnly {
		out := outputPath(cfg, path, ".s")
		return out, os.WriteFile(out, []byte(asm), 0666)
	}

	t0 = phaseBegin("assemble")
	obj, err := assemble(cfg, path, asm)
	phaseEnd("assemble", t0)
	return obj, err
}

// Build compiles every source file and links the objects unless -c/-S/-E
// stopped earlier.
func Build(cfg *Config, paths []string) error {
	var objs []string
	for _, path := range paths {
		out, err := CompileFile(cfg, path)
		if err != nil {
			return err
		}
		if out != "" {
			objs = append(objs, out)
		}
	}
	if cfg.PreprocessOnly || cfg.AssemblyOnly || cfg.CompileOnly || cfg.DepOnly {
		return nil
	}
	return link(cfg, objs)
}

func outputPath(cfg *Config, src, ext string) string {
	if cfg.Output != "" && (cfg.AssemblyOnly || cfg.CompileOnly) {
		return cfg.Output
	}
	base := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	return base + ext
}

// writeOutput writes text to -o, or stdout when no output was named.
// A short write to a closed pipe fails the run.
func writeOutput(cfg *Config, src, ext, text string, stdoutDefault bool) error {
	if cfg.Output == "" && stdoutDefault {
		_, err := os.Stdout.WriteString(text)
		if err != nil && errors.Is(err, syscall.EPIPE) {
			return fmt.Errorf("%s: broken pipe writing preprocessed output", src)
		}
		return err
	}
	out := cfg.Output
	if out == "" {
		out = outputPath(cfg, src, ext)
	}
	return os.WriteFile(out, []byte(text), 0666)
}

// writeDepFile emits `target: source header...` with spaces escaped.
func writeDepFile(cfg *Config, src string, deps []string) error {
	target := outputPath(cfg, src, ".o")
	buf := newXbuf()
	defer buf.release()
	buf.WriteString(depEscape(target))
	buf.WriteByte(':')
	for _, d := range deps {
		buf.WriteByte(' ')
		buf.WriteString(depEscape(d))
	}
	buf.WriteByte('\n')
	out := cfg.DepFile
	if out == "" {
		_, err := os.Stdout.Write(buf.Bytes())
		return err
	}
	return os.WriteFile(out, buf.Bytes(), 0666)
}

func depEscape(s string) string {
	return strings.ReplaceAll(s, " ", "\\ ")
}

// assemble writes the assembly next to the object and spawns the
// external assembler.
func assemble(cfg *Config, src, asm string) (string, error) {
	obj := outputPath(cfg, src, ".o")
	asmPath := strings.TrimSuffix(obj, ".o") + ".s"
	if err := os.WriteFile(asmPath, []byte(asm), 0666); err != nil {
		return "", err
	}
	var tool string
	var args []string
	if cfg.IntelSyntax {
		tool = "nasm"
		format := "elf32"
		if cfg.X64 {
			format = "elf64"
		}
		args = []string{"-f", format, "-o", obj, asmPath}
	} else {
		tool = "as"
		width := "--32"
		if cfg.X64 {
			width = "--64"
		}
		args = []string{width, "-o", obj, asmPath}
	}
	if err := runTool(tool, args); err != nil {
		return "", err
	}
	if !cfg.CompileOnly {
		defer os.Remove(asmPath)
	}
	return obj, nil
}

// link spawns the system linker driver over the objects, optionally
// against the bundled libc archive.
func link(cfg *Config, objs []string) error {
	if len(objs) == 0 {
		return errors.New("no input files to link")
	}
	out := cfg.Output
	if out == "" {
		out = "a.out"
	}
	args := []string{"-o", out}
	if !cfg.X64 {
		args = append(args, "-m32")
	}
	args = append(args, objs...)
	for _, dir := range cfg.LibDirs {
		args = append(args, "-L"+dir)
	}
	if cfg.InternalLibc {
		dir := cfg.LibcDir
		if dir == "" {
			dir = "libc"
		}
		args = append(args, "-nostdlib", filepath.Join(dir, "libc.a"))
	}
	for _, lib := range cfg.LinkLibs {
		args = append(args, "-l"+lib)
	}
	return runTool("cc", args)
}

func runTool(tool string, args []string) error {
	glog.V(1).Infof("run %s %v", tool, args)
	cmd := exec.Command(tool, args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	cmd.Stdout = os.Stdout
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return fmt.Errorf("%s: %v: %s", tool, err, msg)
		}
		return fmt.Errorf("%s: %v", tool, err)
	}
	return nil
}
