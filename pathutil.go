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

	"github.com/golang/glog"
)

// foundInCurrentDir is the matched index reported when a quoted include
// resolves against the including file's directory. include_next restarts
// at matchedIndex+1, so -1 makes it restart at the first -I root.
const foundInCurrentDir = -1

// multiarch triples probed under /usr/include, most specific first.
var multiarchTriples = []string{
	"x86_64-linux-gnu",
	"i386-linux-gnu",
	"i686-linux-gnu",
}

// sysIncCache lazily probes the host system include directories once per
// preprocessor context.
type sysIncCache struct {
	probed bool
	dirs   []string
}

func (c *sysIncCache) systemDirs(cfg *Config) []string {
	if c.probed {
		return c.dirs
	}
	c.probed = true
	if cfg.InternalLibc {
		dir := cfg.LibcDir
		if dir == "" {
			dir = "libc/include"
		}
		c.dirs = []string{dir}
		return c.dirs
	}
	if cfg.SysInclude != "" {
		c.dirs = filepath.SplitList(cfg.SysInclude)
		return c.dirs
	}
	root := cfg.Sysroot
	add := func(dir string) {
		dir = filepath.Join(root, dir)
		if exists(dir) {
			c.dirs = append(c.dirs, dir)
		}
	}
	add("/usr/local/include")
	for _, triple := range multiarchTriples {
		dir := filepath.Join(root, "/usr/include", triple)
		if exists(dir) {
			c.dirs = append(c.dirs, dir)
			break
		}
	}
	add("/usr/include")
	glog.V(1).Infof("system include dirs: %v", c.dirs)
	return c.dirs
}

// resolveInclude locates an include file. endc is '"' for quoted and '>'
// for angle includes. start is the first index of dirs to consider;
// include_next passes the including file's matched index + 1 and sets
// skipCurDir. The returned index is foundInCurrentDir, an index into
// dirs, or len(dirs)+i for the i'th system directory.
func resolveInclude(fname string, endc byte, curDir string, dirs []string, start int, skipCurDir bool, cfg *Config, cache *sysIncCache) (string, int, bool) {
	if start < 0 {
		start = 0
	}
	if endc == '"' && !skipCurDir && curDir != "" {
		p := filepath.Join(curDir, fname)
		if exists(p) {
			return p, foundInCurrentDir, true
		}
	}
	for i := start; i < len(dirs); i++ {
		p := filepath.Join(dirs[i], fname)
		if exists(p) {
			return p, i, true
		}
	}
	sys := cache.systemDirs(cfg)
	sysStart := 0
	if start > len(dirs) {
		sysStart = start - len(dirs)
	}
	if endc == '>' {
		for i := sysStart; i < len(sys); i++ {
			p := filepath.Join(sys[i], fname)
			if exists(p) {
				return p, len(dirs) + i, true
			}
		}
		return "", 0, false
	}
	// quoted, nothing matched yet: working directory, then the system list
	if !skipCurDir && exists(fname) {
		return fname, foundInCurrentDir, true
	}
	for i := sysStart; i < len(sys); i++ {
		p := filepath.Join(sys[i], fname)
		if exists(p) {
			return p, len(dirs) + i, true
		}
	}
	return "", 0, false
}

// searchedDirs lists every directory an include directive would have
// consulted, for not-found diagnostics.
func searchedDirs(curDir string, dirs []string, cfg *Config, cache *sysIncCache) []string {
	var all []string
	if curDir != "" {
		all = append(all, curDir)
	}
	all = append(all, dirs...)
	all = append(all, cache.systemDirs(cfg)...)
	return all
}

// canonicalPath resolves path to an absolute, symlink-free form used for
// file identity (#pragma once, cycle detection, dependency dedup).
func canonicalPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return abs
	}
	return resolved
}

func exists(filename string) bool {
	_, err := os.Stat(filename)
	return !os.IsNotExist(err)
}
