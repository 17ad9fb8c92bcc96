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
	"fmt"
	"os"

	"github.com/golang/glog"
)

// sourceFile is one loaded file: the owning text buffer and views into
// it, one per logical line. CRs are stripped and backslash-newline
// continuations joined before splitting.
type sourceFile struct {
	path  string
	text  []byte
	lines [][]byte
}

func loadFile(path string) (*sourceFile, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %v", path, err)
	}
	buf = joinContinuations(buf)
	f := &sourceFile{
		path:  path,
		text:  buf,
		lines: splitLines(buf),
	}
	glog.V(2).Infof("loaded %s: %d lines", path, len(f.lines))
	return f, nil
}

// includeFrame is one entry on the include stack.
type includeFrame struct {
	canonical  string // symlink-resolved absolute path
	matchedIdx int    // search-path index this file was found at
	prevSysHdr bool   // system_header flag to restore on pop
}

// pushInclude registers a file: stacks a frame, records the dependency
// (deduplicated by canonical path), and resets the system-header flag
// for the new file. The first push also pins __BASE_FILE__.
func (pp *preprocessor) pushInclude(canonical string, matchedIdx int) {
	pp.includes = append(pp.includes, includeFrame{
		canonical:  canonical,
		matchedIdx: matchedIdx,
		prevSysHdr: pp.systemHeader,
	})
	pp.systemHeader = false
	if pp.baseFile == "" {
		pp.baseFile = canonical
	}
	if !pp.depSeen[canonical] {
		pp.depSeen[canonical] = true
		pp.deps = append(pp.deps, canonical)
	}
}

func (pp *preprocessor) popInclude() {
	fr := pp.includes[len(pp.includes)-1]
	pp.includes = pp.includes[:len(pp.includes)-1]
	pp.systemHeader = fr.prevSysHdr
}

// onIncludeStack reports whether canonical is already being processed.
func (pp *preprocessor) onIncludeStack(canonical string) bool {
	for i := range pp.includes {
		if pp.includes[i].canonical == canonical {
			return true
		}
	}
	return false
}
