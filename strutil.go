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

	"github.com/golang/glog"
)

var wsbytes = [256]bool{' ': true, '\t': true, '\n': true, '\r': true, '\v': true, '\f': true}

func isWhitespace(ch byte) bool {
	return wsbytes[ch]
}

func trimLeftSpaceBytes(s []byte) []byte {
	for i := 0; i < len(s); i++ {
		if !wsbytes[s[i]] {
			return s[i:]
		}
	}
	return nil
}

func trimRightSpaceBytes(s []byte) []byte {
	for i := len(s) - 1; i >= 0; i-- {
		if !wsbytes[s[i]] {
			return s[:i+1]
		}
	}
	return nil
}

func trimSpaceBytes(s []byte) []byte {
	s = trimLeftSpaceBytes(s)
	return trimRightSpaceBytes(s)
}

func isIdentStart(ch byte) bool {
	return ch == '_' || ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z'
}

func isIdentChar(ch byte) bool {
	return isIdentStart(ch) || ch >= '0' && ch <= '9'
}

// scanIdent returns the length of the identifier at the start of s,
// or 0 if s does not start with one.
func scanIdent(s []byte) int {
	if len(s) == 0 || !isIdentStart(s[0]) {
		return 0
	}
	i := 1
	for i < len(s) && isIdentChar(s[i]) {
		i++
	}
	return i
}

// skipQuoted returns the index just past the string or character literal
// whose opening quote is at s[i]. Backslash escapes are honored. An
// unterminated literal consumes the rest of the line.
func skipQuoted(s []byte, i int) int {
	q := s[i]
	i++
	for i < len(s) {
		if s[i] == '\\' && i+1 < len(s) {
			i += 2
			continue
		}
		if s[i] == q {
			return i + 1
		}
		i++
	}
	return i
}

// joinContinuations drops every '\r' and deletes each backslash-newline
// pair, turning continued lines into one logical line. The input buffer
// is rewritten in place.
func joinContinuations(buf []byte) []byte {
	w := 0
	for i := 0; i < len(buf); i++ {
		ch := buf[i]
		if ch == '\r' {
			continue
		}
		if ch == '\\' {
			j := i + 1
			for j < len(buf) && buf[j] == '\r' {
				j++
			}
			if j < len(buf) && buf[j] == '\n' {
				i = j
				continue
			}
		}
		buf[w] = ch
		w++
	}
	return buf[:w]
}

// splitLines splits buf on '\n'. A trailing empty line is elided.
func splitLines(buf []byte) [][]byte {
	var lines [][]byte
	start := 0
	for i := 0; i < len(buf); i++ {
		if buf[i] == '\n' {
			lines = append(lines, buf[start:i])
			start = i + 1
		}
	}
	if start < len(buf) {
		lines = append(lines, buf[start:])
	}
	return lines
}

// stripComments removes C and C++ comments from one logical line,
// preserving the contents of string and character literals. inComment is
// true when a previous line opened a block comment that has not closed;
// the returned flag reports the state after this line.
func stripComments(line []byte, inComment bool) ([]byte, bool) {
	var out []byte
	i := 0
	if inComment {
		e := bytes.Index(line, []byte("*/"))
		if e < 0 {
			return nil, true
		}
		// comment text is replaced by a single space
		out = append(out, ' ')
		i = e + 2
		inComment = false
	}
	for i < len(line) {
		ch := line[i]
		if ch == '"' || ch == '\'' {
			e := skipQuoted(line, i)
			out = append(out, line[i:e]...)
			i = e
			continue
		}
		if ch == '/' && i+1 < len(line) {
			if line[i+1] == '/' {
				break
			}
			if line[i+1] == '*' {
				e := bytes.Index(line[i+2:], []byte("*/"))
				if e < 0 {
					glog.V(3).Infof("block comment spans lines: %q", line)
					return out, true
				}
				out = append(out, ' ')
				i += 2 + e + 2
				continue
			}
		}
		out = append(out, ch)
		i++
	}
	return out, inComment
}
