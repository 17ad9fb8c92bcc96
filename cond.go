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
)

// condFrame is one entry on the #if stack.
type condFrame struct {
	parentActive bool // the stack was fully taking when this frame was pushed
	taking       bool // this branch is currently emitting
	taken        bool // some prior branch of this chain matched
	originLine   int  // line of the opening #if, for diagnostics
}

type condStack struct {
	frames []condFrame
}

// active reports whether every frame is taking.
func (cs *condStack) active() bool {
	for i := range cs.frames {
		if !cs.frames[i].taking {
			return false
		}
	}
	return true
}

func (cs *condStack) depth() int { return len(cs.frames) }

func (cs *condStack) push(cond bool, line int) {
	parent := cs.active()
	cs.frames = append(cs.frames, condFrame{
		parentActive: parent,
		taking:       parent && cond,
		taken:        parent && cond,
		originLine:   line,
	})
}

var errNoConditional = errors.New("no matching #if")

// elif re-evaluates the top frame. cond is only consulted when the frame
// may still activate; callers evaluate the expression lazily for that
// reason (a false parent suppresses evaluation entirely).
func (cs *condStack) elif(cond func() (bool, error)) error {
	if len(cs.frames) == 0 {
		return errNoConditional
	}
	f := &cs.frames[len(cs.frames)-1]
	if !f.parentActive {
		f.taking = false
		return nil
	}
	if f.taken {
		f.taking = false
		return nil
	}
	c, err := cond()
	if err != nil {
		return err
	}
	if c {
		f.taking = true
		f.taken = true
	}
	return nil
}

func (cs *condStack) elseBranch() error {
	return cs.elif(func() (bool, error) { return true, nil })
}

func (cs *condStack) pop() error {
	if len(cs.frames) == 0 {
		return errNoConditional
	}
	cs.frames = cs.frames[:len(cs.frames)-1]
	return nil
}
