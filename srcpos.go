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
)

type srcpos struct {
	filename string
	lineno   int
}

func (p srcpos) String() string {
	return fmt.Sprintf("%s:%d", p.filename, p.lineno)
}

type evalError struct {
	pos srcpos
	err error
}

func (e evalError) Error() string {
	return fmt.Sprintf("%s: %v", e.pos, e.err)
}

func (e evalError) Unwrap() error { return e.err }

func (p srcpos) errorf(f string, args ...interface{}) error {
	return evalError{
		pos: p,
		err: fmt.Errorf(f, args...),
	}
}

func (p srcpos) error(err error) error {
	if _, ok := err.(evalError); ok {
		return err
	}
	return evalError{pos: p, err: err}
}
