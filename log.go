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
	"io"
	"os"
	"sync"
)

var diagMu sync.Mutex

// diagWriter is where warnings and #warning output go. Tests replace it.
var diagWriter io.Writer = os.Stderr

func warn(pos srcpos, f string, a ...interface{}) {
	f = fmt.Sprintf("%s: warning: %s\n", pos, f)
	diagMu.Lock()
	fmt.Fprintf(diagWriter, f, a...)
	diagMu.Unlock()
}

func warnNoPrefix(pos srcpos, f string, a ...interface{}) {
	f = fmt.Sprintf("%s: %s\n", pos, f)
	diagMu.Lock()
	fmt.Fprintf(diagWriter, f, a...)
	diagMu.Unlock()
}
