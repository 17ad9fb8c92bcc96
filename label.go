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

// maxLabelLen bounds formatted label names, including the purpose suffix.
const maxLabelLen = 31

// labelGen hands out monotonically increasing label ids. One generator
// per emission unit keeps labels unique within it.
type labelGen struct {
	next uint64
}

func (g *labelGen) id() uint64 {
	n := g.next
	g.next++
	return n
}

// format renders "L<id>_<suffix>" truncated to maxLabelLen bytes.
func (g *labelGen) format(id uint64, suffix string) string {
	s := fmt.Sprintf("L%d_%s", id, suffix)
	if len(s) > maxLabelLen {
		s = s[:maxLabelLen]
	}
	return s
}
