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
	"sort"
	"sync"
	"time"
)

type statsData struct {
	Name    string
	Count   int
	Longest time.Duration
	Total   time.Duration
}

type phaseStatsT struct {
	mu    sync.Mutex
	data  map[string]*statsData
	names []string
}

var phaseStats = &phaseStatsT{
	data: make(map[string]*statsData),
}

// phaseBegin marks the start of a compiler phase; pass the result to
// phaseEnd.
func phaseBegin(name string) time.Time {
	return time.Now()
}

func phaseEnd(name string, t0 time.Time) {
	d := time.Since(t0)
	phaseStats.mu.Lock()
	defer phaseStats.mu.Unlock()
	s, ok := phaseStats.data[name]
	if !ok {
		s = &statsData{Name: name}
		phaseStats.data[name] = s
		phaseStats.names = append(phaseStats.names, name)
	}
	s.Count++
	s.Total += d
	if d > s.Longest {
		s.Longest = d
	}
}

// DumpStats prints per-phase timing collected during the run.
func DumpStats(w io.Writer) {
	phaseStats.mu.Lock()
	defer phaseStats.mu.Unlock()
	var names []string
	names = append(names, phaseStats.names...)
	sort.Strings(names)
	fmt.Fprintln(w, "*vc* phase stats:")
	for _, name := range names {
		s := phaseStats.data[name]
		fmt.Fprintf(w, "  %-12s count:%d total:%v longest:%v\n", s.Name, s.Count, s.Total, s.Longest)
	}
}
