// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package pipeline

import (
	"fmt"
	"time"

	"github.com/walteh/restage/pkg/task"
	"github.com/walteh/restage/pkg/vfs"
	"gitlab.com/tozd/go/errors"
)

// 🚦 State is where a run is in its lifecycle
type State int

const (
	StateIdle State = iota
	StateRunning
	StateCompleted
	StateFailed
)

// String returns a string representation of State
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

var (
	// ErrAlreadyRan is returned when Run is called on a runner that left StateIdle.
	ErrAlreadyRan = errors.Base("runner already ran")
)

// 💥 HandlerError wraps a failure of a user handler
type HandlerError struct {
	Task string
	Path string
	Err  error
}

func (e *HandlerError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("task %q: handler failed: %v", e.Task, e.Err)
	}
	return fmt.Sprintf("task %q: handler failed for %s: %v", e.Task, e.Path, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}

// ⚔️ Conflict is a rename that landed on an occupied path
type Conflict struct {
	From string
	To   string
}

// 📝 TaskResult is what one task did to the overlay
type TaskResult struct {
	Title     string
	Kind      task.Kind
	Pattern   string
	Matched   []string
	Changes   []vfs.Change
	Conflicts []Conflict
	Duration  time.Duration
}

// ZeroEffect reports a pattern task that matched nothing, which is usually a
// bug in the migration definition.
func (r TaskResult) ZeroEffect() bool {
	return r.Pattern != "" && len(r.Matched) == 0
}

// 📚 Log is the ordered record of a finished run. On failure it holds the
// results of the tasks before the failing one.
type Log struct {
	Migration string
	State     State
	Total     int
	Results   []TaskResult

	// Setup holds what the definition's setup staged through Env.FS before
	// the first task ran.
	Setup []vfs.Change

	// set when State is StateFailed
	FailedIndex int
	FailedTitle string
	Err         error
}

// Completed reports whether every task ran.
func (l *Log) Completed() bool {
	return l != nil && l.State == StateCompleted
}

// Changes returns the setup changes followed by every change of every task,
// in execution order.
func (l *Log) Changes() []vfs.Change {
	out := append([]vfs.Change(nil), l.Setup...)
	for _, r := range l.Results {
		out = append(out, r.Changes...)
	}
	return out
}

// ZeroEffect returns the results of tasks whose pattern matched nothing.
func (l *Log) ZeroEffect() []TaskResult {
	var out []TaskResult
	for _, r := range l.Results {
		if r.ZeroEffect() {
			out = append(out, r)
		}
	}
	return out
}
