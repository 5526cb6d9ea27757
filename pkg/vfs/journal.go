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

package vfs

// 🔖 Checkpoint marks a point in the journal that Rollback can return to
type Checkpoint struct {
	changes int
	undo    int
}

// Checkpoint returns the current journal position.
func (f *FS) Checkpoint() Checkpoint {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return Checkpoint{changes: len(f.changes), undo: len(f.undo)}
}

// ⏪ Rollback undoes every mutation staged after cp. Content loaded from
// storage in the meantime stays memoized.
func (f *FS) Rollback(cp Checkpoint) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := len(f.undo) - 1; i >= cp.undo; i-- {
		rec := f.undo[i]
		if rec.prev == nil {
			delete(f.entries, rec.path)
		} else {
			f.entries[rec.path] = rec.prev
		}
	}
	f.undo = f.undo[:cp.undo]
	f.changes = f.changes[:cp.changes]
	f.logger.Debug().Int("changes", cp.changes).Msg("rolled back")
}

// ChangesSince returns the mutations staged after cp, in order.
func (f *FS) ChangesSince(cp Checkpoint) []Change {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if cp.changes >= len(f.changes) {
		return nil
	}
	out := make([]Change, len(f.changes)-cp.changes)
	copy(out, f.changes[cp.changes:])
	return out
}

// Changes returns every staged mutation, in order.
func (f *FS) Changes() []Change {
	return f.ChangesSince(Checkpoint{})
}
