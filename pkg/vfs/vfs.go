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

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/walteh/restage/pkg/match"
	"gitlab.com/tozd/go/errors"
)

// ⚔️ ConflictPolicy decides what a rename onto a live path does
type ConflictPolicy int

const (
	// ConflictOverwrite lets the renamed entry win and reports the collision.
	ConflictOverwrite ConflictPolicy = iota
	// ConflictError fails the rename with ErrConflict.
	ConflictError
)

// 🔧 Option configures an FS
type Option func(*FS)

// WithConflictPolicy sets the rename conflict policy.
func WithConflictPolicy(p ConflictPolicy) Option {
	return func(f *FS) { f.policy = p }
}

// WithSkipDirs replaces the directory names left out of listings.
// Skipped directories are still readable by explicit path.
func WithSkipDirs(names ...string) Option {
	return func(f *FS) {
		f.skipDirs = make(map[string]struct{}, len(names))
		for _, n := range names {
			f.skipDirs[n] = struct{}{}
		}
	}
}

// WithLogger sets the logger used for staging decisions.
func WithLogger(l zerolog.Logger) Option {
	return func(f *FS) { f.logger = l }
}

// 🗂️ FS is an in-memory overlay over a backing afero.Fs. Nothing it does
// writes to the backing store: content is pulled in on first touch and every
// mutation is staged in memory and journaled.
type FS struct {
	mu       sync.RWMutex
	base     afero.Fs
	policy   ConflictPolicy
	skipDirs map[string]struct{}
	logger   zerolog.Logger

	entries map[string]*Entry

	// disk listing, built on first List
	listed bool
	disk   map[string]struct{}

	changes []Change
	undo    []undoRecord
}

type undoRecord struct {
	path string
	prev *Entry // nil means the path was not staged
}

// 🏭 New creates an overlay on top of base
func New(base afero.Fs, opts ...Option) *FS {
	f := &FS{
		base:     base,
		policy:   ConflictOverwrite,
		skipDirs: map[string]struct{}{".git": {}, "node_modules": {}},
		logger:   zerolog.Nop(),
		entries:  make(map[string]*Entry),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Policy returns the rename conflict policy.
func (f *FS) Policy() ConflictPolicy {
	return f.policy
}

// lookup returns the staged entry for p, loading it from the backing store
// on first touch. A nil entry means p exists nowhere. Callers hold f.mu.
func (f *FS) lookup(p string) (*Entry, error) {
	if e, ok := f.entries[p]; ok {
		return e, nil
	}

	name := filepath.FromSlash(p)
	info, err := f.base.Stat(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Errorf("stat %s: %w", p, err)
	}

	if info.IsDir() {
		e := &Entry{Path: p, Kind: KindDirectory, Origin: Origin{Kind: OriginDisk}}
		f.entries[p] = e
		return e, nil
	}

	data, err := afero.ReadFile(f.base, name)
	if err != nil {
		return nil, errors.Errorf("loading %s: %w", p, err)
	}
	f.logger.Trace().Str("path", p).Int("size", len(data)).Msg("loaded from storage")

	e := &Entry{Path: p, Kind: KindFile, Content: data, Origin: Origin{Kind: OriginDisk}}
	f.entries[p] = e
	return e, nil
}

// entry is lookup for readers. Staged and memoized entries are served under
// the read lock; a miss takes the write lock because lookup fills the memo.
// Entries are never mutated once stored, so the pointer is safe to read
// after the lock is released.
func (f *FS) entry(p string) (*Entry, error) {
	f.mu.RLock()
	e, ok := f.entries[p]
	f.mu.RUnlock()
	if ok {
		return e, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lookup(p)
}

// stage replaces the entry at p and keeps what was there for Rollback.
func (f *FS) stage(p string, e *Entry) {
	prev := f.entries[p]
	f.undo = append(f.undo, undoRecord{path: p, prev: prev.clone()})
	f.entries[p] = e
}

func (f *FS) record(c Change) {
	f.changes = append(f.changes, c)
	f.logger.Debug().Str("op", c.Op.String()).Str("path", c.Path).Str("from", c.From).Msg("staged change")
}

// 📖 Read returns the current content of p
func (f *FS) Read(p string) ([]byte, error) {
	cp, err := Clean(p)
	if err != nil {
		return nil, err
	}

	e, err := f.entry(cp)
	if err != nil {
		return nil, err
	}
	if e != nil && e.Kind == KindDirectory {
		return nil, errors.Errorf("%w: %s", ErrIsDir, cp)
	}
	if !e.Live() {
		return nil, errors.Errorf("%w: %s", ErrNotFound, cp)
	}
	return append([]byte(nil), e.Content...), nil
}

// Stat returns a copy of the entry staged at p.
func (f *FS) Stat(p string) (Entry, error) {
	cp, err := Clean(p)
	if err != nil {
		return Entry{}, err
	}

	e, err := f.entry(cp)
	if err != nil {
		return Entry{}, err
	}
	if e == nil || e.Kind == KindDeleted {
		return Entry{}, errors.Errorf("%w: %s", ErrNotFound, cp)
	}
	return *e.clone(), nil
}

// Exists reports whether p is a live file.
func (f *FS) Exists(p string) bool {
	cp, err := Clean(p)
	if err != nil {
		return false
	}

	e, err := f.entry(cp)
	return err == nil && e.Live()
}

// ✏️ Write stages data at p. Writing to an absent or deleted path creates it.
func (f *FS) Write(p string, data []byte) error {
	cp, err := Clean(p)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	e, err := f.lookup(cp)
	if err != nil {
		return err
	}
	if e != nil && e.Kind == KindDirectory {
		return errors.Errorf("%w: %s", ErrIsDir, cp)
	}

	data = append([]byte(nil), data...)
	if e.Live() {
		f.stage(cp, &Entry{Path: cp, Kind: e.Kind, Content: data, Origin: e.Origin})
		f.record(newChange(OpWrite, cp, "", e.Content, data))
		return nil
	}

	f.stage(cp, &Entry{Path: cp, Kind: KindPendingCreate, Content: data, Origin: Origin{Kind: OriginCreated}})
	f.record(newChange(OpCreate, cp, "", nil, data))
	return nil
}

// ✨ Create stages a new file at p. A live entry at p is ErrAlreadyExists
// unless overwrite is set, in which case the create acts as a write.
func (f *FS) Create(p string, data []byte, overwrite bool) error {
	cp, err := Clean(p)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	e, err := f.lookup(cp)
	if err != nil {
		return err
	}
	if e != nil && e.Kind == KindDirectory {
		return errors.Errorf("%w: %s", ErrIsDir, cp)
	}

	data = append([]byte(nil), data...)
	if e.Live() {
		if !overwrite {
			return errors.Errorf("%w: %s", ErrAlreadyExists, cp)
		}
		f.stage(cp, &Entry{Path: cp, Kind: e.Kind, Content: data, Origin: Origin{Kind: OriginCreated}})
		f.record(newChange(OpWrite, cp, "", e.Content, data))
		return nil
	}

	f.stage(cp, &Entry{Path: cp, Kind: KindPendingCreate, Content: data, Origin: Origin{Kind: OriginCreated}})
	f.record(newChange(OpCreate, cp, "", nil, data))
	return nil
}

// 🚚 Rename stages the entry at oldPath under newPath and deletes oldPath.
// The returned bool reports whether newPath was already occupied; how that
// is handled depends on the ConflictPolicy.
func (f *FS) Rename(oldPath, newPath string) (bool, error) {
	conflicts, err := f.RenameAll([]Move{{From: oldPath, To: newPath}})
	if err != nil {
		return len(conflicts) > 0 && conflicts[0], err
	}
	return conflicts[0], nil
}

// Move is one rename of a batch.
type Move struct {
	From string
	To   string
}

// 🔀 RenameAll applies moves as one step. Every source is read and removed
// before any target is staged, so a target may name another source of the
// same batch (v1 -> v2 and v2 -> v3, or a swap). The result reports per move
// whether its target was a live path outside the batch or the target of an
// earlier move. Under ConflictError nothing is staged when any move conflicts.
func (f *FS) RenameAll(moves []Move) ([]bool, error) {
	cleaned := make([]Move, len(moves))
	for i, m := range moves {
		from, err := Clean(m.From)
		if err != nil {
			return nil, err
		}
		to, err := Clean(m.To)
		if err != nil {
			return nil, err
		}
		cleaned[i] = Move{From: from, To: to}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	sources := make([]*Entry, len(cleaned))
	moving := make(map[string]struct{}, len(cleaned))
	for i, m := range cleaned {
		src, err := f.lookup(m.From)
		if err != nil {
			return nil, err
		}
		if src != nil && src.Kind == KindDirectory {
			return nil, errors.Errorf("%w: %s", ErrIsDir, m.From)
		}
		if !src.Live() {
			return nil, errors.Errorf("%w: %s", ErrNotFound, m.From)
		}
		if _, dup := moving[m.From]; dup {
			return nil, errors.Errorf("%w: %s is renamed twice", ErrConflict, m.From)
		}
		sources[i] = src
		if m.From != m.To {
			moving[m.From] = struct{}{}
		}
	}

	conflicts := make([]bool, len(cleaned))
	overwritten := make([][]byte, len(cleaned))
	claimed := make(map[string]int, len(cleaned))
	for i, m := range cleaned {
		if m.From == m.To {
			claimed[m.To] = i
			continue
		}

		dst, err := f.lookup(m.To)
		if err != nil {
			return conflicts, err
		}
		if dst != nil && dst.Kind == KindDirectory {
			return conflicts, errors.Errorf("%w: %s", ErrIsDir, m.To)
		}

		if j, ok := claimed[m.To]; ok {
			conflicts[i] = true
			overwritten[i] = sources[j].Content
		} else if _, isSource := moving[m.To]; dst.Live() && !isSource {
			conflicts[i] = true
			overwritten[i] = dst.Content
		}
		if conflicts[i] && f.policy == ConflictError {
			return conflicts, errors.Errorf("%w: %s -> %s", ErrConflict, m.From, m.To)
		}
		claimed[m.To] = i
	}

	for i, m := range cleaned {
		if m.From != m.To {
			f.stage(m.From, &Entry{Path: m.From, Kind: KindDeleted, Origin: sources[i].Origin})
		}
	}

	for i, m := range cleaned {
		if m.From == m.To {
			continue
		}
		src := sources[i]
		if conflicts[i] {
			f.logger.Warn().Str("from", m.From).Str("to", m.To).Msg("rename overwrites staged entry")
		}

		kind := KindFile
		if src.Kind == KindPendingCreate {
			kind = KindPendingCreate
		}
		f.stage(m.To, &Entry{Path: m.To, Kind: kind, Content: src.Content, Origin: Origin{Kind: OriginRenamed, From: m.From}})
		f.record(newChange(OpRename, m.To, m.From, overwritten[i], src.Content))
	}
	return conflicts, nil
}

// 🗑️ Remove marks p deleted
func (f *FS) Remove(p string) error {
	cp, err := Clean(p)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	e, err := f.lookup(cp)
	if err != nil {
		return err
	}
	if e != nil && e.Kind == KindDirectory {
		return errors.Errorf("%w: %s", ErrIsDir, cp)
	}
	if !e.Live() {
		return errors.Errorf("%w: %s", ErrNotFound, cp)
	}

	f.stage(cp, &Entry{Path: cp, Kind: KindDeleted, Origin: e.Origin})
	f.record(newChange(OpDelete, cp, "", e.Content, nil))
	return nil
}

// listDisk walks the backing store once and memoizes the file set.
// Callers hold f.mu.
func (f *FS) listDisk() error {
	if f.listed {
		return nil
	}

	disk := make(map[string]struct{})
	err := afero.Walk(f.base, ".", func(p string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if p == "." {
			return nil
		}
		if info.IsDir() {
			if _, skip := f.skipDirs[info.Name()]; skip {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		disk[filepath.ToSlash(p)] = struct{}{}
		return nil
	})
	if err != nil {
		return errors.Errorf("listing storage: %w", err)
	}

	f.disk = disk
	f.listed = true
	f.logger.Debug().Int("files", len(disk)).Msg("listed storage")
	return nil
}

// 📋 List returns the sorted set of live file paths, filtered by pattern
// when it is not empty. Staged creates, renames and deletes are applied on
// top of the storage listing.
func (f *FS) List(pattern string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.listDisk(); err != nil {
		return nil, err
	}

	live := make(map[string]struct{}, len(f.disk))
	for p := range f.disk {
		live[p] = struct{}{}
	}
	for p, e := range f.entries {
		if e.Live() {
			live[p] = struct{}{}
		} else {
			delete(live, p)
		}
	}

	paths := make([]string, 0, len(live))
	for p := range live {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	if pattern == "" {
		return paths, nil
	}
	return match.Match(pattern, paths)
}

// 📸 Snapshot returns the content of every live file
func (f *FS) Snapshot() (map[string][]byte, error) {
	paths, err := f.List("")
	if err != nil {
		return nil, err
	}

	tree := make(map[string][]byte, len(paths))
	for _, p := range paths {
		data, err := f.Read(p)
		if err != nil {
			return nil, errors.Errorf("reading %s: %w", p, err)
		}
		tree[p] = data
	}
	return tree, nil
}
