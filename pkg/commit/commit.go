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

package commit

import (
	"context"
	"fmt"
	"os"
	"path"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/walteh/restage/pkg/pipeline"
	"github.com/walteh/restage/pkg/vfs"
	"gitlab.com/tozd/go/errors"
)

// 🎚️ Mode selects whether a commit touches storage
type Mode int

const (
	ModeWrite Mode = iota
	ModeDryRun
)

// String returns a string representation of Mode
func (m Mode) String() string {
	switch m {
	case ModeWrite:
		return "write"
	case ModeDryRun:
		return "dry-run"
	default:
		return "unknown"
	}
}

var (
	ErrIncompleteLog = errors.Base("migration log is not complete")
)

// 💥 CommitError reports where a write-mode commit stopped. Changes before
// Applied already reached storage.
type CommitError struct {
	Applied int
	Total   int
	Change  vfs.Change
	Err     error
}

func (e *CommitError) Error() string {
	if e.Applied > 0 {
		return fmt.Sprintf("commit partially applied (%d of %d changes): %s %s: %v", e.Applied, e.Total, e.Change.Op, e.Change.Path, e.Err)
	}
	return fmt.Sprintf("commit failed before any change was applied: %s %s: %v", e.Change.Op, e.Change.Path, e.Err)
}

func (e *CommitError) Unwrap() error {
	return e.Err
}

// 📊 Summary counts what a commit applied, or would apply in dry-run mode
type Summary struct {
	Mode    Mode
	Creates int
	Writes  int
	Renames int
	Deletes int
	Applied int
	Total   int
}

func (s *Summary) count(op vfs.Op) {
	switch op {
	case vfs.OpCreate:
		s.Creates++
	case vfs.OpWrite:
		s.Writes++
	case vfs.OpRename:
		s.Renames++
	case vfs.OpDelete:
		s.Deletes++
	}
}

// Empty reports whether there was nothing to apply.
func (s *Summary) Empty() bool {
	return s.Total == 0
}

// 💾 Committer replays a migration log onto storage
type Committer struct {
	storage afero.Fs
}

// 🏭 New creates a committer writing to storage
func New(storage afero.Fs) *Committer {
	return &Committer{storage: storage}
}

// 🚀 Commit applies every change of log in order. Only completed logs are
// accepted. There is no retry and no undo of changes already applied.
func (c *Committer) Commit(ctx context.Context, log *pipeline.Log, mode Mode) (*Summary, error) {
	if !log.Completed() {
		return nil, errors.Errorf("%w: refusing to commit", ErrIncompleteLog)
	}

	logger := zerolog.Ctx(ctx)
	changes := log.Changes()
	sum := &Summary{Mode: mode, Total: len(changes)}

	for _, ch := range changes {
		sum.count(ch.Op)
	}
	if mode == ModeDryRun {
		logger.Debug().Int("changes", sum.Total).Msg("dry run, storage untouched")
		return sum, nil
	}

	applied := 0
	for _, batch := range batches(log) {
		n, err := c.applyBatch(batch)
		applied += n
		sum.Applied = applied
		if err != nil {
			ch := batch[n]
			logger.Error().Err(err).Int("applied", applied).Int("total", len(changes)).Str("path", ch.Path).Msg("commit stopped")
			return sum, &CommitError{Applied: applied, Total: len(changes), Change: ch, Err: err}
		}
		for _, ch := range batch {
			logger.Debug().Str("op", ch.Op.String()).Str("path", ch.Path).Msg("applied change")
		}
	}

	logger.Info().Int("applied", sum.Applied).Msg("commit finished")
	return sum, nil
}

// batches splits the log into replay units. The renames of one task were
// staged as a single step and are replayed together; everything else,
// setup changes included, is replayed one change at a time.
func batches(log *pipeline.Log) [][]vfs.Change {
	var out [][]vfs.Change
	for _, ch := range log.Setup {
		out = append(out, []vfs.Change{ch})
	}
	for _, res := range log.Results {
		var renames []vfs.Change
		for _, ch := range res.Changes {
			if ch.Op == vfs.OpRename {
				renames = append(renames, ch)
				continue
			}
			if len(renames) > 0 {
				out = append(out, renames)
				renames = nil
			}
			out = append(out, []vfs.Change{ch})
		}
		if len(renames) > 0 {
			out = append(out, renames)
		}
	}
	return out
}

// applyBatch returns how many changes of batch reached storage.
func (c *Committer) applyBatch(batch []vfs.Change) (int, error) {
	if len(batch) == 1 {
		if err := c.apply(batch[0]); err != nil {
			return 0, err
		}
		return 1, nil
	}
	return c.renameAll(batch)
}

func (c *Committer) apply(ch vfs.Change) error {
	switch ch.Op {
	case vfs.OpCreate, vfs.OpWrite:
		return c.writeFile(ch.Path, ch.After)
	case vfs.OpRename:
		return c.rename(ch.From, ch.Path)
	case vfs.OpDelete:
		if err := c.storage.Remove(ch.Path); err != nil && !os.IsNotExist(err) {
			return errors.Errorf("deleting file: %w", err)
		}
		return nil
	default:
		return errors.Errorf("unknown change op %d", ch.Op)
	}
}

func (c *Committer) mkdirParent(p string) error {
	dir := path.Dir(p)
	if dir == "." {
		return nil
	}
	if err := c.storage.MkdirAll(dir, 0o755); err != nil {
		return errors.Errorf("creating parent directories: %w", err)
	}
	return nil
}

// writeFile writes through a temp file and a rename so a reader never sees a
// half written file.
func (c *Committer) writeFile(p string, content []byte) error {
	if err := c.mkdirParent(p); err != nil {
		return err
	}

	mode := os.FileMode(0o644)
	if info, err := c.storage.Stat(p); err == nil {
		mode = info.Mode().Perm()
	}

	tempPath := p + ".restage.tmp"
	if err := afero.WriteFile(c.storage, tempPath, content, mode); err != nil {
		return errors.Errorf("writing temp file: %w", err)
	}

	if err := c.storage.Rename(tempPath, p); err != nil {
		_ = c.storage.Remove(tempPath)
		return errors.Errorf("renaming temp file: %w", err)
	}
	return nil
}

func (c *Committer) rename(from, to string) error {
	if err := c.mkdirParent(to); err != nil {
		return err
	}

	// the overlay already resolved the conflict, storage must match it
	if _, err := c.storage.Stat(to); err == nil {
		if err := c.storage.Remove(to); err != nil {
			return errors.Errorf("removing rename target: %w", err)
		}
	}

	if err := c.storage.Rename(from, to); err != nil {
		return errors.Errorf("renaming file: %w", err)
	}
	return nil
}

func moveTemp(from string, i int) string {
	return fmt.Sprintf("%s.restage-mv%d.tmp", from, i)
}

// renameAll moves every source of batch aside before any target is written,
// so targets may name other sources of the batch. When moving aside fails
// the sources already moved are put back.
func (c *Committer) renameAll(batch []vfs.Change) (int, error) {
	for i, ch := range batch {
		if err := c.storage.Rename(ch.From, moveTemp(ch.From, i)); err != nil {
			for j := i - 1; j >= 0; j-- {
				_ = c.storage.Rename(moveTemp(batch[j].From, j), batch[j].From)
			}
			return 0, errors.Errorf("moving %s aside: %w", ch.From, err)
		}
	}

	for i, ch := range batch {
		if err := c.rename(moveTemp(ch.From, i), ch.Path); err != nil {
			return i, err
		}
	}
	return len(batch), nil
}
