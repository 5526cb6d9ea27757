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

package testkit

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/restage/pkg/commit"
	"github.com/walteh/restage/pkg/pipeline"
	"github.com/walteh/restage/pkg/task"
	"github.com/walteh/restage/pkg/vfs"
	"gitlab.com/tozd/go/errors"
)

const (
	BeforeDir = "__before__"
	AfterDir  = "__after__"
)

// 🧾 Result compares the staged tree of a migration with the expected one
type Result struct {
	Log        *pipeline.Log
	Missing    []string // expected but not produced
	Unexpected []string // produced but not expected
	Different  []string // produced with other content
}

// OK reports whether the trees matched.
func (r *Result) OK() bool {
	return len(r.Missing) == 0 && len(r.Unexpected) == 0 && len(r.Different) == 0
}

func (r *Result) String() string {
	if r.OK() {
		return "fixture matches"
	}
	var sb strings.Builder
	write := func(label string, paths []string) {
		for _, p := range paths {
			fmt.Fprintf(&sb, "%s: %s\n", label, p)
		}
	}
	write("missing", r.Missing)
	write("unexpected", r.Unexpected)
	write("different", r.Different)
	return strings.TrimSuffix(sb.String(), "\n")
}

// 🧪 Check runs def dry against <fixtureDir>/__before__ and compares the
// result with <fixtureDir>/__after__. Line endings are ignored.
func Check(ctx context.Context, def *task.Definition, fixtureDir string) (*Result, error) {
	beforeDir := filepath.Join(fixtureDir, BeforeDir)
	afterDir := filepath.Join(fixtureDir, AfterDir)
	for _, dir := range []string{beforeDir, afterDir} {
		info, err := os.Stat(dir)
		if err != nil {
			return nil, errors.Errorf("reading fixture: %w", err)
		}
		if !info.IsDir() {
			return nil, errors.Errorf("reading fixture: %s is not a directory", dir)
		}
	}

	before := afero.NewReadOnlyFs(afero.NewBasePathFs(afero.NewOsFs(), beforeDir))
	staged := vfs.New(before, vfs.WithLogger(*zerolog.Ctx(ctx)))

	m, err := def.Load(task.Env{Cwd: beforeDir, FS: staged})
	if err != nil {
		return nil, err
	}

	result := &Result{}
	result.Log, err = pipeline.New(staged).Run(ctx, m)
	if err != nil {
		return result, err
	}

	snapshot, err := staged.Snapshot()
	if err != nil {
		return result, err
	}

	// what a real run would write, replayed onto a memory copy of before
	got, err := replay(ctx, before, result.Log)
	if err != nil {
		return result, err
	}
	if diverged := diff(snapshot, got); len(diverged) > 0 {
		return result, errors.Errorf("committed tree differs from staged tree at %s", strings.Join(diverged, ", "))
	}
	want, err := readTree(afero.NewReadOnlyFs(afero.NewBasePathFs(afero.NewOsFs(), afterDir)))
	if err != nil {
		return result, err
	}

	for p, data := range want {
		have, ok := got[p]
		switch {
		case !ok:
			result.Missing = append(result.Missing, p)
		case !bytes.Equal(normalize(have), normalize(data)):
			result.Different = append(result.Different, p)
		}
	}
	for p := range got {
		if _, ok := want[p]; !ok {
			result.Unexpected = append(result.Unexpected, p)
		}
	}
	sort.Strings(result.Missing)
	sort.Strings(result.Unexpected)
	sort.Strings(result.Different)

	zerolog.Ctx(ctx).Debug().
		Str("fixture", fixtureDir).
		Bool("ok", result.OK()).
		Int("missing", len(result.Missing)).
		Int("unexpected", len(result.Unexpected)).
		Int("different", len(result.Different)).
		Msg("checked fixture")
	return result, nil
}

// Assert fails t unless def turns the fixture's before tree into its after tree.
func Assert(t testing.TB, def *task.Definition, fixtureDir string) *Result {
	t.Helper()
	ctx := zerolog.New(zerolog.NewTestWriter(t)).WithContext(context.Background())

	result, err := Check(ctx, def, fixtureDir)
	require.NoError(t, err, "running migration against %s", fixtureDir)
	assert.True(t, result.OK(), "fixture %s:\n%s", fixtureDir, result)
	return result
}

func replay(ctx context.Context, before afero.Fs, log *pipeline.Log) (map[string][]byte, error) {
	tree, err := readTree(before)
	if err != nil {
		return nil, err
	}

	mem := afero.NewBasePathFs(afero.NewMemMapFs(), "/")
	for p, data := range tree {
		if err := mem.MkdirAll(path.Dir(p), 0o755); err != nil {
			return nil, errors.Errorf("copying fixture: %w", err)
		}
		if err := afero.WriteFile(mem, p, data, 0o644); err != nil {
			return nil, errors.Errorf("copying fixture: %w", err)
		}
	}

	if _, err := commit.New(mem).Commit(ctx, log, commit.ModeWrite); err != nil {
		return nil, errors.Errorf("replaying migration: %w", err)
	}
	return readTree(mem)
}

// diff returns the sorted paths whose presence or bytes differ.
func diff(a, b map[string][]byte) []string {
	var out []string
	for p, data := range a {
		if other, ok := b[p]; !ok || !bytes.Equal(data, other) {
			out = append(out, p)
		}
	}
	for p := range b {
		if _, ok := a[p]; !ok {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

// skipped matches the directories the overlay never lists.
var skipped = map[string]struct{}{".git": {}, "node_modules": {}}

func readTree(base afero.Fs) (map[string][]byte, error) {
	tree := map[string][]byte{}
	err := afero.Walk(base, ".", func(p string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if _, skip := skipped[info.Name()]; skip {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		data, err := afero.ReadFile(base, p)
		if err != nil {
			return err
		}
		tree[filepath.ToSlash(p)] = data
		return nil
	})
	if err != nil {
		return nil, errors.Errorf("reading expected tree: %w", err)
	}
	return tree, nil
}

func normalize(data []byte) []byte {
	return bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))
}
