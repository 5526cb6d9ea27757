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

package commit_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/restage/pkg/codec"
	"github.com/walteh/restage/pkg/commit"
	"github.com/walteh/restage/pkg/pipeline"
	"github.com/walteh/restage/pkg/task"
	"github.com/walteh/restage/pkg/vfs"
	"gitlab.com/tozd/go/errors"
)

type fixture struct {
	dir     string
	storage afero.Fs
}

func newFixture(t *testing.T, files map[string]string) *fixture {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		abs := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
		require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
	}
	return &fixture{dir: dir, storage: afero.NewBasePathFs(afero.NewOsFs(), dir)}
}

func (f *fixture) run(t *testing.T, ctx context.Context, setup task.SetupFunc) *pipeline.Log {
	t.Helper()
	fs := vfs.New(afero.NewReadOnlyFs(f.storage))
	m, err := task.Define("commit test", setup).Load(task.Env{Cwd: f.dir, FS: fs})
	require.NoError(t, err)
	log, err := pipeline.New(fs).Run(ctx, m)
	require.NoError(t, err)
	return log
}

func (f *fixture) read(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(f.dir, filepath.FromSlash(name)))
	require.NoError(t, err)
	return string(data)
}

func (f *fixture) exists(name string) bool {
	_, err := os.Stat(filepath.Join(f.dir, filepath.FromSlash(name)))
	return err == nil
}

func testContext(t *testing.T) context.Context {
	return zerolog.New(zerolog.NewTestWriter(t)).WithContext(context.Background())
}

func migration(r *task.Registry, _ task.Env) error {
	r.Rename("rename module", "module.json", func(context.Context, string) (string, error) {
		return "config/application.json", nil
	})
	r.Transform("edit readme", "README.md", func(_ context.Context, f task.File) (codec.Result, error) {
		return codec.RawText(f.Source + " edited"), nil
	})
	r.Remove("drop backups", "**/*.orig")
	r.Create("add notes", func(context.Context, *task.File) ([]task.NewFile, error) {
		return []task.NewFile{{FileName: "docs/NOTES.md", Source: codec.RawText("notes")}}, nil
	})
	return nil
}

func TestCommitWrite(t *testing.T) {
	ctx := testContext(t)
	f := newFixture(t, map[string]string{
		"module.json":  "{}",
		"README.md":    "readme",
		"src/a.orig":   "backup",
		"src/keep.txt": "keep",
	})

	log := f.run(t, ctx, migration)
	sum, err := commit.New(f.storage).Commit(ctx, log, commit.ModeWrite)
	require.NoError(t, err)

	assert.Equal(t, commit.ModeWrite, sum.Mode)
	assert.Equal(t, 4, sum.Total)
	assert.Equal(t, 4, sum.Applied)
	assert.Equal(t, 1, sum.Creates)
	assert.Equal(t, 1, sum.Writes)
	assert.Equal(t, 1, sum.Renames)
	assert.Equal(t, 1, sum.Deletes)

	assert.False(t, f.exists("module.json"))
	assert.Equal(t, "{}", f.read(t, "config/application.json"))
	assert.Equal(t, "readme edited", f.read(t, "README.md"))
	assert.False(t, f.exists("src/a.orig"))
	assert.Equal(t, "keep", f.read(t, "src/keep.txt"))
	assert.Equal(t, "notes", f.read(t, "docs/NOTES.md"))
	assert.False(t, f.exists("README.md.restage.tmp"))
}

func TestCommitDryRun(t *testing.T) {
	ctx := testContext(t)
	f := newFixture(t, map[string]string{"module.json": "{}", "README.md": "readme"})

	log := f.run(t, ctx, migration)
	sum, err := commit.New(f.storage).Commit(ctx, log, commit.ModeDryRun)
	require.NoError(t, err)

	assert.Equal(t, 3, sum.Total)
	assert.Equal(t, 0, sum.Applied)
	assert.True(t, f.exists("module.json"))
	assert.Equal(t, "readme", f.read(t, "README.md"))
	assert.False(t, f.exists("docs"))
}

func TestCommitRefusesIncompleteLog(t *testing.T) {
	ctx := testContext(t)
	f := newFixture(t, nil)

	for _, log := range []*pipeline.Log{nil, {State: pipeline.StateFailed}, {State: pipeline.StateRunning}} {
		_, err := commit.New(f.storage).Commit(ctx, log, commit.ModeWrite)
		assert.True(t, errors.Is(err, commit.ErrIncompleteLog))
	}
}

func TestCommitRenameOverwrites(t *testing.T) {
	ctx := testContext(t)
	f := newFixture(t, map[string]string{"old.json": "old", "new.json": "new"})

	log := f.run(t, ctx, func(r *task.Registry, _ task.Env) error {
		r.Rename("collide", "old.json", func(context.Context, string) (string, error) {
			return "new.json", nil
		})
		return nil
	})
	_, err := commit.New(f.storage).Commit(ctx, log, commit.ModeWrite)
	require.NoError(t, err)

	assert.False(t, f.exists("old.json"))
	assert.Equal(t, "old", f.read(t, "new.json"))
}

func TestCommitRenameBatch(t *testing.T) {
	ctx := testContext(t)

	tests := []struct {
		name    string
		mapping map[string]string
		want    map[string]string
	}{
		{
			name:    "chain",
			mapping: map[string]string{"v1.txt": "v2.txt", "v2.txt": "v3.txt"},
			want:    map[string]string{"v2.txt": "one", "v3.txt": "two"},
		},
		{
			name:    "swap",
			mapping: map[string]string{"v1.txt": "v2.txt", "v2.txt": "v1.txt"},
			want:    map[string]string{"v1.txt": "two", "v2.txt": "one"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, map[string]string{"v1.txt": "one", "v2.txt": "two"})
			log := f.run(t, ctx, func(r *task.Registry, _ task.Env) error {
				r.Rename("bump", "v*.txt", func(_ context.Context, name string) (string, error) {
					return tt.mapping[name], nil
				})
				return nil
			})

			sum, err := commit.New(f.storage).Commit(ctx, log, commit.ModeWrite)
			require.NoError(t, err)
			assert.Equal(t, 2, sum.Applied)

			for name, content := range tt.want {
				assert.Equal(t, content, f.read(t, name))
			}
			entries, err := os.ReadDir(f.dir)
			require.NoError(t, err)
			assert.Len(t, entries, len(tt.want), "no temp files are left behind")
		})
	}
}

func TestCommitSetupChanges(t *testing.T) {
	ctx := testContext(t)
	f := newFixture(t, nil)

	log := f.run(t, ctx, func(r *task.Registry, env task.Env) error {
		if err := env.FS.Write("only.txt", []byte("only")); err != nil {
			return err
		}
		if err := env.FS.Write("seeded.txt", []byte("seed")); err != nil {
			return err
		}
		r.Rename("move seed", "seeded.txt", func(context.Context, string) (string, error) {
			return "moved.txt", nil
		})
		return nil
	})

	sum, err := commit.New(f.storage).Commit(ctx, log, commit.ModeWrite)
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Applied)
	assert.Equal(t, 2, sum.Creates)

	assert.Equal(t, "only", f.read(t, "only.txt"))
	assert.Equal(t, "seed", f.read(t, "moved.txt"))
	assert.False(t, f.exists("seeded.txt"))
}

func TestCommitToleratesMissingDelete(t *testing.T) {
	ctx := testContext(t)
	f := newFixture(t, map[string]string{"gone.txt": "x"})

	log := f.run(t, ctx, func(r *task.Registry, _ task.Env) error {
		r.Remove("drop", "gone.txt")
		return nil
	})
	require.NoError(t, os.Remove(filepath.Join(f.dir, "gone.txt")))

	sum, err := commit.New(f.storage).Commit(ctx, log, commit.ModeWrite)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Applied)
}

func TestCommitPartialFailure(t *testing.T) {
	ctx := testContext(t)
	f := newFixture(t, nil)

	log := f.run(t, ctx, func(r *task.Registry, _ task.Env) error {
		r.Create("first", func(context.Context, *task.File) ([]task.NewFile, error) {
			return []task.NewFile{{FileName: "x.txt", Source: codec.RawText("x")}}, nil
		})
		r.Create("second", func(context.Context, *task.File) ([]task.NewFile, error) {
			return []task.NewFile{{FileName: "y.txt", Source: codec.RawText("y")}}, nil
		})
		return nil
	})

	// storage drifted after the run: a directory now sits where y.txt goes
	require.NoError(t, os.MkdirAll(filepath.Join(f.dir, "y.txt", "child"), 0o755))

	sum, err := commit.New(f.storage).Commit(ctx, log, commit.ModeWrite)
	require.Error(t, err)

	var ce *commit.CommitError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, 1, ce.Applied)
	assert.Equal(t, 2, ce.Total)
	assert.Equal(t, "y.txt", ce.Change.Path)
	assert.Contains(t, err.Error(), "commit partially applied")
	assert.Equal(t, 1, sum.Applied)
	assert.Equal(t, "x", f.read(t, "x.txt"))
}

func TestModeString(t *testing.T) {
	assert.Equal(t, "write", commit.ModeWrite.String())
	assert.Equal(t, "dry-run", commit.ModeDryRun.String())
}
