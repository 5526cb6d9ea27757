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

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/restage/pkg/migrate"
	"gitlab.com/tozd/go/errors"
)

const renameMigration = `
title: rename module
tasks:
  - kind: rename
    title: rename module.json
    pattern: module.json
    to: application.json
`

func setupProject(t *testing.T) (dir, migration string) {
	t.Helper()
	dir = t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "module.json"), []byte("{}\n"), 0o644))
	migration = filepath.Join(t.TempDir(), "migration.yaml")
	require.NoError(t, os.WriteFile(migration, []byte(renameMigration), 0o644))
	return dir, migration
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetArgs(append([]string{}, args...))
	ctx := zerolog.New(zerolog.NewTestWriter(t)).WithContext(context.Background())
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func TestRootAppliesWithYes(t *testing.T) {
	dir, migration := setupProject(t)

	out, err := execute(t, "--cwd", dir, "--yes", migration)
	require.NoError(t, err)
	assert.Contains(t, out, "applied 1 changes")

	assert.FileExists(t, filepath.Join(dir, "application.json"))
	assert.NoFileExists(t, filepath.Join(dir, "module.json"))
}

func TestRootDryWritesNothing(t *testing.T) {
	dir, migration := setupProject(t)

	out, err := execute(t, "--cwd", dir, "--dry", "-f", migration)
	require.NoError(t, err)
	assert.Contains(t, out, "dry run")

	assert.FileExists(t, filepath.Join(dir, "module.json"))
	assert.NoFileExists(t, filepath.Join(dir, "application.json"))
}

func TestRootReadsEnv(t *testing.T) {
	dir, migration := setupProject(t)
	t.Setenv("RESTAGE_DRY", "true")
	t.Setenv("RESTAGE_CWD", dir)
	t.Setenv("RESTAGE_FILE", migration)

	_, err := execute(t)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "module.json"))
}

func TestRootWithoutMigration(t *testing.T) {
	_, err := execute(t, "--dry")
	require.Error(t, err)
	assert.True(t, errors.Is(err, migrate.ErrNoMigration))
}

func TestRootRejectsUnknownConflictPolicy(t *testing.T) {
	dir, migration := setupProject(t)

	_, err := execute(t, "--cwd", dir, "--dry", "--on-conflict", "merge", migration)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown conflict policy "merge"`)
}

func TestTestCommand(t *testing.T) {
	fixture := filepath.Join("..", "..", "pkg", "testkit", "testdata", "flow-bm")

	out, err := execute(t, "test", filepath.Join(fixture, "migration.yaml"), fixture)
	require.NoError(t, err)
	assert.Contains(t, out, "matches")
}

func TestTestCommandMismatch(t *testing.T) {
	fixture := filepath.Join("..", "..", "pkg", "testkit", "testdata", "flow-bm")
	migration := filepath.Join(t.TempDir(), "noop.yaml")
	require.NoError(t, os.WriteFile(migration, []byte(`
title: noop
tasks:
  - kind: remove
    title: drop nothing
    pattern: "**/*.never"
`), 0o644))

	out, err := execute(t, "test", migration, fixture)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 1 fixtures failed")
	assert.Contains(t, out, "does not match")
}
