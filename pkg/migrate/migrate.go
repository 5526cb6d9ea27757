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

package migrate

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/walteh/restage/pkg/commit"
	"github.com/walteh/restage/pkg/config"
	"github.com/walteh/restage/pkg/log"
	"github.com/walteh/restage/pkg/pipeline"
	"github.com/walteh/restage/pkg/report"
	"github.com/walteh/restage/pkg/task"
	"github.com/walteh/restage/pkg/vfs"
	"gitlab.com/tozd/go/errors"
)

var (
	ErrRejected    = errors.Base("migration rejected")
	ErrNoMigration = errors.Base("no migration given")
)

// 🔧 Options configures a single migration run
type Options struct {
	// Cwd is the project root. Defaults to the working directory.
	Cwd string

	// Exactly one of MigrationFile or Definition is used; Definition wins.
	MigrationFile string
	Definition    *task.Definition

	Dry       bool
	Yes       bool
	Confirmer log.Confirmer

	// Storage defaults to the OS filesystem rooted at Cwd.
	Storage        afero.Fs
	Concurrency    int
	ConflictPolicy vfs.ConflictPolicy

	Out      io.Writer
	ShowDiff bool
}

// 📦 Outcome is everything a run produced
type Outcome struct {
	RunID     string
	Log       *pipeline.Log
	Totals    report.Totals
	Summary   *commit.Summary
	Committed bool
}

// 🚀 Run loads a migration, stages it against a fresh overlay, reports
// the result and commits it unless the run is dry or rejected.
func Run(ctx context.Context, opts Options) (*Outcome, error) {
	outcome := &Outcome{RunID: uuid.NewString()}
	ctx = zerolog.Ctx(ctx).With().Str("run_id", outcome.RunID).Logger().WithContext(ctx)
	logger := zerolog.Ctx(ctx)

	if opts.Out == nil {
		opts.Out = os.Stdout
	}

	cwd, err := resolveCwd(opts.Cwd)
	if err != nil {
		return outcome, err
	}

	def, err := definition(ctx, opts, cwd)
	if err != nil {
		return outcome, err
	}

	storage := opts.Storage
	if storage == nil {
		storage = afero.NewBasePathFs(afero.NewOsFs(), cwd)
	}

	fs := vfs.New(afero.NewReadOnlyFs(storage),
		vfs.WithConflictPolicy(opts.ConflictPolicy),
		vfs.WithLogger(*logger),
	)

	m, err := def.Load(task.Env{Cwd: cwd, FS: fs})
	if err != nil {
		return outcome, errors.Errorf("loading migration: %w", err)
	}
	logger.Info().Str("migration", m.Title).Int("tasks", len(m.Tasks)).Str("cwd", cwd).Bool("dry", opts.Dry).Msg("starting migration")

	var runnerOpts []pipeline.Option
	if opts.Concurrency > 0 {
		runnerOpts = append(runnerOpts, pipeline.WithConcurrency(opts.Concurrency))
	}

	runLog, runErr := pipeline.New(fs, runnerOpts...).Run(ctx, m)
	outcome.Log = runLog
	if runLog != nil {
		outcome.Totals = report.Render(ctx, opts.Out, runLog, report.Options{ShowDiff: opts.ShowDiff, Dry: opts.Dry})
	}
	if runErr != nil {
		return outcome, errors.Errorf("running migration %q: %w", m.Title, runErr)
	}

	committer := commit.New(storage)
	if opts.Dry {
		sum, err := committer.Commit(ctx, runLog, commit.ModeDryRun)
		if err != nil {
			return outcome, err
		}
		outcome.Summary = sum
		return outcome, nil
	}

	if outcome.Totals.Changes() == 0 {
		return outcome, nil
	}

	if !opts.Yes {
		confirmer := opts.Confirmer
		if confirmer == nil {
			confirmer = log.TerminalConfirmer{}
		}
		ok, err := confirmer.Confirm(ctx, fmt.Sprintf("Apply %d changes to %s?", outcome.Totals.Changes(), cwd))
		if err != nil {
			return outcome, err
		}
		if !ok {
			logger.Info().Msg("migration rejected")
			return outcome, errors.Errorf("%w: nothing was written", ErrRejected)
		}
	}

	sum, err := committer.Commit(ctx, runLog, commit.ModeWrite)
	outcome.Summary = sum
	if err != nil {
		return outcome, errors.Errorf("committing migration %q: %w", m.Title, err)
	}
	outcome.Committed = true

	log.New(opts.Out, *logger).Successf("applied %d changes", sum.Applied)
	return outcome, nil
}

func resolveCwd(dir string) (string, error) {
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", errors.Errorf("getting working directory: %w", err)
		}
		dir = wd
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", errors.Errorf("resolving %s: %w", dir, err)
	}
	return abs, nil
}

func definition(ctx context.Context, opts Options, cwd string) (*task.Definition, error) {
	if opts.Definition != nil {
		return opts.Definition, nil
	}
	if opts.MigrationFile == "" {
		return nil, ErrNoMigration
	}

	cfg, err := config.LoadFile(ctx, opts.MigrationFile, config.WithCwd(cwd))
	if err != nil {
		return nil, err
	}
	return config.Build(cfg), nil
}
