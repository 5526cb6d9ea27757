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
	"bytes"
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/walteh/restage/pkg/task"
	"github.com/walteh/restage/pkg/vfs"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/sync/errgroup"
)

// 👀 Observer is told about task progress as the run goes
type Observer interface {
	TaskStarted(ctx context.Context, index, total int, t *task.Task)
	TaskFinished(ctx context.Context, index, total int, r TaskResult, err error)
}

type nopObserver struct{}

func (nopObserver) TaskStarted(context.Context, int, int, *task.Task)         {}
func (nopObserver) TaskFinished(context.Context, int, int, TaskResult, error) {}

// 🔧 Option configures a Runner
type Option func(*Runner)

// WithConcurrency bounds how many handlers of one task run at once.
func WithConcurrency(n int) Option {
	return func(r *Runner) {
		if n < 1 {
			n = 1
		}
		r.concurrency = n
	}
}

// WithObserver sets the progress observer.
func WithObserver(o Observer) Option {
	return func(r *Runner) {
		if o != nil {
			r.observer = o
		}
	}
}

// 🏃 Runner executes the tasks of one migration against one overlay. A
// runner is single use.
type Runner struct {
	fs          *vfs.FS
	concurrency int
	observer    Observer

	mu      sync.Mutex
	state   State
	current int
}

// 🏭 New creates a runner over fs
func New(fs *vfs.FS, opts ...Option) *Runner {
	r := &Runner{
		fs:          fs,
		concurrency: runtime.NumCPU(),
		observer:    nopObserver{},
		state:       StateIdle,
		current:     -1,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// State returns the current state and the index of the task it concerns
// (-1 while idle).
func (r *Runner) State() (State, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state, r.current
}

func (r *Runner) transition(s State, index int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = s
	r.current = index
}

// 🎬 Run executes every task of m in order. The returned log is complete on
// success; on failure it holds the tasks before the failing one, the overlay
// is rolled back to the same point and the error is returned as well.
func (r *Runner) Run(ctx context.Context, m *task.Migration) (*Log, error) {
	r.mu.Lock()
	if r.state != StateIdle {
		r.mu.Unlock()
		return nil, errors.Errorf("%w: state is %s", ErrAlreadyRan, r.state)
	}
	r.state = StateRunning
	r.current = 0
	r.mu.Unlock()

	logger := zerolog.Ctx(ctx).With().Str("migration", m.Title).Logger()
	total := len(m.Tasks)
	log := &Log{Migration: m.Title, Total: total, FailedIndex: -1}

	// anything staged before the first task came from the definition's setup
	log.Setup = r.fs.Changes()
	if len(log.Setup) > 0 {
		logger.Info().Int("changes", len(log.Setup)).Msg("setup staged changes")
	}

	for i, t := range m.Tasks {
		r.transition(StateRunning, i)
		r.observer.TaskStarted(ctx, i, total, t)

		res, err := r.execute(ctx, t)
		r.observer.TaskFinished(ctx, i, total, res, err)
		if err != nil {
			var he *HandlerError
			if !errors.As(err, &he) {
				err = errors.Errorf("task %q: %w", t.Title(), err)
			}
			logger.Error().Err(err).Int("task", i).Str("title", t.Title()).Msg("task failed")

			r.transition(StateFailed, i)
			log.State = StateFailed
			log.FailedIndex = i
			log.FailedTitle = t.Title()
			log.Err = err
			return log, err
		}

		logger.Info().
			Int("task", i).
			Str("title", t.Title()).
			Int("matched", len(res.Matched)).
			Int("changes", len(res.Changes)).
			Dur("took", res.Duration).
			Msg("task finished")
		log.Results = append(log.Results, res)
	}

	r.transition(StateCompleted, total)
	log.State = StateCompleted
	return log, nil
}

// execute runs one task. The overlay only keeps its changes when it succeeds.
func (r *Runner) execute(ctx context.Context, t *task.Task) (TaskResult, error) {
	res := TaskResult{Title: t.Title(), Kind: t.Kind(), Pattern: t.Pattern()}
	if err := ctx.Err(); err != nil {
		return res, err
	}

	cp := r.fs.Checkpoint()
	start := time.Now()

	err := r.dispatch(ctx, t, &res)
	res.Duration = time.Since(start)
	if err != nil {
		r.fs.Rollback(cp)
		return res, err
	}

	res.Changes = r.fs.ChangesSince(cp)
	return res, nil
}

func (r *Runner) dispatch(ctx context.Context, t *task.Task, res *TaskResult) error {
	if t.Pattern() != "" {
		matched, err := r.fs.List(t.Pattern())
		if err != nil {
			return errors.Errorf("resolving pattern %q: %w", t.Pattern(), err)
		}
		res.Matched = matched
		if len(matched) == 0 {
			zerolog.Ctx(ctx).Warn().Str("title", t.Title()).Str("pattern", t.Pattern()).Msg("pattern matched nothing")
		}
	}

	switch t.Kind() {
	case task.KindTransform:
		return r.transform(ctx, t, res.Matched)
	case task.KindRename:
		return r.rename(ctx, t, res)
	case task.KindRemove:
		for _, p := range res.Matched {
			if err := r.fs.Remove(p); err != nil {
				return errors.Errorf("removing %s: %w", p, err)
			}
		}
		return nil
	case task.KindCreate:
		return r.create(ctx, t, res.Matched)
	default:
		return errors.Errorf("unknown task kind %d", t.Kind())
	}
}

// snapshots reads the staged state of every path before handlers run, so
// handlers never see each other's output.
func (r *Runner) snapshots(paths []string) ([]task.File, error) {
	files := make([]task.File, len(paths))
	for i, p := range paths {
		data, err := r.fs.Read(p)
		if err != nil {
			return nil, errors.Errorf("reading %s: %w", p, err)
		}
		files[i] = task.File{FileName: p, Source: string(data)}
	}
	return files, nil
}

// ⚡ fanOut calls fn for 0..n-1 with bounded concurrency and waits for all of
// them. The error of the lowest index wins so failures are deterministic.
func (r *Runner) fanOut(t *task.Task, paths []string, fn func(i int) error) error {
	errs := make([]error, len(paths))

	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i := range paths {
		g.Go(func() (err error) {
			defer func() {
				if p := recover(); p != nil {
					err = errors.Errorf("panic: %v", p)
				}
				if err != nil {
					errs[i] = &HandlerError{Task: t.Title(), Path: paths[i], Err: err}
				}
			}()
			return fn(i)
		})
	}
	_ = g.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) transform(ctx context.Context, t *task.Task, matched []string) error {
	files, err := r.snapshots(matched)
	if err != nil {
		return err
	}

	outs := make([][]byte, len(files))
	err = r.fanOut(t, matched, func(i int) error {
		data, err := t.Apply(ctx, files[i])
		if err != nil {
			return err
		}
		outs[i] = data
		return nil
	})
	if err != nil {
		return err
	}

	for i, f := range files {
		if bytes.Equal(outs[i], []byte(f.Source)) {
			continue
		}
		if err := r.fs.Write(f.FileName, outs[i]); err != nil {
			return errors.Errorf("writing %s: %w", f.FileName, err)
		}
	}
	return nil
}

func (r *Runner) rename(ctx context.Context, t *task.Task, res *TaskResult) error {
	targets := make([]string, len(res.Matched))
	err := r.fanOut(t, res.Matched, func(i int) error {
		target, err := t.Target(ctx, res.Matched[i])
		if err != nil {
			return err
		}
		targets[i] = target
		return nil
	})
	if err != nil {
		return err
	}

	moves := make([]vfs.Move, len(res.Matched))
	for i, from := range res.Matched {
		moves[i] = vfs.Move{From: from, To: targets[i]}
	}

	// one step against the pre-task tree, targets may name other sources
	conflicts, err := r.fs.RenameAll(moves)
	if err != nil {
		return errors.Errorf("renaming %d files: %w", len(moves), err)
	}
	for i, conflict := range conflicts {
		if conflict {
			zerolog.Ctx(ctx).Warn().Str("from", moves[i].From).Str("to", moves[i].To).Msg("rename target already existed")
			res.Conflicts = append(res.Conflicts, Conflict{From: moves[i].From, To: moves[i].To})
		}
	}
	return nil
}

func (r *Runner) create(ctx context.Context, t *task.Task, matched []string) error {
	var produced [][]task.Staged

	if t.Pattern() == "" {
		staged, err := r.produceOnce(ctx, t)
		if err != nil {
			return err
		}
		produced = append(produced, staged)
	} else {
		files, err := r.snapshots(matched)
		if err != nil {
			return err
		}
		produced = make([][]task.Staged, len(files))
		err = r.fanOut(t, matched, func(i int) error {
			staged, err := t.Produce(ctx, &files[i])
			if err != nil {
				return err
			}
			produced[i] = staged
			return nil
		})
		if err != nil {
			return err
		}
	}

	for _, batch := range produced {
		for _, s := range batch {
			if err := r.fs.Create(s.Path, s.Data, t.Overwrite()); err != nil {
				return errors.Errorf("creating %s: %w", s.Path, err)
			}
		}
	}
	return nil
}

func (r *Runner) produceOnce(ctx context.Context, t *task.Task) (staged []task.Staged, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = errors.Errorf("panic: %v", p)
		}
		if err != nil {
			err = &HandlerError{Task: t.Title(), Err: err}
		}
	}()
	return t.Produce(ctx, nil)
}

// String makes a TaskResult readable in test failures and debug logs.
func (r TaskResult) String() string {
	return fmt.Sprintf("%s %q matched=%d changes=%d conflicts=%d", r.Kind, r.Title, len(r.Matched), len(r.Changes), len(r.Conflicts))
}
