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

package task

import (
	"github.com/walteh/restage/pkg/vfs"
	"gitlab.com/tozd/go/errors"
)

// 🌍 Env is what a migration's setup function gets to see
type Env struct {
	// Cwd is the migration root on real storage.
	Cwd string
	// FS is the overlay the run will execute against. Setup code may seed it
	// before any task runs.
	FS *vfs.FS
}

// SetupFunc declares tasks on r.
type SetupFunc func(r *Registry, env Env) error

// 📋 Registry collects task declarations in order. It is created fresh for
// every load of a Definition.
type Registry struct {
	tasks []*Task
	errs  []error
}

func (r *Registry) add(t *Task, err error) {
	if err != nil {
		r.errs = append(r.errs, err)
		return
	}
	r.tasks = append(r.tasks, t)
}

// Add appends an already built task.
func (r *Registry) Add(t *Task) {
	if t == nil {
		r.errs = append(r.errs, errors.New("nil task"))
		return
	}
	r.tasks = append(r.tasks, t)
}

// Transform declares a raw text transform.
func (r *Registry) Transform(title, pattern string, fn TransformFunc) {
	r.add(NewTransform(title, pattern, fn))
}

// TransformData declares a transform over decoded structured content.
func (r *Registry) TransformData(title, pattern string, fn DataFunc) {
	r.add(NewTransformData(title, pattern, fn))
}

// Rename declares a rename.
func (r *Registry) Rename(title, pattern string, fn RenameFunc) {
	r.add(NewRename(title, pattern, fn))
}

// Remove declares a removal.
func (r *Registry) Remove(title, pattern string) {
	r.add(NewRemove(title, pattern))
}

// Create declares a create that runs once.
func (r *Registry) Create(title string, fn CreateFunc, opts ...Option) {
	r.add(NewCreate(title, "", fn, opts...))
}

// CreateFrom declares a create that runs once per file matched by pattern.
func (r *Registry) CreateFrom(title, pattern string, fn CreateFunc, opts ...Option) {
	r.add(NewCreate(title, pattern, fn, opts...))
}

// 📦 Migration is a loaded, ordered list of tasks
type Migration struct {
	Title string
	Tasks []*Task
}

// Definition is a named migration whose tasks are declared by a setup function.
type Definition struct {
	title string
	setup SetupFunc
}

// 🏭 Define creates a migration definition
func Define(title string, setup SetupFunc) *Definition {
	return &Definition{title: title, setup: setup}
}

func (d *Definition) Title() string { return d.title }

// 🔄 Load evaluates the setup function against a fresh registry
func (d *Definition) Load(env Env) (*Migration, error) {
	if d.setup == nil {
		return nil, errors.Errorf("migration %q has no setup function", d.title)
	}

	r := &Registry{}
	if err := d.setup(r, env); err != nil {
		return nil, errors.Errorf("setting up migration %q: %w", d.title, err)
	}
	if len(r.errs) > 0 {
		return nil, errors.Errorf("declaring tasks for migration %q: %w", d.title, errors.Join(r.errs...))
	}

	tasks := make([]*Task, len(r.tasks))
	copy(tasks, r.tasks)
	return &Migration{Title: d.title, Tasks: tasks}, nil
}
