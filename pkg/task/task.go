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

// Package task declares the units of change a migration is made of.
//
// Tasks are immutable once declared. Handlers are pure functions of one
// file's staged state; they never touch the filesystem themselves.
package task

import (
	"context"
	"path"
	"strings"

	"github.com/walteh/restage/pkg/codec"
	"github.com/walteh/restage/pkg/match"
	"github.com/walteh/restage/pkg/vfs"
	"gitlab.com/tozd/go/errors"
)

// 📊 Kind is the kind of change a task makes
type Kind int

const (
	KindTransform Kind = iota
	KindRename
	KindRemove
	KindCreate
)

// String returns a string representation of Kind
func (k Kind) String() string {
	switch k {
	case KindTransform:
		return "transform"
	case KindRename:
		return "rename"
	case KindRemove:
		return "remove"
	case KindCreate:
		return "create"
	default:
		return "unknown"
	}
}

// 📄 File is the snapshot a handler receives
type File struct {
	FileName string
	Source   string
}

// NewFile is a file produced by a create handler.
type NewFile struct {
	FileName string
	Source   codec.Result
}

type (
	// TransformFunc returns the new content for a file.
	TransformFunc func(ctx context.Context, f File) (codec.Result, error)
	// DataFunc receives the decoded document and returns the new one.
	DataFunc func(ctx context.Context, fileName string, v any) (codec.Result, error)
	// RenameFunc returns a bare name (same directory) or a relative path.
	RenameFunc func(ctx context.Context, fileName string) (string, error)
	// CreateFunc produces new files. from is nil for tasks without a pattern.
	CreateFunc func(ctx context.Context, from *File) ([]NewFile, error)
)

// 🔧 Option tweaks a task at declaration
type Option func(*Task)

// WithOverwrite lets a create task replace live files.
func WithOverwrite() Option {
	return func(t *Task) { t.overwrite = true }
}

// 🎯 Task is one declared unit of change
type Task struct {
	title     string
	kind      Kind
	pattern   string
	overwrite bool

	transform TransformFunc
	data      DataFunc
	rename    RenameFunc
	create    CreateFunc
}

func (t *Task) Title() string { return t.title }

func (t *Task) Kind() Kind { return t.kind }

// Pattern is the normalized glob, empty for a create task that runs once.
func (t *Task) Pattern() string { return t.pattern }

func (t *Task) Overwrite() bool { return t.overwrite }

// Structured reports whether the transform handler works on decoded data.
func (t *Task) Structured() bool { return t.data != nil }

func newTask(title string, kind Kind, pattern string, opts []Option) (*Task, error) {
	if strings.TrimSpace(title) == "" {
		return nil, errors.Errorf("%s task: title is required", kind)
	}
	t := &Task{title: title, kind: kind, pattern: match.Normalize(pattern)}
	if kind != KindCreate || pattern != "" {
		if err := match.Validate(pattern); err != nil {
			return nil, errors.Errorf("%s task %q: %w", kind, title, err)
		}
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// 🏭 NewTransform declares a transform over raw text
func NewTransform(title, pattern string, fn TransformFunc) (*Task, error) {
	if fn == nil {
		return nil, errors.Errorf("transform task %q: handler is required", title)
	}
	t, err := newTask(title, KindTransform, pattern, nil)
	if err != nil {
		return nil, err
	}
	t.transform = fn
	return t, nil
}

// NewTransformData declares a transform over decoded structured content.
func NewTransformData(title, pattern string, fn DataFunc) (*Task, error) {
	if fn == nil {
		return nil, errors.Errorf("transform task %q: handler is required", title)
	}
	t, err := newTask(title, KindTransform, pattern, nil)
	if err != nil {
		return nil, err
	}
	t.data = fn
	return t, nil
}

// NewRename declares a rename.
func NewRename(title, pattern string, fn RenameFunc) (*Task, error) {
	if fn == nil {
		return nil, errors.Errorf("rename task %q: handler is required", title)
	}
	t, err := newTask(title, KindRename, pattern, nil)
	if err != nil {
		return nil, err
	}
	t.rename = fn
	return t, nil
}

// NewRemove declares a removal.
func NewRemove(title, pattern string) (*Task, error) {
	return newTask(title, KindRemove, pattern, nil)
}

// NewCreate declares a create. With an empty pattern the handler runs once
// with a nil file; otherwise once per matched file.
func NewCreate(title, pattern string, fn CreateFunc, opts ...Option) (*Task, error) {
	if fn == nil {
		return nil, errors.Errorf("create task %q: handler is required", title)
	}
	t, err := newTask(title, KindCreate, pattern, opts)
	if err != nil {
		return nil, err
	}
	t.create = fn
	return t, nil
}

// ⚙️ Apply runs the transform handler and returns the bytes to stage
func (t *Task) Apply(ctx context.Context, f File) ([]byte, error) {
	var (
		res codec.Result
		err error
	)
	if t.data != nil {
		v, derr := codec.Decode(f.FileName, []byte(f.Source))
		if derr != nil {
			return nil, derr
		}
		res, err = t.data(ctx, f.FileName, v)
	} else {
		res, err = t.transform(ctx, f)
	}
	if err != nil {
		return nil, err
	}
	return codec.Encode(f.FileName, res)
}

// 🚚 Target runs the rename handler and resolves the new path
func (t *Task) Target(ctx context.Context, fileName string) (string, error) {
	name, err := t.rename(ctx, fileName)
	if err != nil {
		return "", err
	}
	name = strings.ReplaceAll(strings.TrimSpace(name), "\\", "/")
	if name == "" {
		return "", errors.Errorf("rename of %s returned an empty name", fileName)
	}
	if !strings.Contains(name, "/") {
		name = path.Join(path.Dir(fileName), name)
	}
	return vfs.Clean(name)
}

// 📦 Staged is a file a create handler produced, encoded and ready to stage
type Staged struct {
	Path string
	Data []byte
}

// Produce runs the create handler and encodes its output.
func (t *Task) Produce(ctx context.Context, from *File) ([]Staged, error) {
	files, err := t.create(ctx, from)
	if err != nil {
		return nil, err
	}

	out := make([]Staged, 0, len(files))
	for _, nf := range files {
		p, err := vfs.Clean(nf.FileName)
		if err != nil {
			return nil, err
		}
		data, err := codec.Encode(p, nf.Source)
		if err != nil {
			return nil, err
		}
		out = append(out, Staged{Path: p, Data: data})
	}
	return out, nil
}
