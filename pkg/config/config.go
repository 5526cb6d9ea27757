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

package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

var (
	ErrNoParser = errors.Base("no parser for migration file")
	ErrInvalid  = errors.Base("invalid migration file")
)

// 🔌 Parser is the interface for migration file parsers
type Parser interface {
	// 📝 Parse parses the migration from bytes
	Parse(ctx context.Context, data []byte, vars Vars) (*Config, error)

	// 🔍 CanParse checks if this parser can handle the given file
	CanParse(filename string) bool
}

// Vars are the values a parser may expose to the file it parses
type Vars struct {
	Cwd      string
	Filename string
}

var (
	// 🗺️ parsers is a list of available parsers
	parsers []Parser
)

// 📝 Register registers a parser
func Register(p Parser) {
	parsers = append(parsers, p)
}

// 🎯 GetParser returns a parser that can handle the given file
func GetParser(filename string) Parser {
	for _, p := range parsers {
		if p.CanParse(filename) {
			return p
		}
	}
	return nil
}

// Task kinds as written in migration files
const (
	KindTransform = "transform"
	KindRename    = "rename"
	KindRemove    = "remove"
	KindCreate    = "create"
)

// 🔄 Replacement is a raw text substitution
type Replacement struct {
	Old string `json:"old" yaml:"old" toml:"old"`
	New string `json:"new" yaml:"new" toml:"new"`
}

// 📋 TaskSpec declares one task. Which fields apply depends on Kind.
type TaskSpec struct {
	Kind    string `json:"kind" yaml:"kind" toml:"kind"`
	Title   string `json:"title" yaml:"title" toml:"title"`
	Pattern string `json:"pattern,omitempty" yaml:"pattern,omitempty" toml:"pattern,omitempty"`

	// rename
	To string `json:"to,omitempty" yaml:"to,omitempty" toml:"to,omitempty"`

	// create
	Path      string `json:"path,omitempty" yaml:"path,omitempty" toml:"path,omitempty"`
	Content   string `json:"content,omitempty" yaml:"content,omitempty" toml:"content,omitempty"`
	Overwrite bool   `json:"overwrite,omitempty" yaml:"overwrite,omitempty" toml:"overwrite,omitempty"`

	// transform
	Replace []Replacement     `json:"replace,omitempty" yaml:"replace,omitempty" toml:"replace,omitempty"`
	Set     map[string]string `json:"set,omitempty" yaml:"set,omitempty" toml:"set,omitempty"`
	Unset   []string          `json:"unset,omitempty" yaml:"unset,omitempty" toml:"unset,omitempty"`
}

// Structured reports whether the task edits decoded content rather than raw text.
func (t TaskSpec) Structured() bool {
	return len(t.Set) > 0 || len(t.Unset) > 0
}

// 📚 Config is a parsed migration file
type Config struct {
	Title string     `json:"title" yaml:"title" toml:"title"`
	Tasks []TaskSpec `json:"tasks" yaml:"tasks" toml:"tasks"`

	Location string `json:"-" yaml:"-" toml:"-"`
}

// 📝 String returns a string representation of the config
func (cfg *Config) String() string {
	return fmt.Sprintf("%s (%d tasks)", cfg.Title, len(cfg.Tasks))
}

// LoadOption configures LoadFile
type LoadOption func(*Vars)

// WithCwd sets the project directory exposed to the migration file.
func WithCwd(dir string) LoadOption {
	return func(v *Vars) {
		v.Cwd = dir
	}
}

// 🎯 LoadFile reads, parses and validates a migration file
func LoadFile(ctx context.Context, path string, opts ...LoadOption) (*Config, error) {
	logger := zerolog.Ctx(ctx)
	logger.Debug().Str("path", path).Msg("loading migration file")

	vars := Vars{Filename: filepath.Base(path)}
	for _, opt := range opts {
		opt(&vars)
	}
	if vars.Cwd == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, errors.Errorf("getting working directory: %w", err)
		}
		vars.Cwd = wd
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Errorf("reading migration file: %w", err)
	}

	p := GetParser(path)
	if p == nil {
		return nil, errors.Errorf("%w: %s", ErrNoParser, path)
	}

	cfg, err := p.Parse(ctx, data, vars)
	if err != nil {
		return nil, errors.Errorf("parsing migration file: %w", err)
	}
	cfg.Location = path

	if err := Validate(cfg); err != nil {
		return nil, errors.Errorf("validating migration file: %w", err)
	}

	logger.Debug().Str("title", cfg.Title).Int("tasks", len(cfg.Tasks)).Msg("loaded migration file")
	return cfg, nil
}
