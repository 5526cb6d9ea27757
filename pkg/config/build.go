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
	"path"
	"sort"
	"strings"
	"text/template"

	"github.com/walteh/restage/pkg/codec"
	"github.com/walteh/restage/pkg/task"
	"github.com/walteh/restage/pkg/text"
	"gitlab.com/tozd/go/errors"
)

// 🏗️ Build turns a validated migration file into a definition
func Build(cfg *Config) *task.Definition {
	return task.Define(cfg.Title, func(r *task.Registry, env task.Env) error {
		for i, spec := range cfg.Tasks {
			if err := register(r, env, spec); err != nil {
				return errors.Errorf("task %d (%q): %w", i, spec.Title, err)
			}
		}
		return nil
	})
}

func register(r *task.Registry, env task.Env, spec TaskSpec) error {
	switch spec.Kind {
	case KindTransform:
		if spec.Structured() {
			return registerEdit(r, env, spec)
		}
		replacer, err := text.NewReplacer(rules(spec.Replace))
		if err != nil {
			return err
		}
		r.Transform(spec.Title, spec.Pattern, func(_ context.Context, f task.File) (codec.Result, error) {
			return codec.RawText(replacer.Replace(f.Source).Content), nil
		})
		return nil

	case KindRename:
		to, err := parseTemplate("to", spec.To)
		if err != nil {
			return err
		}
		r.Rename(spec.Title, spec.Pattern, func(_ context.Context, fileName string) (string, error) {
			return render(to, newFileData(env, fileName, nil))
		})
		return nil

	case KindRemove:
		r.Remove(spec.Title, spec.Pattern)
		return nil

	case KindCreate:
		return registerCreate(r, env, spec)

	default:
		return errors.Errorf("unknown kind %q", spec.Kind)
	}
}

func registerEdit(r *task.Registry, env task.Env, spec TaskSpec) error {
	keys := make([]string, 0, len(spec.Set))
	for k := range spec.Set {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	values := make(map[string]*template.Template, len(keys))
	for _, k := range keys {
		tmpl, err := parseTemplate("set."+k, spec.Set[k])
		if err != nil {
			return err
		}
		values[k] = tmpl
	}
	unset := append([]string(nil), spec.Unset...)

	r.TransformData(spec.Title, spec.Pattern, func(_ context.Context, fileName string, v any) (codec.Result, error) {
		// every template sees the document as it was before this task
		data := newFileData(env, fileName, v)

		rendered := make(map[string]string, len(keys))
		for _, k := range keys {
			out, err := render(values[k], data)
			if err != nil {
				return nil, err
			}
			rendered[k] = out
		}

		doc := v
		for _, k := range keys {
			next, err := codec.SetKey(doc, k, rendered[k])
			if err != nil {
				return nil, errors.Errorf("setting %s: %w", k, err)
			}
			doc = next
		}
		for _, k := range unset {
			next, err := codec.UnsetKey(doc, k)
			if err != nil {
				return nil, errors.Errorf("unsetting %s: %w", k, err)
			}
			doc = next
		}
		return codec.Structured(doc), nil
	})
	return nil
}

func registerCreate(r *task.Registry, env task.Env, spec TaskSpec) error {
	pathTmpl, err := parseTemplate("path", spec.Path)
	if err != nil {
		return err
	}
	contentTmpl, err := parseTemplate("content", spec.Content)
	if err != nil {
		return err
	}

	var opts []task.Option
	if spec.Overwrite {
		opts = append(opts, task.WithOverwrite())
	}

	fn := func(_ context.Context, from *task.File) ([]task.NewFile, error) {
		data := fileData{Cwd: env.Cwd}
		if from != nil {
			var v any
			if _, ok := codec.For(from.FileName); ok {
				decoded, err := codec.Decode(from.FileName, []byte(from.Source))
				if err != nil {
					return nil, err
				}
				v = decoded
			}
			data = newFileData(env, from.FileName, v)
		}

		p, err := render(pathTmpl, data)
		if err != nil {
			return nil, err
		}
		content, err := render(contentTmpl, data)
		if err != nil {
			return nil, err
		}
		return []task.NewFile{{FileName: p, Source: codec.RawText(content)}}, nil
	}

	if spec.Pattern == "" {
		r.Create(spec.Title, fn, opts...)
	} else {
		r.CreateFrom(spec.Title, spec.Pattern, fn, opts...)
	}
	return nil
}

// 📄 fileData is what templates see
type fileData struct {
	Cwd  string
	Path string
	Dir  string
	Name string
	Stem string
	Ext  string

	value any
}

func newFileData(env task.Env, fileName string, v any) fileData {
	name := path.Base(fileName)
	ext := path.Ext(name)
	return fileData{
		Cwd:   env.Cwd,
		Path:  fileName,
		Dir:   path.Dir(fileName),
		Name:  name,
		Stem:  strings.TrimSuffix(name, ext),
		Ext:   ext,
		value: v,
	}
}

func (d fileData) field(key string) (any, error) {
	if d.value == nil {
		return nil, errors.Errorf("field %q: %s has no structured content", key, d.Path)
	}
	v, ok := codec.Lookup(d.value, key)
	if !ok {
		return nil, errors.Errorf("field %q not found in %s", key, d.Path)
	}
	return v, nil
}

var baseFuncs = template.FuncMap{
	// placeholder so templates parse; render rebinds field per file
	"field":      func(string) (any, error) { return nil, nil },
	"lower":      strings.ToLower,
	"upper":      strings.ToUpper,
	"replace":    func(from, to, s string) string { return strings.ReplaceAll(s, from, to) },
	"trimSuffix": func(suffix, s string) string { return strings.TrimSuffix(s, suffix) },
	"trimPrefix": func(prefix, s string) string { return strings.TrimPrefix(s, prefix) },
}

func parseTemplate(name, src string) (*template.Template, error) {
	tmpl, err := template.New(name).Funcs(baseFuncs).Option("missingkey=error").Parse(src)
	if err != nil {
		return nil, errors.Errorf("parsing template %s: %w", name, err)
	}
	return tmpl, nil
}

// render executes tmpl with field bound to data. Handlers of one task run
// concurrently, so each execution works on its own clone.
func render(tmpl *template.Template, data fileData) (string, error) {
	t, err := tmpl.Clone()
	if err != nil {
		return "", errors.Errorf("cloning template %s: %w", tmpl.Name(), err)
	}
	t.Funcs(template.FuncMap{"field": data.field})

	var sb strings.Builder
	if err := t.Execute(&sb, data); err != nil {
		return "", errors.Errorf("rendering %s for %s: %w", tmpl.Name(), data.Path, err)
	}
	return sb.String(), nil
}
