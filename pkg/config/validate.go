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
	"github.com/walteh/restage/pkg/match"
	"github.com/walteh/restage/pkg/text"
	"gitlab.com/tozd/go/errors"
)

// 🔍 Validate checks a parsed migration and reports every problem it finds
func Validate(cfg *Config) error {
	var errs []error
	if cfg.Title == "" {
		errs = append(errs, errors.New("title is required"))
	}

	for i, t := range cfg.Tasks {
		if err := validateTask(t); err != nil {
			errs = append(errs, errors.Errorf("task %d (%q): %w", i, t.Title, err))
		}
	}

	if len(errs) > 0 {
		return errors.Join(append([]error{ErrInvalid}, errs...)...)
	}
	return nil
}

func validateTask(t TaskSpec) error {
	if t.Title == "" {
		return errors.New("title is required")
	}

	switch t.Kind {
	case KindTransform, KindRename, KindRemove:
		if t.Pattern == "" {
			return errors.Errorf("pattern is required for %s tasks", t.Kind)
		}
	case KindCreate:
	case "":
		return errors.New("kind is required")
	default:
		return errors.Errorf("unknown kind %q", t.Kind)
	}

	if t.Pattern != "" {
		if err := match.Validate(t.Pattern); err != nil {
			return err
		}
	}

	switch t.Kind {
	case KindTransform:
		if len(t.Replace) == 0 && !t.Structured() {
			return errors.New("transform needs replace or set/unset")
		}
		if len(t.Replace) > 0 && t.Structured() {
			return errors.New("replace cannot be combined with set/unset")
		}
		if len(t.Replace) > 0 {
			if err := text.Validate(rules(t.Replace)); err != nil {
				return err
			}
		}
		for key, val := range t.Set {
			if key == "" {
				return errors.New("set has an empty key")
			}
			if _, err := parseTemplate("set."+key, val); err != nil {
				return err
			}
		}
		for _, key := range t.Unset {
			if key == "" {
				return errors.New("unset has an empty key")
			}
		}
	case KindRename:
		if t.To == "" {
			return errors.New("rename needs to")
		}
		if _, err := parseTemplate("to", t.To); err != nil {
			return err
		}
	case KindCreate:
		if t.Path == "" {
			return errors.New("create needs path")
		}
		if _, err := parseTemplate("path", t.Path); err != nil {
			return err
		}
		if _, err := parseTemplate("content", t.Content); err != nil {
			return err
		}
	}
	return nil
}

func rules(rs []Replacement) []text.Rule {
	out := make([]text.Rule, len(rs))
	for i, r := range rs {
		out[i] = text.Rule{Old: r.Old, New: r.New}
	}
	return out
}
