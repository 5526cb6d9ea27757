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

// Package match resolves glob patterns against a set of slash separated paths.
//
// Patterns follow doublestar semantics: '*' matches anything except '/',
// '**' matches across path segments (including none), '?' matches a single
// character, and '[...]' / '{a,b}' give character classes and alternatives.
package match

import (
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gitlab.com/tozd/go/errors"
)

// ErrBadPattern is returned for patterns doublestar cannot parse.
var ErrBadPattern = errors.Base("bad pattern")

// 🧹 Normalize trims the decorations users tend to put in front of patterns
func Normalize(pattern string) string {
	p := strings.ReplaceAll(strings.TrimSpace(pattern), "\\", "/")
	for strings.HasPrefix(p, "./") {
		p = strings.TrimPrefix(p, "./")
	}
	return strings.TrimPrefix(p, "/")
}

// 🔍 Validate reports whether pattern is well formed
func Validate(pattern string) error {
	p := Normalize(pattern)
	if p == "" {
		return errors.Errorf("%w: empty pattern", ErrBadPattern)
	}
	if !doublestar.ValidatePattern(p) {
		return errors.Errorf("%w: %q", ErrBadPattern, pattern)
	}
	return nil
}

// 🎯 Match returns the sorted subset of paths matched by pattern.
// Matching nothing is not an error.
func Match(pattern string, paths []string) ([]string, error) {
	if err := Validate(pattern); err != nil {
		return nil, err
	}
	p := Normalize(pattern)

	matched := make([]string, 0)
	for _, path := range paths {
		ok, err := doublestar.Match(p, path)
		if err != nil {
			return nil, errors.Errorf("%w: %q: %v", ErrBadPattern, pattern, err)
		}
		if ok {
			matched = append(matched, path)
		}
	}

	sort.Strings(matched)
	return matched, nil
}

// Any reports whether pattern matches path.
func Any(pattern, path string) (bool, error) {
	m, err := Match(pattern, []string{path})
	if err != nil {
		return false, err
	}
	return len(m) == 1, nil
}
