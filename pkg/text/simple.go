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

package text

import (
	"strings"

	"gitlab.com/tozd/go/errors"
)

// Rule replaces every occurrence of Old with New
type Rule struct {
	Old string
	New string
}

// Result is the outcome of running a Replacer over some content
type Result struct {
	Content string
	Count   int
}

// Modified reports whether any rule matched.
func (r Result) Modified() bool {
	return r.Count > 0
}

// Replacer applies its rules in order, each rule seeing the output of the one before
type Replacer struct {
	rules []Rule
}

// NewReplacer validates rules and returns a replacer for them
func NewReplacer(rules []Rule) (*Replacer, error) {
	if err := Validate(rules); err != nil {
		return nil, err
	}
	cp := make([]Rule, len(rules))
	copy(cp, rules)
	return &Replacer{rules: cp}, nil
}

// Replace runs every rule over content
func (r *Replacer) Replace(content string) Result {
	result := Result{Content: content}
	for _, rule := range r.rules {
		n := strings.Count(result.Content, rule.Old)
		if n == 0 {
			continue
		}
		result.Content = strings.ReplaceAll(result.Content, rule.Old, rule.New)
		result.Count += n
	}
	return result
}

// Validate checks that every rule has something to look for
func Validate(rules []Rule) error {
	if len(rules) == 0 {
		return errors.New("no replacement rules")
	}
	for i, rule := range rules {
		if rule.Old == "" {
			return errors.Errorf("rule %d: old text is required", i)
		}
	}
	return nil
}
