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

package codec

import (
	"strings"

	"gitlab.com/tozd/go/errors"
)

// Lookup resolves a dotted key ("scripts.build") inside nested maps.
func Lookup(v any, key string) (any, bool) {
	cur := v
	for _, part := range strings.Split(key, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// 🔧 SetKey stores val at a dotted key, creating intermediate maps. The
// root must be a map (or nil, which starts an empty one).
func SetKey(v any, key string, val any) (map[string]any, error) {
	root, err := asMap(v)
	if err != nil {
		return nil, err
	}

	parts := strings.Split(key, ".")
	cur := root
	for i, part := range parts[:len(parts)-1] {
		next, ok := cur[part]
		if !ok || next == nil {
			m := map[string]any{}
			cur[part] = m
			cur = m
			continue
		}
		m, ok := next.(map[string]any)
		if !ok {
			return nil, errors.Errorf("key %q: %s is not an object", key, strings.Join(parts[:i+1], "."))
		}
		cur = m
	}
	cur[parts[len(parts)-1]] = val
	return root, nil
}

// UnsetKey deletes a dotted key. Missing keys are ignored.
func UnsetKey(v any, key string) (map[string]any, error) {
	root, err := asMap(v)
	if err != nil {
		return nil, err
	}

	parts := strings.Split(key, ".")
	cur := root
	for _, part := range parts[:len(parts)-1] {
		m, ok := cur[part].(map[string]any)
		if !ok {
			return root, nil
		}
		cur = m
	}
	delete(cur, parts[len(parts)-1])
	return root, nil
}

func asMap(v any) (map[string]any, error) {
	switch m := v.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return m, nil
	default:
		return nil, errors.Errorf("document root is %T, not an object", v)
	}
}
