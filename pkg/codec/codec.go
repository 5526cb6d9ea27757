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

// Package codec turns handler results into bytes and structured files into
// values. Structured output is deterministic: keys are sorted, indentation is
// fixed and line endings follow the platform.
package codec

import (
	"bytes"
	"path"
	"runtime"
	"strings"

	"gitlab.com/tozd/go/errors"
)

// ErrNoCodec is returned when a structured value targets a path whose
// extension has no registered codec.
var ErrNoCodec = errors.Base("no structured codec for path")

// 🏷️ Result is the tagged value a handler returns: RawText or StructuredValue
type Result interface {
	isResult()
}

// RawText is written to the file verbatim.
type RawText string

func (RawText) isResult() {}

// StructuredValue is serialized with the codec picked from the file extension.
type StructuredValue struct {
	Value any
}

func (StructuredValue) isResult() {}

// Structured wraps v as a StructuredValue.
func Structured(v any) StructuredValue {
	return StructuredValue{Value: v}
}

// 🔌 Codec converts between bytes and structured values for one format
type Codec interface {
	Name() string
	Decode(data []byte) (any, error)
	Encode(v any) ([]byte, error)
}

var codecs = map[string]Codec{}

// 📝 Register makes c available for the given extensions (".json", ...)
func Register(c Codec, exts ...string) {
	for _, ext := range exts {
		codecs[strings.ToLower(ext)] = c
	}
}

// For returns the codec registered for the extension of p.
func For(p string) (Codec, bool) {
	c, ok := codecs[strings.ToLower(path.Ext(p))]
	return c, ok
}

// EOL is the line ending used for serialized output.
func EOL() string {
	if runtime.GOOS == "windows" {
		return "\r\n"
	}
	return "\n"
}

// 🧹 normalizeEOL rewrites every line ending to eol and guarantees exactly
// one trailing line ending
func normalizeEOL(data []byte, eol string) []byte {
	s := strings.ReplaceAll(string(data), "\r\n", "\n")
	s = strings.TrimRight(s, "\n")
	if eol != "\n" {
		s = strings.ReplaceAll(s, "\n", eol)
	}
	return []byte(s + eol)
}

// Decode parses data with the codec registered for p.
func Decode(p string, data []byte) (any, error) {
	c, ok := For(p)
	if !ok {
		return nil, errors.Errorf("%w: %s", ErrNoCodec, p)
	}
	v, err := c.Decode(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf")))
	if err != nil {
		return nil, errors.Errorf("decoding %s as %s: %w", p, c.Name(), err)
	}
	return v, nil
}

// 📦 Encode returns the bytes to stage at p for r
func Encode(p string, r Result) ([]byte, error) {
	switch v := r.(type) {
	case RawText:
		return []byte(v), nil
	case StructuredValue:
		c, ok := For(p)
		if !ok {
			return nil, errors.Errorf("%w: %s", ErrNoCodec, p)
		}
		data, err := c.Encode(v.Value)
		if err != nil {
			return nil, errors.Errorf("encoding %s as %s: %w", p, c.Name(), err)
		}
		return normalizeEOL(data, EOL()), nil
	case nil:
		return nil, errors.Errorf("nil result for %s", p)
	default:
		return nil, errors.Errorf("unsupported result %T for %s", r, p)
	}
}
