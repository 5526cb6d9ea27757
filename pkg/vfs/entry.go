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

package vfs

import (
	"path"
	"strings"

	"github.com/cespare/xxhash/v2"
	"gitlab.com/tozd/go/errors"
)

// 📊 Kind is the staged state of a path
type Kind int

const (
	KindFile          Kind = iota // File present on disk, possibly modified
	KindDirectory                 // Directory present on disk
	KindDeleted                   // Removed or renamed away
	KindPendingCreate             // File that only exists in the overlay
)

// String returns a string representation of Kind
func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDirectory:
		return "directory"
	case KindDeleted:
		return "deleted"
	case KindPendingCreate:
		return "pending-create"
	default:
		return "unknown"
	}
}

// 🧬 OriginKind records where an entry's content came from
type OriginKind int

const (
	OriginDisk OriginKind = iota
	OriginCreated
	OriginRenamed
)

// Origin tracks the provenance of an entry. From is only set for renames.
type Origin struct {
	Kind OriginKind
	From string
}

// String returns a string representation of Origin
func (o Origin) String() string {
	switch o.Kind {
	case OriginDisk:
		return "disk"
	case OriginCreated:
		return "created"
	case OriginRenamed:
		return "renamed from " + o.From
	default:
		return "unknown"
	}
}

// 📄 Entry is the staged state of one path
type Entry struct {
	Path    string
	Kind    Kind
	Content []byte
	Origin  Origin
}

// Live reports whether the entry is a file that can be read.
func (e *Entry) Live() bool {
	return e != nil && (e.Kind == KindFile || e.Kind == KindPendingCreate)
}

func (e *Entry) clone() *Entry {
	if e == nil {
		return nil
	}
	c := *e
	return &c
}

// 🔄 Op is the kind of mutation recorded in a Change
type Op int

const (
	OpCreate Op = iota
	OpWrite
	OpRename
	OpDelete
)

// String returns a string representation of Op
func (o Op) String() string {
	switch o {
	case OpCreate:
		return "create"
	case OpWrite:
		return "write"
	case OpRename:
		return "rename"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// 📝 Change is one staged mutation, in the order it was applied.
//
// Before is nil for creates, After is nil for deletes. For renames Path is the
// destination, From the source, and Before holds whatever the rename
// overwrote at the destination (nil when it was free).
type Change struct {
	Op        Op
	Path      string
	From      string
	Before    []byte
	After     []byte
	BeforeSum uint64
	AfterSum  uint64
}

// Modified reports whether the change alters content at Path.
func (c Change) Modified() bool {
	switch c.Op {
	case OpWrite:
		return c.BeforeSum != c.AfterSum
	default:
		return true
	}
}

func newChange(op Op, p, from string, before, after []byte) Change {
	c := Change{Op: op, Path: p, From: from, Before: before, After: after}
	if before != nil {
		c.BeforeSum = xxhash.Sum64(before)
	}
	if after != nil {
		c.AfterSum = xxhash.Sum64(after)
	}
	return c
}

// 🧹 Clean normalizes p into a slash separated path relative to the root.
// Paths that are empty or escape the root are rejected.
func Clean(p string) (string, error) {
	s := strings.ReplaceAll(strings.TrimSpace(p), "\\", "/")
	if s == "" {
		return "", errors.Errorf("%w: empty path", ErrInvalidPath)
	}
	s = path.Clean(s)
	s = strings.TrimLeft(s, "/")
	if s == "" || s == "." {
		return "", errors.Errorf("%w: %q", ErrInvalidPath, p)
	}
	if s == ".." || strings.HasPrefix(s, "../") {
		return "", errors.Errorf("%w: %q escapes the root", ErrInvalidPath, p)
	}
	return s, nil
}
