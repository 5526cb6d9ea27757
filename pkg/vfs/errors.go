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

import "gitlab.com/tozd/go/errors"

var (
	// ErrNotFound is returned when a path is absent from both the overlay and storage.
	ErrNotFound = errors.Base("not found")
	// ErrAlreadyExists is returned when creating over a live entry without overwrite.
	ErrAlreadyExists = errors.Base("already exists")
	// ErrConflict is returned for a rename onto a live entry under ConflictError.
	ErrConflict = errors.Base("rename target already exists")
	// ErrIsDir is returned for file operations on a directory.
	ErrIsDir = errors.Base("is a directory")
	// ErrInvalidPath is returned for empty paths and paths outside the root.
	ErrInvalidPath = errors.Base("invalid path")
)
