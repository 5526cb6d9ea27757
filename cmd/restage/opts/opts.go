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

package opts

import (
	"io"

	"github.com/spf13/viper"
	"github.com/walteh/restage/pkg/vfs"
	"gitlab.com/tozd/go/errors"
)

// RootOpts contains shared options used by all commands
type RootOpts struct {
	MigrationFile string
	Cwd           string
	Dry           bool
	Yes           bool
	Diff          bool
	Concurrency   int
	OnConflict    string
	Debug         bool

	Out io.Writer
}

// Load reads every option from v, which merges flags, RESTAGE_* env vars
// and an optional .restage config file.
func (o *RootOpts) Load(v *viper.Viper) error {
	o.MigrationFile = v.GetString("file")
	o.Cwd = v.GetString("cwd")
	o.Dry = v.GetBool("dry")
	o.Yes = v.GetBool("yes")
	o.Diff = v.GetBool("diff")
	o.Concurrency = v.GetInt("concurrency")
	o.OnConflict = v.GetString("on-conflict")
	o.Debug = v.GetBool("debug")

	if o.Concurrency < 0 {
		return errors.Errorf("concurrency must not be negative, got %d", o.Concurrency)
	}
	if _, err := o.ConflictPolicy(); err != nil {
		return err
	}
	return nil
}

// ConflictPolicy maps --on-conflict to a vfs policy.
func (o *RootOpts) ConflictPolicy() (vfs.ConflictPolicy, error) {
	switch o.OnConflict {
	case "", "overwrite":
		return vfs.ConflictOverwrite, nil
	case "error":
		return vfs.ConflictError, nil
	default:
		return vfs.ConflictOverwrite, errors.Errorf("unknown conflict policy %q (want overwrite or error)", o.OnConflict)
	}
}
