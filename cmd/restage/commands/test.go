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

package commands

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/walteh/restage/cmd/restage/opts"
	"github.com/walteh/restage/pkg/config"
	"github.com/walteh/restage/pkg/log"
	"github.com/walteh/restage/pkg/testkit"
	"gitlab.com/tozd/go/errors"
)

// NewTestCmd creates the fixture test command
func NewTestCmd(opts *opts.RootOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test <migration-file> <fixture-dir>...",
		Short: "Check a migration against before/after fixtures",
		Long: `Test runs the migration dry against <fixture-dir>/__before__ and compares
the staged tree with <fixture-dir>/__after__. Nothing is written.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := zerolog.Ctx(cmd.Context()).With().Str("command", "test").Logger().WithContext(cmd.Context())
			console := log.New(opts.Out, *zerolog.Ctx(ctx))

			cfg, err := config.LoadFile(ctx, args[0])
			if err != nil {
				return errors.Errorf("loading migration: %w", err)
			}
			def := config.Build(cfg)

			fixtures := args[1:]
			failed := 0
			for _, dir := range fixtures {
				result, err := testkit.Check(ctx, def, dir)
				if err != nil {
					console.Errorf("%s: %v", dir, err)
					failed++
					continue
				}
				if !result.OK() {
					console.Errorf("%s does not match:\n%s", dir, result)
					failed++
					continue
				}
				console.Successf("%s matches", dir)
			}

			if failed > 0 {
				return errors.Errorf("%d of %d fixtures failed", failed, len(fixtures))
			}
			return nil
		},
	}

	return cmd
}
