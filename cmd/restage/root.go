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

package main

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/walteh/restage/cmd/restage/commands"
	"github.com/walteh/restage/cmd/restage/opts"
	"github.com/walteh/restage/pkg/migrate"
	"gitlab.com/tozd/go/errors"
)

// newRootCmd builds the command tree writing user output to out
func newRootCmd(out io.Writer) *cobra.Command {
	o := &opts.RootOpts{Out: out}
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "restage [migration-file]",
		Short: "Stage and apply codebase migrations",
		Long: `restage runs a migration against a staged copy of the project, shows what
every task would change and writes the result once you confirm it.`,
		Args:          cobra.MaximumNArgs(1),
		Version:       GetVersionInfo().Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := readConfigFile(v); err != nil {
				return err
			}
			if err := o.Load(v); err != nil {
				return errors.Errorf("reading options: %w", err)
			}
			cmd.SetContext(setupLogging(cmd.Context(), o.Debug))
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			file := o.MigrationFile
			if len(args) == 1 {
				file = args[0]
			}
			if file == "" {
				return errors.Errorf("%w: pass a migration file or set RESTAGE_FILE", migrate.ErrNoMigration)
			}

			policy, err := o.ConflictPolicy()
			if err != nil {
				return err
			}

			_, err = migrate.Run(cmd.Context(), migrate.Options{
				Cwd:            o.Cwd,
				MigrationFile:  file,
				Dry:            o.Dry,
				Yes:            o.Yes,
				Concurrency:    o.Concurrency,
				ConflictPolicy: policy,
				Out:            o.Out,
				ShowDiff:       o.Diff,
			})
			return err
		},
	}

	cmd.SetVersionTemplate(FormatVersion())
	cmd.SetOut(out)
	addRootFlags(cmd, v)

	cmd.AddCommand(commands.NewTestCmd(o))
	return cmd
}

// addRootFlags adds shared flags to the root command and binds them to v
func addRootFlags(cmd *cobra.Command, v *viper.Viper) {
	flags := cmd.PersistentFlags()
	flags.StringP("file", "f", "", "migration file (yaml, json, toml or hcl)")
	flags.String("cwd", "", "project directory (default: working directory)")
	flags.Bool("dry", false, "show what would change without writing")
	flags.BoolP("yes", "y", false, "apply without asking for confirmation")
	flags.Bool("diff", false, "print line diffs of changed files")
	flags.Int("concurrency", 0, "handlers run at once per task (default: number of CPUs)")
	flags.String("on-conflict", "overwrite", "rename onto an existing file: overwrite or error")
	flags.BoolP("debug", "d", false, "enable debug logging")

	v.SetEnvPrefix("RESTAGE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	_ = v.BindPFlags(flags)
}

// readConfigFile loads .restage.{yaml,json,toml,...} from the working
// directory when there is one.
func readConfigFile(v *viper.Viper) error {
	v.SetConfigName(".restage")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return errors.Errorf("reading config file: %w", err)
	}
	return nil
}

// setupLogging configures zerolog based on flags
func setupLogging(ctx context.Context, debug bool) context.Context {
	level := zerolog.WarnLevel
	if debug {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()
	return logger.WithContext(ctx)
}
