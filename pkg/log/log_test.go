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

package log

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger(t *testing.T) {
	// Disable color for testing
	color.NoColor = true
	defer func() { color.NoColor = false }()

	tests := []struct {
		name     string
		op       func(t *testing.T, logger *Logger)
		wantLogs []string
	}{
		{
			name: "log_task_header",
			op: func(t *testing.T, logger *Logger) {
				logger.StartTask(context.Background(), TaskHeader{
					Index:   0,
					Total:   3,
					Title:   "rename module.json",
					Kind:    "rename",
					Matched: 1,
				})
			},
			wantLogs: []string{
				"[1/3] rename module.json • rename • 1 matched",
			},
		},
		{
			name: "log_messages",
			op: func(t *testing.T, logger *Logger) {
				logger.Info("info message")
				logger.Warning("warning message")
				logger.Error("error message")
				logger.Success("success message")
			},
			wantLogs: []string{
				"ℹ️  info message",
				"⚠️  warning message",
				"❌ error message",
				"✅ success message",
			},
		},
		{
			name: "log_formatted_messages",
			op: func(t *testing.T, logger *Logger) {
				logger.Infof("info %s", "test")
				logger.Warningf("warning %s", "test")
				logger.Errorf("error %s", "test")
				logger.Successf("success %s", "test")
			},
			wantLogs: []string{
				"ℹ️  info test",
				"⚠️  warning test",
				"❌ error test",
				"✅ success test",
			},
		},
		{
			name: "log_header",
			op: func(t *testing.T, logger *Logger) {
				logger.Header("migrate to flow-bm")
			},
			wantLogs: []string{
				"restage • migrate to flow-bm",
			},
		},
		{
			name: "log_newline",
			op: func(t *testing.T, logger *Logger) {
				logger.Info("first")
				logger.LogNewline()
				logger.Println("  raw line")
			},
			wantLogs: []string{
				"ℹ️  first",
				"",
				"raw line",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			logger := New(buf, zerolog.New(zerolog.NewTestWriter(t)))

			tt.op(t, logger)

			output := strings.TrimSpace(buf.String())
			lines := strings.Split(output, "\n")

			require.Equal(t, len(tt.wantLogs), len(lines), "number of log lines should match")
			for i, want := range tt.wantLogs {
				assert.Equal(t, want, strings.TrimSpace(lines[i]), "log line %d should match", i)
			}
		})
	}
}

func TestLoggerContext(t *testing.T) {
	logger := New(io.Discard, zerolog.Nop())

	ctx := NewContext(context.Background(), logger)

	got := FromContext(ctx)
	assert.Same(t, logger, got, "logger from context should be the same instance")

	assert.Panics(t, func() {
		FromContext(context.Background())
	}, "FromContext should panic when logger is missing")
}

func TestFileChangeFormatting(t *testing.T) {
	// Disable color for testing
	color.NoColor = true
	defer func() { color.NoColor = false }()

	tests := []struct {
		name   string
		change FileChange
		want   string
	}{
		{
			name:   "created_file",
			change: FileChange{Path: "README.md", Kind: ChangeCreate},
			want:   "    ✓ README.md                           created",
		},
		{
			name:   "updated_file",
			change: FileChange{Path: "package.json", Kind: ChangeWrite, Detail: "2 lines changed"},
			want:   "    ⟳ package.json                        updated    2 lines changed",
		},
		{
			name:   "renamed_file",
			change: FileChange{Path: "application.json", From: "module.json", Kind: ChangeRename},
			want:   "    → application.json                    renamed    from module.json",
		},
		{
			name:   "renamed_over_existing",
			change: FileChange{Path: "b.json", From: "a.json", Kind: ChangeRename, Detail: "overwrote existing"},
			want:   "    → b.json                              renamed    from a.json, overwrote existing",
		},
		{
			name:   "deleted_file",
			change: FileChange{Path: "old.orig", Kind: ChangeDelete},
			want:   "    ✗ old.orig                            deleted",
		},
		{
			name:   "unchanged_file",
			change: FileChange{Path: "same.txt"},
			want:   "    • same.txt                            no change",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			logger := New(buf, zerolog.Nop())

			logger.LogFileChange(context.Background(), tt.change)

			assert.Equal(t, tt.want, strings.TrimRight(buf.String(), " \n"), "formatted output should match")
		})
	}
}

func TestConfirmers(t *testing.T) {
	ctx := context.Background()

	ok, err := Always(true).Confirm(ctx, "apply?")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Always(false).Confirm(ctx, "apply?")
	require.NoError(t, err)
	assert.False(t, ok)

	var asked string
	c := ConfirmFunc(func(_ context.Context, q string) (bool, error) {
		asked = q
		return true, nil
	})
	ok, err = c.Confirm(ctx, "write 3 changes?")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "write 3 changes?", asked)
}
