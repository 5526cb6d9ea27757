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

package report_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/restage/pkg/pipeline"
	"github.com/walteh/restage/pkg/report"
	"github.com/walteh/restage/pkg/task"
	"github.com/walteh/restage/pkg/vfs"
	"gitlab.com/tozd/go/errors"
)

func render(t *testing.T, l *pipeline.Log, opts report.Options) (string, report.Totals) {
	t.Helper()
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = false })

	ctx := zerolog.New(zerolog.NewTestWriter(t)).WithContext(context.Background())
	buf := &bytes.Buffer{}
	totals := report.Render(ctx, buf, l, opts)
	return buf.String(), totals
}

func completedLog() *pipeline.Log {
	return &pipeline.Log{
		Migration: "migrate to flow-bm",
		State:     pipeline.StateCompleted,
		Total:     3,
		Results: []pipeline.TaskResult{
			{
				Title:   "rename module.json",
				Kind:    task.KindRename,
				Pattern: "module.json",
				Matched: []string{"module.json"},
				Changes: []vfs.Change{{Op: vfs.OpRename, Path: "application.json", From: "module.json", After: []byte("{}")}},
			},
			{
				Title:   "flow-bm scripts",
				Kind:    task.KindTransform,
				Pattern: "package.json",
				Matched: []string{"package.json"},
				Changes: []vfs.Change{{
					Op:     vfs.OpWrite,
					Path:   "package.json",
					Before: []byte("{\n  \"build\": \"yoshi-bm\"\n}\n"),
					After:  []byte("{\n  \"build\": \"yoshi-flow-bm\"\n}\n"),
				}},
			},
			{
				Title:   "drop backups",
				Kind:    task.KindRemove,
				Pattern: "**/*.orig",
				Matched: []string{},
			},
		},
	}
}

func TestRenderCompleted(t *testing.T) {
	out, totals := render(t, completedLog(), report.Options{})

	assert.Contains(t, out, "restage • migrate to flow-bm")
	assert.Contains(t, out, "[1/3] rename module.json • rename • 1 matched")
	assert.Contains(t, out, "[2/3] flow-bm scripts • transform • 1 matched")
	assert.Contains(t, out, "[3/3] drop backups • remove • 0 matched")
	assert.Contains(t, out, `⚠️  pattern "**/*.orig" matched no files`)
	assert.Contains(t, out, "from module.json")
	assert.Contains(t, out, "+1 -1")
	assert.Contains(t, out, "✅ 3 tasks, 1 updated, 1 renamed")
	assert.NotContains(t, out, "yoshi-flow-bm", "diffs are off by default")

	assert.Equal(t, 3, totals.Tasks)
	assert.Equal(t, 2, totals.Changes())
}

func TestRenderDiff(t *testing.T) {
	out, _ := render(t, completedLog(), report.Options{ShowDiff: true, Dry: true})

	assert.Contains(t, out, "migrate to flow-bm (dry run)")
	assert.Contains(t, out, `      -   "build": "yoshi-bm"`)
	assert.Contains(t, out, `      +   "build": "yoshi-flow-bm"`)
}

func TestRenderNothingToChange(t *testing.T) {
	l := &pipeline.Log{Migration: "noop", State: pipeline.StateCompleted, Total: 1, Results: []pipeline.TaskResult{
		{Title: "identity", Kind: task.KindTransform, Pattern: "*.txt", Matched: []string{"a.txt"}},
	}}
	out, totals := render(t, l, report.Options{})

	assert.Contains(t, out, "ℹ️  nothing to change")
	assert.NotContains(t, out, "matched no files")
	assert.Equal(t, 0, totals.Changes())
}

func TestRenderFailed(t *testing.T) {
	l := &pipeline.Log{
		Migration:   "broken",
		State:       pipeline.StateFailed,
		Total:       2,
		FailedIndex: 1,
		FailedTitle: "explode",
		Err:         errors.New("boom"),
		Results: []pipeline.TaskResult{
			{Title: "fine", Kind: task.KindRemove, Pattern: "*.orig", Matched: []string{"a.orig"},
				Changes: []vfs.Change{{Op: vfs.OpDelete, Path: "a.orig", Before: []byte("x")}}},
		},
	}
	out, _ := render(t, l, report.Options{})

	assert.Contains(t, out, "✗ a.orig")
	assert.Contains(t, out, `❌ task 2/2 "explode" failed: boom`)
	assert.NotContains(t, out, "✅")
}

func TestRenderConflict(t *testing.T) {
	l := &pipeline.Log{Migration: "collide", State: pipeline.StateCompleted, Total: 1, Results: []pipeline.TaskResult{{
		Title:     "collide",
		Kind:      task.KindRename,
		Pattern:   "a.json",
		Matched:   []string{"a.json"},
		Changes:   []vfs.Change{{Op: vfs.OpRename, Path: "b.json", From: "a.json", Before: []byte("old"), After: []byte("new")}},
		Conflicts: []pipeline.Conflict{{From: "a.json", To: "b.json"}},
	}}}
	out, _ := render(t, l, report.Options{})

	assert.Contains(t, out, "⚠️  a.json overwrote existing b.json")
	assert.Contains(t, out, "from a.json, overwrote existing")
}

func TestLineDiff(t *testing.T) {
	tests := []struct {
		name   string
		before string
		after  string
		want   []report.DiffLine
	}{
		{
			name:   "equal",
			before: "a\nb\n",
			after:  "a\nb\n",
			want:   []report.DiffLine{{Op: report.DiffEqual, Text: "a"}, {Op: report.DiffEqual, Text: "b"}},
		},
		{
			name:   "changed_line",
			before: "a\nb\nc\n",
			after:  "a\nB\nc\n",
			want: []report.DiffLine{
				{Op: report.DiffEqual, Text: "a"},
				{Op: report.DiffDelete, Text: "b"},
				{Op: report.DiffInsert, Text: "B"},
				{Op: report.DiffEqual, Text: "c"},
			},
		},
		{
			name:   "created",
			before: "",
			after:  "x\r\ny\r\n",
			want:   []report.DiffLine{{Op: report.DiffInsert, Text: "x"}, {Op: report.DiffInsert, Text: "y"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := report.LineDiff(tt.before, tt.after)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestCount(t *testing.T) {
	totals := report.Count(completedLog())
	assert.Equal(t, report.Totals{Tasks: 3, Updated: 1, Renamed: 1}, totals)
}

func TestRenderSetup(t *testing.T) {
	l := completedLog()
	l.Setup = []vfs.Change{{Op: vfs.OpCreate, Path: "seeded.txt", After: []byte("seed\n")}}

	out, totals := render(t, l, report.Options{})

	assert.Contains(t, out, "ℹ️  setup staged 1 changes")
	assert.Contains(t, out, "seeded.txt")
	assert.Contains(t, out, "✅ 3 tasks, 1 created, 1 updated, 1 renamed")
	assert.Equal(t, 3, totals.Changes())
}
