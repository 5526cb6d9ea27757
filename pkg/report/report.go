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

package report

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/walteh/restage/pkg/log"
	"github.com/walteh/restage/pkg/pipeline"
	"github.com/walteh/restage/pkg/vfs"
)

// Options controls what Render prints
type Options struct {
	ShowDiff bool
	Dry      bool
}

// 📊 Totals counts the changes of a log by kind
type Totals struct {
	Tasks   int
	Created int
	Updated int
	Renamed int
	Deleted int
}

// Changes is the number of changes of any kind.
func (t Totals) Changes() int {
	return t.Created + t.Updated + t.Renamed + t.Deleted
}

// Count totals the changes in l.
func Count(l *pipeline.Log) Totals {
	t := Totals{Tasks: len(l.Results)}
	for _, ch := range l.Changes() {
		switch ch.Op {
		case vfs.OpCreate:
			t.Created++
		case vfs.OpWrite:
			t.Updated++
		case vfs.OpRename:
			t.Renamed++
		case vfs.OpDelete:
			t.Deleted++
		}
	}
	return t
}

// 🖨️ Render prints what every task of l did, followed by a summary line
func Render(ctx context.Context, w io.Writer, l *pipeline.Log, opts Options) Totals {
	out := log.New(w, *zerolog.Ctx(ctx))

	title := l.Migration
	if opts.Dry {
		title += " (dry run)"
	}
	out.Header(title)

	if len(l.Setup) > 0 {
		out.Infof("setup staged %d changes", len(l.Setup))
		renderChanges(ctx, out, l.Setup, opts)
	}

	for i, res := range l.Results {
		out.StartTask(ctx, log.TaskHeader{
			Index:   i,
			Total:   l.Total,
			Title:   res.Title,
			Kind:    res.Kind.String(),
			Matched: len(res.Matched),
		})

		if res.ZeroEffect() {
			out.Warningf("pattern %q matched no files", res.Pattern)
		}
		for _, c := range res.Conflicts {
			out.Warningf("%s overwrote existing %s", c.From, c.To)
		}

		renderChanges(ctx, out, res.Changes, opts)
	}

	totals := Count(l)
	out.LogNewline()
	switch {
	case l.State == pipeline.StateFailed:
		out.Errorf("task %d/%d %q failed: %v", l.FailedIndex+1, l.Total, l.FailedTitle, l.Err)
	case totals.Changes() == 0:
		out.Info("nothing to change")
	default:
		out.Successf("%d tasks, %s", totals.Tasks, summary(totals))
	}
	return totals
}

func renderChanges(ctx context.Context, out *log.Logger, changes []vfs.Change, opts Options) {
	for _, ch := range changes {
		out.LogFileChange(ctx, fileChange(ch))
		if opts.ShowDiff && (ch.Op == vfs.OpWrite || ch.Op == vfs.OpCreate) {
			for _, line := range formatDiff(LineDiff(string(ch.Before), string(ch.After))) {
				out.Println(line)
			}
		}
	}
}

func summary(t Totals) string {
	var parts []string
	add := func(n int, what string) {
		if n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, what))
		}
	}
	add(t.Created, "created")
	add(t.Updated, "updated")
	add(t.Renamed, "renamed")
	add(t.Deleted, "deleted")
	return strings.Join(parts, ", ")
}

func fileChange(ch vfs.Change) log.FileChange {
	fc := log.FileChange{Path: ch.Path, From: ch.From}
	switch ch.Op {
	case vfs.OpCreate:
		fc.Kind = log.ChangeCreate
		fc.Detail = lineStats(nil, ch.After)
	case vfs.OpWrite:
		fc.Kind = log.ChangeWrite
		if !ch.Modified() {
			fc.Kind = log.ChangeUnchanged
			break
		}
		fc.Detail = lineStats(ch.Before, ch.After)
	case vfs.OpRename:
		fc.Kind = log.ChangeRename
		if ch.Before != nil {
			fc.Detail = "overwrote existing"
		}
	case vfs.OpDelete:
		fc.Kind = log.ChangeDelete
	}
	return fc
}

func lineStats(before, after []byte) string {
	added, removed := 0, 0
	for _, d := range LineDiff(string(before), string(after)) {
		switch d.Op {
		case DiffInsert:
			added++
		case DiffDelete:
			removed++
		}
	}
	return fmt.Sprintf("+%d -%d", added, removed)
}

func formatDiff(lines []DiffLine) []string {
	add := color.New(color.FgGreen)
	del := color.New(color.FgRed)

	var out []string
	skipped := false
	for _, d := range lines {
		switch d.Op {
		case DiffInsert:
			out = append(out, add.Sprint("      + "+d.Text))
			skipped = false
		case DiffDelete:
			out = append(out, del.Sprint("      - "+d.Text))
			skipped = false
		default:
			if !skipped && len(out) > 0 {
				out = append(out, color.New(color.Faint).Sprint("      ..."))
			}
			skipped = true
		}
	}
	return out
}
