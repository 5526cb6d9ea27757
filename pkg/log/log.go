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
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
)

// 🎨 Display configuration
const (
	fileIndent  = 4  // spaces to indent file entries
	nameWidth   = 35 // Base width for filename
	statusWidth = 10 // Width for status text
)

// ChangeKind is what happened to a file
type ChangeKind int

const (
	ChangeUnchanged ChangeKind = iota
	ChangeCreate
	ChangeWrite
	ChangeRename
	ChangeDelete
)

// String returns a string representation of ChangeKind
func (k ChangeKind) String() string {
	switch k {
	case ChangeCreate:
		return "created"
	case ChangeWrite:
		return "updated"
	case ChangeRename:
		return "renamed"
	case ChangeDelete:
		return "deleted"
	default:
		return "no change"
	}
}

// 🎯 FileChange is one line of file output
type FileChange struct {
	Path   string     // File path
	From   string     // Previous path of a rename
	Kind   ChangeKind // What happened
	Detail string     // Extra text after the status
}

// 📋 TaskHeader introduces the output of one task
type TaskHeader struct {
	Index   int // zero based
	Total   int
	Title   string
	Kind    string
	Matched int
}

// 🎯 Logger writes user facing console output and mirrors it to zerolog
type Logger struct {
	zlog    zerolog.Logger
	console io.Writer
	mu      sync.Mutex
}

// 🏭 New creates a new logger
func New(console io.Writer, zlog zerolog.Logger) *Logger {
	return &Logger{
		zlog:    zlog,
		console: console,
	}
}

// 🔑 contextKey is the type for context values
type contextKey struct{}

// 🎯 FromContext gets the logger from context
func FromContext(ctx context.Context) *Logger {
	logger, ok := ctx.Value(contextKey{}).(*Logger)
	if !ok {
		panic("logger not found in context")
	}
	return logger
}

// 🎯 NewContext adds the logger to context
func NewContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, l)
}

// 📝 formatFileChange formats a file change for display
func (l *Logger) formatFileChange(c FileChange) string {
	var symbol rune
	var symbolColor color.Attribute
	switch c.Kind {
	case ChangeCreate:
		symbol = '✓'
		symbolColor = color.FgGreen
	case ChangeWrite:
		symbol = '⟳'
		symbolColor = color.FgBlue
	case ChangeRename:
		symbol = '→'
		symbolColor = color.FgCyan
	case ChangeDelete:
		symbol = '✗'
		symbolColor = color.FgRed
	default:
		symbol = '•'
		symbolColor = color.Faint
	}

	detail := c.Detail
	if c.Kind == ChangeRename && c.From != "" {
		detail = "from " + c.From
		if c.Detail != "" {
			detail += ", " + c.Detail
		}
	}

	line := fmt.Sprintf("%s%s %s %s",
		fmt.Sprintf("%*s", fileIndent, ""),
		color.New(symbolColor).Sprint(string(symbol)),
		fmt.Sprintf("%-*s", nameWidth, c.Path),
		fmt.Sprintf("%-*s", statusWidth, c.Kind))
	if detail != "" {
		line += " " + color.New(color.Faint).Sprint(detail)
	}
	return line
}

// 📝 LogFileChange logs a file change
func (l *Logger) LogFileChange(ctx context.Context, c FileChange) {
	l.mu.Lock()
	defer l.mu.Unlock()

	fmt.Fprintln(l.console, l.formatFileChange(c))

	l.zlog.Debug().
		Str("file", c.Path).
		Str("from", c.From).
		Str("change", c.Kind.String()).
		Msg("file change")
}

// 📝 StartTask prints the header line of a task
func (l *Logger) StartTask(ctx context.Context, h TaskHeader) {
	l.mu.Lock()
	defer l.mu.Unlock()

	fmt.Fprintf(l.console, "%s %s %s\n",
		color.New(color.FgMagenta).Sprintf("[%d/%d]", h.Index+1, h.Total),
		color.New(color.Bold).Sprint(h.Title),
		color.New(color.Faint).Sprintf("• %s • %d matched", h.Kind, h.Matched))
}

// 📝 Println writes pre-formatted text as is
func (l *Logger) Println(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.console, s)
}

// 📝 LogNewline logs a newline
func (l *Logger) LogNewline() {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.console)
}

// 📝 Header logs a header
func (l *Logger) Header(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	name := color.New(color.Bold, color.FgCyan).Sprint("restage")
	fmt.Fprintf(l.console, "\n%s %s\n\n", name, color.New(color.Faint).Sprint("• "+msg))
	l.zlog.Info().Msg(msg)
}

// 📝 Success logs a success message
func (l *Logger) Success(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "✅ %s\n", color.New(color.FgGreen).Sprint(msg))
	l.zlog.Info().Msg(msg)
}

// 📝 Warning logs a warning message
func (l *Logger) Warning(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "⚠️  %s\n", color.New(color.FgYellow).Sprint(msg))
	l.zlog.Warn().Msg(msg)
}

// 📝 Error logs an error message
func (l *Logger) Error(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "❌ %s\n", color.New(color.FgRed).Sprint(msg))
	l.zlog.Error().Msg(msg)
}

// 📝 Info logs an info message
func (l *Logger) Info(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "ℹ️  %s\n", color.New(color.FgCyan).Sprint(msg))
	l.zlog.Info().Msg(msg)
}

// 📝 Infof logs a formatted info message
func (l *Logger) Infof(format string, args ...interface{}) {
	l.Info(fmt.Sprintf(format, args...))
}

// 📝 Warningf logs a formatted warning message
func (l *Logger) Warningf(format string, args ...interface{}) {
	l.Warning(fmt.Sprintf(format, args...))
}

// 📝 Errorf logs a formatted error message
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.Error(fmt.Sprintf(format, args...))
}

// 📝 Successf logs a formatted success message
func (l *Logger) Successf(format string, args ...interface{}) {
	l.Success(fmt.Sprintf(format, args...))
}
