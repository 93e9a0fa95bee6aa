// Package progress reports indexing progress on a terminal or in CI logs.
package progress

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/schollz/progressbar/v3"
)

// Reporter receives progress while policy documents are indexed.
type Reporter interface {
	Start(total int)
	Update(current int, message string)
	Finish()
}

// ciVars are environment variables that indicate a non-interactive run.
var ciVars = []string{"CI", "GITHUB_ACTIONS", "BUILDKITE", "JENKINS_URL"}

// NewReporter returns a LineReporter when running under CI and a
// BarReporter otherwise. Both write to w.
func NewReporter(w io.Writer) Reporter {
	for _, v := range ciVars {
		if os.Getenv(v) != "" {
			return &LineReporter{w: w}
		}
	}
	return &BarReporter{w: w}
}

// BarReporter draws a progress bar labelled with the current document.
type BarReporter struct {
	w   io.Writer
	bar *progressbar.ProgressBar
}

func (r *BarReporter) Start(total int) {
	r.bar = progressbar.NewOptions(total,
		progressbar.OptionSetDescription("Indexing policies"),
		progressbar.OptionSetWriter(r.w),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}

func (r *BarReporter) Update(current int, message string) {
	if r.bar == nil {
		return
	}
	r.bar.Describe(filepath.Base(message))
	_ = r.bar.Set(current)
}

func (r *BarReporter) Finish() {
	if r.bar != nil {
		_ = r.bar.Finish()
	}
}

// LineReporter prints one line per document.
type LineReporter struct {
	w       io.Writer
	total   int
	current int
}

func (r *LineReporter) Start(total int) {
	r.total = total
	fmt.Fprintf(r.w, "Indexing %d policy document(s)\n", total)
}

func (r *LineReporter) Update(current int, message string) {
	r.current = current
	fmt.Fprintf(r.w, "[%d/%d] %s\n", current, r.total, message)
}

func (r *LineReporter) Finish() {
	fmt.Fprintf(r.w, "Indexing complete (%d/%d)\n", r.current, r.total)
}

// Nop discards all progress.
type Nop struct{}

func (Nop) Start(int)          {}
func (Nop) Update(int, string) {}
func (Nop) Finish()            {}
