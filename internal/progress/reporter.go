// Package progress reports indexing feedback while grounding material is
// split into passages and embedded.
package progress

import (
	"fmt"
	"io"
	"os"

	"github.com/schollz/progressbar/v3"
)

// Reporter receives per-file progress during an indexing run. FileDone
// carries the passage count produced from that file; Finish carries the
// total across the run.
type Reporter interface {
	Start(totalFiles int)
	FileDone(file string, passages int)
	Finish(totalPassages int)
}

// NewReporter returns a TerminalReporter if running in an interactive
// terminal, or a CIReporter if the CI environment variable is set.
func NewReporter() Reporter {
	if os.Getenv("CI") != "" || os.Getenv("GITHUB_ACTIONS") != "" {
		return &CIReporter{Out: os.Stderr}
	}
	return &TerminalReporter{}
}

// TerminalReporter displays a progress bar in the terminal, advancing one
// step per file and showing each file's passage yield as it lands.
type TerminalReporter struct {
	bar  *progressbar.ProgressBar
	done int
}

func (r *TerminalReporter) Start(totalFiles int) {
	r.done = 0
	r.bar = progressbar.NewOptions(totalFiles,
		progressbar.OptionSetDescription("Splitting grounding material"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}

func (r *TerminalReporter) FileDone(file string, passages int) {
	if r.bar == nil {
		return
	}
	r.done++
	r.bar.Describe(fmt.Sprintf("%s (%d passages)", file, passages))
	_ = r.bar.Set(r.done)
}

// Finish clears the bar; the caller prints its own summary line.
func (r *TerminalReporter) Finish(int) {
	if r.bar != nil {
		_ = r.bar.Finish()
	}
}

// CIReporter prints line-by-line progress suitable for CI logs.
type CIReporter struct {
	Out        io.Writer
	totalFiles int
	files      int
}

func (r *CIReporter) Start(totalFiles int) {
	r.totalFiles = totalFiles
	r.files = 0
	fmt.Fprintf(r.Out, "Indexing %d files\n", totalFiles)
}

func (r *CIReporter) FileDone(file string, passages int) {
	r.files++
	fmt.Fprintf(r.Out, "[%d/%d] %s: %d passages\n", r.files, r.totalFiles, file, passages)
}

func (r *CIReporter) Finish(totalPassages int) {
	fmt.Fprintf(r.Out, "Indexing complete: %d passages\n", totalPassages)
}
