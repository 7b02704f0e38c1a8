package progress

import (
	"bytes"
	"strings"
	"testing"
)

func TestCIReporterCountsFilesAndPassages(t *testing.T) {
	var buf bytes.Buffer
	r := &CIReporter{Out: &buf}

	r.Start(2)
	r.FileDone("notes/career.md", 5)
	r.FileDone("notes/empty.md", 0)
	r.Finish(5)

	out := buf.String()
	for _, want := range []string{
		"Indexing 2 files",
		"[1/2] notes/career.md: 5 passages",
		"[2/2] notes/empty.md: 0 passages",
		"Indexing complete: 5 passages",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestCIReporterResetsBetweenRuns(t *testing.T) {
	var buf bytes.Buffer
	r := &CIReporter{Out: &buf}

	r.Start(1)
	r.FileDone("a.md", 1)
	r.Finish(1)

	buf.Reset()
	r.Start(1)
	r.FileDone("b.md", 2)

	if !strings.Contains(buf.String(), "[1/1] b.md: 2 passages") {
		t.Errorf("second run did not restart the file counter:\n%s", buf.String())
	}
}
