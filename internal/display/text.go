package display

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/RMahshie/gsmscope/pkg/models"
)

// barCells is the width of the text bar
const barCells = 30

// TextSink writes each snapshot as a plain text table
type TextSink struct {
	w   io.Writer
	now func() time.Time
}

// NewTextSink creates a sink writing to w
func NewTextSink(w io.Writer) *TextSink {
	return &TextSink{w: w, now: time.Now}
}

// Render writes snap
func (s *TextSink) Render(snap *models.Snapshot) error {
	v := BuildView(snap, s.now())

	var b strings.Builder
	fmt.Fprintf(&b, "%s  %s\n", v.Title, v.Updated)
	for _, line := range v.Lines {
		marker := ""
		if line.Stale {
			marker = " (stale)"
		}
		fmt.Fprintf(&b, "  %-10s %12s %-1s  %s%s\n", line.Operator, line.Value, arrowOrSpace(line.Arrow), textBar(line), marker)
	}
	fmt.Fprintf(&b, "%s\n", v.Status)

	_, err := io.WriteString(s.w, b.String())
	return err
}

func arrowOrSpace(a string) string {
	if a == "" {
		return " "
	}
	return a
}

func textBar(line Line) string {
	if !line.HasData {
		return strings.Repeat("·", barCells)
	}
	filled := cellsFor(line.Percent, barCells)
	return strings.Repeat("█", filled) + strings.Repeat("·", barCells-filled)
}

// cellsFor converts a percentage into a number of filled cells out of width
func cellsFor(percent float64, width int) int {
	n := int(percent/100*float64(width) + 0.5)
	if n < 0 {
		return 0
	}
	if n > width {
		return width
	}
	return n
}
