package display

import (
	"context"
	"fmt"
	"time"

	"github.com/RMahshie/gsmscope/pkg/models"
	termbox "github.com/nsf/termbox-go"
)

// Source publishes snapshots, see monitor.Monitor
type Source interface {
	Updates() <-chan *models.Snapshot
	Latest() *models.Snapshot
}

var operatorColors = map[string]termbox.Attribute{
	models.OperatorOrange:   termbox.ColorYellow,
	models.OperatorVodafone: termbox.ColorRed,
	models.OperatorTelekom:  termbox.ColorMagenta,
	models.OperatorDigi:     termbox.ColorBlue,
}

var levelColors = map[Level]termbox.Attribute{
	LevelInfo:  termbox.ColorCyan,
	LevelOK:    termbox.ColorGreen,
	LevelWarn:  termbox.ColorYellow,
	LevelError: termbox.ColorRed,
}

// TerminalSink draws snapshots full screen with termbox. termbox must be
// initialised by the caller, RunTerminal does this.
type TerminalSink struct {
	now func() time.Time
}

// NewTerminalSink creates a terminal sink
func NewTerminalSink() *TerminalSink {
	return &TerminalSink{now: time.Now}
}

const (
	labelCol = 2
	valueCol = 14
	arrowCol = 27
	barCol   = 30
)

// Render redraws the screen
func (s *TerminalSink) Render(snap *models.Snapshot) error {
	v := BuildView(snap, s.now())

	if err := termbox.Clear(termbox.ColorDefault, termbox.ColorDefault); err != nil {
		return err
	}
	width, height := termbox.Size()

	putString(labelCol, 0, v.Title, termbox.ColorWhite|termbox.AttrBold, termbox.ColorDefault)
	putString(labelCol, 1, v.Updated, termbox.ColorGreen, termbox.ColorDefault)
	putString(labelCol+len(v.Updated)+4, 1, v.Countdown, termbox.ColorBlue, termbox.ColorDefault)

	barWidth := width - barCol - 2
	if barWidth < 10 {
		barWidth = 10
	}

	y := 3
	for _, line := range v.Lines {
		fg := termbox.ColorDefault
		switch {
		case line.Stale:
			fg = termbox.ColorYellow
		case line.HasData:
			fg = termbox.ColorGreen
		}
		putString(labelCol, y, line.Operator, termbox.ColorWhite|termbox.AttrBold, termbox.ColorDefault)
		putString(valueCol, y, fmt.Sprintf("%12s", line.Value), fg, termbox.ColorDefault)
		switch line.Trend {
		case models.TrendImproved:
			putString(arrowCol, y, line.Arrow, termbox.ColorGreen|termbox.AttrBold, termbox.ColorDefault)
		case models.TrendDegraded:
			putString(arrowCol, y, line.Arrow, termbox.ColorRed|termbox.AttrBold, termbox.ColorDefault)
		}

		barColor, ok := operatorColors[line.Operator]
		if !ok {
			barColor = termbox.ColorCyan
		}
		filled := 0
		if line.HasData {
			filled = cellsFor(line.Percent, barWidth)
		}
		for x := 0; x < barWidth; x++ {
			if x < filled {
				termbox.SetCell(barCol+x, y, '█', barColor, termbox.ColorDefault)
			} else {
				termbox.SetCell(barCol+x, y, '·', termbox.ColorDefault, termbox.ColorDefault)
			}
		}
		y += 2
	}

	putString(labelCol, y, v.Status, levelColors[v.StatusLevel], termbox.ColorDefault)
	putString(labelCol, height-1, "q / Esc: quit", termbox.ColorDefault, termbox.ColorDefault)

	return termbox.Flush()
}

func putString(x, y int, s string, fg, bg termbox.Attribute) {
	for _, r := range s {
		termbox.SetCell(x, y, r, fg, bg)
		x++
	}
}

// RunTerminal owns the terminal until ctx is done or the user quits. All drawing
// happens on the calling goroutine; a helper goroutine only forwards key events
// and is left blocked in PollEvent when the terminal closes.
func RunTerminal(ctx context.Context, src Source) error {
	if err := termbox.Init(); err != nil {
		return fmt.Errorf("failed to initialise terminal: %w", err)
	}
	defer termbox.Close()
	termbox.HideCursor()

	sink := NewTerminalSink()
	events := make(chan termbox.Event)
	done := make(chan struct{})
	defer close(done)

	go func() {
		for {
			ev := termbox.PollEvent()
			if ev.Type == termbox.EventInterrupt {
				return
			}
			select {
			case events <- ev:
			case <-done:
				return
			}
		}
	}()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	if err := sink.Render(src.Latest()); err != nil {
		return err
	}

	for {
		var err error
		select {
		case <-ctx.Done():
			return nil
		case snap := <-src.Updates():
			err = sink.Render(snap)
		case <-ticker.C:
			err = sink.Render(src.Latest())
		case ev := <-events:
			switch ev.Type {
			case termbox.EventKey:
				if ev.Key == termbox.KeyEsc || ev.Key == termbox.KeyCtrlC || ev.Ch == 'q' {
					return nil
				}
			case termbox.EventResize:
				err = sink.Render(src.Latest())
			case termbox.EventError:
				return ev.Err
			}
		}
		if err != nil {
			return err
		}
	}
}
