// Package terminal draws the board in a terminal with tview and forwards
// key presses and mouse clicks to the controller.
package terminal

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"mateboard/internal/codec"
	"mateboard/internal/controller"
	"mateboard/internal/render"
)

const (
	// cellWidth is the number of columns per square; one rank label column
	// and a space come first.
	cellWidth   = 3
	labelOffset = 2
	countDepth  = 3
)

var (
	lightColor   = tcell.NewRGBColor(0xee, 0xee, 0xd2)
	darkColor    = tcell.NewRGBColor(0x76, 0x96, 0x56)
	selectColor  = tcell.NewRGBColor(0xf6, 0xf6, 0x69)
	captureColor = tcell.NewRGBColor(0xd0, 0x50, 0x50)
	checkColor   = tcell.NewRGBColor(0xff, 0x30, 0x30)
	lastColor    = tcell.NewRGBColor(0xba, 0xca, 0x44)
	targetColor  = tcell.NewRGBColor(0x30, 0x30, 0x30)
)

// BoardUI is a tview box showing one controller's board.
type BoardUI struct {
	Box  *tview.Box
	app  *tview.Application
	hint *tview.TextView
	ctrl *controller.Controller

	mu     sync.Mutex
	view   render.Board
	extra  string
	curRow int
	curCol int
	left   int
	top    int
}

// New returns a board box. Attach must be called before the application runs.
func New(app *tview.Application, hint *tview.TextView) *BoardUI {
	ui := &BoardUI{
		Box:    tview.NewBox(),
		app:    app,
		hint:   hint,
		curRow: 6,
		curCol: 4,
	}
	ui.Box.SetDrawFunc(ui.draw)
	ui.Box.SetInputCapture(ui.key)
	ui.Box.SetMouseCapture(ui.mouse)
	return ui
}

// Attach connects the controller and takes its first view.
func (ui *BoardUI) Attach(ctrl *controller.Controller) {
	ui.mu.Lock()
	ui.ctrl = ctrl
	ui.view = render.Build(ctrl.View())
	ui.mu.Unlock()
	ui.refreshHint()
}

// Changed rebuilds the view. Pass it to controller.WithNotify. It must not
// be called from the application's event goroutine.
func (ui *BoardUI) Changed() {
	ui.app.QueueUpdateDraw(func() {
		ui.mu.Lock()
		if ui.ctrl != nil {
			ui.view = render.Build(ui.ctrl.View())
		}
		ui.mu.Unlock()
		ui.refreshHint()
	})
}

func (ui *BoardUI) draw(screen tcell.Screen, x, y, width, height int) (int, int, int, int) {
	ui.mu.Lock()
	defer ui.mu.Unlock()
	ui.left, ui.top = x, y
	if len(ui.view.Rows) == 0 {
		return x, y, width, height
	}
	for row, cells := range ui.view.Rows {
		rank := []rune(cells[0].Name)[1]
		screen.SetContent(x, y+row, rank, nil, tcell.StyleDefault)
		for col, c := range cells {
			style, r := cellStyle(c, row == ui.curRow && col == ui.curCol)
			cx := x + labelOffset + col*cellWidth
			screen.SetContent(cx, y+row, ' ', nil, style)
			screen.SetContent(cx+1, y+row, r, nil, style)
			screen.SetContent(cx+2, y+row, ' ', nil, style)
		}
	}
	last := ui.view.Rows[len(ui.view.Rows)-1]
	for col, c := range last {
		screen.SetContent(x+labelOffset+col*cellWidth+1, y+len(ui.view.Rows), rune(c.Name[0]), nil, tcell.StyleDefault)
	}
	return x, y, width, height
}

// cellStyle picks the colours and rune for a cell.
func cellStyle(c render.Cell, cursor bool) (tcell.Style, rune) {
	bg := darkColor
	if c.Has(render.ClassLight) {
		bg = lightColor
	}
	switch {
	case c.Has(render.ClassInCheck):
		bg = checkColor
	case c.Has(render.ClassSelected):
		bg = selectColor
	case c.Has(render.ClassCaptureReceptor):
		bg = captureColor
	case c.Has(render.ClassLastMove):
		bg = lastColor
	}
	fg := tcell.ColorBlack
	r := ' '
	if c.Symbol != "" {
		r = []rune(c.Symbol)[0]
		if c.Glyph == strings.ToUpper(c.Glyph) {
			fg = tcell.ColorWhite
		}
	} else if c.Has(render.ClassEmptyReceptor) {
		r = '•'
		fg = targetColor
	}
	style := tcell.StyleDefault.Background(bg).Foreground(fg)
	if c.Has(render.ClassDisabled) {
		style = style.Dim(true)
	}
	if cursor {
		style = style.Reverse(true)
	}
	return style, r
}

// HitTest maps a screen position to a display row and column, given the
// board's top-left corner.
func HitTest(x, y, left, top int) (row, col int, ok bool) {
	dx, dy := x-left-labelOffset, y-top
	if dx < 0 || dy < 0 {
		return 0, 0, false
	}
	row, col = dy, dx/cellWidth
	if row >= codec.BoardSize || col >= codec.BoardSize {
		return 0, 0, false
	}
	return row, col, true
}

// MoveCursor moves the cursor by (dr, dc), staying on the board.
func (ui *BoardUI) MoveCursor(dr, dc int) {
	ui.mu.Lock()
	defer ui.mu.Unlock()
	ui.curRow = clamp(ui.curRow + dr)
	ui.curCol = clamp(ui.curCol + dc)
}

func clamp(v int) int {
	return max(0, min(codec.BoardSize-1, v))
}

// Cursor returns the board index under the cursor.
func (ui *BoardUI) Cursor() int {
	ui.mu.Lock()
	defer ui.mu.Unlock()
	return ui.indexAt(ui.curRow, ui.curCol)
}

func (ui *BoardUI) indexAt(row, col int) int {
	if row < len(ui.view.Rows) && col < len(ui.view.Rows[row]) {
		return ui.view.Rows[row][col].Index
	}
	return -1
}

func (ui *BoardUI) key(event *tcell.EventKey) *tcell.EventKey {
	switch event.Key() {
	case tcell.KeyUp:
		ui.MoveCursor(-1, 0)
	case tcell.KeyDown:
		ui.MoveCursor(1, 0)
	case tcell.KeyLeft:
		ui.MoveCursor(0, -1)
	case tcell.KeyRight:
		ui.MoveCursor(0, 1)
	case tcell.KeyEnter:
		ui.activate(ui.Cursor())
	case tcell.KeyRune:
		switch event.Rune() {
		case 'k':
			ui.MoveCursor(-1, 0)
		case 'j':
			ui.MoveCursor(1, 0)
		case 'h':
			ui.MoveCursor(0, -1)
		case 'l':
			ui.MoveCursor(0, 1)
		case ' ':
			ui.activate(ui.Cursor())
		case 'a':
			ui.run(func(ctx context.Context) error {
				_, err := ui.ctrl.RequestAgentMove(ctx)
				return err
			})
		case 'r':
			ui.run(ui.ctrl.Refresh)
		case 'n':
			ui.run(func(ctx context.Context) error { return ui.ctrl.LoadPosition(ctx, "") })
		case 'c':
			ui.run(ui.count)
		case 'q':
			ui.app.Stop()
		}
	default:
		return event
	}
	return nil
}

func (ui *BoardUI) mouse(action tview.MouseAction, event *tcell.EventMouse) (tview.MouseAction, *tcell.EventMouse) {
	if action != tview.MouseLeftClick {
		return action, event
	}
	x, y := event.Position()
	ui.mu.Lock()
	row, col, ok := HitTest(x, y, ui.left, ui.top)
	idx := -1
	if ok {
		ui.curRow, ui.curCol = row, col
		idx = ui.indexAt(row, col)
	}
	ui.mu.Unlock()
	if idx < 0 {
		return action, event
	}
	ui.activate(idx)
	return action, nil
}

func (ui *BoardUI) activate(idx int) {
	if idx < 0 {
		return
	}
	ui.run(func(ctx context.Context) error {
		_, err := ui.ctrl.Activate(ctx, idx)
		return err
	})
}

// run calls fn off the event goroutine; the controller's notify queues the
// redraw.
func (ui *BoardUI) run(fn func(context.Context) error) {
	go func() {
		ui.mu.Lock()
		ui.extra = ""
		ui.mu.Unlock()
		if err := fn(context.Background()); err != nil {
			ui.mu.Lock()
			ui.extra = err.Error()
			ui.mu.Unlock()
		}
		ui.Changed()
	}()
}

func (ui *BoardUI) count(ctx context.Context) error {
	mc, err := ui.ctrl.CountMoves(ctx, countDepth)
	if err != nil {
		return err
	}
	ui.mu.Lock()
	ui.extra = fmt.Sprintf("%d moves at depth %d in %s", mc.Moves, countDepth, mc.Elapsed.Round(time.Millisecond))
	ui.mu.Unlock()
	return nil
}

func (ui *BoardUI) refreshHint() {
	ui.mu.Lock()
	defer ui.mu.Unlock()
	ui.hint.SetText(Hint(ui.view, ui.extra))
}

// Hint is the text shown beside the board.
func Hint(b render.Board, extra string) string {
	var sb strings.Builder
	turn := b.SideToMove + " to move"
	if b.Awaiting {
		turn += " (waiting)"
	}
	if b.WhiteInCheck || b.BlackInCheck {
		turn += ", check"
	}
	fmt.Fprintf(&sb, "  %s\n  %s\n", turn, b.Status)
	if b.Notice != "" {
		fmt.Fprintf(&sb, "  %s\n", b.Notice)
	}
	if b.LastMove != "" {
		fmt.Fprintf(&sb, "  last: %s\n", b.LastMove)
	}
	if b.Agent != "" {
		fmt.Fprintf(&sb, "  agent: %s\n", b.Agent)
	}
	fmt.Fprintf(&sb, "  white took: %s\n  black took: %s\n", strings.Join(b.WhiteTray, " "), strings.Join(b.BlackTray, " "))
	if extra != "" {
		fmt.Fprintf(&sb, "  %s\n", extra)
	}
	sb.WriteString("\n  hjkl/arrows move  enter select\n  a agent  n new  r refresh  c count  q quit")
	return sb.String()
}
