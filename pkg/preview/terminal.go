package preview

import (
	"fmt"
	"math"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/gonewx/danmu2ass/pkg/canvas"
	"github.com/mattn/go-runewidth"
)

// Cell 终端上的一个字符
type Cell struct {
	X, Y int
	Rune rune
	RGB  [3]uint8
}

// Rasterize 将屏幕上的弹幕映射到 cols x rows 的字符网格
//
// 水平坐标按屏幕宽度等比缩放，每个槽位占一行。宽字符占两列，
// 超出网格的部分被裁掉。
func Rasterize(items []Item, cfg canvas.Config, cols, rows int) []Cell {
	if cols <= 0 || rows <= 0 || cfg.Width == 0 || cfg.LaneSize == 0 {
		return nil
	}

	var cells []Cell
	for _, item := range items {
		row := int(item.Y) / int(cfg.LaneSize)
		if row < 0 || row >= rows {
			continue
		}
		col := int(math.Round(item.X / float64(cfg.Width) * float64(cols)))

		for _, r := range item.Drawable.Danmu.Content {
			if r == '\n' || r == '\r' || r == '\t' {
				r = ' '
			}
			w := runewidth.RuneWidth(r)
			if w == 0 {
				continue
			}
			if col >= 0 && col+w <= cols {
				cells = append(cells, Cell{X: col, Y: row, Rune: r, RGB: item.Drawable.Danmu.RGB})
			}
			col += w
			if col >= cols {
				break
			}
		}
	}
	return cells
}

// Terminal 在终端中回放时间线
//
// 操作: Space 暂停，Left/Right 跳转，Up/Down 调速，Esc/q 退出。
type Terminal struct {
	screen   tcell.Screen
	timeline *Timeline
	player   *Player
}

// NewTerminal 创建终端预览
//
// screen 需已调用 Init，测试中可传入 tcell.NewSimulationScreen。
func NewTerminal(screen tcell.Screen, tl *Timeline) *Terminal {
	return &Terminal{
		screen:   screen,
		timeline: tl,
		player:   NewPlayer(tl.End(), false),
	}
}

// OpenTerminal 初始化当前终端并创建预览
func OpenTerminal(tl *Timeline) (*Terminal, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, fmt.Errorf("failed to create screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return nil, fmt.Errorf("failed to init screen: %w", err)
	}
	return NewTerminal(screen, tl), nil
}

// Player 回放时钟
func (t *Terminal) Player() *Player {
	return t.player
}

// Render 绘制当前时刻
func (t *Terminal) Render() {
	t.screen.Clear()
	cols, rows := t.screen.Size()

	items := t.timeline.Visible(t.player.Position())
	for _, c := range Rasterize(items, t.timeline.Config(), cols, rows-1) {
		color := tcell.NewRGBColor(int32(c.RGB[0]), int32(c.RGB[1]), int32(c.RGB[2]))
		t.screen.SetContent(c.X, c.Y, c.Rune, nil, tcell.StyleDefault.Foreground(color))
	}

	state := "▶"
	if t.player.Paused() {
		state = "⏸"
	}
	status := fmt.Sprintf("%s %.1fs/%.1fs x%.2f  %d on screen", state, t.player.Position(), t.timeline.End(), t.player.Speed(), len(items))
	t.drawString(0, rows-1, status, tcell.StyleDefault.Reverse(true))

	t.screen.Show()
}

func (t *Terminal) drawString(x, y int, s string, style tcell.Style) {
	for _, r := range s {
		t.screen.SetContent(x, y, r, nil, style)
		x += runewidth.RuneWidth(r)
	}
}

// HandleEvent 处理输入，返回 false 表示退出
func (t *Terminal) HandleEvent(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		switch ev.Key() {
		case tcell.KeyEscape, tcell.KeyCtrlC:
			return false
		case tcell.KeyLeft:
			t.player.Seek(-SeekStep)
		case tcell.KeyRight:
			t.player.Seek(SeekStep)
		case tcell.KeyUp:
			t.player.Faster()
		case tcell.KeyDown:
			t.player.Slower()
		case tcell.KeyRune:
			switch ev.Rune() {
			case 'q':
				return false
			case ' ':
				t.player.TogglePause()
			}
		}
	case *tcell.EventResize:
		t.screen.Sync()
	}
	return true
}

// Run 运行事件循环直到用户退出
func (t *Terminal) Run() {
	ticker := time.NewTicker(16 * time.Millisecond) // ~60 FPS
	defer ticker.Stop()

	eventChan := make(chan tcell.Event, 100)
	go func() {
		for {
			ev := t.screen.PollEvent()
			if ev == nil {
				return
			}
			eventChan <- ev
		}
	}()

	last := time.Now()
	for {
		select {
		case ev := <-eventChan:
			if !t.HandleEvent(ev) {
				return
			}
		case now := <-ticker.C:
			t.player.Advance(now.Sub(last).Seconds())
			last = now
			t.Render()
		}
	}
}

// Close 恢复终端
func (t *Terminal) Close() {
	t.screen.Fini()
}
