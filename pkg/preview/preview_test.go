package preview

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/gdamore/tcell/v2"
	"github.com/gonewx/danmu2ass/pkg/canvas"
	"github.com/gonewx/danmu2ass/pkg/convert"
	"github.com/gonewx/danmu2ass/pkg/danmu"
)

func testConfig() canvas.Config {
	cfg := canvas.DefaultConfig()
	cfg.Width = 100
	cfg.Height = 40
	cfg.LaneSize = 10
	cfg.FloatPercentage = 1
	cfg.Duration = 10
	return cfg
}

func drawable(start float64, lane int, content string, length float64) *canvas.Drawable {
	return &canvas.Drawable{
		Danmu:    danmu.Danmu{Timeline: start, Content: content, RGB: [3]uint8{0xff, 0xff, 0xff}},
		Lane:     lane,
		Start:    canvas.Point{X: 100, Y: lane * 10},
		End:      canvas.Point{X: -int(length), Y: lane * 10},
		Length:   length,
		Duration: 10,
	}
}

// TestTimelineVisible 测试某一时刻可见的弹幕
func TestTimelineVisible(t *testing.T) {
	tl := NewTimeline([]*canvas.Drawable{
		drawable(20, 0, "c", 10),
		drawable(0, 0, "a", 10),
		drawable(5, 1, "b", 10),
	}, testConfig())

	if tl.Len() != 3 || tl.End() != 30 {
		t.Fatalf("Len=%d End=%v, want 3 and 30", tl.Len(), tl.End())
	}

	tests := []struct {
		name string
		t    float64
		want []string
	}{
		{"开始", 0, []string{"a"}},
		{"两条", 7, []string{"a", "b"}},
		{"第一条离开", 12, []string{"b"}},
		{"空档", 17, nil},
		{"最后一条", 25, []string{"c"}},
		{"结束后", 31, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items := tl.Visible(tt.t)
			if len(items) != len(tt.want) {
				t.Fatalf("Visible(%v) returned %d items, want %d", tt.t, len(items), len(tt.want))
			}
			for i, item := range items {
				if item.Drawable.Danmu.Content != tt.want[i] {
					t.Errorf("item %d = %q, want %q", i, item.Drawable.Danmu.Content, tt.want[i])
				}
			}
		})
	}

	// t=5 时 a 走过了一半路程: 100 - (100+10)*0.5 = 45
	items := tl.Visible(5)
	if math.Abs(items[0].X-45) > 1e-9 || items[0].Y != 0 {
		t.Errorf("position of a at t=5 = (%v, %v), want (45, 0)", items[0].X, items[0].Y)
	}
	if math.Abs(items[1].X-100) > 1e-9 || items[1].Y != 10 {
		t.Errorf("position of b at t=5 = (%v, %v), want (100, 10)", items[1].X, items[1].Y)
	}
}

// TestPlayer 测试回放时钟
func TestPlayer(t *testing.T) {
	p := NewPlayer(20, false)

	p.Advance(2)
	if p.Position() != 2 {
		t.Errorf("Position = %v, want 2", p.Position())
	}

	p.Faster()
	p.Advance(2) // 1.5 倍速
	if p.Position() != 5 {
		t.Errorf("Position = %v, want 5", p.Position())
	}

	p.TogglePause()
	p.Advance(10)
	if p.Position() != 5 {
		t.Errorf("paused player moved to %v", p.Position())
	}
	p.TogglePause()

	p.Seek(-SeekStep * 3)
	if p.Position() != 0 {
		t.Errorf("Seek below 0: Position = %v", p.Position())
	}

	for i := 0; i < 10; i++ {
		p.Slower()
	}
	if p.Speed() != 0.25 {
		t.Errorf("Speed = %v, want 0.25", p.Speed())
	}
	for i := 0; i < 10; i++ {
		p.Faster()
	}
	if p.Speed() != 4 {
		t.Errorf("Speed = %v, want 4", p.Speed())
	}

	p.Advance(100)
	if p.Position() != 20 || !p.Paused() {
		t.Errorf("at end: Position=%v Paused=%v, want 20 and true", p.Position(), p.Paused())
	}

	loop := NewPlayer(10, true)
	loop.Advance(11)
	if loop.Position() != 0 {
		t.Errorf("looping player Position = %v, want 0", loop.Position())
	}
}

// TestRasterize 测试字符网格映射
func TestRasterize(t *testing.T) {
	cfg := testConfig()

	tests := []struct {
		name    string
		item    Item
		cols    int
		wantX   []int
		wantRow int
	}{
		{"半宽字符", Item{Drawable: drawable(0, 1, "ab", 10), X: 50, Y: 10}, 20, []int{10, 11}, 1},
		{"全宽字符", Item{Drawable: drawable(0, 2, "弹幕", 10), X: 0, Y: 20}, 20, []int{0, 2}, 2},
		{"左侧裁剪", Item{Drawable: drawable(0, 0, "abc", 10), X: -10, Y: 0}, 20, []int{0}, 0},
		{"宽字符放不下最后一列", Item{Drawable: drawable(0, 0, "弹幕", 10), X: 95, Y: 0}, 20, nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cells := Rasterize([]Item{tt.item}, cfg, tt.cols, 4)
			if len(cells) != len(tt.wantX) {
				t.Fatalf("got %d cells, want %d", len(cells), len(tt.wantX))
			}
			for i, c := range cells {
				if c.X != tt.wantX[i] || c.Y != tt.wantRow {
					t.Errorf("cell %d at (%d, %d), want (%d, %d)", i, c.X, c.Y, tt.wantX[i], tt.wantRow)
				}
			}
		})
	}

	// 超出行数的槽位不绘制
	if cells := Rasterize([]Item{{Drawable: drawable(0, 3, "a", 10), X: 0, Y: 30}}, cfg, 20, 3); len(cells) != 0 {
		t.Errorf("lane beyond rows produced %d cells", len(cells))
	}
}

// TestTerminalRender 使用模拟屏幕测试终端绘制和按键
func TestTerminalRender(t *testing.T) {
	screen := tcell.NewSimulationScreen("UTF-8")
	if err := screen.Init(); err != nil {
		t.Fatalf("screen.Init: %v", err)
	}
	defer screen.Fini()
	screen.SetSize(20, 5)

	tl := NewTimeline([]*canvas.Drawable{drawable(0, 1, "hi", 10)}, testConfig())
	term := NewTerminal(screen, tl)
	term.Render()

	// t=0 时弹幕位于右边缘之外，屏幕上第 1 行为空
	if r, _, _, _ := screen.GetContent(19, 1); r == 'h' {
		t.Errorf("danmaku drawn before entering the screen")
	}

	term.Player().Seek(5)
	term.Render()
	// x = 100 - 110*0.5 = 45 -> 第 9 列
	if r, _, _, _ := screen.GetContent(9, 1); r != 'h' {
		t.Errorf("cell (9,1) = %q, want 'h'", r)
	}
	if r, _, _, _ := screen.GetContent(10, 1); r != 'i' {
		t.Errorf("cell (10,1) = %q, want 'i'", r)
	}

	if !term.HandleEvent(tcell.NewEventKey(tcell.KeyRune, ' ', tcell.ModNone)) || !term.Player().Paused() {
		t.Error("space should pause")
	}
	if term.HandleEvent(tcell.NewEventKey(tcell.KeyRune, 'q', tcell.ModNone)) {
		t.Error("q should quit")
	}
	if term.HandleEvent(tcell.NewEventKey(tcell.KeyEscape, 0, tcell.ModNone)) {
		t.Error("Esc should quit")
	}
}

// TestLoadTimeline 测试从 XML 文件加载
func TestLoadTimeline(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.xml")
	xml := `<i><d p="1,1,25,16777215">一</d><d p="0,1,25,16777215">二</d><d p="2,1,25,16777215">剧透</d></i>`
	if err := os.WriteFile(path, []byte(xml), 0644); err != nil {
		t.Fatal(err)
	}

	tl, err := LoadTimeline(path, convert.Options{Config: canvas.DefaultConfig(), Denylist: []string{"剧透"}})
	if err != nil {
		t.Fatalf("LoadTimeline() error: %v", err)
	}
	if tl.Len() != 2 {
		t.Errorf("Len = %d, want 2", tl.Len())
	}
	if items := tl.Visible(0.5); len(items) != 1 || items[0].Drawable.Danmu.Content != "二" {
		t.Errorf("Visible(0.5) = %+v", items)
	}

	bad := canvas.DefaultConfig()
	bad.Width = 0
	if _, err := LoadTimeline(path, convert.Options{Config: bad}); err == nil {
		t.Error("expected error for invalid config")
	}
}
