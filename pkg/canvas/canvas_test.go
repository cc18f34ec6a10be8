package canvas

import (
	"math"
	"math/rand"
	"reflect"
	"strings"
	"testing"

	"github.com/gonewx/danmu2ass/pkg/danmu"
)

// newDanmu 构造一条长度为 length 像素的弹幕（配合 FontSize=0、WidthRatio=1 的配置）
func newDanmu(timeline float64, length uint32) danmu.Danmu {
	return danmu.Danmu{
		Timeline: timeline,
		Content:  "弹",
		Mode:     danmu.ModeFloat,
		FontSize: length,
		RGB:      [3]uint8{0xff, 0xff, 0xff},
	}
}

// canvasWithLanes 创建指定槽位数量的画布
func canvasWithLanes(lanes int) *Canvas {
	cfg := testConfig()
	cfg.LaneSize = 10
	cfg.Height = uint32(lanes * 10)
	cfg.FloatPercentage = 1.0
	return cfg.NewCanvas()
}

// TestFloatLanes 测试槽位数量计算
func TestFloatLanes(t *testing.T) {
	tests := []struct {
		name       string
		percentage float64
		height     uint32
		laneSize   uint32
		want       int
	}{
		{"默认配置", 0.5, 720, 46, 7},
		{"全屏", 1.0, 720, 32, 22},
		{"不使用滚动弹幕", 0, 720, 46, 0},
		{"整除", 0.5, 720, 36, 10},
		{"浮点误差", 0.3, 100, 10, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.FloatPercentage = tt.percentage
			cfg.Height = tt.height
			cfg.LaneSize = tt.laneSize

			c := cfg.NewCanvas()
			if c.LaneCount() != tt.want {
				t.Errorf("LaneCount() = %d, want %d", c.LaneCount(), tt.want)
			}
		})
	}
}

// TestDrawDelay 延迟放入：时间所需 < 1 秒
func TestDrawDelay(t *testing.T) {
	c := canvasWithLanes(1)

	if _, outcome := c.Draw(newDanmu(0, 100)); outcome != Placed {
		t.Fatalf("A: expected Placed, got %v", outcome)
	}

	d, outcome := c.Draw(newDanmu(0, 50))
	if outcome != Delayed {
		t.Fatalf("B: expected Delayed, got %v", outcome)
	}
	if d.Lane != 0 {
		t.Errorf("B: lane = %d, want 0", d.Lane)
	}
	want := 100.0/138.0 + 0.01
	if math.Abs(d.StartTime()-want) > 1e-9 {
		t.Errorf("B: start = %.6f, want %.6f", d.StartTime(), want)
	}

	lane := c.Lane(0)
	if math.Abs(lane.LastLaunchTime-want) > 1e-9 || lane.LastLength != 50 {
		t.Errorf("lane state = %+v, want (%.4f, 50)", *lane, want)
	}
}

// TestDrawSeparate 立即放入：Separate
func TestDrawSeparate(t *testing.T) {
	c := canvasWithLanes(1)
	c.Draw(newDanmu(0, 100))

	d, outcome := c.Draw(newDanmu(5, 50))
	if outcome != Placed {
		t.Fatalf("expected Placed, got %v", outcome)
	}
	if d.StartTime() != 5 {
		t.Errorf("start = %v, want 5 (no delay)", d.StartTime())
	}

	lane := c.Lane(0)
	if lane.LastLaunchTime != 5 || lane.LastLength != 50 {
		t.Errorf("lane state = %+v, want (5, 50)", *lane)
	}
}

// TestDrawDrop 丢弃：所需延迟 >= 1 秒
func TestDrawDrop(t *testing.T) {
	c := canvasWithLanes(1)
	c.Draw(newDanmu(0, 2000))

	d, outcome := c.Draw(newDanmu(0, 10))
	if outcome != DroppedNoLane || d != nil {
		t.Fatalf("expected drop, got %v %+v", outcome, d)
	}

	lane := c.Lane(0)
	if lane.LastLaunchTime != 0 || lane.LastLength != 2000 {
		t.Errorf("dropped danmu must not mutate lane, got %+v", *lane)
	}

	stats := c.Stats()
	if stats.Placed != 1 || stats.Dropped != 1 {
		t.Errorf("stats = %+v, want 1 placed 1 dropped", stats)
	}
}

// TestDrawFillsEmptyLanesFirst 未使用的槽位优先
func TestDrawFillsEmptyLanesFirst(t *testing.T) {
	c := canvasWithLanes(3)

	for want := 0; want < 3; want++ {
		d, outcome := c.Draw(newDanmu(1, 100))
		if outcome != Placed {
			t.Fatalf("danmu %d: expected Placed, got %v", want, outcome)
		}
		if d.Lane != want {
			t.Errorf("danmu %d: lane = %d, want %d", want, d.Lane, want)
		}
		if d.StartTime() != 1 {
			t.Errorf("danmu %d: start = %v, want 1", want, d.StartTime())
		}
	}
}

// TestDrawPrefersFirstImmediateLane 可立即发射的槽位取编号最小者
func TestDrawPrefersFirstImmediateLane(t *testing.T) {
	c := canvasWithLanes(3)
	c.Draw(newDanmu(0, 100))
	c.Draw(newDanmu(0, 100))
	c.Draw(newDanmu(0, 100))

	d, outcome := c.Draw(newDanmu(5, 50))
	if outcome != Placed || d.Lane != 0 {
		t.Errorf("expected lane 0 Placed, got lane %d %v", d.Lane, outcome)
	}
}

// TestDrawPicksMinimumDelay 延迟候选取最小延迟，相同时取编号最小者
func TestDrawPicksMinimumDelay(t *testing.T) {
	c := canvasWithLanes(3)
	c.Draw(newDanmu(0, 300)) // lane 0
	c.Draw(newDanmu(0, 100)) // lane 1
	c.Draw(newDanmu(0, 100)) // lane 2

	d, outcome := c.Draw(newDanmu(0, 50))
	if outcome != Delayed {
		t.Fatalf("expected Delayed, got %v", outcome)
	}
	if d.Lane != 1 {
		t.Errorf("lane = %d, want 1 (minimum delay, lowest index)", d.Lane)
	}
}

// TestDrawTimeOffset 测试时间轴偏移
func TestDrawTimeOffset(t *testing.T) {
	c := canvasWithLanes(2)
	c.config.TimeOffset = -2

	if _, outcome := c.Draw(newDanmu(1, 100)); outcome != DroppedBeforeStart {
		t.Errorf("expected DroppedBeforeStart, got %v", outcome)
	}

	d, outcome := c.Draw(newDanmu(3, 100))
	if outcome != Placed {
		t.Fatalf("expected Placed, got %v", outcome)
	}
	if d.StartTime() != 1 {
		t.Errorf("start = %v, want 1", d.StartTime())
	}
	if d.Lane != 0 {
		t.Errorf("before-start drop must not occupy a lane, got lane %d", d.Lane)
	}

	if c.Stats().BeforeStart != 1 {
		t.Errorf("BeforeStart = %d, want 1", c.Stats().BeforeStart)
	}
}

// TestDrawCoercesFixedModes 固定弹幕按滚动弹幕放置
func TestDrawCoercesFixedModes(t *testing.T) {
	for _, mode := range []danmu.Mode{danmu.ModeTop, danmu.ModeBottom, danmu.ModeReverse} {
		t.Run(mode.String(), func(t *testing.T) {
			c := canvasWithLanes(1)
			in := newDanmu(0, 100)
			in.Mode = mode

			d, outcome := c.Draw(in)
			if outcome != Placed {
				t.Fatalf("expected Placed, got %v", outcome)
			}
			if d.Danmu.Mode != danmu.ModeFloat {
				t.Errorf("mode = %v, want float", d.Danmu.Mode)
			}
			if d.Start.X != 1280 || d.End.X != -100 {
				t.Errorf("move = %v -> %v, want (1280,0) -> (-100,0)", d.Start, d.End)
			}
		})
	}
}

// TestPoolForAllModes 所有模式（包括未知模式）都进入滚动弹幕池并被放置
func TestPoolForAllModes(t *testing.T) {
	modes := []danmu.Mode{danmu.ModeFloat, danmu.ModeTop, danmu.ModeBottom, danmu.ModeReverse, danmu.Mode(99)}
	for _, mode := range modes {
		if got := PoolFor(mode); got != PoolFloat {
			t.Errorf("PoolFor(%d) = %v, want PoolFloat", mode, got)
		}

		c := canvasWithLanes(1)
		in := newDanmu(0, 100)
		in.Mode = mode
		if _, outcome := c.Draw(in); outcome != Placed {
			t.Errorf("mode %d: outcome = %v, want Placed", mode, outcome)
		}
	}
}

// TestDrawMotion 测试运动描述
func TestDrawMotion(t *testing.T) {
	c := canvasWithLanes(3)
	c.Draw(newDanmu(0, 100))
	d, _ := c.Draw(newDanmu(0, 100))

	if d.Start != (Point{X: 1280, Y: 10}) {
		t.Errorf("Start = %+v, want (1280,10)", d.Start)
	}
	if d.End != (Point{X: -100, Y: 10}) {
		t.Errorf("End = %+v, want (-100,10)", d.End)
	}
	if d.Duration != 10 {
		t.Errorf("Duration = %v, want 10", d.Duration)
	}
}

// TestDrawOutOfOrder 乱序输入只计数
func TestDrawOutOfOrder(t *testing.T) {
	c := canvasWithLanes(2)
	c.Draw(newDanmu(5, 100))
	c.Draw(newDanmu(3, 100))

	if c.Stats().OutOfOrder != 1 {
		t.Errorf("OutOfOrder = %d, want 1", c.Stats().OutOfOrder)
	}
}

// TestDrawNoLanes 没有槽位时全部丢弃
func TestDrawNoLanes(t *testing.T) {
	cfg := testConfig()
	cfg.FloatPercentage = 0
	c := cfg.NewCanvas()

	if _, outcome := c.Draw(newDanmu(0, 100)); outcome != DroppedNoLane {
		t.Errorf("expected DroppedNoLane, got %v", outcome)
	}
}

// randomStream 生成确定性的弹幕流，按时间排序
func randomStream(seed int64, n int) []danmu.Danmu {
	r := rand.New(rand.NewSource(seed))
	out := make([]danmu.Danmu, 0, n)
	t := 0.0
	for i := 0; i < n; i++ {
		t += r.Float64() * 0.4
		chars := 1 + r.Intn(20)
		content := strings.Repeat("弹", chars/2) + strings.Repeat("a", chars-chars/2)
		out = append(out, danmu.Danmu{
			Timeline: t,
			Content:  content,
			Mode:     danmu.Mode(r.Intn(4)),
			FontSize: 25,
		})
	}
	return out
}

func drawAll(c *Canvas, stream []danmu.Danmu) []*Drawable {
	var out []*Drawable
	for _, d := range stream {
		if drawable, outcome := c.Draw(d); outcome.Accepted() {
			out = append(out, drawable)
		}
	}
	return out
}

// TestDrawDeterministic 相同输入产生相同输出
func TestDrawDeterministic(t *testing.T) {
	stream := randomStream(42, 300)

	first := drawAll(canvasWithLanes(5), stream)
	second := drawAll(canvasWithLanes(5), stream)

	if !reflect.DeepEqual(first, second) {
		t.Error("identical input produced different placements")
	}
}

// TestDrawCollisionFree 同一槽位的弹幕在任何时刻都不重叠
func TestDrawCollisionFree(t *testing.T) {
	stream := randomStream(7, 400)
	drawables := drawAll(canvasWithLanes(4), stream)

	if len(drawables) == 0 {
		t.Fatal("expected some placements")
	}

	const eps = 1e-6
	for i := 0; i < len(drawables); i++ {
		for j := i + 1; j < len(drawables); j++ {
			a, b := drawables[i], drawables[j]
			if a.Lane != b.Lane {
				continue
			}
			from := math.Max(a.StartTime(), b.StartTime())
			to := math.Min(a.EndTime(), b.EndTime())
			for step := 0; step <= 50 && from <= to; step++ {
				now := from + (to-from)*float64(step)/50
				ax, _, okA := a.PositionAt(now)
				bx, _, okB := b.PositionAt(now)
				if !okA || !okB {
					continue
				}
				// a 在前，b 的头部不能越过 a 的尾部
				front, back := ax, bx
				frontLen := a.Length
				if bx < ax {
					front, back = bx, ax
					frontLen = b.Length
				}
				if front+frontLen > back+eps {
					t.Fatalf("lane %d overlap at t=%.3f: [%.2f,%.2f] vs back head %.2f",
						a.Lane, now, front, front+frontLen, back)
				}
			}
		}
	}
}

// TestDrawDropMonotonic 放宽最大延迟不会减少放入数量
func TestDrawDropMonotonic(t *testing.T) {
	stream := []danmu.Danmu{
		newDanmu(0, 100),
		newDanmu(0, 50),
		newDanmu(5, 50),
	}

	prev := -1
	for _, maxDelay := range []float64{0, 0.5, 1.0, 2.0, 10.0} {
		c := canvasWithLanes(1)
		c.config.MaxDelay = maxDelay
		accepted := len(drawAll(c, stream))
		if accepted < prev {
			t.Errorf("maxDelay=%.1f accepted %d, fewer than %d", maxDelay, accepted, prev)
		}
		prev = accepted
	}
	if prev != 3 {
		t.Errorf("with a large tolerance all danmu should fit, got %d", prev)
	}
}

// TestConfigValidate 测试配置验证
func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"默认配置", func(*Config) {}, false},
		{"宽度为 0", func(c *Config) { c.Width = 0 }, true},
		{"持续时间为 0", func(c *Config) { c.Duration = 0 }, true},
		{"槽位高度为 0", func(c *Config) { c.LaneSize = 0 }, true},
		{"百分比超过 1", func(c *Config) { c.FloatPercentage = 1.5 }, true},
		{"不透明度为负", func(c *Config) { c.Opacity = -0.1 }, true},
		{"宽度比例为 0", func(c *Config) { c.WidthRatio = 0 }, true},
		{"负的最大延迟", func(c *Config) { c.MaxDelay = -1 }, true},
		{"负的时间偏移", func(c *Config) { c.TimeOffset = -30 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
