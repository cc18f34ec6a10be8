// Package canvas 决定弹幕的绘制策略
//
// Canvas 持有固定数量的滚动弹幕槽位，对每条弹幕执行准入判定：
// 立即放入、延迟后放入、或者丢弃。一个 Canvas 只属于一个转换任务，不做任何 I/O。
package canvas

import (
	"log"

	"github.com/gonewx/danmu2ass/pkg/danmu"
)

// Pool 弹幕放置池
type Pool int

const (
	// PoolFloat 滚动弹幕池
	PoolFloat Pool = iota
)

// placementPools 弹幕模式到放置池的映射
//
// 顶部、底部和逆向弹幕统一当作滚动弹幕处理。
// 要给固定弹幕恢复独立的池，只需修改这张表并为新池实现放置逻辑。
var placementPools = map[danmu.Mode]Pool{
	danmu.ModeFloat:   PoolFloat,
	danmu.ModeTop:     PoolFloat,
	danmu.ModeBottom:  PoolFloat,
	danmu.ModeReverse: PoolFloat,
}

// PoolFor 返回某种模式的弹幕使用的放置池
func PoolFor(mode danmu.Mode) Pool {
	if p, ok := placementPools[mode]; ok {
		return p
	}
	return PoolFloat
}

// Outcome 一条弹幕的准入结果
type Outcome int

const (
	// Placed 立即放入
	Placed Outcome = iota
	// Delayed 延迟后放入
	Delayed
	// DroppedBeforeStart 应用时间轴偏移后早于 0 秒，丢弃
	DroppedBeforeStart
	// DroppedNoLane 没有可接受延迟内的槽位，丢弃
	DroppedNoLane
)

// String 返回结果名称
func (o Outcome) String() string {
	switch o {
	case Placed:
		return "placed"
	case Delayed:
		return "delayed"
	case DroppedBeforeStart:
		return "dropped_before_start"
	case DroppedNoLane:
		return "dropped_no_lane"
	default:
		return "unknown"
	}
}

// Accepted 是否被放入画布
func (o Outcome) Accepted() bool {
	return o == Placed || o == Delayed
}

// Stats 画布的准入统计
type Stats struct {
	Placed      int // 放入总数（含延迟）
	Delayed     int // 延迟后放入的数量
	Dropped     int // 丢弃总数
	BeforeStart int // 因时间轴偏移为负而丢弃的数量
	OutOfOrder  int // 时间轴早于前一条弹幕的输入数量
}

// Canvas 弹幕画布
type Canvas struct {
	config     Config
	floatLanes []*Lane // nil 表示槽位从未使用

	stats        Stats
	lastTimeline float64
	verbose      bool
}

// SetVerbose 启用详细日志
func (c *Canvas) SetVerbose(verbose bool) {
	c.verbose = verbose
}

// Config 返回画布配置
func (c *Canvas) Config() Config {
	return c.config
}

// LaneCount 滚动弹幕槽位数量
func (c *Canvas) LaneCount() int {
	return len(c.floatLanes)
}

// Lane 返回指定槽位的当前状态，槽位未使用时返回 nil
func (c *Canvas) Lane(idx int) *Lane {
	if idx < 0 || idx >= len(c.floatLanes) || c.floatLanes[idx] == nil {
		return nil
	}
	lane := *c.floatLanes[idx]
	return &lane
}

// Stats 返回当前统计
func (c *Canvas) Stats() Stats {
	return c.stats
}

// Draw 为一条弹幕决定位置
//
// 弹幕必须按时间轴非递减顺序传入。乱序输入不会被拒绝，只计入 Stats.OutOfOrder，
// 其几何结果不保证正确。
//
// 参数:
//   - d: 待放置的弹幕（按值传入，调整只作用于副本）
//
// 返回:
//   - *Drawable: 放置结果，丢弃时为 nil
//   - Outcome: 准入结果
func (c *Canvas) Draw(d danmu.Danmu) (*Drawable, Outcome) {
	d.Timeline += c.config.TimeOffset
	if d.Timeline < 0 {
		c.stats.Dropped++
		c.stats.BeforeStart++
		return nil, DroppedBeforeStart
	}

	if d.Timeline < c.lastTimeline {
		c.stats.OutOfOrder++
	} else {
		c.lastTimeline = d.Timeline
	}

	// placementPools 目前只有滚动弹幕池，所有模式都按滚动弹幕放置
	if PoolFor(d.Mode) == PoolFloat {
		d.Mode = danmu.ModeFloat
	}
	drawable, outcome := c.drawFloat(d)

	switch outcome {
	case Placed:
		c.stats.Placed++
	case Delayed:
		c.stats.Placed++
		c.stats.Delayed++
	default:
		c.stats.Dropped++
	}
	return drawable, outcome
}

// drawFloat 在滚动弹幕槽位中寻找位置
//
// 按槽位编号顺序扫描：优先使用未使用的槽位，其次使用可以立即发射的槽位；
// 都没有时选择所需延迟最小的槽位（相同时取编号最小者），延迟不超过 MaxDelay 才放入。
func (c *Canvas) drawFloat(d danmu.Danmu) (*Drawable, Outcome) {
	length := d.Length(c.config.FontSize, c.config.WidthRatio)

	bestLane := -1
	bestNeed := 0.0
	for idx, lane := range c.floatLanes {
		if lane == nil {
			return c.drawFloatInLane(d, idx, length), Placed
		}
		switch col := lane.AvailableFor(d.Timeline, length, &c.config).(type) {
		case Separate, NotEnoughTime:
			return c.drawFloatInLane(d, idx, length), Placed
		case Collide:
			if bestLane < 0 || col.TimeNeeded < bestNeed {
				bestLane = idx
				bestNeed = col.TimeNeeded
			}
		}
	}

	if bestLane >= 0 && bestNeed < c.config.MaxDelay {
		if c.verbose {
			log.Printf("[Canvas] 延迟弹幕 %.3f 秒 (lane=%d): %s", bestNeed, bestLane, d.Content)
		}
		d.Timeline += bestNeed + c.config.DelayPadding
		return c.drawFloatInLane(d, bestLane, length), Delayed
	}

	if c.verbose {
		log.Printf("[Canvas] 丢弃弹幕 (t=%.3f): %s", d.Timeline, d.Content)
	}
	return nil, DroppedNoLane
}

// drawFloatInLane 提交放置：覆盖槽位状态并生成 Drawable
func (c *Canvas) drawFloatInLane(d danmu.Danmu, idx int, length float64) *Drawable {
	c.floatLanes[idx] = NewLane(d.Timeline, length)

	y := idx * int(c.config.LaneSize)
	return &Drawable{
		Danmu:    d,
		Lane:     idx,
		Style:    "Float",
		Start:    Point{X: int(c.config.Width), Y: y},
		End:      Point{X: -int(length), Y: y},
		Length:   length,
		Duration: c.config.Duration,
	}
}
