// Package preview 回放画布的绘制结果，用于检查弹幕排布效果
//
// Timeline 只做纯计算（某一时刻屏幕上有哪些弹幕、在什么位置），
// window 子包用 ebiten 窗口、Terminal 用终端字符把它画出来。
package preview

import (
	"fmt"
	"sort"

	"github.com/gonewx/danmu2ass/internal/xmlparser"
	"github.com/gonewx/danmu2ass/pkg/canvas"
	"github.com/gonewx/danmu2ass/pkg/convert"
)

// Item 某一时刻屏幕上的一条弹幕
type Item struct {
	Drawable *canvas.Drawable
	X, Y     float64 // 左上角坐标
}

// Timeline 按出现时间索引的绘制结果
type Timeline struct {
	config      canvas.Config
	drawables   []*canvas.Drawable // 按出现时间排序
	maxDuration float64
	end         float64
}

// NewTimeline 创建时间线
//
// 参数:
//   - drawables: 画布输出的弹幕，顺序任意
//   - config: 画布配置，决定屏幕尺寸和槽位高度
func NewTimeline(drawables []*canvas.Drawable, config canvas.Config) *Timeline {
	sorted := append([]*canvas.Drawable(nil), drawables...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].StartTime() < sorted[j].StartTime()
	})

	tl := &Timeline{config: config, drawables: sorted}
	for _, d := range sorted {
		if d.Duration > tl.maxDuration {
			tl.maxDuration = d.Duration
		}
		if d.EndTime() > tl.end {
			tl.end = d.EndTime()
		}
	}
	return tl
}

// LoadTimeline 读取 XML 弹幕文件，按 opts 排布后创建时间线
func LoadTimeline(path string, opts convert.Options) (*Timeline, error) {
	if err := opts.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid canvas config: %w", err)
	}

	items, err := xmlparser.ParseFile(path)
	if err != nil {
		return nil, err
	}
	sorted, _, _, err := convert.Collect(convert.NewSliceSource(items), opts.Denylist)
	if err != nil {
		return nil, err
	}
	drawables, _ := convert.Layout(sorted, opts)
	return NewTimeline(drawables, opts.Config), nil
}

// Config 画布配置
func (tl *Timeline) Config() canvas.Config {
	return tl.config
}

// Len 弹幕数量
func (tl *Timeline) Len() int {
	return len(tl.drawables)
}

// End 最后一条弹幕离开屏幕的时间
func (tl *Timeline) End() float64 {
	return tl.end
}

// Visible 返回 t 时刻处于运动区间内的弹幕及其位置，按出现时间排序
func (tl *Timeline) Visible(t float64) []Item {
	lo := sort.Search(len(tl.drawables), func(i int) bool {
		return tl.drawables[i].StartTime() >= t-tl.maxDuration
	})

	var items []Item
	for _, d := range tl.drawables[lo:] {
		if d.StartTime() > t {
			break
		}
		if x, y, ok := d.PositionAt(t); ok {
			items = append(items, Item{Drawable: d, X: x, Y: y})
		}
	}
	return items
}
