// Package convert 串联弹幕来源、画布和 ASS 输出，完成一次转换任务
//
// 每个任务使用独立的 Canvas，任务之间不共享状态，可以并行执行。
package convert

import (
	"fmt"
	"io"
	"log"
	"sort"

	"github.com/gonewx/danmu2ass/pkg/ass"
	"github.com/gonewx/danmu2ass/pkg/canvas"
	"github.com/gonewx/danmu2ass/pkg/danmu"
)

// Source 弹幕来源，Next 在结束时返回 io.EOF
type Source interface {
	Next() (danmu.Danmu, error)
}

// SliceSource 基于切片的弹幕来源
type SliceSource struct {
	items []danmu.Danmu
	pos   int
}

// NewSliceSource 创建切片来源
func NewSliceSource(items []danmu.Danmu) *SliceSource {
	return &SliceSource{items: items}
}

// Next 返回下一条弹幕
func (s *SliceSource) Next() (danmu.Danmu, error) {
	if s.pos >= len(s.items) {
		return danmu.Danmu{}, io.EOF
	}
	d := s.items[s.pos]
	s.pos++
	return d, nil
}

// Options 转换选项
type Options struct {
	Config   canvas.Config // 画布配置
	Denylist []string      // 黑名单关键词
	Verbose  bool          // 输出每条弹幕的延迟/丢弃日志
}

// Report 一次转换的统计
type Report struct {
	Title      string
	Total      int // 来源中的弹幕总数
	Denied     int // 命中黑名单的数量
	Placed     int // 写入的数量（含延迟）
	Delayed    int // 延迟后写入的数量
	Dropped    int // 丢弃的数量
	OutOfOrder int // 画布收到的乱序弹幕数量
}

func (r Report) String() string {
	return fmt.Sprintf("%s: total=%d denied=%d placed=%d delayed=%d dropped=%d",
		r.Title, r.Total, r.Denied, r.Placed, r.Delayed, r.Dropped)
}

// Collect 读取来源中的全部弹幕，过滤黑名单并按时间轴稳定排序
//
// 返回:
//   - 过滤、排序后的弹幕
//   - 读取总数
//   - 被黑名单过滤的数量
//   - error: 来源读取失败
func Collect(src Source, denylist []string) ([]danmu.Danmu, int, int, error) {
	var items []danmu.Danmu
	total, denied := 0, 0
	for {
		d, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, total, denied, fmt.Errorf("failed to read danmaku #%d: %w", total+1, err)
		}
		total++
		if d.ContainsAny(denylist) {
			denied++
			continue
		}
		items = append(items, d)
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Timeline < items[j].Timeline
	})
	return items, total, denied, nil
}

// Layout 在新画布上依次绘制弹幕，返回被放入的弹幕
//
// items 应已按时间轴排序（见 Collect）。
func Layout(items []danmu.Danmu, opts Options) ([]*canvas.Drawable, canvas.Stats) {
	c := opts.Config.NewCanvas()
	c.SetVerbose(opts.Verbose)

	drawables := make([]*canvas.Drawable, 0, len(items))
	for _, d := range items {
		if drawable, outcome := c.Draw(d); outcome.Accepted() {
			drawables = append(drawables, drawable)
		}
	}
	return drawables, c.Stats()
}

// Convert 执行一次转换任务
//
// 参数:
//   - src: 弹幕来源
//   - title: 字幕标题
//   - w: ASS 输出
//   - opts: 转换选项
//
// 返回:
//   - Report: 转换统计
//   - error: 配置非法、来源读取或写入失败时返回错误
func Convert(src Source, title string, w io.Writer, opts Options) (Report, error) {
	report := Report{Title: title}

	if err := opts.Config.Validate(); err != nil {
		return report, fmt.Errorf("invalid canvas config: %w", err)
	}

	items, total, denied, err := Collect(src, opts.Denylist)
	report.Total, report.Denied = total, denied
	if err != nil {
		return report, err
	}

	drawables, stats := Layout(items, opts)
	report.Placed = stats.Placed
	report.Delayed = stats.Delayed
	report.Dropped = stats.Dropped
	report.OutOfOrder = stats.OutOfOrder

	writer, err := ass.NewWriter(w, title, opts.Config)
	if err != nil {
		return report, err
	}
	for _, d := range drawables {
		if err := writer.WriteDrawable(d); err != nil {
			return report, err
		}
	}
	if err := writer.Flush(); err != nil {
		return report, fmt.Errorf("failed to flush ASS output: %w", err)
	}

	log.Printf("[Convert] %s", report)
	return report, nil
}
