package canvas

import "github.com/gonewx/danmu2ass/pkg/danmu"

// Point 屏幕坐标（像素，左上角为原点）
type Point struct {
	X, Y int
}

// Drawable 一条已确定位置的弹幕
//
// Danmu.Timeline 为生效后的发射时间（已应用时间轴偏移和延迟）。
type Drawable struct {
	Danmu    danmu.Danmu
	Lane     int     // 槽位编号
	Style    string  // ASS 样式名
	Start    Point   // 起点：右边缘
	End      Point   // 终点：左边缘再向左偏移自身长度
	Length   float64 // 像素长度
	Duration float64 // 运动时长（秒）
}

// StartTime 出现时间
func (d *Drawable) StartTime() float64 {
	return d.Danmu.Timeline
}

// EndTime 完全离开屏幕的时间
func (d *Drawable) EndTime() float64 {
	return d.Danmu.Timeline + d.Duration
}

// PositionAt 计算 t 时刻弹幕左边缘的位置
//
// 返回:
//   - x, y: 左上角坐标
//   - ok: t 时刻弹幕是否处于运动区间内
func (d *Drawable) PositionAt(t float64) (x, y float64, ok bool) {
	if t < d.StartTime() || t > d.EndTime() || d.Duration <= 0 {
		return 0, 0, false
	}
	progress := (t - d.StartTime()) / d.Duration
	startX := float64(d.Start.X)
	x = startX - (startX+d.Length)*progress
	return x, float64(d.Start.Y), true
}
