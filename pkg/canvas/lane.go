package canvas

// Collision 槽位可用性判定结果
//
// 只有 Separate、NotEnoughTime、Collide 三种取值，调用方使用 type switch 处理。
type Collision interface {
	collision()
}

// Separate 新弹幕不会比前一条更快，两者只会越来越远
type Separate struct {
	ClosestDis float64
}

// NotEnoughTime 新弹幕更快，但在前一条离开屏幕之前追不上
type NotEnoughTime struct {
	ClosestDis float64
}

// Collide 需要额外延迟 TimeNeeded 秒才能避免碰撞
type Collide struct {
	TimeNeeded float64
}

func (Separate) collision()      {}
func (NotEnoughTime) collision() {}
func (Collide) collision()       {}

// Lane 一个弹幕槽位，只记录最近一次发射的弹幕
type Lane struct {
	LastLaunchTime float64 // 最近一条弹幕的发射时间
	LastLength     float64 // 最近一条弹幕的像素长度
}

// NewLane 以刚放入的弹幕创建槽位状态
func NewLane(launchTime, length float64) *Lane {
	return &Lane{LastLaunchTime: launchTime, LastLength: length}
}

// AvailableFor 判断槽位能否发射另一条弹幕
//
// 每条弹幕视为长度为 l、速度为 (W+l)/T 的刚体，从右边缘进入，T 秒后完全离开左边缘。
// 该方法不修改槽位状态。
//
// 参数:
//   - t2: 新弹幕的发射时间（要求不早于 LastLaunchTime）
//   - l2: 新弹幕的像素长度
//   - cfg: 画布配置，使用其中的 Width 和 Duration
//
// 返回:
//   - Separate / NotEnoughTime: 可以立即发射
//   - Collide: 至少需要延迟 TimeNeeded 秒
func (l Lane) AvailableFor(t2, l2 float64, cfg *Config) Collision {
	T := cfg.Duration
	W := float64(cfg.Width)

	t1 := l.LastLaunchTime
	l1 := l.LastLength

	v1 := (W + l1) / T
	v2 := (W + l2) / T

	deltaT := t2 - t1
	// 前一条弹幕尾部与新弹幕头部的距离
	deltaX := v1*deltaT - l1

	if deltaX < 0 {
		// 前一条还没有完全进入屏幕，必定碰撞
		if l2 <= l1 {
			// 只需要排在前一条之后
			return Collide{TimeNeeded: -deltaX / v1}
		}
		// 更长的弹幕需要等到能在前一条离开左边缘后才到达左边缘
		return Collide{TimeNeeded: (t1 + T - W/v2) - t2}
	}

	if l2 <= l1 {
		// 速度不大于前一条，永远追不上
		return Separate{ClosestDis: deltaX}
	}

	// 追及问题：前一条完全消失时新弹幕头部前进的距离
	pos := v2 * (T - deltaT)
	if pos < W {
		return NotEnoughTime{ClosestDis: W - pos}
	}
	return Collide{TimeNeeded: (pos - W) / v2}
}
