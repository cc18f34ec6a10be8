package preview

import "math"

// speedSteps 可选的播放速度
var speedSteps = []float64{0.25, 0.5, 1, 1.5, 2, 4}

// SeekStep 左右方向键每次跳转的秒数
const SeekStep = 5.0

// Player 回放时钟
//
// 与具体界面无关，Window 和 Terminal 在每帧调用 Advance 推进时间。
type Player struct {
	position  float64
	end       float64
	speedIdx  int
	paused    bool
	loopAtEnd bool
}

// NewPlayer 创建从 0 秒开始、1 倍速播放的时钟
//
// 参数:
//   - end: 时间线结束时间
//   - loop: 播放到结尾后是否从头开始
func NewPlayer(end float64, loop bool) *Player {
	return &Player{end: end, speedIdx: 2, loopAtEnd: loop}
}

// Position 当前播放位置（秒）
func (p *Player) Position() float64 {
	return p.position
}

// Speed 当前播放速度
func (p *Player) Speed() float64 {
	return speedSteps[p.speedIdx]
}

// Paused 是否暂停
func (p *Player) Paused() bool {
	return p.paused
}

// TogglePause 切换暂停状态
func (p *Player) TogglePause() {
	p.paused = !p.paused
}

// Faster 提高一档速度
func (p *Player) Faster() {
	if p.speedIdx < len(speedSteps)-1 {
		p.speedIdx++
	}
}

// Slower 降低一档速度
func (p *Player) Slower() {
	if p.speedIdx > 0 {
		p.speedIdx--
	}
}

// Seek 相对跳转，结果限制在 [0, end]
func (p *Player) Seek(delta float64) {
	p.position = math.Max(0, math.Min(p.end, p.position+delta))
}

// Advance 按真实经过的时间 dt（秒）推进播放位置
func (p *Player) Advance(dt float64) {
	if p.paused {
		return
	}
	p.position += dt * p.Speed()
	if p.position > p.end {
		if p.loopAtEnd {
			p.position = 0
		} else {
			p.position = p.end
			p.paused = true
		}
	}
}
