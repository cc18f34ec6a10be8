// Package danmu 定义弹幕记录及其基础属性
//
// 一条弹幕只包含时间轴、内容、显示模式、字号和颜色，不包含任何位置信息。
// 位置由 canvas 包在绘制时决定。
package danmu

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Mode 弹幕的显示模式
type Mode int

const (
	// ModeFloat 滚动弹幕（从右向左）
	ModeFloat Mode = iota
	// ModeTop 顶部固定弹幕
	ModeTop
	// ModeBottom 底部固定弹幕
	ModeBottom
	// ModeReverse 逆向滚动弹幕
	ModeReverse
)

// ErrUnsupportedMode 表示来源中出现了不支持的弹幕类型（高级弹幕、代码弹幕等）
var ErrUnsupportedMode = errors.New("unsupported danmu mode")

// String 返回模式名称
func (m Mode) String() string {
	switch m {
	case ModeFloat:
		return "float"
	case ModeTop:
		return "top"
	case ModeBottom:
		return "bottom"
	case ModeReverse:
		return "reverse"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ModeFromXML 将 XML / protobuf 中的弹幕类型编号转换为 Mode
//
// 1 为普通弹幕，4 为底部弹幕，5 为顶部弹幕，6 为逆向弹幕，其余类型不支持。
func ModeFromXML(n int) (Mode, error) {
	switch n {
	case 1:
		return ModeFloat, nil
	case 4:
		return ModeBottom, nil
	case 5:
		return ModeTop, nil
	case 6:
		return ModeReverse, nil
	default:
		return 0, fmt.Errorf("%w: %d", ErrUnsupportedMode, n)
	}
}

// Danmu 一条弹幕
type Danmu struct {
	Timeline float64  // 出现时间（秒）
	Content  string   // 弹幕内容
	Mode     Mode     // 显示模式
	FontSize uint32   // 字号（像素）
	RGB      [3]uint8 // 颜色
}

// WeightedChars 计算文本的加权字符数
//
// 非 ASCII 字符按一个全角单位计算，ASCII 字符按 2/3 个单位计算。
func WeightedChars(s string) float64 {
	var ascii, wide int
	for _, r := range s {
		if r < utf8.RuneSelf {
			ascii++
		} else {
			wide++
		}
	}
	return float64(wide) + float64(ascii)*2.0/3.0
}

// Length 计算弹幕的像素长度
//
// 参数:
//   - fontSize: 渲染字号，为 0 时使用弹幕自身的字号
//   - widthRatio: 宽度缩放比例，调大可以减少重叠
//
// 返回:
//   - 弹幕在屏幕上占据的水平像素长度
func (d Danmu) Length(fontSize uint32, widthRatio float64) float64 {
	if fontSize == 0 {
		fontSize = d.FontSize
	}
	return float64(fontSize) * WeightedChars(d.Content) * widthRatio
}

// IsWhite 颜色是否为默认白色
func (d Danmu) IsWhite() bool {
	return d.RGB == [3]uint8{0xff, 0xff, 0xff}
}

// ContainsAny 弹幕内容是否包含黑名单中的任一关键词
func (d Danmu) ContainsAny(keywords []string) bool {
	for _, k := range keywords {
		if k != "" && strings.Contains(d.Content, k) {
			return true
		}
	}
	return false
}

// DecodeColor 解析来源中的颜色数值
//
// 一般情况下为 0xRRGGBB，但偶尔会出现十进制的 RRRGGGBBB（如 255255255）。
func DecodeColor(v uint32) ([3]uint8, error) {
	if v>>24 == 0 {
		return [3]uint8{uint8(v >> 16), uint8(v >> 8), uint8(v)}, nil
	}
	if v <= 255255255 {
		const k = 1000
		return [3]uint8{
			uint8((v / k / k) % k),
			uint8((v / k) % k),
			uint8(v % k),
		}, nil
	}
	return [3]uint8{}, fmt.Errorf("invalid color %x", v)
}
