// Package ass 将已定位的弹幕写为 ASS 字幕
package ass

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/gonewx/danmu2ass/pkg/canvas"
)

// FloatStyle 滚动弹幕使用的样式名
const FloatStyle = "Float"

// defaultStyleFontSize 配置字号为 0（使用弹幕自身字号）时样式中的字号
const defaultStyleFontSize = 25

// Writer ASS 字幕写入器
//
// 创建时写入 [Script Info]、[V4+ Styles] 和 [Events] 头部，之后每条弹幕写入一行 Dialogue。
type Writer struct {
	w      *bufio.Writer
	config canvas.Config
	count  int
}

// NewWriter 创建写入器并写出头部
//
// 参数:
//   - w: 输出目标
//   - title: 字幕标题
//   - config: 画布配置，决定分辨率和样式
func NewWriter(w io.Writer, title string, config canvas.Config) (*Writer, error) {
	aw := &Writer{
		w:      bufio.NewWriter(w),
		config: config,
	}
	if err := aw.writeHeader(title); err != nil {
		return nil, fmt.Errorf("failed to write ASS header: %w", err)
	}
	return aw, nil
}

func (aw *Writer) writeHeader(title string) error {
	c := aw.config

	fontSize := c.FontSize
	if fontSize == 0 {
		fontSize = defaultStyleFontSize
	}
	alpha := Alpha(c.Opacity)
	bold := 0
	if c.Bold {
		bold = -1
	}

	_, err := fmt.Fprintf(aw.w, `[Script Info]
; Script generated by danmu2ass
Title: %s
ScriptType: v4.00+
PlayResX: %d
PlayResY: %d
Aspect Ratio: %d:%d
Collisions: Normal
WrapStyle: 2
ScaledBorderAndShadow: yes
YCbCr Matrix: TV.601

[V4+ Styles]
Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding
Style: %s,%s,%d,&H%02XFFFFFF,&H%02XFFFFFF,&H%02X000000,&H%02X000000,%d,0,0,0,100,100,0.00,0.00,1,%.1f,0,7,0,0,0,1

[Events]
Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text
`,
		singleLine(title),
		c.Width, c.Height, c.Width, c.Height,
		FloatStyle, c.Font, fontSize, alpha, alpha, alpha, alpha, bold, c.Outline,
	)
	return err
}

// WriteDrawable 写入一条弹幕
func (aw *Writer) WriteDrawable(d *canvas.Drawable) error {
	var tags strings.Builder
	fmt.Fprintf(&tags, `\move(%d, %d, %d, %d)`, d.Start.X, d.Start.Y, d.End.X, d.End.Y)
	if !d.Danmu.IsWhite() {
		fmt.Fprintf(&tags, `\c%s`, Color(d.Danmu.RGB))
	}
	if aw.config.FontSize == 0 && d.Danmu.FontSize != 0 {
		fmt.Fprintf(&tags, `\fs%d`, d.Danmu.FontSize)
	}

	style := d.Style
	if style == "" {
		style = FloatStyle
	}

	_, err := fmt.Fprintf(aw.w, "Dialogue: 2,%s,%s,%s,,0,0,0,,{%s}%s\n",
		FormatTime(d.StartTime()),
		FormatTime(d.EndTime()),
		style,
		tags.String(),
		EscapeText(d.Danmu.Content),
	)
	if err != nil {
		return fmt.Errorf("failed to write dialogue: %w", err)
	}
	aw.count++
	return nil
}

// Count 已写入的 Dialogue 数量
func (aw *Writer) Count() int {
	return aw.count
}

// Flush 将缓冲内容写入底层 io.Writer
func (aw *Writer) Flush() error {
	return aw.w.Flush()
}

// FormatTime 将秒数格式化为 H:MM:SS.cc
func FormatTime(t float64) string {
	if t < 0 {
		t = 0
	}
	cs := int64(math.Round(t * 100))
	h := cs / 360000
	m := cs / 6000 % 60
	s := cs / 100 % 60
	return fmt.Sprintf("%d:%02d:%02d.%02d", h, m, s, cs%100)
}

// Color 将 RGB 转换为 ASS 的 &HBBGGRR& 格式
func Color(rgb [3]uint8) string {
	return fmt.Sprintf("&H%02X%02X%02X&", rgb[2], rgb[1], rgb[0])
}

// Alpha 将不透明度转换为 ASS 透明度（0x00 不透明，0xFF 全透明）
func Alpha(opacity float64) uint8 {
	opacity = math.Max(0, math.Min(1, opacity))
	return uint8(math.Round(255 * (1 - opacity)))
}

var textEscaper = strings.NewReplacer(
	"{", `\{`,
	"}", `\}`,
	"\r\n", `\N`,
	"\n", `\N`,
	"\r", `\N`,
)

// EscapeText 转义弹幕文本中的 ASS 控制字符
func EscapeText(s string) string {
	return textEscaper.Replace(s)
}

func singleLine(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}
