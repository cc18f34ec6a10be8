// Package window 在 ebiten 窗口中回放弹幕时间线
package window

import (
	"bytes"
	"fmt"
	"image/color"
	"os"

	"github.com/gonewx/danmu2ass/pkg/ass"
	"github.com/gonewx/danmu2ass/pkg/preview"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/examples/resources/fonts"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"
)

// maxWindowWidth 窗口的最大初始宽度，画布更宽时按比例缩小
const maxWindowWidth = 1280

// Window 在 ebiten 窗口中回放时间线
//
// 操作:
//
//	Space      - 暂停/继续
//	Left/Right - 后退/前进 5 秒
//	Up/Down    - 加速/减速
//	G          - 显示/隐藏槽位参考线
//	Escape/Q   - 退出
type Window struct {
	timeline   *preview.Timeline
	player     *preview.Player
	source     *text.GoTextFaceSource
	faces      map[uint32]*text.GoTextFace
	showGuides bool
	title      string
}

// New 创建预览窗口
//
// 参数:
//   - tl: 要回放的时间线
//   - title: 窗口标题
//   - fontPath: 字体文件路径，为空时使用内置的 M+ 字体
func New(tl *preview.Timeline, title, fontPath string) (*Window, error) {
	fontData := fonts.MPlus1pRegular_ttf
	if fontPath != "" {
		data, err := os.ReadFile(fontPath)
		if err != nil {
			return nil, fmt.Errorf("无法读取字体文件 %s: %w", fontPath, err)
		}
		fontData = data
	}

	source, err := text.NewGoTextFaceSource(bytes.NewReader(fontData))
	if err != nil {
		return nil, fmt.Errorf("无法创建字体源: %w", err)
	}

	return &Window{
		timeline:   tl,
		player:     preview.NewPlayer(tl.End(), false),
		source:     source,
		faces:      make(map[uint32]*text.GoTextFace),
		showGuides: true,
		title:      title,
	}, nil
}

// Run 打开窗口并阻塞直到窗口关闭
func (w *Window) Run() error {
	cfg := w.timeline.Config()
	width, height := int(cfg.Width), int(cfg.Height)
	if width > maxWindowWidth {
		height = height * maxWindowWidth / width
		width = maxWindowWidth
	}

	ebiten.SetWindowSize(width, height)
	ebiten.SetWindowTitle(fmt.Sprintf("%s - danmu2ass preview", w.title))
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)

	if err := ebiten.RunGame(w); err != nil && err != ebiten.Termination {
		return err
	}
	return nil
}

// Update 处理输入并推进播放时钟
func (w *Window) Update() error {
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) || inpututil.IsKeyJustPressed(ebiten.KeyQ) {
		return ebiten.Termination
	}
	if inpututil.IsKeyJustPressed(ebiten.KeySpace) {
		w.player.TogglePause()
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyArrowLeft) {
		w.player.Seek(-preview.SeekStep)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyArrowRight) {
		w.player.Seek(preview.SeekStep)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyArrowUp) {
		w.player.Faster()
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyArrowDown) {
		w.player.Slower()
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyG) {
		w.showGuides = !w.showGuides
	}

	w.player.Advance(1.0 / float64(ebiten.TPS()))
	return nil
}

// Draw 绘制当前时刻的弹幕
func (w *Window) Draw(screen *ebiten.Image) {
	screen.Fill(color.RGBA{20, 20, 28, 255})

	cfg := w.timeline.Config()
	if w.showGuides {
		w.drawGuides(screen)
	}

	alpha := 255 - ass.Alpha(cfg.Opacity)
	items := w.timeline.Visible(w.player.Position())
	for _, item := range items {
		d := item.Drawable.Danmu
		face := w.face(d.FontSize)

		if cfg.Outline > 0 {
			shadow := &text.DrawOptions{}
			shadow.GeoM.Translate(item.X+cfg.Outline, item.Y+cfg.Outline)
			shadow.ColorScale.ScaleWithColor(color.RGBA{0, 0, 0, alpha})
			text.Draw(screen, d.Content, face, shadow)
		}

		op := &text.DrawOptions{}
		op.GeoM.Translate(item.X, item.Y)
		op.ColorScale.ScaleWithColor(color.NRGBA{d.RGB[0], d.RGB[1], d.RGB[2], alpha})
		text.Draw(screen, d.Content, face, op)
	}

	state := "playing"
	if w.player.Paused() {
		state = "paused"
	}
	ebitenutil.DebugPrintAt(screen, fmt.Sprintf("%s  %.1fs / %.1fs  x%.2f  on screen: %d  total: %d",
		state, w.player.Position(), w.timeline.End(), w.player.Speed(), len(items), w.timeline.Len()),
		10, int(cfg.Height)-20)
}

func (w *Window) drawGuides(screen *ebiten.Image) {
	cfg := w.timeline.Config()
	guide := color.RGBA{80, 80, 100, 255}
	lanes := cfg.FloatLanes()
	for i := 1; i <= lanes; i++ {
		y := float32(i * int(cfg.LaneSize))
		vector.StrokeLine(screen, 0, y, float32(cfg.Width), y, 1, guide, false)
	}
	area := float32(lanes * int(cfg.LaneSize))
	vector.DrawFilledRect(screen, 0, 0, 4, area, color.RGBA{120, 90, 200, 255}, false)
}

// face 返回指定字号的字体，配置字号非 0 时统一使用配置字号
func (w *Window) face(own uint32) *text.GoTextFace {
	size := w.timeline.Config().FontSize
	if size == 0 {
		size = own
	}
	if f, ok := w.faces[size]; ok {
		return f
	}
	f := &text.GoTextFace{
		Source:    w.source,
		Size:      float64(size),
		Direction: text.DirectionLeftToRight,
	}
	w.faces[size] = f
	return f
}

// Layout 逻辑屏幕尺寸与画布一致
func (w *Window) Layout(outsideWidth, outsideHeight int) (int, int) {
	cfg := w.timeline.Config()
	return int(cfg.Width), int(cfg.Height)
}
