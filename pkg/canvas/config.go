package canvas

import (
	"fmt"
	"math"
)

// Config 画布配置
//
// 一次转换任务内不可变。字段与 YAML 配置文件、持久化设置共用同一套 tag。
type Config struct {
	Width    uint32  `yaml:"width" json:"width"`       // 屏幕宽度（像素）
	Height   uint32  `yaml:"height" json:"height"`     // 屏幕高度（像素）
	Duration float64 `yaml:"duration" json:"duration"` // 弹幕在屏幕上的持续时间（秒）

	Font       string  `yaml:"font" json:"font"`               // 弹幕字体
	FontSize   uint32  `yaml:"fontSize" json:"font_size"`      // 弹幕字号，为 0 时使用弹幕自身字号
	WidthRatio float64 `yaml:"widthRatio" json:"width_ratio"`  // 计算弹幕宽度的比例，为避免重叠可以调大
	LaneSize   uint32  `yaml:"laneSize" json:"lane_size"`      // 一行弹幕所占据的高度
	Opacity    float64 `yaml:"opacity" json:"alpha"`           // 不透明度 0.0 ~ 1.0
	Bold       bool    `yaml:"bold" json:"bold"`               // 是否加粗
	Outline    float64 `yaml:"outline" json:"outline"`         // 描边宽度
	TimeOffset float64 `yaml:"timeOffset" json:"time_offset"`  // 时间轴偏移，>0 弹幕延后，<0 弹幕提前

	// FloatPercentage 屏幕上滚动弹幕最多占用的高度百分比
	FloatPercentage float64 `yaml:"floatPercentage" json:"float_percentage"`

	// MaxDelay 允许的最大延迟（秒），需要更长延迟的弹幕会被丢弃
	MaxDelay float64 `yaml:"maxDelay" json:"max_delay"`
	// DelayPadding 延迟时额外增加的间隔，避免零间距碰撞
	DelayPadding float64 `yaml:"delayPadding" json:"delay_padding"`
}

// DefaultConfig 返回默认画布配置
func DefaultConfig() Config {
	return Config{
		Width:           1280,
		Height:          720,
		Duration:        10.0,
		Font:            "黑体",
		FontSize:        36,
		WidthRatio:      1.2,
		LaneSize:        46,
		Opacity:         0.7,
		Bold:            true,
		Outline:         0.8,
		TimeOffset:      0.0,
		FloatPercentage: 0.5,
		MaxDelay:        1.0,
		DelayPadding:    0.01,
	}
}

// Validate 验证配置的有效性
func (c *Config) Validate() error {
	if c.Width == 0 || c.Height == 0 {
		return fmt.Errorf("screen size must be positive, got %dx%d", c.Width, c.Height)
	}
	if c.Duration <= 0 || math.IsNaN(c.Duration) {
		return fmt.Errorf("duration must be > 0, got %v", c.Duration)
	}
	if c.LaneSize == 0 {
		return fmt.Errorf("laneSize must be > 0")
	}
	if c.WidthRatio <= 0 {
		return fmt.Errorf("widthRatio must be > 0, got %v", c.WidthRatio)
	}
	if c.FloatPercentage < 0 || c.FloatPercentage > 1 {
		return fmt.Errorf("floatPercentage must be between 0 and 1, got %v", c.FloatPercentage)
	}
	if c.Opacity < 0 || c.Opacity > 1 {
		return fmt.Errorf("opacity must be between 0 and 1, got %v", c.Opacity)
	}
	if c.Outline < 0 {
		return fmt.Errorf("outline must be >= 0, got %v", c.Outline)
	}
	if c.MaxDelay < 0 || c.DelayPadding < 0 {
		return fmt.Errorf("maxDelay and delayPadding must be >= 0, got %v and %v", c.MaxDelay, c.DelayPadding)
	}
	return nil
}

// FloatLanes 滚动弹幕槽位数量
func (c *Config) FloatLanes() int {
	return int(math.Floor(c.FloatPercentage * float64(c.Height) / float64(c.LaneSize)))
}

// NewCanvas 按配置创建画布
//
// 槽位数量在创建时固定，之后不会改变。
func (c Config) NewCanvas() *Canvas {
	return &Canvas{
		config:     c,
		floatLanes: make([]*Lane, c.FloatLanes()),
	}
}
