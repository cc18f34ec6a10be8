package config

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/gonewx/danmu2ass/pkg/canvas"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile 默认配置文件名，存在时会被自动加载
const DefaultConfigFile = "danmu2ass.yaml"

// AppConfig 转换任务配置
//
// 配置文件位置: 工作目录下的 danmu2ass.yaml，或通过 -config 指定
type AppConfig struct {
	// Canvas 画布配置
	Canvas canvas.Config `yaml:"canvas"`

	// Denylist 黑名单关键词，包含任一关键词的弹幕不会被转换
	Denylist []string `yaml:"denylist"`

	// DenylistFile 黑名单文件，每行一个关键词
	DenylistFile string `yaml:"denylistFile"`

	// Output 输出路径；输入为文件时为 .ass 文件，输入为目录时为输出目录
	Output string `yaml:"output"`

	// Parallelism 目录模式下同时转换的文件数
	Parallelism int `yaml:"parallelism"`

	// SaveSettings 转换成功后是否保存本次使用的设置
	SaveSettings bool `yaml:"saveSettings"`

	// Verbose 是否输出详细日志
	Verbose bool `yaml:"verbose"`
}

// DefaultAppConfig 返回默认任务配置
func DefaultAppConfig() *AppConfig {
	return &AppConfig{
		Canvas:      canvas.DefaultConfig(),
		Denylist:    []string{},
		Parallelism: 4,
	}
}

// LoadAppConfig 从 YAML 文件加载任务配置
//
// 文件中未出现的字段保留 base 中的值，因此可以只写需要修改的项。
//
// 参数:
//   - path: 配置文件路径
//   - base: 默认值，为 nil 时使用 DefaultAppConfig()
//
// 返回:
//   - *AppConfig: 加载并验证后的配置
//   - error: 读取、解析或验证失败时返回错误
func LoadAppConfig(path string, base *AppConfig) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultAppConfig()
	if base != nil {
		copied := *base
		copied.Denylist = append([]string(nil), base.Denylist...)
		config = &copied
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}

	if config.DenylistFile != "" {
		words, err := LoadDenylist(config.DenylistFile)
		if err != nil {
			return nil, err
		}
		config.Denylist = MergeDenylist(config.Denylist, words)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return config, nil
}

// Validate 验证配置的有效性
func (c *AppConfig) Validate() error {
	if err := c.Canvas.Validate(); err != nil {
		return fmt.Errorf("canvas: %w", err)
	}
	if c.Parallelism < 1 {
		return fmt.Errorf("parallelism must be >= 1, got %d", c.Parallelism)
	}
	return nil
}

// LoadDenylist 加载黑名单文件
//
// 每行一个关键词，忽略空行和以 # 开头的注释行。
func LoadDenylist(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read denylist file: %w", err)
	}

	var words []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		words = append(words, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan denylist file: %w", err)
	}
	return words, nil
}

// MergeDenylist 合并多个黑名单，保持首次出现的顺序并去除重复和空白关键词
func MergeDenylist(lists ...[]string) []string {
	seen := make(map[string]bool)
	merged := []string{}
	for _, list := range lists {
		for _, word := range list {
			word = strings.TrimSpace(word)
			if word == "" || seen[word] {
				continue
			}
			seen[word] = true
			merged = append(merged, word)
		}
	}
	return merged
}
