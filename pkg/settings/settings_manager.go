// Package settings 持久化用户上一次使用的转换设置
package settings

import (
	"fmt"
	"log"

	"github.com/gonewx/danmu2ass/pkg/canvas"
	"github.com/quasilyte/gdata/v2"
	"gopkg.in/yaml.v3"
)

// CurrentVersion 当前设置格式版本
//
// 旧版本中不存在的字段在加载时使用默认值补齐。
const CurrentVersion = 1

// AppName gdata 存储使用的应用名
const AppName = "danmu2ass"

// Settings 用户设置
type Settings struct {
	Version  int           `yaml:"version"`  // 设置格式版本
	Canvas   canvas.Config `yaml:"canvas"`   // 上一次使用的画布配置
	Denylist []string      `yaml:"denylist"` // 黑名单关键词
}

// DefaultSettings 返回默认设置
func DefaultSettings() *Settings {
	return &Settings{
		Version:  CurrentVersion,
		Canvas:   canvas.DefaultConfig(),
		Denylist: []string{},
	}
}

// SettingsManager 设置管理器
// 负责设置的加载、保存和内存管理
type SettingsManager struct {
	gdataManager *gdata.Manager // gdata 跨平台存储管理器，可为 nil（降级模式）
	settings     *Settings      // 当前设置
}

// 存储路径常量
const (
	settingsObject   = "settings"
	settingsProperty = "convert"
)

// Open 打开默认的 gdata 存储并创建设置管理器
//
// 存储不可用时返回降级模式的管理器（仅内存设置），不会返回错误。
func Open() *SettingsManager {
	manager, err := gdata.Open(gdata.Config{AppName: AppName})
	if err != nil {
		log.Printf("[SettingsManager] Warning: storage unavailable: %v (settings will not persist)", err)
		manager = nil
	}
	sm, _ := NewSettingsManager(manager)
	return sm
}

// NewSettingsManager 创建新的设置管理器实例
//
// 参数：
//   - gdataManager: gdata 跨平台存储管理器，可为 nil（降级模式，仅内存设置）
//
// 返回：
//   - *SettingsManager: 设置管理器实例
//   - error: 保留给调用方，加载失败不影响创建
func NewSettingsManager(gdataManager *gdata.Manager) (*SettingsManager, error) {
	sm := &SettingsManager{
		gdataManager: gdataManager,
		settings:     DefaultSettings(),
	}

	if err := sm.Load(); err != nil {
		// 加载失败不是致命错误，使用默认设置
		log.Printf("[SettingsManager] Warning: Failed to load settings: %v (using defaults)", err)
	}

	return sm, nil
}

// Load 从 gdata 加载设置
//
// 如果 gdataManager 为 nil 或设置不存在，使用默认设置。
// 已保存的设置覆盖在默认值之上，旧版本缺失的字段保持默认值。
func (sm *SettingsManager) Load() error {
	if sm.gdataManager == nil {
		sm.settings = DefaultSettings()
		return nil
	}

	if !sm.gdataManager.ObjectPropExists(settingsObject, settingsProperty) {
		sm.settings = DefaultSettings()
		return nil
	}

	data, err := sm.gdataManager.LoadObjectProp(settingsObject, settingsProperty)
	if err != nil {
		sm.settings = DefaultSettings()
		return fmt.Errorf("failed to load settings: %w", err)
	}

	loaded := DefaultSettings()
	loaded.Version = 0
	if err := yaml.Unmarshal(data, loaded); err != nil {
		sm.settings = DefaultSettings()
		return fmt.Errorf("failed to unmarshal settings: %w", err)
	}

	if loaded.Version < CurrentVersion {
		log.Printf("[SettingsManager] Migrating settings from version %d to %d", loaded.Version, CurrentVersion)
		loaded.Version = CurrentVersion
	}

	if err := loaded.Canvas.Validate(); err != nil {
		sm.settings = DefaultSettings()
		return fmt.Errorf("saved canvas settings are invalid: %w", err)
	}

	sm.settings = loaded
	log.Printf("[SettingsManager] Settings loaded successfully")
	return nil
}

// Save 保存设置到 gdata
//
// 如果 gdataManager 为 nil，返回 nil（降级模式，不报错）
func (sm *SettingsManager) Save() error {
	if sm.gdataManager == nil {
		return nil
	}

	data, err := yaml.Marshal(sm.settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	if err := sm.gdataManager.SaveObjectProp(settingsObject, settingsProperty, data); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}

	log.Printf("[SettingsManager] Settings saved successfully")
	return nil
}

// GetSettings 获取当前设置
func (sm *SettingsManager) GetSettings() *Settings {
	return sm.settings
}

// SetCanvas 记录画布配置
//
// 注意：仅修改内存中的设置，需调用 Save() 方法持久化
func (sm *SettingsManager) SetCanvas(cfg canvas.Config) {
	sm.settings.Canvas = cfg
}

// SetDenylist 记录黑名单
//
// 注意：仅修改内存中的设置，需调用 Save() 方法持久化
func (sm *SettingsManager) SetDenylist(words []string) {
	sm.settings.Denylist = append([]string(nil), words...)
}
