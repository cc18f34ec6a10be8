package settings

import (
	"os"
	"testing"

	"github.com/quasilyte/gdata/v2"
	"gopkg.in/yaml.v3"
)

// createTestGdataManager 在临时 HOME 下创建 gdata manager
func createTestGdataManager(t *testing.T, appName string) *gdata.Manager {
	t.Helper()

	tempDir := t.TempDir()
	originalHome := os.Getenv("HOME")
	os.Setenv("HOME", tempDir)
	t.Cleanup(func() { os.Setenv("HOME", originalHome) })

	manager, err := gdata.Open(gdata.Config{AppName: appName})
	if err != nil {
		t.Fatalf("Failed to create gdata manager: %v", err)
	}
	return manager
}

// TestDefaultSettings 测试默认设置
func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings()

	if s.Version != CurrentVersion {
		t.Errorf("Version: got %d, want %d", s.Version, CurrentVersion)
	}
	if s.Canvas.Width != 1280 || s.Canvas.Height != 720 {
		t.Errorf("Canvas size: got %dx%d, want 1280x720", s.Canvas.Width, s.Canvas.Height)
	}
	if s.Canvas.FontSize != 36 || s.Canvas.LaneSize != 46 {
		t.Errorf("FontSize/LaneSize: got %d/%d, want 36/46", s.Canvas.FontSize, s.Canvas.LaneSize)
	}
}

// TestNewSettingsManagerNilGdata 测试 gdataManager 为 nil 时的降级场景
func TestNewSettingsManagerNilGdata(t *testing.T) {
	sm, err := NewSettingsManager(nil)
	if err != nil {
		t.Fatalf("NewSettingsManager(nil) error: %v", err)
	}

	if sm.GetSettings().Canvas.Duration != 10 {
		t.Errorf("Degraded mode Duration: got %v, want 10", sm.GetSettings().Canvas.Duration)
	}

	// 降级模式下保存不报错
	if err := sm.Save(); err != nil {
		t.Errorf("Save() in degraded mode: %v", err)
	}
}

// TestSettingsLoadSave 测试 Load() 和 Save() 功能
func TestSettingsLoadSave(t *testing.T) {
	manager := createTestGdataManager(t, "test_danmu2ass_load_save")

	sm1, err := NewSettingsManager(manager)
	if err != nil {
		t.Fatalf("NewSettingsManager() error: %v", err)
	}

	cfg := sm1.GetSettings().Canvas
	cfg.Width = 1920
	cfg.Height = 1080
	cfg.TimeOffset = 2.5
	sm1.SetCanvas(cfg)
	sm1.SetDenylist([]string{"剧透"})

	if err := sm1.Save(); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	sm2, err := NewSettingsManager(manager)
	if err != nil {
		t.Fatalf("NewSettingsManager() error on reload: %v", err)
	}

	s := sm2.GetSettings()
	if s.Canvas.Width != 1920 || s.Canvas.Height != 1080 {
		t.Errorf("Loaded size: got %dx%d, want 1920x1080", s.Canvas.Width, s.Canvas.Height)
	}
	if s.Canvas.TimeOffset != 2.5 {
		t.Errorf("Loaded TimeOffset: got %v, want 2.5", s.Canvas.TimeOffset)
	}
	if len(s.Denylist) != 1 || s.Denylist[0] != "剧透" {
		t.Errorf("Loaded Denylist: got %v", s.Denylist)
	}
}

// TestSettingsMigration 旧版本设置中缺失的字段使用默认值
func TestSettingsMigration(t *testing.T) {
	manager := createTestGdataManager(t, "test_danmu2ass_migration")

	old := map[string]any{
		"canvas": map[string]any{
			"width":  1600,
			"height": 900,
		},
	}
	data, err := yaml.Marshal(old)
	if err != nil {
		t.Fatalf("yaml.Marshal: %v", err)
	}
	if err := manager.SaveObjectProp(settingsObject, settingsProperty, data); err != nil {
		t.Fatalf("SaveObjectProp: %v", err)
	}

	sm, _ := NewSettingsManager(manager)
	s := sm.GetSettings()

	if s.Version != CurrentVersion {
		t.Errorf("Version: got %d, want %d", s.Version, CurrentVersion)
	}
	if s.Canvas.Width != 1600 {
		t.Errorf("Width: got %d, want 1600", s.Canvas.Width)
	}
	if s.Canvas.Duration != 10 || s.Canvas.MaxDelay != 1.0 {
		t.Errorf("missing fields not filled from defaults: duration=%v maxDelay=%v",
			s.Canvas.Duration, s.Canvas.MaxDelay)
	}
}

// TestSettingsInvalidFallsBack 非法设置回退到默认值
func TestSettingsInvalidFallsBack(t *testing.T) {
	manager := createTestGdataManager(t, "test_danmu2ass_invalid")

	if err := manager.SaveObjectProp(settingsObject, settingsProperty, []byte("canvas:\n  laneSize: 0\n")); err != nil {
		t.Fatalf("SaveObjectProp: %v", err)
	}

	sm, _ := NewSettingsManager(manager)
	if sm.GetSettings().Canvas.LaneSize != 46 {
		t.Errorf("LaneSize: got %d, want default 46", sm.GetSettings().Canvas.LaneSize)
	}
}
