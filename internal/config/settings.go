package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// 默认限制值，与原始应用保持一致
const (
	DefaultPrefix          = "REPLACEME-"
	DefaultStoreFileName   = ".docufiller.json"
	DefaultStoreVersion    = "2.0"
	DefaultBackupRetention = 5

	DefaultPrefixMinLength      = 1
	DefaultPrefixMaxLength      = 50
	DefaultIdentifierMaxLength  = 100
	DefaultMaxMarkersPerDoc     = 500
	DefaultMaxUniqueMarkers     = 1000
	DefaultMaxDocumentsPerScan  = 200
	DefaultMaxDocumentSizeBytes = 50 * 1024 * 1024
)

// Settings 引擎运行设置
type Settings struct {
	DefaultPrefix   string `yaml:"default_prefix"`
	StoreFileName   string `yaml:"store_file_name"`
	StoreVersion    string `yaml:"store_version"`
	BackupRetention int    `yaml:"backup_retention"`

	PrefixMinLength      int   `yaml:"prefix_min_length"`
	PrefixMaxLength      int   `yaml:"prefix_max_length"`
	IdentifierMaxLength  int   `yaml:"identifier_max_length"`
	MaxMarkersPerDoc     int   `yaml:"max_markers_per_doc"`
	MaxUniqueMarkers     int   `yaml:"max_unique_markers"`
	MaxDocumentsPerScan  int   `yaml:"max_documents_per_scan"`
	MaxDocumentSizeBytes int64 `yaml:"max_document_size_bytes"`
}

// DefaultSettings 返回带默认值的设置
func DefaultSettings() *Settings {
	return &Settings{
		DefaultPrefix:        DefaultPrefix,
		StoreFileName:        DefaultStoreFileName,
		StoreVersion:         DefaultStoreVersion,
		BackupRetention:      DefaultBackupRetention,
		PrefixMinLength:      DefaultPrefixMinLength,
		PrefixMaxLength:      DefaultPrefixMaxLength,
		IdentifierMaxLength:  DefaultIdentifierMaxLength,
		MaxMarkersPerDoc:     DefaultMaxMarkersPerDoc,
		MaxUniqueMarkers:     DefaultMaxUniqueMarkers,
		MaxDocumentsPerScan:  DefaultMaxDocumentsPerScan,
		MaxDocumentSizeBytes: DefaultMaxDocumentSizeBytes,
	}
}

// SettingsManager 设置管理器
type SettingsManager struct{}

// NewSettingsManager 创建新的设置管理器
func NewSettingsManager() *SettingsManager {
	return &SettingsManager{}
}

// LoadSettings 从 YAML 文件加载设置，文件不存在时返回默认设置
func (sm *SettingsManager) LoadSettings(filePath string) (*Settings, error) {
	settings := DefaultSettings()

	if filePath == "" {
		return settings, nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return settings, nil
		}
		return nil, fmt.Errorf("读取设置文件失败: %w", err)
	}

	if err := yaml.Unmarshal(data, settings); err != nil {
		return nil, fmt.Errorf("解析设置文件失败: %w", err)
	}

	sm.applyDefaults(settings)

	if err := sm.ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("设置验证失败: %w", err)
	}

	return settings, nil
}

// applyDefaults 为缺失的字段填充默认值
func (sm *SettingsManager) applyDefaults(settings *Settings) {
	if settings.DefaultPrefix == "" {
		settings.DefaultPrefix = DefaultPrefix
	}
	if settings.StoreFileName == "" {
		settings.StoreFileName = DefaultStoreFileName
	}
	if settings.StoreVersion == "" {
		settings.StoreVersion = DefaultStoreVersion
	}
	if settings.BackupRetention <= 0 {
		settings.BackupRetention = DefaultBackupRetention
	}
	if settings.PrefixMinLength <= 0 {
		settings.PrefixMinLength = DefaultPrefixMinLength
	}
	if settings.PrefixMaxLength <= 0 {
		settings.PrefixMaxLength = DefaultPrefixMaxLength
	}
	if settings.IdentifierMaxLength <= 0 {
		settings.IdentifierMaxLength = DefaultIdentifierMaxLength
	}
	if settings.MaxMarkersPerDoc <= 0 {
		settings.MaxMarkersPerDoc = DefaultMaxMarkersPerDoc
	}
	if settings.MaxUniqueMarkers <= 0 {
		settings.MaxUniqueMarkers = DefaultMaxUniqueMarkers
	}
	if settings.MaxDocumentsPerScan <= 0 {
		settings.MaxDocumentsPerScan = DefaultMaxDocumentsPerScan
	}
	if settings.MaxDocumentSizeBytes <= 0 {
		settings.MaxDocumentSizeBytes = DefaultMaxDocumentSizeBytes
	}
}

// ValidateSettings 验证设置的合法性
func (sm *SettingsManager) ValidateSettings(settings *Settings) error {
	if settings == nil {
		return fmt.Errorf("设置不能为空")
	}
	if settings.PrefixMinLength > settings.PrefixMaxLength {
		return fmt.Errorf("前缀长度下限 %d 不能大于上限 %d",
			settings.PrefixMinLength, settings.PrefixMaxLength)
	}
	if len(settings.DefaultPrefix) < settings.PrefixMinLength ||
		len(settings.DefaultPrefix) > settings.PrefixMaxLength {
		return fmt.Errorf("默认前缀长度不在允许范围内: %q", settings.DefaultPrefix)
	}
	if settings.StoreFileName == "" {
		return fmt.Errorf("保存文件名不能为空")
	}
	return nil
}
