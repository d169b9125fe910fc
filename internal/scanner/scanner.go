// Package scanner 实现文件夹枚举与扫描流程：逐文档提取纯文本、
// 探测标记、跨文档去重，并与已保存的值合并推导标记状态。
package scanner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/allanpk716/docufiller/internal/config"
	"github.com/allanpk716/docufiller/internal/domain"
	"github.com/allanpk716/docufiller/internal/matcher"
	"github.com/allanpk716/docufiller/pkg/docx"
)

// DocumentExtension 候选文档的固定扩展名（大小写不敏感）
const DocumentExtension = ".docx"

// FolderScanner 文件夹扫描器
type FolderScanner struct {
	settings *config.Settings
	logger   *zap.Logger
	detector domain.MarkerDetector
}

// NewFolderScanner 创建新的文件夹扫描器
func NewFolderScanner(settings *config.Settings, logger *zap.Logger) *FolderScanner {
	if settings == nil {
		settings = config.DefaultSettings()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FolderScanner{
		settings: settings,
		logger:   logger,
		detector: matcher.NewMarkerMatcher(settings, logger),
	}
}

// Enumeration 一次文件夹枚举的结果
type Enumeration struct {
	Documents []string // 相对文件名，按目录顺序
	Skipped   []string // 因超过大小上限被跳过的文档
	Truncated bool     // 文档数量超过上限被截断
}

// FindDocuments 枚举文件夹中的候选文档：固定扩展名、大小写不敏感、
// 不递归，跳过 ~$ 开头的锁文件。数量与单文件大小上限都是软限制，
// 超出时截断/跳过并记录警告，不会让整次扫描失败。
func (fs *FolderScanner) FindDocuments(folder string) (*Enumeration, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, fmt.Errorf("读取文件夹失败: %w", err)
	}

	result := &Enumeration{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.EqualFold(filepath.Ext(name), DocumentExtension) {
			continue
		}
		// Word 打开文档时留下的锁文件
		if strings.HasPrefix(name, "~$") {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			fs.logger.Warn("读取文件信息失败，跳过", zap.String("file", name), zap.Error(err))
			result.Skipped = append(result.Skipped, name)
			continue
		}
		if info.Size() > fs.settings.MaxDocumentSizeBytes {
			fs.logger.Warn("文档超过大小上限，跳过",
				zap.String("file", name),
				zap.Int64("size", info.Size()),
				zap.Int64("limit", fs.settings.MaxDocumentSizeBytes))
			result.Skipped = append(result.Skipped, name)
			continue
		}

		if len(result.Documents) >= fs.settings.MaxDocumentsPerScan {
			result.Truncated = true
			continue
		}
		result.Documents = append(result.Documents, name)
	}

	if result.Truncated {
		fs.logger.Warn("文档数量超过上限，已截断",
			zap.Int("limit", fs.settings.MaxDocumentsPerScan))
	}

	return result, nil
}

// ScanFolder 扫描文件夹中的全部文档并产出去重后的标记集合。
// 单个文档的失败被记录在结果中，不会中断整次扫描。
// 文档按顺序串行处理，取消只在文档之间生效。
func (fs *FolderScanner) ScanFolder(ctx context.Context, folder string, prefix string) (*domain.ScanResult, error) {
	if err := fs.detector.ValidatePrefix(prefix); err != nil {
		return nil, err
	}

	enumeration, err := fs.FindDocuments(folder)
	if err != nil {
		return nil, err
	}

	result := &domain.ScanResult{
		Folder:    folder,
		Documents: enumeration.Documents,
		Prefix:    prefix,
		Timestamp: time.Now(),
		Skipped:   enumeration.Skipped,
	}

	var perDocument []domain.DocumentMarkers
	for _, name := range enumeration.Documents {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		path := filepath.Join(folder, name)
		archive := docx.NewArchive(path)
		text, err := archive.ExtractText()
		if err != nil {
			fs.logger.Warn("文档扫描失败，已跳过",
				zap.String("document", name), zap.Error(err))
			result.Errors = append(result.Errors, domain.DocumentError{
				Path:    path,
				Message: err.Error(),
			})
			continue
		}

		detection, err := fs.detector.Detect(text, prefix)
		if err != nil {
			return nil, err
		}
		if detection.Truncated {
			result.Truncated = true
		}
		perDocument = append(perDocument, domain.DocumentMarkers{
			Document:    name,
			Identifiers: detection.Identifiers,
		})
	}

	markers, truncated := fs.detector.DeduplicateAcrossDocuments(prefix, perDocument)
	result.Markers = markers
	if truncated {
		result.Truncated = true
	}

	fs.logger.Info("文件夹扫描完成",
		zap.String("folder", folder),
		zap.Int("documents", len(enumeration.Documents)),
		zap.Int("markers", len(markers)),
		zap.Int("errors", len(result.Errors)))

	return result, nil
}

// MergeWithSaved 把扫描结果与已保存的值合并，推导每个标记的状态：
// Active = 本次扫描存在且有保存值；New = 本次扫描存在但无保存值；
// Removed = 有保存值但本次扫描未出现。Removed 标记附加在扫描标记之后，
// 按标识符在 savedOrder 中的顺序排列。
func MergeWithSaved(scanned []domain.Marker, prefix string, savedValues map[string]string, savedOrder []string) []domain.Marker {
	present := make(map[string]bool, len(scanned))
	merged := make([]domain.Marker, 0, len(scanned))

	for _, marker := range scanned {
		present[marker.Identifier] = true
		if value, exists := savedValues[marker.Identifier]; exists {
			marker.Value = value
			marker.Status = domain.StatusActive
		} else {
			marker.Status = domain.StatusNew
		}
		merged = append(merged, marker)
	}

	for _, identifier := range savedOrder {
		if present[identifier] {
			continue
		}
		value, exists := savedValues[identifier]
		if !exists {
			continue
		}
		merged = append(merged, domain.Marker{
			Identifier: identifier,
			FullMarker: prefix + identifier,
			Value:      value,
			Status:     domain.StatusRemoved,
			Documents:  map[string]bool{},
		})
	}

	return merged
}
