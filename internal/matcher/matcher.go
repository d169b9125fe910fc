// Package matcher 实现标记探测：根据前缀构建匹配模式，
// 在文档纯文本中提取合法标识符，并跨文档去重合并。
package matcher

import (
	"errors"
	"fmt"
	"regexp"

	"go.uber.org/zap"

	"github.com/allanpk716/docufiller/internal/config"
	"github.com/allanpk716/docufiller/internal/domain"
)

// ErrInvalidPrefix 前缀不满足长度约束
var ErrInvalidPrefix = errors.New("前缀无效")

// markerMatcher 标记探测器实现
type markerMatcher struct {
	settings     *config.Settings
	logger       *zap.Logger
	patternCache map[string]*regexp.Regexp
}

// NewMarkerMatcher 创建新的标记探测器
func NewMarkerMatcher(settings *config.Settings, logger *zap.Logger) domain.MarkerDetector {
	if settings == nil {
		settings = config.DefaultSettings()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &markerMatcher{
		settings:     settings,
		logger:       logger,
		patternCache: make(map[string]*regexp.Regexp),
	}
}

// ValidatePrefix 校验前缀是否满足长度约束
func (mm *markerMatcher) ValidatePrefix(prefix string) error {
	if prefix == "" {
		return fmt.Errorf("%w: 前缀不能为空", ErrInvalidPrefix)
	}
	if !domain.IsValidPrefix(prefix, mm.settings.PrefixMinLength, mm.settings.PrefixMaxLength) {
		return fmt.Errorf("%w: 前缀长度必须在 %d 到 %d 之间，实际为 %d",
			ErrInvalidPrefix, mm.settings.PrefixMinLength, mm.settings.PrefixMaxLength, len(prefix))
	}
	return nil
}

// buildPattern 为前缀构建匹配模式并缓存。
// 前缀中的正则元字符全部转义；前导 \b 阻止词中间的误匹配。
// RE2 不支持负向前瞻，但贪婪的词字符闭包位于模式末尾时本身就是
// 最大化匹配，标识符捕获不会提前一个字符截断。
func (mm *markerMatcher) buildPattern(prefix string) *regexp.Regexp {
	if pattern, exists := mm.patternCache[prefix]; exists {
		return pattern
	}

	pattern := regexp.MustCompile(`\b` + regexp.QuoteMeta(prefix) + `([A-Za-z0-9_]+)`)
	mm.patternCache[prefix] = pattern
	return pattern
}

// Detect 从左到右扫描文本，收集全部合法标识符（去重、首见顺序）。
// 捕获结果还要独立通过标识符文法与长度校验，防止模式过于宽松。
// 超出单文档上限的新标识符被丢弃并记录警告，探测本身不会因此失败。
func (mm *markerMatcher) Detect(text string, prefix string) (domain.DetectionResult, error) {
	result := domain.DetectionResult{}

	if err := mm.ValidatePrefix(prefix); err != nil {
		return result, err
	}

	pattern := mm.buildPattern(prefix)
	matches := pattern.FindAllStringSubmatch(text, -1)

	seen := make(map[string]bool)
	for _, match := range matches {
		identifier := match[1]
		if !domain.IsValidIdentifier(identifier, mm.settings.IdentifierMaxLength) {
			continue
		}
		if seen[identifier] {
			continue
		}
		if len(result.Identifiers) >= mm.settings.MaxMarkersPerDoc {
			result.Truncated = true
			result.Dropped++
			continue
		}
		seen[identifier] = true
		result.Identifiers = append(result.Identifiers, identifier)
	}

	if result.Truncated {
		mm.logger.Warn("单文档标记数量超过上限，超出部分已丢弃",
			zap.Int("limit", mm.settings.MaxMarkersPerDoc),
			zap.Int("dropped", result.Dropped))
	}

	return result, nil
}

// DeduplicateAcrossDocuments 将各文档的标识符列表合并为每个标识符
// 一个 Marker，累积引用它的文档集合。合并结果超过唯一标记上限时
// 按首见顺序稳定截断并返回 truncated=true —— 软上限，不是硬失败，
// 超大语料的扫描仍要产出可用（即便不完整）的结果。
func (mm *markerMatcher) DeduplicateAcrossDocuments(prefix string, perDocument []domain.DocumentMarkers) ([]domain.Marker, bool) {
	var order []string
	byIdentifier := make(map[string]*domain.Marker)

	for _, doc := range perDocument {
		for _, identifier := range doc.Identifiers {
			marker, exists := byIdentifier[identifier]
			if !exists {
				marker = &domain.Marker{
					Identifier: identifier,
					FullMarker: prefix + identifier,
					Documents:  make(map[string]bool),
				}
				byIdentifier[identifier] = marker
				order = append(order, identifier)
			}
			marker.Documents[doc.Document] = true
		}
	}

	truncated := false
	if len(order) > mm.settings.MaxUniqueMarkers {
		mm.logger.Warn("唯一标记数量超过上限，已截断",
			zap.Int("limit", mm.settings.MaxUniqueMarkers),
			zap.Int("total", len(order)))
		order = order[:mm.settings.MaxUniqueMarkers]
		truncated = true
	}

	markers := make([]domain.Marker, 0, len(order))
	for _, identifier := range order {
		markers = append(markers, *byIdentifier[identifier])
	}
	return markers, truncated
}
