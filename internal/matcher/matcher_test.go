package matcher

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allanpk716/docufiller/internal/config"
	"github.com/allanpk716/docufiller/internal/domain"
)

func newTestMatcher(settings *config.Settings) domain.MarkerDetector {
	return NewMarkerMatcher(settings, nil)
}

func TestValidatePrefix(t *testing.T) {
	mm := newTestMatcher(nil)

	tests := []struct {
		name    string
		prefix  string
		wantErr bool
	}{
		{"常规前缀", "REPLACEME-", false},
		{"单字符前缀", "#", false},
		{"空前缀", "", true},
		{"超长前缀", strings.Repeat("x", 51), true},
		{"上限长度前缀", strings.Repeat("x", 50), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := mm.ValidatePrefix(tt.prefix)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPrefix)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDetect(t *testing.T) {
	mm := newTestMatcher(nil)

	tests := []struct {
		name     string
		text     string
		prefix   string
		expected []string
	}{
		{
			name:     "基本探测",
			text:     "尊敬的 REPLACEME-NAME 您好，订单号 REPLACEME-ORDER_ID。",
			prefix:   "REPLACEME-",
			expected: []string{"NAME", "ORDER_ID"},
		},
		{
			name:     "同一标识符去重",
			text:     "REPLACEME-NAME 和 REPLACEME-NAME",
			prefix:   "REPLACEME-",
			expected: []string{"NAME"},
		},
		{
			name:     "最大化匹配不提前截断",
			text:     "(REPLACEME-NAME_FULL)",
			prefix:   "REPLACEME-",
			expected: []string{"NAME_FULL"},
		},
		{
			name:     "词中间不误匹配",
			text:     "xREPLACEME-NAME 之后才是 REPLACEME-OTHER",
			prefix:   "REPLACEME-",
			expected: []string{"OTHER"},
		},
		{
			name:     "词字符后的井号前缀",
			text:     "订单No#ORDER。",
			prefix:   "#",
			expected: []string{"ORDER"},
		},
		{
			name:     "前缀中的正则元字符被转义",
			text:     "abc$[X]-FIELD def",
			prefix:   "$[X]-",
			expected: []string{"FIELD"},
		},
		{
			name:     "标识符在连字符处截止",
			text:     "(REPLACEME-ME-NAME)",
			prefix:   "REPLACEME-",
			expected: []string{"ME"},
		},
		{
			name:     "无任何标记",
			text:     "没有标记的普通文本",
			prefix:   "REPLACEME-",
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := mm.Detect(tt.text, tt.prefix)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result.Identifiers)
			assert.False(t, result.Truncated)
		})
	}
}

func TestDetectInvalidPrefix(t *testing.T) {
	mm := newTestMatcher(nil)
	_, err := mm.Detect("任意文本", "")
	assert.ErrorIs(t, err, ErrInvalidPrefix)
}

func TestDetectOverlongIdentifier(t *testing.T) {
	settings := config.DefaultSettings()
	mm := newTestMatcher(settings)

	overlong := strings.Repeat("A", settings.IdentifierMaxLength+1)
	result, err := mm.Detect("(REPLACEME-"+overlong+")", "REPLACEME-")
	require.NoError(t, err)
	assert.Empty(t, result.Identifiers)
}

func TestDetectSoftCap(t *testing.T) {
	settings := config.DefaultSettings()
	settings.MaxMarkersPerDoc = 2
	mm := newTestMatcher(settings)

	result, err := mm.Detect("(REPLACEME-A REPLACEME-B REPLACEME-C REPLACEME-A)", "REPLACEME-")
	require.NoError(t, err)
	// 软上限：超出部分丢弃并标记截断，不是错误
	assert.Equal(t, []string{"A", "B"}, result.Identifiers)
	assert.True(t, result.Truncated)
	assert.Equal(t, 1, result.Dropped)
}

func TestDeduplicateAcrossDocuments(t *testing.T) {
	mm := newTestMatcher(nil)

	markers, truncated := mm.DeduplicateAcrossDocuments("REPLACEME-", []domain.DocumentMarkers{
		{Document: "a.docx", Identifiers: []string{"NAME", "DATE"}},
		{Document: "b.docx", Identifiers: []string{"DATE", "CITY"}},
	})

	require.False(t, truncated)
	require.Len(t, markers, 3)

	assert.Equal(t, "NAME", markers[0].Identifier)
	assert.Equal(t, "REPLACEME-NAME", markers[0].FullMarker)
	assert.Equal(t, map[string]bool{"a.docx": true}, markers[0].Documents)

	assert.Equal(t, "DATE", markers[1].Identifier)
	assert.Equal(t, map[string]bool{"a.docx": true, "b.docx": true}, markers[1].Documents)

	assert.Equal(t, "CITY", markers[2].Identifier)
	assert.Equal(t, map[string]bool{"b.docx": true}, markers[2].Documents)
}

func TestDeduplicateSoftCap(t *testing.T) {
	settings := config.DefaultSettings()
	settings.MaxUniqueMarkers = 2
	mm := newTestMatcher(settings)

	markers, truncated := mm.DeduplicateAcrossDocuments("REPLACEME-", []domain.DocumentMarkers{
		{Document: "a.docx", Identifiers: []string{"ONE", "TWO", "THREE"}},
	})

	// 稳定截断：保留首见顺序的前两个
	assert.True(t, truncated)
	require.Len(t, markers, 2)
	assert.Equal(t, "ONE", markers[0].Identifier)
	assert.Equal(t, "TWO", markers[1].Identifier)
}
