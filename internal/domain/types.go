package domain

import (
	"context"
	"time"
)

// MarkerStatus 标记状态，由扫描结果和已保存的值推导得出
type MarkerStatus string

const (
	// StatusActive 本次扫描中存在且已有保存值
	StatusActive MarkerStatus = "active"
	// StatusNew 本次扫描中存在但尚无保存值
	StatusNew MarkerStatus = "new"
	// StatusRemoved 有保存值但本次扫描中未出现
	StatusRemoved MarkerStatus = "removed"
)

// Marker 表示文档中的一个标记（前缀+标识符）
type Marker struct {
	Identifier string          // 标识符部分，满足 [A-Za-z0-9_]+
	FullMarker string          // 完整标记，恒等于 prefix + Identifier
	Value      string          // 替换值
	Status     MarkerStatus    // 推导状态
	Documents  map[string]bool // 引用该标记的文档名集合
}

// ScanResult 一次文件夹扫描的结果，每次扫描重新生成，不做持久化
type ScanResult struct {
	Folder    string
	Documents []string
	Markers   []Marker
	Prefix    string
	Timestamp time.Time
	Truncated bool            // 标记数量超过上限被截断
	Skipped   []string        // 因软限制被跳过的文档
	Errors    []DocumentError // 单文档扫描失败记录
}

// ReplacementRequest 一次替换运行的请求参数
type ReplacementRequest struct {
	SourceFolder string
	OutputFolder string
	Values       map[string]string
	Prefix       string
}

// DocumentError 单个文档的失败记录
type DocumentError struct {
	Path    string
	Message string
}

// ReplacementResult 一次替换运行的汇总结果
type ReplacementResult struct {
	Success            bool // 恒等于 Errors == 0
	Processed          int
	Errors             int
	ProcessedDocuments []string
	FailedDocuments    []DocumentError
}

// ProgressPhase 进度阶段
type ProgressPhase string

const (
	// PhaseCopy 复制源文档到输出目录（0-50%）
	PhaseCopy ProgressPhase = "copy"
	// PhaseReplace 逐文档执行替换（50-100%）
	PhaseReplace ProgressPhase = "replace"
)

// ProgressEvent 进度回调携带的信息
type ProgressEvent struct {
	Phase       ProgressPhase
	Percent     int
	CurrentItem string
	Completed   int
	Total       int
	Errors      int
}

// ProgressFunc 进度回调，由调用方决定如何呈现
type ProgressFunc func(ProgressEvent)

// MarkerDetector 标记探测器接口
type MarkerDetector interface {
	ValidatePrefix(prefix string) error
	Detect(text string, prefix string) (DetectionResult, error)
	DeduplicateAcrossDocuments(prefix string, perDocument []DocumentMarkers) ([]Marker, bool)
}

// DocumentMarkers 单个文档的探测结果
type DocumentMarkers struct {
	Document    string
	Identifiers []string
}

// DetectionResult 单文档探测结果
type DetectionResult struct {
	Identifiers []string // 去重后的标识符，首见顺序
	Truncated   bool     // 超出单文档标记上限
	Dropped     int      // 被丢弃的匹配数
}

// DocumentReplacer 文档替换器接口
type DocumentReplacer interface {
	ReplaceMarkers(bodyXML string, prefix string, values map[string]string) (string, int)
	ProcessFolder(ctx context.Context, req ReplacementRequest, progress ProgressFunc) ReplacementResult
}
