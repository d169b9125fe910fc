package processor

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/zeebo/xxh3"
	"go.uber.org/zap"

	"github.com/allanpk716/docufiller/internal/config"
	"github.com/allanpk716/docufiller/internal/domain"
	"github.com/allanpk716/docufiller/internal/scanner"
	"github.com/allanpk716/docufiller/pkg/docx"
)

// BatchProcessor 批量替换处理器。文档串行处理，同一时刻只有一个
// 归档驻留内存，进度 completed/total 因此是精确值而非估计值。
type BatchProcessor struct {
	settings *config.Settings
	logger   *zap.Logger
	finder   *scanner.FolderScanner
	prober   *docx.Prober
}

// NewBatchProcessor 创建新的批量替换处理器
func NewBatchProcessor(settings *config.Settings, logger *zap.Logger) domain.DocumentReplacer {
	if settings == nil {
		settings = config.DefaultSettings()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BatchProcessor{
		settings: settings,
		logger:   logger,
		finder:   scanner.NewFolderScanner(settings, logger),
		prober:   docx.NewProber(),
	}
}

// ReplaceMarkers 实现 domain.DocumentReplacer，见包级同名函数
func (bp *BatchProcessor) ReplaceMarkers(bodyXML string, prefix string, values map[string]string) (string, int) {
	return ReplaceMarkers(bodyXML, prefix, values)
}

// ProcessFolder 对源文件夹中的全部文档执行替换，结果写入输出文件夹，
// 原始文档保持不变。两个加权阶段：复制源文档到输出位置（0-50%）、
// 逐文档替换（50-100%）。单文档失败被记录后继续，一个坏文档不会
// 中断整批；Success 恒等于 Errors == 0。取消只在文档之间生效，
// 文档内部没有抢占点。
func (bp *BatchProcessor) ProcessFolder(ctx context.Context, req domain.ReplacementRequest, progress domain.ProgressFunc) domain.ReplacementResult {
	result := domain.ReplacementResult{}
	if progress == nil {
		progress = func(domain.ProgressEvent) {}
	}

	if err := bp.validateRequest(req); err != nil {
		result.Errors = 1
		result.FailedDocuments = append(result.FailedDocuments, domain.DocumentError{
			Path:    req.SourceFolder,
			Message: err.Error(),
		})
		return result
	}

	enumeration, err := bp.finder.FindDocuments(req.SourceFolder)
	if err != nil {
		result.Errors = 1
		result.FailedDocuments = append(result.FailedDocuments, domain.DocumentError{
			Path:    req.SourceFolder,
			Message: err.Error(),
		})
		return result
	}

	total := len(enumeration.Documents)
	if total == 0 {
		result.Success = true
		return result
	}

	bp.logger.Info("开始批量替换",
		zap.String("source", req.SourceFolder),
		zap.String("output", req.OutputFolder),
		zap.Int("documents", total),
		zap.Int("values", len(req.Values)))

	// 第一阶段：复制源文档到输出位置（0-50%）。
	// 替换始终在副本上执行，原始文件绝不被修改。
	copied := make([]string, 0, total)
	for i, name := range enumeration.Documents {
		if err := ctx.Err(); err != nil {
			bp.recordCancelled(&result, enumeration.Documents[i:], req.SourceFolder)
			return result
		}

		src := filepath.Join(req.SourceFolder, name)
		dst := filepath.Join(req.OutputFolder, name)
		if err := copyFile(src, dst); err != nil {
			bp.logger.Warn("复制文档失败，已跳过",
				zap.String("document", name), zap.Error(err))
			result.Errors++
			result.FailedDocuments = append(result.FailedDocuments, domain.DocumentError{
				Path:    src,
				Message: fmt.Sprintf("复制文档失败: %v", err),
			})
		} else {
			copied = append(copied, name)
		}

		progress(domain.ProgressEvent{
			Phase:       domain.PhaseCopy,
			Percent:     (i + 1) * 50 / total,
			CurrentItem: name,
			Completed:   i + 1,
			Total:       total,
			Errors:      result.Errors,
		})
	}

	// 第二阶段：逐文档替换（50-100%）
	for i, name := range copied {
		if err := ctx.Err(); err != nil {
			bp.recordCancelled(&result, copied[i:], req.OutputFolder)
			return result
		}

		dst := filepath.Join(req.OutputFolder, name)
		if err := bp.replaceInDocument(dst, req.Prefix, req.Values); err != nil {
			bp.logger.Warn("文档替换失败，已跳过",
				zap.String("document", name), zap.Error(err))
			result.Errors++
			result.FailedDocuments = append(result.FailedDocuments, domain.DocumentError{
				Path:    dst,
				Message: err.Error(),
			})
		} else {
			result.Processed++
			result.ProcessedDocuments = append(result.ProcessedDocuments, dst)
		}

		progress(domain.ProgressEvent{
			Phase:       domain.PhaseReplace,
			Percent:     50 + (i+1)*50/len(copied),
			CurrentItem: name,
			Completed:   i + 1,
			Total:       len(copied),
			Errors:      result.Errors,
		})
	}

	result.Success = result.Errors == 0

	bp.logger.Info("批量替换完成",
		zap.Int("processed", result.Processed),
		zap.Int("errors", result.Errors))

	return result
}

// replaceInDocument 对单个工作副本执行替换。
// 正文替换前后哈希一致时跳过重写，副本已与原件逐字节相同。
func (bp *BatchProcessor) replaceInDocument(path string, prefix string, values map[string]string) error {
	if err := bp.prober.Probe(path); err != nil {
		return err
	}

	archive := docx.NewArchive(path)
	bodyXML, err := archive.ReadBody()
	if err != nil {
		return err
	}

	newBodyXML, count := ReplaceMarkers(bodyXML, prefix, values)
	if xxh3.HashString(newBodyXML) == xxh3.HashString(bodyXML) {
		bp.logger.Debug("正文无变化，跳过重写", zap.String("document", path))
		return nil
	}

	bp.logger.Debug("完成标记替换",
		zap.String("document", path), zap.Int("replacements", count))

	return archive.WriteBody(newBodyXML)
}

// validateRequest 校验替换请求参数
func (bp *BatchProcessor) validateRequest(req domain.ReplacementRequest) error {
	if req.SourceFolder == "" {
		return fmt.Errorf("源文件夹不能为空")
	}
	if req.OutputFolder == "" {
		return fmt.Errorf("输出文件夹不能为空")
	}
	if !domain.IsValidPrefix(req.Prefix, bp.settings.PrefixMinLength, bp.settings.PrefixMaxLength) {
		return fmt.Errorf("前缀无效: %q", req.Prefix)
	}
	if _, err := os.Stat(req.SourceFolder); err != nil {
		return fmt.Errorf("源文件夹不可访问: %w", err)
	}
	if err := os.MkdirAll(req.OutputFolder, 0o755); err != nil {
		return fmt.Errorf("创建输出文件夹失败: %w", err)
	}
	return nil
}

// recordCancelled 把尚未处理的文档记为取消失败
func (bp *BatchProcessor) recordCancelled(result *domain.ReplacementResult, remaining []string, folder string) {
	for _, name := range remaining {
		result.Errors++
		result.FailedDocuments = append(result.FailedDocuments, domain.DocumentError{
			Path:    filepath.Join(folder, name),
			Message: "已取消",
		})
	}
}

// copyFile 复制文件内容与权限位
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
