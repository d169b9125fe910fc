// Package store 实现替换值的持久化：每个源文件夹内一个隐藏的保存
// 文件，原子写入、带时间戳的备份轮换、以及防御性读取与损坏分类。
//
// 同一文件夹同一时刻只有一个写入者胜出，由原子改名保证而非加锁；
// 两个进程并发写入会竞争，最后一次改名获胜 —— 这是单桌面用户设计
// 目标下接受的限制，不是保证的不变量。
package store

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/natefinch/atomic"
	"go.uber.org/zap"

	"github.com/allanpk716/docufiller/internal/config"
	"github.com/allanpk716/docufiller/internal/domain"
)

// backupInfix 备份文件名中缀，完整名为 <保存文件名>.bak.<unix毫秒>
const backupInfix = ".bak."

// ReplacementValuesFile 持久化的保存文件内容
type ReplacementValuesFile struct {
	Prefix       string            `json:"prefix"`
	Values       map[string]string `json:"values"`
	Version      string            `json:"version"`
	LastModified string            `json:"lastModified,omitempty"`
}

// ReadStatus 读取结果分类
type ReadStatus string

const (
	// ReadOK 读取成功（含新建默认文件的情况）
	ReadOK ReadStatus = "ok"
	// ReadNotFound 保存文件不存在
	ReadNotFound ReadStatus = "not_found"
	// ReadCorrupted JSON不可解析或结构校验失败，与 NotFound 严格区分
	ReadCorrupted ReadStatus = "corrupted"
	// ReadFailed 其他I/O失败
	ReadFailed ReadStatus = "failed"
)

// ReadOptions 读取选项
type ReadOptions struct {
	// CreateDefaultIfNotFound 文件缺失时合成并持久化默认内容
	CreateDefaultIfNotFound bool
}

// ReadResult 读取结果，主API面以结果值而非异常表达失败
type ReadResult struct {
	Status         ReadStatus
	Data           *ReplacementValuesFile
	CreatedDefault bool
	FieldErrors    []string
	Message        string
}

// WriteOptions 写入选项
type WriteOptions struct {
	// Atomic 写入同目录下唯一命名的临时文件后改名覆盖目标
	Atomic bool
	// UpdateTimestamp 写入前盖上 lastModified = now()
	UpdateTimestamp bool
	// Backup 覆盖已有文件前先做带时间戳的备份并轮换
	Backup bool
}

// WriteResult 写入结果
type WriteResult struct {
	OK      bool
	Message string
}

// RestoreResult 恢复结果
type RestoreResult struct {
	OK      bool
	Message string
}

// BackupEntry 一个备份文件
type BackupEntry struct {
	Path      string
	Timestamp int64 // 文件名内嵌的unix毫秒
}

// Store 替换值存储
type Store struct {
	settings *config.Settings
	logger   *zap.Logger
}

// NewStore 创建新的替换值存储
func NewStore(settings *config.Settings, logger *zap.Logger) *Store {
	if settings == nil {
		settings = config.DefaultSettings()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{settings: settings, logger: logger}
}

// FilePath 返回文件夹对应的保存文件路径（每文件夹一个，不是每文档一个）
func (s *Store) FilePath(folder string) string {
	return filepath.Join(folder, s.settings.StoreFileName)
}

// DefaultFile 返回配置默认前缀下的空保存文件内容
func (s *Store) DefaultFile() *ReplacementValuesFile {
	return &ReplacementValuesFile{
		Prefix:  s.settings.DefaultPrefix,
		Values:  map[string]string{},
		Version: s.settings.StoreVersion,
	}
}

// Read 读取文件夹的保存文件。缺失 → NotFound，或按选项合成默认内容
// 并持久化后返回（CreatedDefault=true）；JSON不可解析 → Corrupted；
// 结构校验失败 → Corrupted 并附字段级错误列表。
func (s *Store) Read(folder string, opts ReadOptions) ReadResult {
	path := s.FilePath(folder)

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if opts.CreateDefaultIfNotFound {
				return s.createDefault(folder)
			}
			return ReadResult{
				Status:  ReadNotFound,
				Message: fmt.Sprintf("保存文件不存在: %s", path),
			}
		}
		return ReadResult{
			Status:  ReadFailed,
			Message: fmt.Sprintf("读取保存文件失败: %v", err),
		}
	}

	var data ReplacementValuesFile
	if err := json.Unmarshal(raw, &data); err != nil {
		return ReadResult{
			Status:  ReadCorrupted,
			Message: fmt.Sprintf("保存文件JSON解析失败: %v", err),
		}
	}

	if fieldErrors := s.validate(&data); len(fieldErrors) > 0 {
		return ReadResult{
			Status:      ReadCorrupted,
			FieldErrors: fieldErrors,
			Message:     fmt.Sprintf("保存文件结构校验失败: %s", strings.Join(fieldErrors, "; ")),
		}
	}

	return ReadResult{Status: ReadOK, Data: &data}
}

// createDefault 合成默认内容并持久化
func (s *Store) createDefault(folder string) ReadResult {
	data := s.DefaultFile()
	write := s.Write(folder, data, WriteOptions{Atomic: true, UpdateTimestamp: true})
	if !write.OK {
		return ReadResult{
			Status:  ReadFailed,
			Message: fmt.Sprintf("创建默认保存文件失败: %s", write.Message),
		}
	}
	s.logger.Info("已创建默认保存文件", zap.String("folder", folder))
	return ReadResult{Status: ReadOK, Data: data, CreatedDefault: true}
}

// Write 写入文件夹的保存文件。先校验，非法数据直接拒绝且无任何副作用；
// 原子模式写入同目录临时文件后改名覆盖 —— 改名完成前旧文件一直有效。
// 备份失败只记录日志，不阻塞主写入（尽力而为的持久性特性，不是正确性要求）。
func (s *Store) Write(folder string, data *ReplacementValuesFile, opts WriteOptions) WriteResult {
	if data == nil {
		return WriteResult{Message: "保存内容不能为空"}
	}
	if fieldErrors := s.validate(data); len(fieldErrors) > 0 {
		return WriteResult{
			Message: fmt.Sprintf("保存内容校验失败: %s", strings.Join(fieldErrors, "; ")),
		}
	}

	if opts.UpdateTimestamp {
		data.LastModified = time.Now().UTC().Format(time.RFC3339)
	}

	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return WriteResult{Message: fmt.Sprintf("序列化保存内容失败: %v", err)}
	}

	path := s.FilePath(folder)

	if opts.Atomic && opts.Backup {
		if err := s.backupCurrent(path); err != nil {
			s.logger.Warn("创建备份失败，继续主写入", zap.Error(err))
		}
	}

	if opts.Atomic {
		if err := atomic.WriteFile(path, bytes.NewReader(raw)); err != nil {
			return WriteResult{Message: fmt.Sprintf("原子写入失败: %v", err)}
		}
	} else {
		if err := os.WriteFile(path, raw, 0o644); err != nil {
			return WriteResult{Message: fmt.Sprintf("写入失败: %v", err)}
		}
	}

	return WriteResult{OK: true}
}

// Delete 删除保存文件。保存文件从不自动删除，只响应显式请求。
func (s *Store) Delete(folder string) error {
	if err := os.Remove(s.FilePath(folder)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("删除保存文件失败: %w", err)
	}
	return nil
}

// backupCurrent 覆盖前把当前文件复制为带时间戳的备份，然后按保留
// 数量清理多余备份（保最新、删最旧，时间戳取文件名内嵌值）。
func (s *Store) backupCurrent(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("读取当前文件失败: %w", err)
	}

	// 毫秒内连续写入时递增时间戳，避免备份互相覆盖
	ts := time.Now().UnixMilli()
	backupPath := path + backupInfix + strconv.FormatInt(ts, 10)
	for {
		if _, err := os.Stat(backupPath); os.IsNotExist(err) {
			break
		}
		ts++
		backupPath = path + backupInfix + strconv.FormatInt(ts, 10)
	}

	if err := os.WriteFile(backupPath, raw, 0o644); err != nil {
		return fmt.Errorf("写入备份失败: %w", err)
	}

	s.pruneBackups(path)
	return nil
}

// pruneBackups 删除超过保留数量的最旧备份
func (s *Store) pruneBackups(path string) {
	backups, err := s.listBackups(path)
	if err != nil {
		s.logger.Warn("枚举备份失败", zap.Error(err))
		return
	}

	for i := s.settings.BackupRetention; i < len(backups); i++ {
		if err := os.Remove(backups[i].Path); err != nil {
			s.logger.Warn("删除过期备份失败",
				zap.String("backup", backups[i].Path), zap.Error(err))
		}
	}
}

// ListBackups 返回文件夹内的全部备份，按时间戳从新到旧
func (s *Store) ListBackups(folder string) ([]BackupEntry, error) {
	return s.listBackups(s.FilePath(folder))
}

func (s *Store) listBackups(path string) ([]BackupEntry, error) {
	dir := filepath.Dir(path)
	prefix := filepath.Base(path) + backupInfix

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("读取文件夹失败: %w", err)
	}

	var backups []BackupEntry
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), prefix) {
			continue
		}
		ts, err := strconv.ParseInt(strings.TrimPrefix(entry.Name(), prefix), 10, 64)
		if err != nil {
			continue
		}
		backups = append(backups, BackupEntry{
			Path:      filepath.Join(dir, entry.Name()),
			Timestamp: ts,
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].Timestamp > backups[j].Timestamp
	})
	return backups, nil
}

// RestoreFromBackup 校验备份的JSON与结构之后才覆盖现行文件。
// 备份本身损坏、不可读或缺失时返回失败 —— 恢复绝不能用无效备份
// 摧毁一个有效的现行文件。
func (s *Store) RestoreFromBackup(folder string, backupPath string) RestoreResult {
	raw, err := os.ReadFile(backupPath)
	if err != nil {
		return RestoreResult{Message: fmt.Sprintf("读取备份失败: %v", err)}
	}

	var data ReplacementValuesFile
	if err := json.Unmarshal(raw, &data); err != nil {
		return RestoreResult{Message: fmt.Sprintf("备份JSON解析失败: %v", err)}
	}
	if fieldErrors := s.validate(&data); len(fieldErrors) > 0 {
		return RestoreResult{
			Message: fmt.Sprintf("备份结构校验失败: %s", strings.Join(fieldErrors, "; ")),
		}
	}

	if err := atomic.WriteFile(s.FilePath(folder), bytes.NewReader(raw)); err != nil {
		return RestoreResult{Message: fmt.Sprintf("恢复写入失败: %v", err)}
	}

	s.logger.Info("已从备份恢复保存文件",
		zap.String("folder", folder), zap.String("backup", backupPath))
	return RestoreResult{OK: true}
}

// validate 结构校验，返回字段级错误列表
func (s *Store) validate(data *ReplacementValuesFile) []string {
	var fieldErrors []string

	if !domain.IsValidPrefix(data.Prefix, s.settings.PrefixMinLength, s.settings.PrefixMaxLength) {
		fieldErrors = append(fieldErrors,
			fmt.Sprintf("prefix: 长度必须在 %d 到 %d 之间",
				s.settings.PrefixMinLength, s.settings.PrefixMaxLength))
	}
	if data.Values == nil {
		fieldErrors = append(fieldErrors, "values: 字段缺失")
	} else {
		for key := range data.Values {
			if !domain.IsValidIdentifier(key, s.settings.IdentifierMaxLength) {
				fieldErrors = append(fieldErrors,
					fmt.Sprintf("values.%s: 标识符不满足文法", key))
			}
		}
	}
	if data.LastModified != "" {
		if _, err := time.Parse(time.RFC3339, data.LastModified); err != nil {
			fieldErrors = append(fieldErrors,
				fmt.Sprintf("lastModified: 不是合法的ISO-8601时间: %v", err))
		}
	}

	sort.Strings(fieldErrors)
	return fieldErrors
}

// SortedIdentifiers 返回保存值的标识符，字典序排列
func (f *ReplacementValuesFile) SortedIdentifiers() []string {
	identifiers := make([]string, 0, len(f.Values))
	for identifier := range f.Values {
		identifiers = append(identifiers, identifier)
	}
	sort.Strings(identifiers)
	return identifiers
}
