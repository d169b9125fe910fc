package store

import "fmt"

// 第二套API面：偏好异常风格的调用方使用 *Sync 变体，
// 失败以带类型的错误抛出。两套API面共享同一套底层逻辑。

// NotFoundError 保存文件不存在
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("保存文件不存在: %s", e.Path)
}

// CorruptedError 保存文件JSON不可解析或结构校验失败
type CorruptedError struct {
	Message     string
	FieldErrors []string
}

func (e *CorruptedError) Error() string {
	return e.Message
}

// StoreError 其他存储失败
type StoreError struct {
	Op      string
	Message string
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

// ReadSync 读取保存文件，失败以带类型的错误返回
func (s *Store) ReadSync(folder string, opts ReadOptions) (*ReplacementValuesFile, error) {
	result := s.Read(folder, opts)
	switch result.Status {
	case ReadOK:
		return result.Data, nil
	case ReadNotFound:
		return nil, &NotFoundError{Path: s.FilePath(folder)}
	case ReadCorrupted:
		return nil, &CorruptedError{Message: result.Message, FieldErrors: result.FieldErrors}
	default:
		return nil, &StoreError{Op: "read", Message: result.Message}
	}
}

// WriteSync 写入保存文件，失败以带类型的错误返回
func (s *Store) WriteSync(folder string, data *ReplacementValuesFile, opts WriteOptions) error {
	result := s.Write(folder, data, opts)
	if !result.OK {
		return &StoreError{Op: "write", Message: result.Message}
	}
	return nil
}

// RestoreFromBackupSync 从备份恢复，失败以带类型的错误返回
func (s *Store) RestoreFromBackupSync(folder string, backupPath string) error {
	result := s.RestoreFromBackup(folder, backupPath)
	if !result.OK {
		return &StoreError{Op: "restore", Message: result.Message}
	}
	return nil
}
