// Package docx 将 DOCX 文档包视为可随机访问的条目归档，
// 提供正文条目（word/document.xml）的文本读取与原位改写，
// 其余条目（样式、关系、媒体）保持逐字节不变。
package docx

import "errors"

// 哨兵错误，调用方可用 errors.Is 区分失败类别。
var (
	ErrRead          = errors.New("读取文件失败")
	ErrWrite         = errors.New("写入文件失败")
	ErrCorruptedFile = errors.New("文件已损坏")
	ErrMissingFile   = errors.New("缺少文档正文条目")
	ErrInvalidXML    = errors.New("正文XML无效")
)
