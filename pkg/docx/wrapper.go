package docx

import (
	"fmt"

	"github.com/nguyenthenguyen/docx"
)

// Prober 使用 nguyenthenguyen/docx 库对文档做打开性校验。
// 该库会完整解析包结构，能在批处理前挡掉归档层察觉不到的格式问题。
type Prober struct{}

// NewProber 创建新的文档校验器
func NewProber() *Prober {
	return &Prober{}
}

// Probe 校验文档能否作为DOCX正常打开
func (p *Prober) Probe(filePath string) error {
	if filePath == "" {
		return fmt.Errorf("输入路径不能为空")
	}

	reader, err := docx.ReadDocxFile(filePath)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCorruptedFile, filePath, err)
	}
	defer reader.Close()

	if reader.Editable() == nil {
		return fmt.Errorf("%w: %s: 文档内容不可访问", ErrCorruptedFile, filePath)
	}

	return nil
}
