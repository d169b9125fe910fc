package docx

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/klauspost/compress/zip"
	"github.com/natefinch/atomic"
)

const (
	// BodyEntryName 正文条目在包内的固定路径
	BodyEntryName = "word/document.xml"

	// minArchiveSize 空ZIP包的最小长度（EOCD记录），低于此值必然损坏
	minArchiveSize = 22
)

// archiveSignature ZIP包的魔数
var archiveSignature = []byte("PK")

// textNodePattern 文本叶节点，内容中不会出现未转义的 '<'
var textNodePattern = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)

// whitespaceRunPattern 连续空白
var whitespaceRunPattern = regexp.MustCompile(`\s+`)

// Archive 绑定到单个DOCX文件路径的归档访问器
type Archive struct {
	filePath string
}

// NewArchive 创建新的归档访问器
func NewArchive(filePath string) *Archive {
	return &Archive{filePath: filePath}
}

// Path 返回绑定的文件路径
func (a *Archive) Path() string {
	return a.filePath
}

// ReadBody 读取正文条目并以文本形式返回。
// 失败类别：路径不可读 → ErrRead；魔数或容器损坏 → ErrCorruptedFile；
// 正文条目缺失 → ErrMissingFile（消息中列出现有条目便于诊断）；
// 正文为空或缺少根/正文标签 → ErrInvalidXML。
func (a *Archive) ReadBody() (string, error) {
	data, err := os.ReadFile(a.filePath)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrRead, a.filePath, err)
	}

	reader, err := openArchive(data, a.filePath)
	if err != nil {
		return "", err
	}

	body, err := readEntry(reader, BodyEntryName)
	if err != nil {
		return "", err
	}

	bodyXML := string(body)
	if err := validateBodyXML(bodyXML); err != nil {
		return "", err
	}

	return bodyXML, nil
}

// WriteBody 重新打开同一归档，仅替换正文条目的内容，
// 将整个归档重新序列化后原子写回 filePath。
// 这是整包的读取-修改-重写，不是原位补丁；调用方必须只对工作副本调用。
func (a *Archive) WriteBody(newBodyXML string) error {
	data, err := os.ReadFile(a.filePath)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrWrite, a.filePath, err)
	}

	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("%w: 打开归档失败: %v", ErrWrite, err)
	}

	var buf bytes.Buffer
	writer := zip.NewWriter(&buf)

	replaced := false
	for _, entry := range reader.File {
		content, err := readEntryFile(entry)
		if err != nil {
			writer.Close()
			return fmt.Errorf("%w: 读取条目 %s 失败: %v", ErrWrite, entry.Name, err)
		}

		if entry.Name == BodyEntryName {
			content = []byte(newBodyXML)
			replaced = true
		}

		// 复用原条目头，保留压缩方式与修改时间
		header := entry.FileHeader
		dst, err := writer.CreateHeader(&header)
		if err != nil {
			writer.Close()
			return fmt.Errorf("%w: 创建条目 %s 失败: %v", ErrWrite, entry.Name, err)
		}
		if _, err := dst.Write(content); err != nil {
			writer.Close()
			return fmt.Errorf("%w: 写入条目 %s 失败: %v", ErrWrite, entry.Name, err)
		}
	}

	if !replaced {
		writer.Close()
		return fmt.Errorf("%w: %s", ErrMissingFile, BodyEntryName)
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("%w: 序列化归档失败: %v", ErrWrite, err)
	}

	// 原子替换目标文件，失败不会留下写了一半的目标
	if err := atomic.WriteFile(a.filePath, bytes.NewReader(buf.Bytes())); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrWrite, a.filePath, err)
	}

	return nil
}

// ExtractText 提取正文的纯文本：按文档顺序拼接所有文本叶节点，
// 制表符转为空格、连续空白折叠为单个空格、首尾空白去除。
func (a *Archive) ExtractText() (string, error) {
	bodyXML, err := a.ReadBody()
	if err != nil {
		return "", err
	}
	return ExtractTextFromXML(bodyXML), nil
}

// ExtractTextFromXML 从正文XML中提取纯文本
func ExtractTextFromXML(bodyXML string) string {
	matches := textNodePattern.FindAllStringSubmatch(bodyXML, -1)

	var parts []string
	for _, match := range matches {
		parts = append(parts, match[1])
	}

	text := strings.Join(parts, "")
	text = strings.ReplaceAll(text, "\t", " ")
	text = whitespaceRunPattern.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// openArchive 校验魔数与最小长度后打开ZIP容器
func openArchive(data []byte, filePath string) (*zip.Reader, error) {
	if len(data) < minArchiveSize {
		return nil, fmt.Errorf("%w: %s: 文件过小 (%d 字节)", ErrCorruptedFile, filePath, len(data))
	}
	if !bytes.HasPrefix(data, archiveSignature) {
		return nil, fmt.Errorf("%w: %s: 魔数不匹配", ErrCorruptedFile, filePath)
	}

	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptedFile, filePath, err)
	}
	return reader, nil
}

// readEntry 读取指定条目，缺失时在错误消息中列出全部条目名
func readEntry(reader *zip.Reader, name string) ([]byte, error) {
	for _, entry := range reader.File {
		if entry.Name == name {
			return readEntryFile(entry)
		}
	}

	names := make([]string, 0, len(reader.File))
	for _, entry := range reader.File {
		names = append(names, entry.Name)
	}
	return nil, fmt.Errorf("%w: 未找到 %s，现有条目: %s",
		ErrMissingFile, name, strings.Join(names, ", "))
}

// readEntryFile 读取单个条目的全部内容
func readEntryFile(entry *zip.File) ([]byte, error) {
	rc, err := entry.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: 打开条目 %s 失败: %v", ErrCorruptedFile, entry.Name, err)
	}
	defer rc.Close()

	content, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("%w: 读取条目 %s 失败: %v", ErrCorruptedFile, entry.Name, err)
	}
	return content, nil
}

// validateBodyXML 校验正文XML是否具备最小结构
func validateBodyXML(bodyXML string) error {
	if strings.TrimSpace(bodyXML) == "" {
		return fmt.Errorf("%w: 正文内容为空", ErrInvalidXML)
	}
	if !strings.Contains(bodyXML, "<w:document") {
		return fmt.Errorf("%w: 缺少 <w:document> 根元素", ErrInvalidXML)
	}
	if !strings.Contains(bodyXML, "<w:body") {
		return fmt.Errorf("%w: 缺少 <w:body> 元素", ErrInvalidXML)
	}
	return nil
}
