package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allanpk716/docufiller/internal/config"
	"github.com/allanpk716/docufiller/internal/store"
	"github.com/allanpk716/docufiller/pkg/docx"
)

func TestRootCmdStructure(t *testing.T) {
	root := RootCmd()
	assert.Equal(t, AppName, root.Name())
	assert.Equal(t, AppVersion, root.Version)

	names := map[string]bool{}
	for _, sub := range root.Commands() {
		names[sub.Name()] = true
	}
	assert.True(t, names["scan"])
	assert.True(t, names["replace"])
	assert.True(t, names["backups"])
}

// writeCmdDocx 生成最小测试文档
func writeCmdDocx(t *testing.T, path string, text string) {
	t.Helper()

	bodyXML := `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">` +
		`<w:body><w:p><w:r><w:t>` + text + `</w:t></w:r></w:p></w:body></w:document>`

	var buf bytes.Buffer
	writer := zip.NewWriter(&buf)
	for name, content := range map[string]string{
		"word/document.xml":            bodyXML,
		"word/_rels/document.xml.rels": `<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"></Relationships>`,
	} {
		dst, err := writer.Create(name)
		require.NoError(t, err)
		_, err = dst.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func TestReplaceCommand(t *testing.T) {
	source := t.TempDir()
	output := t.TempDir()
	writeCmdDocx(t, filepath.Join(source, "doc.docx"), "尊敬的 REPLACEME-NAME")

	// 预先写入保存文件
	valueStore := store.NewStore(config.DefaultSettings(), nil)
	write := valueStore.Write(source, &store.ReplacementValuesFile{
		Prefix:  "REPLACEME-",
		Values:  map[string]string{"NAME": "Jane"},
		Version: "2.0",
	}, store.WriteOptions{Atomic: true})
	require.True(t, write.OK, write.Message)

	root := RootCmd()
	root.SetArgs([]string{"replace", source, output, "--set", "NAME=Bob"})
	require.NoError(t, root.Execute())

	// 输出文档使用了覆盖值
	bodyXML, err := docx.NewArchive(filepath.Join(output, "doc.docx")).ReadBody()
	require.NoError(t, err)
	assert.Contains(t, bodyXML, "Bob")

	// 覆盖值写回保存文件并盖章
	result := valueStore.Read(source, store.ReadOptions{})
	require.Equal(t, store.ReadOK, result.Status, result.Message)
	assert.Equal(t, "Bob", result.Data.Values["NAME"])
	assert.NotEmpty(t, result.Data.LastModified)
}

func TestReplaceCommandBadOverride(t *testing.T) {
	root := RootCmd()
	root.SetArgs([]string{"replace", t.TempDir(), t.TempDir(), "--set", "没有等号"})
	assert.Error(t, root.Execute())
}
