package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allanpk716/docufiller/internal/config"
)

func newTestStore(settings *config.Settings) *Store {
	return NewStore(settings, nil)
}

func validFile() *ReplacementValuesFile {
	return &ReplacementValuesFile{
		Prefix:  "REPLACEME-",
		Values:  map[string]string{"NAME": "Jane", "CITY": "Berlin"},
		Version: "2.0",
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	folder := t.TempDir()
	s := newTestStore(nil)

	data := validFile()
	write := s.Write(folder, data, WriteOptions{Atomic: true, UpdateTimestamp: true})
	require.True(t, write.OK, write.Message)

	result := s.Read(folder, ReadOptions{})
	require.Equal(t, ReadOK, result.Status, result.Message)
	assert.Equal(t, data.Prefix, result.Data.Prefix)
	assert.Equal(t, data.Values, result.Data.Values)
	assert.Equal(t, data.Version, result.Data.Version)

	// 盖章的 lastModified 是合法的ISO-8601时间
	_, err := time.Parse(time.RFC3339, result.Data.LastModified)
	assert.NoError(t, err)
}

func TestReadNotFound(t *testing.T) {
	s := newTestStore(nil)
	result := s.Read(t.TempDir(), ReadOptions{})
	assert.Equal(t, ReadNotFound, result.Status)
	assert.Nil(t, result.Data)
}

func TestReadCreateDefault(t *testing.T) {
	folder := t.TempDir()
	s := newTestStore(nil)

	result := s.Read(folder, ReadOptions{CreateDefaultIfNotFound: true})
	require.Equal(t, ReadOK, result.Status, result.Message)
	assert.True(t, result.CreatedDefault)
	assert.Equal(t, config.DefaultPrefix, result.Data.Prefix)
	assert.Empty(t, result.Data.Values)

	// 默认内容已持久化，再读不再是新建
	again := s.Read(folder, ReadOptions{CreateDefaultIfNotFound: true})
	require.Equal(t, ReadOK, again.Status)
	assert.False(t, again.CreatedDefault)
}

func TestReadCorrupted(t *testing.T) {
	s := newTestStore(nil)

	t.Run("JSON不可解析", func(t *testing.T) {
		folder := t.TempDir()
		require.NoError(t, os.WriteFile(s.FilePath(folder), []byte("{坏掉的JSON"), 0o644))

		result := s.Read(folder, ReadOptions{})
		// Corrupted 与 NotFound 严格区分
		assert.Equal(t, ReadCorrupted, result.Status)

		require.NoError(t, os.Remove(s.FilePath(folder)))
		assert.Equal(t, ReadNotFound, s.Read(folder, ReadOptions{}).Status)
	})

	t.Run("空文件", func(t *testing.T) {
		folder := t.TempDir()
		require.NoError(t, os.WriteFile(s.FilePath(folder), nil, 0o644))
		assert.Equal(t, ReadCorrupted, s.Read(folder, ReadOptions{}).Status)
	})

	t.Run("结构校验失败附字段级错误", func(t *testing.T) {
		folder := t.TempDir()
		raw := `{"prefix":"","values":{"bad-key!":"x"},"version":"2.0","lastModified":"昨天"}`
		require.NoError(t, os.WriteFile(s.FilePath(folder), []byte(raw), 0o644))

		result := s.Read(folder, ReadOptions{})
		require.Equal(t, ReadCorrupted, result.Status)
		require.Len(t, result.FieldErrors, 3)
		assert.Contains(t, result.Message, "prefix")
		assert.Contains(t, result.Message, "bad-key!")
		assert.Contains(t, result.Message, "lastModified")
	})

	t.Run("values字段缺失", func(t *testing.T) {
		folder := t.TempDir()
		raw := `{"prefix":"REPLACEME-","version":"2.0"}`
		require.NoError(t, os.WriteFile(s.FilePath(folder), []byte(raw), 0o644))

		result := s.Read(folder, ReadOptions{})
		require.Equal(t, ReadCorrupted, result.Status)
		assert.Contains(t, result.Message, "values")
	})
}

func TestWriteRejectsInvalidWithoutSideEffect(t *testing.T) {
	folder := t.TempDir()
	s := newTestStore(nil)

	data := validFile()
	data.Values["bad-key!"] = "x"

	write := s.Write(folder, data, WriteOptions{Atomic: true})
	assert.False(t, write.OK)

	// 拒绝时无任何副作用
	_, err := os.Stat(s.FilePath(folder))
	assert.True(t, os.IsNotExist(err))

	entries, err := os.ReadDir(folder)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestBackupRetention(t *testing.T) {
	folder := t.TempDir()
	settings := config.DefaultSettings()
	settings.BackupRetention = 3
	s := newTestStore(settings)

	// N+3 次带备份的写入（首次写入没有可备份的旧文件）
	var lastValues []string
	for i := 0; i < 7; i++ {
		data := validFile()
		data.Values = map[string]string{"SEQ": strings.Repeat("x", i+1)}
		lastValues = append(lastValues, data.Values["SEQ"])
		write := s.Write(folder, data, WriteOptions{Atomic: true, Backup: true})
		require.True(t, write.OK, write.Message)
	}

	backups, err := s.ListBackups(folder)
	require.NoError(t, err)
	require.Len(t, backups, settings.BackupRetention)

	// 保留的是时间戳最新的N个，从新到旧排列
	for i := 1; i < len(backups); i++ {
		assert.Greater(t, backups[i-1].Timestamp, backups[i].Timestamp)
	}

	// 最新备份是倒数第二次写入的内容
	raw, err := os.ReadFile(backups[0].Path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), lastValues[5])
}

func TestRestoreFromBackup(t *testing.T) {
	t.Run("合法备份覆盖现行文件", func(t *testing.T) {
		folder := t.TempDir()
		s := newTestStore(nil)

		first := validFile()
		require.True(t, s.Write(folder, first, WriteOptions{Atomic: true}).OK)

		second := validFile()
		second.Values = map[string]string{"NAME": "Bob"}
		require.True(t, s.Write(folder, second, WriteOptions{Atomic: true, Backup: true}).OK)

		backups, err := s.ListBackups(folder)
		require.NoError(t, err)
		require.Len(t, backups, 1)

		restore := s.RestoreFromBackup(folder, backups[0].Path)
		require.True(t, restore.OK, restore.Message)

		result := s.Read(folder, ReadOptions{})
		require.Equal(t, ReadOK, result.Status)
		assert.Equal(t, "Jane", result.Data.Values["NAME"])
	})

	t.Run("损坏的备份不碰现行文件", func(t *testing.T) {
		folder := t.TempDir()
		s := newTestStore(nil)

		require.True(t, s.Write(folder, validFile(), WriteOptions{Atomic: true}).OK)
		badBackup := filepath.Join(folder, config.DefaultStoreFileName+".bak.123")
		require.NoError(t, os.WriteFile(badBackup, []byte("{坏"), 0o644))

		restore := s.RestoreFromBackup(folder, badBackup)
		assert.False(t, restore.OK)

		// 现行文件完好无损
		result := s.Read(folder, ReadOptions{})
		require.Equal(t, ReadOK, result.Status)
		assert.Equal(t, "Jane", result.Data.Values["NAME"])
	})

	t.Run("备份缺失返回失败", func(t *testing.T) {
		folder := t.TempDir()
		s := newTestStore(nil)
		restore := s.RestoreFromBackup(folder, filepath.Join(folder, "不存在.bak.1"))
		assert.False(t, restore.OK)
	})
}

func TestDelete(t *testing.T) {
	folder := t.TempDir()
	s := newTestStore(nil)

	require.True(t, s.Write(folder, validFile(), WriteOptions{Atomic: true}).OK)
	require.NoError(t, s.Delete(folder))
	assert.Equal(t, ReadNotFound, s.Read(folder, ReadOptions{}).Status)

	// 文件已不存在时删除不报错
	assert.NoError(t, s.Delete(folder))
}

func TestSyncSurface(t *testing.T) {
	s := newTestStore(nil)

	t.Run("NotFoundError", func(t *testing.T) {
		_, err := s.ReadSync(t.TempDir(), ReadOptions{})
		var notFound *NotFoundError
		assert.ErrorAs(t, err, &notFound)
	})

	t.Run("CorruptedError", func(t *testing.T) {
		folder := t.TempDir()
		require.NoError(t, os.WriteFile(s.FilePath(folder), []byte("{坏"), 0o644))

		_, err := s.ReadSync(folder, ReadOptions{})
		var corrupted *CorruptedError
		assert.ErrorAs(t, err, &corrupted)
	})

	t.Run("读写成功", func(t *testing.T) {
		folder := t.TempDir()
		require.NoError(t, s.WriteSync(folder, validFile(), WriteOptions{Atomic: true}))

		data, err := s.ReadSync(folder, ReadOptions{})
		require.NoError(t, err)
		assert.Equal(t, "Jane", data.Values["NAME"])
	})

	t.Run("WriteSync校验失败", func(t *testing.T) {
		data := validFile()
		data.Prefix = ""
		err := s.WriteSync(t.TempDir(), data, WriteOptions{})
		var storeErr *StoreError
		assert.ErrorAs(t, err, &storeErr)
	})
}
