package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOS_CreateWriteReopenReadAt(t *testing.T) {
	dir, err := os.MkdirTemp("", "titanium-osfs")
	assert.Nil(t, err)
	defer os.RemoveAll(dir)

	fs := NewOS()
	path := filepath.Join(dir, "0000.bs")

	f, err := fs.CreateFile(path)
	assert.Nil(t, err)
	_, err = f.Write([]byte("hello"))
	assert.Nil(t, err)
	assert.Nil(t, f.Close())

	reader, err := fs.OpenReader(path)
	assert.Nil(t, err)
	defer reader.Close()

	buf := make([]byte, 5)
	n, err := reader.ReadAt(buf, 0)
	assert.Nil(t, err)
	assert.Equal(t, "hello", string(buf[:n]))
}

func TestOS_ListFilesAndMetadata(t *testing.T) {
	dir, err := os.MkdirTemp("", "titanium-osfs")
	assert.Nil(t, err)
	defer os.RemoveAll(dir)

	fs := NewOS()
	for _, name := range []string{"0000.bs", "0001.bs"} {
		f, err := fs.CreateFile(filepath.Join(dir, name))
		assert.Nil(t, err)
		_, _ = f.Write([]byte("x"))
		assert.Nil(t, f.Close())
	}

	infos, err := fs.ListFiles(dir)
	assert.Nil(t, err)
	assert.Len(t, infos, 2)

	meta, err := fs.Metadata(filepath.Join(dir, "0000.bs"))
	assert.Nil(t, err)
	assert.Equal(t, int64(1), meta.Size)
}

func TestOS_OpenFileAppendsAtEOF(t *testing.T) {
	dir, err := os.MkdirTemp("", "titanium-osfs")
	assert.Nil(t, err)
	defer os.RemoveAll(dir)

	fs := NewOS()
	path := filepath.Join(dir, "0000.bs")

	f, err := fs.CreateFile(path)
	assert.Nil(t, err)
	_, _ = f.Write([]byte("abc"))
	assert.Nil(t, f.Close())

	f2, err := fs.OpenFile(path)
	assert.Nil(t, err)
	defer f2.Close()
	_, err = f2.Write([]byte("def"))
	assert.Nil(t, err)

	size, err := f2.Len()
	assert.Nil(t, err)
	assert.Equal(t, int64(6), size)
}

func TestOS_MmapArchivesOpenReaderUsesMmap(t *testing.T) {
	dir, err := os.MkdirTemp("", "titanium-osfs-mmap")
	assert.Nil(t, err)
	defer os.RemoveAll(dir)

	fs := NewOSWithMmapArchives()
	path := filepath.Join(dir, "0000.bs")

	f, err := fs.CreateFile(path)
	assert.Nil(t, err)
	_, err = f.Write([]byte("archived-record"))
	assert.Nil(t, err)
	assert.Nil(t, f.Close())

	reader, err := fs.OpenReader(path)
	assert.Nil(t, err)
	defer reader.Close()

	if _, ok := reader.(*MmapReader); !ok {
		t.Fatalf("expected OpenReader to return *MmapReader when mmapArchives is set, got %T", reader)
	}

	buf := make([]byte, 8)
	n, err := reader.ReadAt(buf, 0)
	assert.Nil(t, err)
	assert.Equal(t, "archived", string(buf[:n]))
}
