package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMmapReader_ReadAt(t *testing.T) {
	dir, err := os.MkdirTemp("", "titanium-mmap")
	assert.Nil(t, err)
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "0000.bs")
	assert.Nil(t, os.WriteFile(path, []byte("archived-bytes"), DefaultFilePermission))

	r, err := OpenMmapReader(path)
	assert.Nil(t, err)
	defer r.Close()

	size, err := r.Len()
	assert.Nil(t, err)
	assert.Equal(t, int64(len("archived-bytes")), size)

	buf := make([]byte, 8)
	n, err := r.ReadAt(buf, 0)
	assert.Nil(t, err)
	assert.Equal(t, "archived", string(buf[:n]))
}
