/*
 * Copyright (c) 2024. Shuojiang Liu.
 * Licensed under the MIT License (the "License");
 * you may not use this file except in compliance with the License.
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package titanium_test

import (
	"testing"

	titanium "github.com/LiuShuoJiang/titanium"
	"github.com/LiuShuoJiang/titanium/internal/config"
	"github.com/LiuShuoJiang/titanium/internal/storage"
	"github.com/stretchr/testify/assert"
)

// rewriteActiveFile reads back the whole active file's current bytes,
// applies mutate, and writes the result back in place — simulating an
// external corruption of the on-disk file between process restarts.
func rewriteActiveFile(t *testing.T, fs *storage.Memory, path string, mutate func([]byte) []byte) {
	t.Helper()

	f, err := fs.OpenFile(path)
	assert.Nil(t, err)
	defer f.Close()

	size, err := f.Len()
	assert.Nil(t, err)

	buf := make([]byte, size)
	_, err = f.ReadAt(buf, 0)
	assert.Nil(t, err)

	mutated := mutate(buf)

	assert.Nil(t, f.SetLen(0))
	_, err = f.Write(mutated)
	assert.Nil(t, err)
}

func TestRecovery_CorruptedHeaderTail_TruncatesAndKeepsFirstRecord(t *testing.T) {
	fs := storage.NewMemory()

	e := openMem(t, fs, "/db")
	assert.Nil(t, e.Set([]byte("k1"), []byte("v1")))
	record1Size := e.Stat().BytesWritten
	assert.Nil(t, e.Set([]byte("k2"), []byte("v2")))
	assert.Nil(t, e.Close())

	rewriteActiveFile(t, fs, "/db/0000.bs", func(b []byte) []byte {
		// entry_type byte of the second record, right after its 4-byte
		// header CRC: inside the header-CRC'd span, outside the value.
		b[int(record1Size)+4] ^= 0xFF
		return b
	})

	e2 := openMem(t, fs, "/db")
	defer e2.Close()

	rec, err := e2.Get([]byte("k1"))
	assert.Nil(t, err)
	assert.NotNil(t, rec)
	assert.Equal(t, "v1", string(rec.Value))

	rec, err = e2.Get([]byte("k2"))
	assert.Nil(t, err)
	assert.Nil(t, rec)
}

func TestRecovery_TruncatedTail_KeepsFirstRecordOnly(t *testing.T) {
	fs := storage.NewMemory()

	e := openMem(t, fs, "/db")
	assert.Nil(t, e.Set([]byte("k1"), []byte("v1")))
	assert.Nil(t, e.Set([]byte("k2"), []byte("v2")))
	assert.Nil(t, e.Close())

	rewriteActiveFile(t, fs, "/db/0000.bs", func(b []byte) []byte {
		return b[:len(b)-5]
	})

	e2 := openMem(t, fs, "/db")
	defer e2.Close()

	rec, err := e2.Get([]byte("k1"))
	assert.Nil(t, err)
	assert.NotNil(t, rec)

	rec, err = e2.Get([]byte("k2"))
	assert.Nil(t, err)
	assert.Nil(t, rec)
}

func TestRecovery_BitFlipInDurableRecord_ReportedOnGet(t *testing.T) {
	fs := storage.NewMemory()

	e := openMem(t, fs, "/db")
	assert.Nil(t, e.Set([]byte("k1"), []byte("value-bytes")))
	assert.Nil(t, e.Close())

	rewriteActiveFile(t, fs, "/db/0000.bs", func(b []byte) []byte {
		b[len(b)-1] ^= 0xFF // flip last byte of the value
		return b
	})

	e2 := openMem(t, fs, "/db")
	defer e2.Close()

	_, err := e2.Get([]byte("k1"))
	assert.NotNil(t, err)
}

func TestEngine_OpenMissingConfigIsRejected(t *testing.T) {
	fs := storage.NewMemory()
	snap := config.Snapshot{} // empty: fails Validate
	_, err := titanium.Open(config.NewStatic(snap), fs)
	assert.NotNil(t, err)
}
