package storage

import "golang.org/x/exp/mmap"

// MmapReader is a read-only, memory-mapped RandomReader for archive files.
// Archive files are immutable once rotated out, which is exactly the
// access pattern golang.org/x/exp/mmap's read-only ReaderAt is built for;
// this type simply never exposes a Writer capability, since archive files
// never need one.
type MmapReader struct {
	r *mmap.ReaderAt
}

// OpenMmapReader memory-maps name for random-access reads.
func OpenMmapReader(name string) (*MmapReader, error) {
	r, err := mmap.Open(name)
	if err != nil {
		return nil, err
	}
	return &MmapReader{r: r}, nil
}

func (m *MmapReader) ReadAt(buf []byte, offset int64) (int, error) {
	return m.r.ReadAt(buf, offset)
}

func (m *MmapReader) Len() (int64, error) {
	return int64(m.r.Len()), nil
}

func (m *MmapReader) Close() error {
	return m.r.Close()
}
