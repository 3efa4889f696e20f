package storage

import (
	"os"
	"path/filepath"
)

// OS is the real-filesystem FileSystem implementation.
type OS struct {
	// mmapArchives selects golang.org/x/exp/mmap for OpenReader instead of
	// a pread-based handle. Archive files are immutable once rotated out,
	// which is exactly the read-mostly, never-appended-to access pattern
	// mmap is built for.
	mmapArchives bool
}

// NewOS constructs an OS-backed FileSystem that serves archive reads
// through ordinary positional pread.
func NewOS() *OS { return &OS{} }

// NewOSWithMmapArchives constructs an OS-backed FileSystem that serves
// archive reads (every OpenReader call — used only for files already
// rotated out of the active role) through a read-only memory mapping
// instead. A corrupt archive tail discovered during recovery is then
// left in place rather than truncated, since golang.org/x/exp/mmap's
// ReaderAt exposes no write capability; this mirrors storage.MmapReader's
// own doc comment.
func NewOSWithMmapArchives() *OS { return &OS{mmapArchives: true} }

// OpenReader opens name for random-access reads. In the non-mmap mode the
// underlying descriptor is actually opened O_RDWR, not O_RDONLY: the
// returned value satisfies RandomReader, but recovery type-asserts
// archive handles to Writer so it can truncate a corrupt archive tail in
// place, and ftruncate fails on an O_RDONLY descriptor. Nothing outside
// recovery ever calls Write on a reader obtained this way.
func (o OS) OpenReader(name string) (RandomReader, error) {
	if o.mmapArchives {
		return OpenMmapReader(name)
	}
	fd, err := os.OpenFile(name, os.O_RDWR, DefaultFilePermission)
	if err != nil {
		return nil, err
	}
	return &osFile{fd: fd}, nil
}

func (OS) OpenFile(name string) (File, error) {
	fd, err := os.OpenFile(name, os.O_CREATE|os.O_RDWR|os.O_APPEND, DefaultFilePermission)
	if err != nil {
		return nil, err
	}
	return &osFile{fd: fd}, nil
}

// CreateFile creates name, then fsyncs its parent directory so the new
// file's directory entry is durable even if the process crashes right
// after creation.
func (OS) CreateFile(name string) (File, error) {
	fd, err := os.OpenFile(name, os.O_CREATE|os.O_TRUNC|os.O_RDWR|os.O_APPEND, DefaultFilePermission)
	if err != nil {
		return nil, err
	}

	dir, err := os.Open(filepath.Dir(name))
	if err == nil {
		_ = dir.Sync()
		_ = dir.Close()
	}

	return &osFile{fd: fd}, nil
}

func (OS) RemoveFile(name string) error {
	return os.Remove(name)
}

func (OS) Rename(oldName, newName string) error {
	return os.Rename(oldName, newName)
}

func (OS) Exists(name string) (bool, error) {
	_, err := os.Stat(name)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (OS) CreateDirAll(dir string) error {
	return os.MkdirAll(dir, os.ModePerm)
}

func (OS) ListFiles(dir string) ([]FileInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	infos := make([]FileInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		fi, err := entry.Info()
		if err != nil {
			return nil, err
		}
		infos = append(infos, FileInfo{Name: entry.Name(), Size: fi.Size()})
	}
	return infos, nil
}

func (OS) Metadata(name string) (FileInfo, error) {
	fi, err := os.Stat(name)
	if err != nil {
		return FileInfo{}, err
	}
	return FileInfo{Name: fi.Name(), Size: fi.Size()}, nil
}

// osFile wraps a single *os.File behind the File capability.
type osFile struct {
	fd *os.File
}

func (f *osFile) ReadAt(buf []byte, offset int64) (int, error) {
	return f.fd.ReadAt(buf, offset)
}

func (f *osFile) Len() (int64, error) {
	info, err := f.fd.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (f *osFile) Write(buf []byte) (int, error) {
	return f.fd.Write(buf)
}

func (f *osFile) Sync() error {
	return f.fd.Sync()
}

func (f *osFile) SetLen(size int64) error {
	return f.fd.Truncate(size)
}

func (f *osFile) Close() error {
	return f.fd.Close()
}
