// Package config defines the typed configuration surface the engine reads:
// values supplied by an external configuration collaborator (a file loader
// and reload thread, out of scope here), exposed to the engine as an
// immutable snapshot behind a one-method Provider, so the engine can take a
// fresh snapshot at every operation's entry without owning any reload
// logic itself.
package config

import "github.com/LiuShuoJiang/titanium/titaniumerr"

// WriteMode selects the durability policy to apply on every write.
type WriteMode uint8

const (
	// Buffer flushes the writer's user-space buffer to the kernel on every
	// write, but does not fsync.
	Buffer WriteMode = iota
	// Sync fsyncs after every write.
	Sync
)

// Snapshot is a typed, immutable view of the tunables the engine consults.
type Snapshot struct {
	// DataDir is the directory holding the log files. Created if missing.
	DataDir string
	// MaxKeySize is the maximum allowed key length; oversize on decode is
	// reported as corruption.
	MaxKeySize uint32
	// MaxValueSize is the maximum allowed value length; oversize on decode
	// is reported as corruption.
	MaxValueSize uint32
	// MaxFileSize is the rotation threshold, in bytes.
	MaxFileSize int64
	// WriteMode selects Sync or Buffer durability.
	WriteMode WriteMode
}

// Validate reports a ConfigError if snap cannot be used to open an engine.
func (snap Snapshot) Validate() error {
	if snap.DataDir == "" {
		return titaniumerr.New(titaniumerr.ConfigError, "data_dir must not be empty")
	}
	if snap.MaxKeySize == 0 {
		return titaniumerr.New(titaniumerr.ConfigError, "max_key_size must be greater than zero")
	}
	if snap.MaxValueSize == 0 {
		return titaniumerr.New(titaniumerr.ConfigError, "max_val_size must be greater than zero")
	}
	if snap.MaxFileSize <= 0 {
		return titaniumerr.New(titaniumerr.ConfigError, "max_file_size must be greater than zero")
	}
	return nil
}

// Provider hands out a configuration Snapshot. The engine calls Snapshot()
// at the entry of every mutating operation so updates made by an external
// reload thread become visible without the engine owning any reload logic.
type Provider interface {
	Snapshot() Snapshot
}

// Static is a Provider that always returns the same Snapshot. It is the
// only Provider implemented in this package: the file-backed loader and
// its reload thread are the out-of-scope external collaborator.
type Static struct {
	snap Snapshot
}

// NewStatic wraps snap in a Provider that never changes.
func NewStatic(snap Snapshot) Static {
	return Static{snap: snap}
}

func (s Static) Snapshot() Snapshot {
	return s.snap
}

// Default returns reasonable defaults for dataDir: a 256MiB rotation
// threshold and buffered (non-fsyncing) writes.
func Default(dataDir string) Snapshot {
	return Snapshot{
		DataDir:      dataDir,
		MaxKeySize:   1 << 16,        // 64 KiB
		MaxValueSize: 1 << 20,        // 1 MiB
		MaxFileSize:  256 << 20,      // 256 MiB
		WriteMode:    Buffer,
	}
}
