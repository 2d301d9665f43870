package monitor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Iron-Ham/lockstep/internal/errors"
	"github.com/Iron-Ham/lockstep/internal/filelock"
)

// DefaultStateFile is the name of the persisted lock table inside the state
// directory.
const DefaultStateFile = "locks.json"

// stamp identifies one version of the state file on disk.
type stamp struct {
	mod  time.Time
	size int64
}

// store reads and writes the persisted lock table. The caller brackets calls
// with lock/unlock when other processes may share the directory.
type store struct {
	path  string
	flock *stateLock
}

func newStore(dir, file string) *store {
	path := file
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, file)
	}
	return &store{
		path:  path,
		flock: newStateLock(filepath.Dir(path)),
	}
}

// lock takes the cross-process lock on the state directory. onBusy, if set,
// is called once when another process holds it and lock has to block.
func (s *store) lock(onBusy func()) error {
	ok, err := s.flock.TryLock()
	if err != nil {
		return errors.NewPersistenceError("lock", s.path, err).WithSeverity(errors.SeverityError)
	}
	if ok {
		return nil
	}
	if onBusy != nil {
		onBusy()
	}
	if err := s.flock.Lock(); err != nil {
		return errors.NewPersistenceError("lock", s.path, err).WithSeverity(errors.SeverityError)
	}
	return nil
}

func (s *store) unlock() {
	_ = s.flock.Unlock()
}

// read loads the lock table. A missing file is an empty table, not an error.
// A file that cannot be parsed yields an error wrapping ErrCorruptState.
func (s *store) read() ([]filelock.FileLock, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewPersistenceError("read", s.path, err)
	}

	var locks []filelock.FileLock
	if err := json.Unmarshal(data, &locks); err != nil {
		return nil, errors.NewPersistenceError("read", s.path,
			fmt.Errorf("%w: %v", errors.ErrCorruptState, err))
	}
	return locks, nil
}

// write replaces the lock table on disk. The write is atomic: data is written
// to a temporary file first, then renamed into place. A failed write leaves
// the disk behind memory and is reported at SeverityError.
func (s *store) write(locks []filelock.FileLock) error {
	if locks == nil {
		locks = []filelock.FileLock{}
	}
	data, err := json.MarshalIndent(locks, "", "  ")
	if err != nil {
		return writeFailure(s.path, errors.Wrap(err, "marshal"))
	}
	data = append(data, '\n')

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return writeFailure(s.path, errors.Wrap(err, "write temp file"))
	}

	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp) // best-effort cleanup
		return writeFailure(s.path, errors.Wrap(err, "rename temp file"))
	}
	return nil
}

func writeFailure(path string, cause error) error {
	return errors.NewPersistenceError("write", path, cause).WithSeverity(errors.SeverityError)
}

// current reports the on-disk version of the state file. ok is false when the
// file does not exist.
func (s *store) current() (stamp, bool) {
	info, err := os.Stat(s.path)
	if err != nil {
		return stamp{}, false
	}
	return stamp{mod: info.ModTime(), size: info.Size()}, true
}
