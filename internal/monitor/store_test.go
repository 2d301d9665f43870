package monitor

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Iron-Ham/lockstep/internal/errors"
	"github.com/Iron-Ham/lockstep/internal/filelock"
)

func TestStateLock_LockUnlock(t *testing.T) {
	dir := t.TempDir()
	sl := newStateLock(dir)

	if err := sl.Lock(); err != nil {
		t.Fatalf("Lock: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, flockFileName)); err != nil {
		t.Errorf("lock file should exist: %v", err)
	}

	if err := sl.Unlock(); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
}

func TestStateLock_UnlockWithoutLock(t *testing.T) {
	sl := newStateLock(t.TempDir())

	if err := sl.Unlock(); err != nil {
		t.Fatalf("Unlock without Lock should not error: %v", err)
	}
}

func TestStateLock_InvalidDir(t *testing.T) {
	sl := newStateLock("/nonexistent/dir/path")
	if err := sl.Lock(); err == nil {
		t.Error("Lock should fail for nonexistent directory")
	}
	if _, err := sl.TryLock(); err == nil {
		t.Error("TryLock should fail for nonexistent directory")
	}
}

func TestStore_ReadMissing(t *testing.T) {
	s := newStore(t.TempDir(), DefaultStateFile)

	locks, err := s.read()
	if err != nil {
		t.Fatalf("read() on missing file = %v", err)
	}
	if len(locks) != 0 {
		t.Errorf("read() = %v, want empty", locks)
	}
	if _, ok := s.current(); ok {
		t.Error("current() should report a missing file")
	}
}

func TestStore_WriteRead(t *testing.T) {
	s := newStore(t.TempDir(), DefaultStateFile)
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	want := []filelock.FileLock{
		{Path: "a.go", Holder: "agent-a", TaskID: "t-1", AcquiredAt: at, Operation: filelock.OpWrite},
		{Path: "b.go", Holder: "agent-b", TaskID: "t-2", AcquiredAt: at, Operation: filelock.OpRead},
	}

	if err := s.write(want); err != nil {
		t.Fatalf("write() error = %v", err)
	}
	got, err := s.read()
	if err != nil {
		t.Fatalf("read() error = %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("read %d locks, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Path != want[i].Path || got[i].Holder != want[i].Holder ||
			got[i].TaskID != want[i].TaskID || got[i].Operation != want[i].Operation ||
			!got[i].AcquiredAt.Equal(want[i].AcquiredAt) {
			t.Errorf("lock %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestStore_WriteNilIsEmptyArray(t *testing.T) {
	s := newStore(t.TempDir(), DefaultStateFile)

	if err := s.write(nil); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "[]\n" {
		t.Errorf("file = %q, want empty JSON array", data)
	}
}

func TestStore_ReadCorrupt(t *testing.T) {
	s := newStore(t.TempDir(), DefaultStateFile)
	if err := os.WriteFile(s.path, []byte(`[{"path": 7}`), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := s.read()
	if !errors.Is(err, errors.ErrCorruptState) {
		t.Errorf("read() error = %v, want ErrCorruptState", err)
	}
	if !errors.Is(err, errors.ErrPersistence) {
		t.Errorf("read() error = %v, want ErrPersistence", err)
	}
	if errors.GetSeverity(err) != errors.SeverityWarning {
		t.Errorf("read severity = %v, want warning", errors.GetSeverity(err))
	}
}

func TestStore_WriteFailureIsSevere(t *testing.T) {
	s := newStore(t.TempDir(), DefaultStateFile)
	// A directory in place of the state file makes the rename fail.
	if err := os.Mkdir(s.path, 0755); err != nil {
		t.Fatal(err)
	}

	err := s.write(nil)
	var perr *errors.PersistenceError
	if !errors.As(err, &perr) || perr.Op != "write" {
		t.Fatalf("write() error = %v, want write PersistenceError", err)
	}
	if errors.GetSeverity(err) != errors.SeverityError {
		t.Errorf("write severity = %v, want error", errors.GetSeverity(err))
	}
	if _, statErr := os.Stat(s.path + ".tmp"); !os.IsNotExist(statErr) {
		t.Error("temp file should be removed after a failed rename")
	}
}

func TestStore_AbsoluteFile(t *testing.T) {
	abs := filepath.Join(t.TempDir(), "custom.json")
	s := newStore("/ignored", abs)

	if s.path != abs {
		t.Errorf("path = %q, want %q", s.path, abs)
	}
	if s.flock.path != filepath.Join(filepath.Dir(abs), flockFileName) {
		t.Errorf("flock path = %q", s.flock.path)
	}
}

func TestStore_LockReportsBusy(t *testing.T) {
	dir := t.TempDir()
	holder := newStateLock(dir)
	if err := holder.Lock(); err != nil {
		t.Fatal(err)
	}

	s := newStore(dir, DefaultStateFile)
	busy := make(chan struct{})
	locked := make(chan error, 1)
	go func() {
		locked <- s.lock(func() { close(busy) })
	}()

	select {
	case <-busy:
	case <-time.After(2 * time.Second):
		t.Fatal("onBusy was not called while another descriptor held the lock")
	}

	if err := holder.Unlock(); err != nil {
		t.Fatal(err)
	}

	select {
	case err := <-locked:
		if err != nil {
			t.Fatalf("lock() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("lock() did not complete after the holder released")
	}
	s.unlock()
}
