package filelock

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"testing"
	"time"

	lserrors "github.com/Iron-Ham/lockstep/internal/errors"
)

var fixedTime = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	return NewRegistry(WithClock(func() time.Time { return fixedTime }))
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"src/x.go", "src/x.go"},
		{"SRC/X.go", "src/x.go"},
		{`src\x.go`, "src/x.go"},
		{`Src\Sub\..\X.GO`, "src/x.go"},
		{"./src//x.go", "src/x.go"},
		{"  src/x.go  ", "src/x.go"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := NormalizePath(tt.in); got != tt.want {
				t.Errorf("NormalizePath(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseOperation(t *testing.T) {
	tests := []struct {
		in      string
		want    Operation
		wantErr bool
	}{
		{"read", OpRead, false},
		{"WRITE", OpWrite, false},
		{" Modify ", OpModify, false},
		{"delete", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseOperation(tt.in)
			if tt.wantErr {
				if !errors.Is(err, lserrors.ErrInvalidOperation) {
					t.Errorf("ParseOperation(%q) error = %v, want ErrInvalidOperation", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseOperation(%q) unexpected error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseOperation(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestOperationExclusive(t *testing.T) {
	if OpRead.Exclusive() {
		t.Error("read should not be exclusive")
	}
	if !OpWrite.Exclusive() || !OpModify.Exclusive() {
		t.Error("write and modify should be exclusive")
	}
}

func TestAcquire(t *testing.T) {
	tests := []struct {
		name         string
		setup        func(r *Registry)
		holder       string
		path         string
		op           Operation
		wantConflict bool
		wantHolder   string // holder of the slot after the call
		wantOp       Operation
	}{
		{
			name:       "read on unheld path",
			holder:     "agent-b",
			path:       "f.txt",
			op:         OpRead,
			wantHolder: "agent-b",
			wantOp:     OpRead,
		},
		{
			name:       "write on unheld path",
			holder:     "agent-a",
			path:       "src/x.go",
			op:         OpWrite,
			wantHolder: "agent-a",
			wantOp:     OpWrite,
		},
		{
			name: "read on read-held path re-confirms the slot",
			setup: func(r *Registry) {
				r.Acquire("f.txt", "agent-a", "task-1", OpRead)
			},
			holder:     "agent-b",
			path:       "f.txt",
			op:         OpRead,
			wantHolder: "agent-a",
			wantOp:     OpRead,
		},
		{
			name: "write on read-held path conflicts",
			setup: func(r *Registry) {
				r.Acquire("f.txt", "agent-a", "task-1", OpRead)
			},
			holder:       "agent-b",
			path:         "f.txt",
			op:           OpWrite,
			wantConflict: true,
			wantHolder:   "agent-a",
			wantOp:       OpRead,
		},
		{
			name: "read on write-held path conflicts",
			setup: func(r *Registry) {
				r.Acquire("src/x.go", "agent-a", "task-1", OpWrite)
			},
			holder:       "agent-b",
			path:         "src/x.go",
			op:           OpRead,
			wantConflict: true,
			wantHolder:   "agent-a",
			wantOp:       OpWrite,
		},
		{
			name: "modify on modify-held path conflicts",
			setup: func(r *Registry) {
				r.Acquire("src/x.go", "agent-a", "task-1", OpModify)
			},
			holder:       "agent-b",
			path:         "src/x.go",
			op:           OpModify,
			wantConflict: true,
			wantHolder:   "agent-a",
			wantOp:       OpModify,
		},
		{
			name: "same holder re-requesting write conflicts with itself",
			setup: func(r *Registry) {
				r.Acquire("src/x.go", "agent-a", "task-1", OpWrite)
			},
			holder:       "agent-a",
			path:         "src/x.go",
			op:           OpWrite,
			wantConflict: true,
			wantHolder:   "agent-a",
			wantOp:       OpWrite,
		},
		{
			name: "case and separator variants hit the same slot",
			setup: func(r *Registry) {
				r.Acquire(`SRC\X.go`, "agent-a", "task-1", OpWrite)
			},
			holder:       "agent-b",
			path:         "src/x.go",
			op:           OpWrite,
			wantConflict: true,
			wantHolder:   "agent-a",
			wantOp:       OpWrite,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := newTestRegistry(t)
			if tt.setup != nil {
				tt.setup(reg)
			}

			det := reg.Acquire(tt.path, tt.holder, "task-x", tt.op)
			if det.HasConflict != tt.wantConflict {
				t.Fatalf("HasConflict = %v, want %v", det.HasConflict, tt.wantConflict)
			}
			if det.Path != NormalizePath(tt.path) {
				t.Errorf("Path = %q, want %q", det.Path, NormalizePath(tt.path))
			}
			if det.Holder != tt.holder {
				t.Errorf("Holder = %q, want %q", det.Holder, tt.holder)
			}
			if tt.wantConflict {
				if len(det.Conflicts) != 1 {
					t.Fatalf("Conflicts len = %d, want 1", len(det.Conflicts))
				}
				if det.Conflicts[0].Holder != tt.wantHolder {
					t.Errorf("conflict holder = %q, want %q", det.Conflicts[0].Holder, tt.wantHolder)
				}
			} else if len(det.Conflicts) != 0 {
				t.Errorf("Conflicts = %v, want none", det.Conflicts)
			}

			lock, ok := reg.CheckLock(tt.path)
			if !ok {
				t.Fatal("CheckLock() returned false after acquire")
			}
			if lock.Holder != tt.wantHolder {
				t.Errorf("slot holder = %q, want %q", lock.Holder, tt.wantHolder)
			}
			if lock.Operation != tt.wantOp {
				t.Errorf("slot operation = %q, want %q", lock.Operation, tt.wantOp)
			}
		})
	}
}

func TestAcquireRecordsMetadata(t *testing.T) {
	reg := newTestRegistry(t)
	reg.Acquire("Src/X.go", "agent-a", "task-7", OpModify)

	lock, ok := reg.CheckLock("src/x.go")
	if !ok {
		t.Fatal("lock not found")
	}
	want := FileLock{
		Path:       "src/x.go",
		Holder:     "agent-a",
		TaskID:     "task-7",
		AcquiredAt: fixedTime,
		Operation:  OpModify,
	}
	if !reflect.DeepEqual(lock, want) {
		t.Errorf("lock = %+v, want %+v", lock, want)
	}
}

func TestConflictDetectionBlocker(t *testing.T) {
	reg := newTestRegistry(t)
	if _, ok := reg.Acquire("a.go", "agent-a", "t1", OpWrite).Blocker(); ok {
		t.Error("Blocker() on a grant should return false")
	}

	blocker, ok := reg.Acquire("a.go", "agent-b", "t2", OpWrite).Blocker()
	if !ok {
		t.Fatal("Blocker() on a conflict should return true")
	}
	if blocker.Holder != "agent-a" {
		t.Errorf("Blocker().Holder = %q, want agent-a", blocker.Holder)
	}
}

func TestRelease(t *testing.T) {
	tests := []struct {
		name        string
		setup       func(r *Registry)
		holder      string
		path        string
		wantRemoved bool
		wantHeld    bool
	}{
		{
			name: "release owned lock",
			setup: func(r *Registry) {
				r.Acquire("src/x.go", "agent-a", "task-1", OpWrite)
			},
			holder:      "agent-a",
			path:        "src/x.go",
			wantRemoved: true,
		},
		{
			name: "release with different case",
			setup: func(r *Registry) {
				r.Acquire("src/x.go", "agent-a", "task-1", OpWrite)
			},
			holder:      "agent-a",
			path:        `SRC\x.go`,
			wantRemoved: true,
		},
		{
			name: "release by non-holder is a no-op",
			setup: func(r *Registry) {
				r.Acquire("src/x.go", "agent-a", "task-1", OpWrite)
			},
			holder:   "agent-b",
			path:     "src/x.go",
			wantHeld: true,
		},
		{
			name:   "release of unheld path is a no-op",
			holder: "agent-a",
			path:   "src/x.go",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := newTestRegistry(t)
			if tt.setup != nil {
				tt.setup(reg)
			}

			if got := reg.Release(tt.path, tt.holder); got != tt.wantRemoved {
				t.Errorf("Release() = %v, want %v", got, tt.wantRemoved)
			}
			if _, held := reg.CheckLock(tt.path); held != tt.wantHeld {
				t.Errorf("held after release = %v, want %v", held, tt.wantHeld)
			}
			// Releasing again never errors and never changes the outcome.
			reg.Release(tt.path, tt.holder)
			if _, held := reg.CheckLock(tt.path); held != tt.wantHeld {
				t.Errorf("held after second release = %v, want %v", held, tt.wantHeld)
			}
		})
	}
}

func TestReleaseAll(t *testing.T) {
	reg := newTestRegistry(t)
	reg.Acquire("c.go", "agent-a", "t1", OpWrite)
	reg.Acquire("a.go", "agent-a", "t1", OpRead)
	reg.Acquire("b.go", "agent-b", "t2", OpModify)
	reg.Acquire("d.go", "agent-c", "t3", OpRead)

	released := reg.ReleaseAll("agent-a")
	if want := []string{"a.go", "c.go"}; !reflect.DeepEqual(released, want) {
		t.Errorf("ReleaseAll() = %v, want %v", released, want)
	}

	if got := reg.LocksByHolder("agent-a"); len(got) != 0 {
		t.Errorf("agent-a still holds %v", got)
	}
	for _, p := range []string{"b.go", "d.go"} {
		if _, ok := reg.CheckLock(p); !ok {
			t.Errorf("%s should still be held", p)
		}
	}

	if got := reg.ReleaseAll("nobody"); len(got) != 0 {
		t.Errorf("ReleaseAll(nobody) = %v, want empty", got)
	}
}

func TestClear(t *testing.T) {
	reg := newTestRegistry(t)
	reg.Acquire("a.go", "agent-a", "t1", OpWrite)
	reg.Acquire("b.go", "agent-b", "t2", OpRead)

	if n := reg.Clear(); n != 2 {
		t.Errorf("Clear() = %d, want 2", n)
	}
	if reg.Len() != 0 {
		t.Errorf("Len() = %d after Clear, want 0", reg.Len())
	}
	if n := reg.Clear(); n != 0 {
		t.Errorf("second Clear() = %d, want 0", n)
	}
}

func TestLocksByHolderSorted(t *testing.T) {
	reg := newTestRegistry(t)
	reg.Acquire("c.go", "agent-a", "t1", OpWrite)
	reg.Acquire("a.go", "agent-a", "t1", OpWrite)
	reg.Acquire("b.go", "agent-b", "t1", OpWrite)

	got := reg.LocksByHolder("agent-a")
	if len(got) != 2 || got[0].Path != "a.go" || got[1].Path != "c.go" {
		t.Errorf("LocksByHolder() = %+v, want a.go, c.go", got)
	}

	all := reg.AllLocks()
	if len(all) != 3 {
		t.Fatalf("AllLocks() len = %d, want 3", len(all))
	}
	if !sort.SliceIsSorted(all, func(i, j int) bool { return all[i].Path < all[j].Path }) {
		t.Errorf("AllLocks() not sorted: %+v", all)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	reg := newTestRegistry(t)
	reg.Acquire("a.go", "agent-a", "t1", OpWrite)

	snap := reg.Snapshot()
	snap[0].Holder = "mutated"

	lock, _ := reg.CheckLock("a.go")
	if lock.Holder != "agent-a" {
		t.Errorf("mutating a snapshot changed the registry: holder = %q", lock.Holder)
	}
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	reg := newTestRegistry(t)
	reg.Acquire("src/x.go", "agent-a", "t1", OpWrite)
	reg.Acquire("f.txt", "agent-b", "t2", OpRead)
	reg.Acquire("docs/README.md", "agent-c", "t3", OpModify)

	restored := newTestRegistry(t)
	restored.Acquire("stale.go", "agent-z", "t9", OpWrite)
	restored.Restore(reg.Snapshot())

	if !reflect.DeepEqual(restored.Snapshot(), reg.Snapshot()) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", restored.Snapshot(), reg.Snapshot())
	}
	if _, ok := restored.CheckLock("stale.go"); ok {
		t.Error("Restore should replace the table wholesale")
	}
}

func TestAcquireRejectsUngrantableInput(t *testing.T) {
	tests := []struct {
		name string
		path string
		op   Operation
	}{
		{"empty path", "", OpWrite},
		{"blank path", "   ", OpRead},
		{"unknown operation", "f.txt", Operation("bogus")},
		{"empty operation", "f.txt", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := newTestRegistry(t)
			reg.Acquire("other.go", "agent-b", "t2", OpRead)

			det := reg.Acquire(tt.path, "agent-a", "t1", tt.op)
			if !det.HasConflict {
				t.Errorf("Acquire(%q, %q) granted, want refusal", tt.path, tt.op)
			}
			if _, ok := det.Blocker(); ok {
				t.Errorf("refusal should carry no blocker, got %+v", det.Conflicts)
			}
			if reg.Len() != 1 {
				t.Errorf("Len() = %d, want 1 (table unchanged)", reg.Len())
			}

			restored := newTestRegistry(t)
			restored.Restore(reg.Snapshot())
			if !reflect.DeepEqual(restored.Snapshot(), reg.Snapshot()) {
				t.Errorf("round trip mismatch:\n got %+v\nwant %+v", restored.Snapshot(), reg.Snapshot())
			}
		})
	}

	// A refused write leaves the path free for a later read.
	reg := newTestRegistry(t)
	reg.Acquire("f.txt", "agent-a", "t1", Operation("bogus"))
	if det := reg.Acquire("f.txt", "agent-b", "t2", OpRead); det.HasConflict {
		t.Errorf("read after refused acquire conflicted: %+v", det)
	}
}

func TestRestoreNormalizesPaths(t *testing.T) {
	reg := newTestRegistry(t)
	reg.Restore([]FileLock{
		{Path: `SRC\X.go`, Holder: "agent-a", TaskID: "t1", Operation: OpWrite},
		{Path: "", Holder: "agent-b", TaskID: "t2", Operation: OpWrite},
	})

	if reg.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 (empty paths dropped)", reg.Len())
	}
	if _, ok := reg.CheckLock("src/x.go"); !ok {
		t.Error("restored lock should be addressable by its normalized path")
	}
}

func TestWatchReleases(t *testing.T) {
	reg := newTestRegistry(t)

	var got []string
	reg.WatchReleases(func(l FileLock) {
		// Handlers may call read methods without deadlocking.
		_, _ = reg.CheckLock(l.Path)
		got = append(got, fmt.Sprintf("%s:%s", l.Holder, l.Path))
	})

	reg.Acquire("a.go", "agent-a", "t1", OpWrite)
	reg.Acquire("b.go", "agent-a", "t1", OpWrite)
	reg.Acquire("c.go", "agent-b", "t2", OpWrite)

	reg.Release("a.go", "agent-b") // not the holder, no callback
	reg.Release("a.go", "agent-a")
	reg.ReleaseAll("agent-a")
	reg.Clear()

	want := []string{"agent-a:a.go", "agent-a:b.go", "agent-b:c.go"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("release notifications = %v, want %v", got, want)
	}
}

func TestConcurrentExclusiveAcquire(t *testing.T) {
	reg := newTestRegistry(t)

	const workers = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	granted := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			det := reg.Acquire("src/x.go", fmt.Sprintf("agent-%d", n), "t", OpWrite)
			if !det.HasConflict {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	if granted != 1 {
		t.Errorf("exclusive grants = %d, want exactly 1", granted)
	}
}
