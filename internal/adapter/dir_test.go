package adapter

import (
	"context"
	"fmt"
	"syscall"
	"testing"
	"time"

	"github.com/hermitretro/fatfuse/internal/fat"
	"github.com/hermitretro/fatfuse/internal/fat/fatmem"
)

type listedEntry struct {
	name string
	st   Stat
	off  int64
}

// collector returns a FillFunc that accepts at most limit entries; a limit
// of zero means unbounded.
func collector(limit int) (FillFunc, *[]listedEntry) {
	entries := new([]listedEntry)
	fill := func(name string, st *Stat, off int64) bool {
		if limit > 0 && len(*entries) >= limit {
			return false
		}
		*entries = append(*entries, listedEntry{name: name, st: *st, off: off})
		return true
	}
	return fill, entries
}

func TestReaddirInjectsDotEntries(t *testing.T) {
	a, vol := newTestAdapter(t)
	vol.Mount(false)
	ctx := context.Background()

	fh, errno := a.Opendir(ctx, "/")
	if errno != 0 {
		t.Fatalf("Opendir: %v", errno)
	}
	fill, entries := collector(0)
	if errno := a.Readdir(ctx, fh, 0, fill); errno != 0 {
		t.Fatalf("Readdir: %v", errno)
	}
	if len(*entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(*entries))
	}
	for i, want := range []string{".", ".."} {
		e := (*entries)[i]
		if e.name != want {
			t.Errorf("entry %d = %q, want %q", i, e.name, want)
		}
		if e.st.Ino != UnknownIno {
			t.Errorf("%q Ino = %#x, want %#x", want, e.st.Ino, UnknownIno)
		}
		if e.st.Mode != uint32(syscall.S_IFDIR)|0o755 || e.st.Nlink != 2 {
			t.Errorf("%q stat = %+v", want, e.st)
		}
		if e.off != int64(i+1) {
			t.Errorf("%q off = %d, want %d", want, e.off, i+1)
		}
	}
	if errno := a.Releasedir(ctx, fh); errno != 0 {
		t.Fatalf("Releasedir: %v", errno)
	}
}

func TestReaddirListsAndDemangles(t *testing.T) {
	now := time.Date(2021, time.July, 10, 15, 30, 42, 0, time.Local)
	a, vol := newTestAdapter(t)
	vol.SetClock(func() time.Time { return now })
	vol.Mount(false)
	vol.AddFile("/A.TXT", make([]byte, 1000))
	vol.AddFile("/_hidden", []byte("x"))
	vol.AddDir("/SUB")
	ctx := context.Background()

	fh, errno := a.Opendir(ctx, "/")
	if errno != 0 {
		t.Fatalf("Opendir: %v", errno)
	}
	fill, entries := collector(0)
	if errno := a.Readdir(ctx, fh, 0, fill); errno != 0 {
		t.Fatalf("Readdir: %v", errno)
	}

	wantNames := []string{".", "..", "A.TXT", ".hidden", "SUB"}
	if len(*entries) != len(wantNames) {
		t.Fatalf("entries = %d, want %d", len(*entries), len(wantNames))
	}
	for i, want := range wantNames {
		e := (*entries)[i]
		if e.name != want {
			t.Errorf("entry %d = %q, want %q", i, e.name, want)
		}
		if e.off != int64(i+1) {
			t.Errorf("%q off = %d, want %d", e.name, e.off, i+1)
		}
	}

	file := (*entries)[2].st
	if file.Size != 1000 || file.Blocks != 2 || file.Blksize != fat.SectorSize {
		t.Errorf("A.TXT stat = %+v", file)
	}
	if !file.Mtime.Equal(fat.NewDateTime(now).Time()) {
		t.Errorf("A.TXT Mtime = %v, want %v", file.Mtime, fat.NewDateTime(now).Time())
	}
	if !file.Atime.Equal(file.Mtime) || !file.Ctime.Equal(file.Mtime) {
		t.Errorf("timestamps differ: %+v", file)
	}

	sub := (*entries)[4].st
	if sub.Mode != uint32(syscall.S_IFDIR)|0o755 || sub.Nlink != 2 || sub.Blocks != 0 {
		t.Errorf("SUB stat = %+v", sub)
	}
}

func TestReaddirPaging(t *testing.T) {
	a, vol := newTestAdapter(t)
	vol.Mount(false)
	const nfiles = 10
	for i := 0; i < nfiles; i++ {
		vol.AddFile(fmt.Sprintf("/F%02d.BIN", i), nil)
	}
	ctx := context.Background()

	fh, errno := a.Opendir(ctx, "/")
	if errno != 0 {
		t.Fatalf("Opendir: %v", errno)
	}

	// First page: room for the dots plus one real entry.
	fill, first := collector(3)
	if errno := a.Readdir(ctx, fh, 0, fill); errno != 0 {
		t.Fatalf("first Readdir: %v", errno)
	}
	if len(*first) != 3 || (*first)[2].name != "F00.BIN" {
		t.Fatalf("first page = %+v", *first)
	}
	if n := vol.Calls(fatmem.OpSeekDir); n != 1 {
		t.Fatalf("Calls(OpSeekDir) = %d, want 1", n)
	}

	// Second page resumes at the refused entry via the last cookie.
	resume := (*first)[2].off
	fill, second := collector(0)
	if errno := a.Readdir(ctx, fh, resume, fill); errno != 0 {
		t.Fatalf("second Readdir: %v", errno)
	}
	if len(*second) != nfiles-1 {
		t.Fatalf("second page = %d entries, want %d", len(*second), nfiles-1)
	}
	for i, e := range *second {
		want := fmt.Sprintf("F%02d.BIN", i+1)
		if e.name != want {
			t.Errorf("second page entry %d = %q, want %q", i, e.name, want)
		}
	}
}

func TestReaddirDiskFaultInvalidatesMount(t *testing.T) {
	a, vol := newTestAdapter(t)
	vol.Mount(false)
	vol.AddFile("/A.TXT", nil)
	ctx := context.Background()

	fh, errno := a.Opendir(ctx, "/")
	if errno != 0 {
		t.Fatalf("Opendir: %v", errno)
	}
	vol.FailNext(fatmem.OpReadDir, fat.ResultDiskErr)
	fill, _ := collector(0)
	if errno := a.Readdir(ctx, fh, 0, fill); errno != syscall.EINTR {
		t.Fatalf("Readdir: got %v, want EINTR", errno)
	}
	if vol.Mounted() {
		t.Fatal("mount survived a disk fault")
	}
}

func TestReaddirUnknownHandle(t *testing.T) {
	a, vol := newTestAdapter(t)
	vol.Mount(false)
	fill, _ := collector(0)
	if errno := a.Readdir(context.Background(), 99, 0, fill); errno != syscall.ENOENT {
		t.Fatalf("got %v, want ENOENT", errno)
	}
}

func TestReleasedirTwice(t *testing.T) {
	a, vol := newTestAdapter(t)
	vol.Mount(false)
	ctx := context.Background()
	fh, errno := a.Opendir(ctx, "/")
	if errno != 0 {
		t.Fatalf("Opendir: %v", errno)
	}
	if errno := a.Releasedir(ctx, fh); errno != 0 {
		t.Fatalf("first Releasedir: %v", errno)
	}
	if errno := a.Releasedir(ctx, fh); errno != syscall.ENOENT {
		t.Fatalf("second Releasedir: got %v, want ENOENT", errno)
	}
}

func TestOpendirMissing(t *testing.T) {
	a, vol := newTestAdapter(t)
	vol.Mount(false)
	if _, errno := a.Opendir(context.Background(), "/NOPE"); errno != syscall.ENOENT {
		t.Fatalf("got %v, want ENOENT", errno)
	}
}
