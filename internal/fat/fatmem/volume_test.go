package fatmem

import (
	"testing"
	"time"

	"github.com/hermitretro/fatfuse/internal/fat"
)

func mounted(t *testing.T) *Volume {
	t.Helper()
	v := New()
	if r := v.Mount(false); r != fat.ResultOK {
		t.Fatalf("Mount: %v", r)
	}
	return v
}

func TestUnmountedOperationsReturnNotEnabled(t *testing.T) {
	v := New()
	if _, r := v.Stat("/A.TXT"); r != fat.ResultNotEnabled {
		t.Errorf("Stat: got %v, want %v", r, fat.ResultNotEnabled)
	}
	if _, r := v.OpenDir("/"); r != fat.ResultNotEnabled {
		t.Errorf("OpenDir: got %v, want %v", r, fat.ResultNotEnabled)
	}
	if _, r := v.OpenFile("/A.TXT", fat.ModeRead); r != fat.ResultNotEnabled {
		t.Errorf("OpenFile: got %v, want %v", r, fat.ResultNotEnabled)
	}
	if r := v.Unlink("/A.TXT"); r != fat.ResultNotEnabled {
		t.Errorf("Unlink: got %v, want %v", r, fat.ResultNotEnabled)
	}
	if r := v.MakeDir("/D"); r != fat.ResultNotEnabled {
		t.Errorf("MakeDir: got %v, want %v", r, fat.ResultNotEnabled)
	}
}

func TestStatRootIsInvalidName(t *testing.T) {
	v := mounted(t)
	if _, r := v.Stat("/"); r != fat.ResultInvalidName {
		t.Fatalf("Stat(/): got %v, want %v", r, fat.ResultInvalidName)
	}
}

func TestCreateWriteReadBack(t *testing.T) {
	v := mounted(t)
	f, r := v.OpenFile("/HELLO.TXT", fat.ModeWrite|fat.ModeCreateNew)
	if r != fat.ResultOK {
		t.Fatalf("OpenFile: %v", r)
	}
	if n, r := f.Write([]byte("It works!\r\n")); r != fat.ResultOK || n != 11 {
		t.Fatalf("Write: n=%d r=%v", n, r)
	}
	if r := f.Close(); r != fat.ResultOK {
		t.Fatalf("Close: %v", r)
	}

	f, r = v.OpenFile("/HELLO.TXT", fat.ModeRead)
	if r != fat.ResultOK {
		t.Fatalf("reopen: %v", r)
	}
	buf := make([]byte, 64)
	n, r := f.Read(buf)
	if r != fat.ResultOK || string(buf[:n]) != "It works!\r\n" {
		t.Fatalf("Read: n=%d r=%v data=%q", n, r, buf[:n])
	}
	// A read at end of file is a short read, not an error.
	if n, r := f.Read(buf); r != fat.ResultOK || n != 0 {
		t.Fatalf("Read at EOF: n=%d r=%v", n, r)
	}
	f.Close()

	info, r := v.Stat("/HELLO.TXT")
	if r != fat.ResultOK {
		t.Fatalf("Stat: %v", r)
	}
	if info.Size != 11 || info.IsDir() {
		t.Fatalf("Stat: info=%+v", info)
	}
}

func TestCreateNewRefusesExisting(t *testing.T) {
	v := mounted(t)
	v.AddFile("/HELLO.TXT", []byte("x"))
	if _, r := v.OpenFile("/HELLO.TXT", fat.ModeWrite|fat.ModeCreateNew); r != fat.ResultExist {
		t.Fatalf("got %v, want %v", r, fat.ResultExist)
	}
}

func TestCreateAlwaysTruncates(t *testing.T) {
	v := mounted(t)
	v.AddFile("/HELLO.TXT", []byte("old contents"))
	f, r := v.OpenFile("/HELLO.TXT", fat.ModeWrite|fat.ModeCreateAlways)
	if r != fat.ResultOK {
		t.Fatalf("OpenFile: %v", r)
	}
	f.Close()
	info, _ := v.Stat("/HELLO.TXT")
	if info.Size != 0 {
		t.Fatalf("size after truncate: %d", info.Size)
	}
}

func TestOpenMissing(t *testing.T) {
	v := mounted(t)
	if _, r := v.OpenFile("/NOPE.TXT", fat.ModeRead); r != fat.ResultNoFile {
		t.Errorf("missing leaf: got %v, want %v", r, fat.ResultNoFile)
	}
	if _, r := v.OpenFile("/NODIR/NOPE.TXT", fat.ModeRead); r != fat.ResultNoPath {
		t.Errorf("missing parent: got %v, want %v", r, fat.ResultNoPath)
	}
}

func TestAccessModeEnforced(t *testing.T) {
	v := mounted(t)
	v.AddFile("/A.TXT", []byte("abc"))

	f, _ := v.OpenFile("/A.TXT", fat.ModeRead)
	if _, r := f.Write([]byte("x")); r != fat.ResultDenied {
		t.Errorf("write on read-only handle: got %v, want %v", r, fat.ResultDenied)
	}
	f.Close()

	f, _ = v.OpenFile("/A.TXT", fat.ModeWrite)
	if _, r := f.Read(make([]byte, 1)); r != fat.ResultDenied {
		t.Errorf("read on write-only handle: got %v, want %v", r, fat.ResultDenied)
	}
	f.Close()
}

func TestWriteBeyondEndZeroFills(t *testing.T) {
	v := mounted(t)
	f, _ := v.OpenFile("/GAP.BIN", fat.ModeRead|fat.ModeWrite|fat.ModeCreateNew)
	if r := f.Seek(4); r != fat.ResultOK {
		t.Fatalf("Seek: %v", r)
	}
	f.Write([]byte{0xAA})
	f.Seek(0)
	buf := make([]byte, 8)
	n, r := f.Read(buf)
	if r != fat.ResultOK || n != 5 {
		t.Fatalf("Read: n=%d r=%v", n, r)
	}
	want := []byte{0, 0, 0, 0, 0xAA}
	for i := range want {
		if buf[i] != want[i] {
			t.Fatalf("data = % x, want % x", buf[:n], want)
		}
	}
	f.Close()
}

func TestDirCursor(t *testing.T) {
	v := mounted(t)
	v.AddFile("/A.TXT", nil)
	v.AddDir("/SUB")
	v.AddFile("/B.TXT", nil)

	d, r := v.OpenDir("/")
	if r != fat.ResultOK {
		t.Fatalf("OpenDir: %v", r)
	}
	var names []string
	for {
		info, r := d.Read()
		if r != fat.ResultOK {
			t.Fatalf("Read: %v", r)
		}
		if info.Name == "" {
			break
		}
		names = append(names, info.Name)
	}
	want := []string{"A.TXT", "SUB", "B.TXT"}
	if len(names) != len(want) {
		t.Fatalf("names = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("names = %v, want %v", names, want)
		}
	}

	// Stepping back one entry replays the last name.
	if r := d.Seek(-1); r != fat.ResultOK {
		t.Fatalf("Seek(-1): %v", r)
	}
	info, r := d.Read()
	if r != fat.ResultOK || info.Name != "B.TXT" {
		t.Fatalf("after rewind: %q %v", info.Name, r)
	}

	if r := d.Close(); r != fat.ResultOK {
		t.Fatalf("Close: %v", r)
	}
	if _, r := d.Read(); r != fat.ResultInvalidObject {
		t.Fatalf("Read after Close: got %v, want %v", r, fat.ResultInvalidObject)
	}
}

func TestOpenDirOnFile(t *testing.T) {
	v := mounted(t)
	v.AddFile("/A.TXT", nil)
	if _, r := v.OpenDir("/A.TXT"); r != fat.ResultNoPath {
		t.Fatalf("got %v, want %v", r, fat.ResultNoPath)
	}
}

func TestUnlink(t *testing.T) {
	v := mounted(t)
	v.AddFile("/A.TXT", nil)
	v.AddDir("/FULL")
	v.AddFile("/FULL/X.TXT", nil)
	v.AddDir("/EMPTY")

	if r := v.Unlink("/A.TXT"); r != fat.ResultOK {
		t.Errorf("file: %v", r)
	}
	if r := v.Unlink("/A.TXT"); r != fat.ResultNoFile {
		t.Errorf("again: got %v, want %v", r, fat.ResultNoFile)
	}
	if r := v.Unlink("/FULL"); r != fat.ResultDenied {
		t.Errorf("non-empty dir: got %v, want %v", r, fat.ResultDenied)
	}
	if r := v.Unlink("/EMPTY"); r != fat.ResultOK {
		t.Errorf("empty dir: %v", r)
	}
}

func TestMakeAndRemoveDir(t *testing.T) {
	v := mounted(t)
	if r := v.MakeDir("/SUB"); r != fat.ResultOK {
		t.Fatalf("MakeDir: %v", r)
	}
	if r := v.MakeDir("/SUB"); r != fat.ResultExist {
		t.Errorf("duplicate: got %v, want %v", r, fat.ResultExist)
	}
	if r := v.MakeDir("/NO/SUCH"); r != fat.ResultNoPath {
		t.Errorf("missing parent: got %v, want %v", r, fat.ResultNoPath)
	}
	v.AddFile("/SUB/X.TXT", nil)
	if r := v.RemoveDir("/SUB"); r != fat.ResultDenied {
		t.Errorf("non-empty: got %v, want %v", r, fat.ResultDenied)
	}
	v.Unlink("/SUB/X.TXT")
	if r := v.RemoveDir("/SUB"); r != fat.ResultOK {
		t.Errorf("empty: %v", r)
	}
	v.AddFile("/A.TXT", nil)
	if r := v.RemoveDir("/A.TXT"); r != fat.ResultNoPath {
		t.Errorf("file: got %v, want %v", r, fat.ResultNoPath)
	}
}

func TestSetTimesRecordsStamp(t *testing.T) {
	v := mounted(t)
	v.AddFile("/A.TXT", nil)
	stamp := fat.NewDateTime(time.Date(2021, time.July, 10, 15, 30, 42, 0, time.Local))
	if r := v.SetTimes("/A.TXT", stamp); r != fat.ResultOK {
		t.Fatalf("SetTimes: %v", r)
	}
	path, got := v.LastSetTimes()
	if path != "/A.TXT" || got != stamp {
		t.Fatalf("LastSetTimes: %q %v", path, got)
	}
	info, _ := v.Stat("/A.TXT")
	if info.Modified != stamp {
		t.Fatalf("Modified = %v, want %v", info.Modified, stamp)
	}
}

func TestFaultInjectionQueue(t *testing.T) {
	v := mounted(t)
	v.AddFile("/A.TXT", nil)
	v.FailNext(OpStat, fat.ResultDiskErr)

	if _, r := v.Stat("/A.TXT"); r != fat.ResultDiskErr {
		t.Fatalf("first Stat: got %v, want %v", r, fat.ResultDiskErr)
	}
	if _, r := v.Stat("/A.TXT"); r != fat.ResultOK {
		t.Fatalf("second Stat: got %v, want OK", r)
	}
	if n := v.Calls(OpStat); n != 2 {
		t.Fatalf("Calls(OpStat) = %d, want 2", n)
	}
}

func TestMountCounters(t *testing.T) {
	v := New()
	v.Mount(false)
	v.Mount(true)
	if n := v.MountCount(); n != 2 {
		t.Fatalf("MountCount = %d, want 2", n)
	}
	v.Unmount()
	if v.Mounted() {
		t.Fatal("still mounted after Unmount")
	}
}
