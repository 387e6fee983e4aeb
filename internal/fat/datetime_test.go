package fat

import (
	"testing"
	"time"
)

func TestNewDateTimeKnownValue(t *testing.T) {
	dt := NewDateTime(time.Date(2021, time.July, 10, 15, 30, 42, 0, time.Local))
	if dt != 0x52EA7BD5 {
		t.Fatalf("packed value = %#08x, want 0x52EA7BD5", uint32(dt))
	}
	if dt.Date() != 0x52EA {
		t.Errorf("date word = %#04x, want 0x52EA", dt.Date())
	}
	if dt.Clock() != 0x7BD5 {
		t.Errorf("time word = %#04x, want 0x7BD5", dt.Clock())
	}
}

func TestEpoch(t *testing.T) {
	want := time.Date(1980, time.January, 1, 0, 0, 0, 0, time.Local)
	if got := Epoch.Time(); !got.Equal(want) {
		t.Fatalf("Epoch.Time() = %v, want %v", got, want)
	}
}

func TestNewDateTimeClampsBefore1980(t *testing.T) {
	dt := NewDateTime(time.Date(1969, time.December, 31, 23, 59, 59, 0, time.Local))
	if dt != Epoch {
		t.Fatalf("pre-1980 time packed to %#08x, want Epoch %#08x", uint32(dt), uint32(Epoch))
	}
}

func TestDecodeTruncatesToEvenSeconds(t *testing.T) {
	cases := []struct {
		sec  int
		want int
	}{
		{0, 0},
		{1, 0},
		{42, 42},
		{43, 42},
		{59, 58},
	}
	for _, tc := range cases {
		in := time.Date(2024, time.March, 5, 8, 15, tc.sec, 0, time.Local)
		out := NewDateTime(in).Time()
		if out.Second() != tc.want {
			t.Errorf("second %d decoded to %d, want %d", tc.sec, out.Second(), tc.want)
		}
		want := time.Date(2024, time.March, 5, 8, 15, tc.want, 0, time.Local)
		if !out.Equal(want) {
			t.Errorf("round trip of :%02d = %v, want %v", tc.sec, out, want)
		}
	}
}

func TestNowIsRepresentable(t *testing.T) {
	now := Now().Time()
	if now.Year() < 2020 {
		t.Fatalf("Now() decoded to %v", now)
	}
	if now.Second()%2 != 0 {
		t.Errorf("Now() carries odd second %d", now.Second())
	}
}

func TestEncodeDecodeIdentity(t *testing.T) {
	// encode(decode(x)) must reproduce x exactly for any encoder output.
	times := []time.Time{
		time.Date(1980, time.January, 1, 0, 0, 0, 0, time.Local),
		time.Date(1999, time.December, 31, 23, 59, 58, 0, time.Local),
		time.Date(2021, time.July, 10, 15, 30, 42, 0, time.Local),
		time.Date(2036, time.February, 29, 12, 0, 2, 0, time.Local),
		time.Date(2107, time.December, 31, 23, 59, 58, 0, time.Local),
	}
	for _, in := range times {
		packed := NewDateTime(in)
		repacked := NewDateTime(packed.Time())
		if repacked != packed {
			t.Errorf("encode(decode(%#08x)) = %#08x for %v", uint32(packed), uint32(repacked), in)
		}
	}
}
