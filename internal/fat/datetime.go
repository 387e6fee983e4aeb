package fat

import "time"

// DateTime is the packed 32-bit FAT timestamp: the on-disk date word in the
// high 16 bits and the time word in the low 16 bits. Seconds are stored at
// 2-second resolution, so odd second values are not representable.
//
// Layout, most significant bit first:
//
//	7 bits  years since 1980
//	4 bits  month (1-12)
//	5 bits  day of month
//	5 bits  hour
//	6 bits  minute
//	5 bits  seconds/2
type DateTime uint32

// Epoch is midnight, January 1st 1980, the earliest representable instant.
const Epoch DateTime = 1<<21 | 1<<16

// NewDateTime packs a local calendar time. Instants before 1980 clamp to
// Epoch.
func NewDateTime(t time.Time) DateTime {
	if t.Year() < 1980 {
		return Epoch
	}
	return DateTime(t.Year()-1980)<<25 |
		DateTime(t.Month())<<21 |
		DateTime(t.Day())<<16 |
		DateTime(t.Hour())<<11 |
		DateTime(t.Minute())<<5 |
		DateTime(t.Second()/2)
}

// Now is the current local time as a FAT timestamp.
func Now() DateTime {
	return NewDateTime(time.Now())
}

// Time unpacks the timestamp into local calendar time. Seconds come back
// doubled, so the result always carries an even second value.
func (dt DateTime) Time() time.Time {
	return time.Date(
		int(dt>>25&0x7f)+1980,
		time.Month(dt>>21&0x0f),
		int(dt>>16&0x1f),
		int(dt>>11&0x1f),
		int(dt>>5&0x3f),
		int(dt&0x1f)*2,
		0,
		time.Local,
	)
}

// Date is the on-disk date word.
func (dt DateTime) Date() uint16 {
	return uint16(dt >> 16)
}

// Clock is the on-disk time word.
func (dt DateTime) Clock() uint16 {
	return uint16(dt)
}
