package fat

import "testing"

func TestResultString(t *testing.T) {
	cases := []struct {
		r    Result
		want string
	}{
		{ResultOK, "OK"},
		{ResultDiskErr, "DISK_ERR"},
		{ResultNotEnabled, "NOT_ENABLED"},
		{ResultInvalidParameter, "INVALID_PARAMETER"},
		{Result(42), "UNKNOWN(42)"},
	}
	for _, tc := range cases {
		if got := tc.r.String(); got != tc.want {
			t.Errorf("Result(%d).String() = %q, want %q", int(tc.r), got, tc.want)
		}
	}
}

func TestResultMessage(t *testing.T) {
	cases := []struct {
		r    Result
		want string
	}{
		{ResultOK, "succeeded"},
		{ResultDiskErr, "a hard error occurred in the low level disk I/O layer"},
		{ResultNotEnabled, "the volume has no work area"},
		{Result(42), "unknown result"},
	}
	for _, tc := range cases {
		if got := tc.r.Message(); got != tc.want {
			t.Errorf("Result(%d).Message() = %q, want %q", int(tc.r), got, tc.want)
		}
	}
}
