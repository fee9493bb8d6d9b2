package countdown

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormatHMS(t *testing.T) {
	cases := []struct {
		name    string
		seconds int64
		want    string
	}{
		{"zero", 0, "00:00:00"},
		{"negative clamps", -5, "00:00:00"},
		{"seconds only", 59, "00:00:59"},
		{"minute rollover", 60, "00:01:00"},
		{"one of each", 3661, "01:01:01"},
		{"typical payment window", 19*60 + 59, "00:19:59"},
		{"just under a day", 86399, "23:59:59"},
		{"over a day", 90000, "25:00:00"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, FormatHMS(tc.seconds))
		})
	}
}
