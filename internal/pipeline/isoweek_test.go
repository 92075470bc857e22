package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestISOWeek(t *testing.T) {
	t.Parallel()

	cases := []struct {
		date string
		want string
	}{
		{"2024-01-01", "2024-01"},
		{"2024-12-31", "2025-01"},
		{"2023-01-01", "2022-52"},
		{"2024-07-15", "2024-29"},
		{"2026-08-30", "2026-35"},
	}
	for _, tc := range cases {
		d, err := time.Parse("2006-01-02", tc.date)
		require.NoError(t, err)
		require.Equal(t, tc.want, ISOWeek(d), "date %s", tc.date)
	}
}
