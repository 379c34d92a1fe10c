package timefmt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatTimestamp(t *testing.T) {
	// 2024-01-01T12:00:00Z
	assert.Equal(t, "2024/01/01 12:00:00", FormatTimestamp(1_704_110_400, time.UTC))

	jst := time.FixedZone("JST", 9*3600)
	assert.Equal(t, "2024/01/01 21:00:00", FormatTimestamp(1_704_110_400, jst))
	assert.Equal(t, "1970/01/01 00:00:00", FormatTimestamp(0, time.UTC))
}

func TestFormatDate(t *testing.T) {
	assert.Equal(t, "2024年1月1日", FormatDate(time.Date(2024, time.January, 1, 23, 59, 0, 0, time.UTC)))
	assert.Equal(t, "2025年12月31日", FormatDate(time.Date(2025, time.December, 31, 0, 0, 0, 0, time.UTC)))
}

func TestCurrentAndFutureTimestamp(t *testing.T) {
	c := FixedUnix(testNow)
	assert.Equal(t, testNow, CurrentTimestamp(c))
	assert.Equal(t, testNow+3600, FutureTimestamp(c, 3600))
	assert.Equal(t, testNow-10, FutureTimestamp(c, -10))
}

func TestLoadLocation(t *testing.T) {
	loc, err := LoadLocation("")
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)

	loc, err = LoadLocation("UTC")
	require.NoError(t, err)
	assert.Equal(t, "UTC", loc.String())

	_, err = LoadLocation("Not/AZone")
	assert.Error(t, err)
}
