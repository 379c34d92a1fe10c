package cli

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCmdDiff(t *testing.T) {
	dbPath := testDBPath(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"future minutes and seconds", []string{"diff", "1700000090"}, "1分30秒後"},
		{"future whole day", []string{"diff", "1700086400"}, "1日後"},
		{"future hours and minutes", []string{"diff", "1700009000"}, "2時間30分後"},
		{"expired", []string{"diff", "1699999900"}, "有効期限切れ"},
		{"past with elapsed time", []string{"diff", "1699999900", "--past"}, "1分40秒前"},
		{"now", []string{"diff", "1700000000"}, "今"},
		{"rfc3339", []string{"diff", "2023-11-14T22:13:20Z"}, "今"},
		{"english", []string{"--locale", "en", "diff", "1700000090"}, "1m 30s later"},
		{"english past", []string{"--locale", "en", "diff", "1699999900", "--past"}, "1m 40s ago"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runCmd(t, dbPath, tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.want+"\n", out)
		})
	}
}

func TestCmdDiffJSON(t *testing.T) {
	dbPath := testDBPath(t)

	var result diffResult
	err := runCmdJSON(t, dbPath, &result, "diff", "1699999900")
	require.NoError(t, err)

	assert.Equal(t, int64(1699999900), result.Timestamp)
	assert.Equal(t, int64(1700000000), result.Now)
	assert.Equal(t, int64(-100), result.Diff)
	assert.Equal(t, stateExpired, result.State)
	assert.Equal(t, "有効期限切れ", result.Text)
}

func TestCmdDiffQuietStillPrintsResult(t *testing.T) {
	out, err := runCmd(t, testDBPath(t), "--quiet", "diff", "1700000090")
	require.NoError(t, err)
	assert.Equal(t, "1分30秒後\n", out)
}

func TestCmdDiffErrors(t *testing.T) {
	dbPath := testDBPath(t)

	t.Run("invalid timestamp", func(t *testing.T) {
		_, err := runCmd(t, dbPath, "diff", "tomorrow")
		require.Error(t, err)
		assert.Equal(t, 2, ExitCode(err))
		assert.Contains(t, FormatErrorMessage(err), "Suggestion:")
	})

	t.Run("timestamp out of range", func(t *testing.T) {
		for _, ts := range []string{"9223372036854775807", "-9223372036854775808", "1000000000000001"} {
			_, err := runCmd(t, dbPath, "diff", "--past", "--", ts)
			require.Error(t, err, ts)
			assert.Equal(t, 2, ExitCode(err))
			assert.Contains(t, err.Error(), "out of range")
		}

		_, err := runCmd(t, dbPath, "--now=-9223372036854775808", "diff", "1700000000")
		require.Error(t, err)
		assert.Equal(t, 2, ExitCode(err))

		_, err = runCmd(t, dbPath, "diff", "1000000000000000")
		require.NoError(t, err, "the bound itself is accepted")
	})

	t.Run("invalid now", func(t *testing.T) {
		_, err := runCmd(t, dbPath, "--now", "soon", "diff", "1700000000")
		require.Error(t, err)
		assert.Equal(t, 2, ExitCode(err))
	})

	t.Run("unsupported locale", func(t *testing.T) {
		_, err := runCmd(t, dbPath, "--locale", "fr", "diff", "1700000000")
		require.Error(t, err)
		assert.Equal(t, 2, ExitCode(err))
	})

	t.Run("missing argument", func(t *testing.T) {
		_, err := runCmd(t, dbPath, "diff")
		require.Error(t, err)
		assert.Equal(t, 1, ExitCode(err))
	})
}

func TestDiffState(t *testing.T) {
	assert.Equal(t, stateLater, diffState(1, false))
	assert.Equal(t, stateNow, diffState(0, true))
	assert.Equal(t, stateExpired, diffState(-1, false))
	assert.Equal(t, stateAgo, diffState(-1, true))
}

func TestCmdTs(t *testing.T) {
	dbPath := testDBPath(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"now", []string{"ts", "now"}, "1700000000"},
		{"in", []string{"ts", "in", "3600"}, "1700003600"},
		{"format", []string{"--tz", "UTC", "ts", "format", "1704067200"}, "2024/01/01 00:00:00"},
		{"format padded", []string{"--tz", "UTC", "ts", "format", "1709262245"}, "2024/03/01 03:04:05"},
		{"date", []string{"--tz", "UTC", "ts", "date", "1704067200"}, "2024年1月1日"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runCmd(t, dbPath, tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.want+"\n", out)
		})
	}
}

func TestCmdTsErrors(t *testing.T) {
	dbPath := testDBPath(t)

	_, err := runCmd(t, dbPath, "ts", "in", "an-hour")
	require.Error(t, err)
	assert.Equal(t, 2, ExitCode(err))

	_, err = runCmd(t, dbPath, "--tz", "Nowhere/Special", "ts", "format", "0")
	require.Error(t, err)
	assert.Equal(t, 2, ExitCode(err))
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, 1, ExitCode(errors.New("boom")))
}
