package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDayKeyNormalizesToUTCMidnight(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	lateEvening := time.Date(2026, 3, 2, 23, 45, 0, 0, ist)

	key := DayKey(lateEvening)

	assert.Equal(t, time.UTC, key.Location())
	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), key)
}

func TestDayKeySameDayDifferentZones(t *testing.T) {
	utc := time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC)
	tokyo := time.FixedZone("JST", 9*3600)
	morning := time.Date(2026, 3, 2, 19, 30, 0, 0, tokyo)

	assert.True(t, DayKey(utc).Equal(DayKey(morning)))
}

func TestAttendanceRecordsRoundTrip(t *testing.T) {
	records := AttendanceRecords{
		{StudentID: "s1", Status: StatusPresent},
		{StudentID: "s2", Status: StatusAbsent},
	}

	value, err := records.Value()
	require.NoError(t, err)

	var decoded AttendanceRecords
	require.NoError(t, decoded.Scan(value))
	require.Len(t, decoded, 2)

	status, ok := decoded.StatusOf("s2")
	require.True(t, ok)
	assert.Equal(t, StatusAbsent, status)

	_, ok = decoded.StatusOf("ghost")
	assert.False(t, ok)
}

func TestAttendanceRecordsNilValue(t *testing.T) {
	var records AttendanceRecords

	value, err := records.Value()
	require.NoError(t, err)
	assert.Equal(t, []byte("[]"), value)
}

func TestAttendanceStatusValid(t *testing.T) {
	assert.True(t, StatusPresent.Valid())
	assert.True(t, StatusAbsent.Valid())
	assert.False(t, AttendanceStatus("late").Valid())
}
