package days

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateCount(t *testing.T) {
	assert.Equal(t, time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC), Date(0))
	assert.Equal(t, time.Date(2019, 12, 31, 0, 0, 0, 0, time.UTC), Date(18261))

	for _, count := range []int64{0, 1, 18260, 99999} {
		assert.Equal(t, count, Count(Date(count)))
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("18260")
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, int64(18260), Count(*d))
	assert.Equal(t, "18260", FormatDate(d))

	d, err = ParseDate("")
	require.NoError(t, err)
	assert.Nil(t, d)
	assert.Equal(t, "", FormatDate(nil))

	_, err = ParseDate("someday")
	require.Error(t, err)
}

func TestParseDuration(t *testing.T) {
	d, err := ParseDuration("7")
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, int64(7), *d)
	assert.Equal(t, "7", FormatDuration(d))

	d, err = ParseDuration("")
	require.NoError(t, err)
	assert.Nil(t, d)
	assert.Equal(t, "", FormatDuration(nil))

	_, err = ParseDuration("weekly")
	require.Error(t, err)
}
