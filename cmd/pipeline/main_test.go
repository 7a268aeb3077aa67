package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidDate(t *testing.T) {
	assert.True(t, validDate("2026-02-01"))
	assert.True(t, validDate("2026-12-31"))

	assert.False(t, validDate("02/01/2026"))
	assert.False(t, validDate("2026-2-1"))
	assert.False(t, validDate("2026-13-01"))
	assert.False(t, validDate("tomorrow"))
	assert.False(t, validDate(""))
}

func TestCronSpec(t *testing.T) {
	spec, err := cronSpec("08:30")
	require.NoError(t, err)
	assert.Equal(t, "30 8 * * *", spec)

	spec, err = cronSpec("14:05")
	require.NoError(t, err)
	assert.Equal(t, "5 14 * * *", spec)

	_, err = cronSpec("0830")
	require.Error(t, err)
}
