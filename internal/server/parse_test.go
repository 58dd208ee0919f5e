package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePositiveInt(t *testing.T) {
	n, err := parsePositiveInt("5")
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	_, err = parsePositiveInt("0")
	assert.Error(t, err)

	_, err = parsePositiveInt("not a number")
	assert.Error(t, err)
}

func TestParseFloat(t *testing.T) {
	f, err := parseFloat("0.7")
	require.NoError(t, err)
	assert.InDelta(t, 0.7, f, 1e-9)
}
