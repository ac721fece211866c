package cpuset_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oscore/dsched/config/cpuset"
)

func TestParseMixedRangesAndSingles(t *testing.T) {
	got, err := cpuset.Parse("0-3,8,12-15")
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3, 8, 12, 13, 14, 15}, got)
}

func TestParseSingleCpu(t *testing.T) {
	got, err := cpuset.Parse("5")
	require.NoError(t, err)
	assert.Equal(t, []int{5}, got)
}

func TestParseDeduplicatesOverlap(t *testing.T) {
	got, err := cpuset.Parse("0-2,1-3")
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3}, got)
}

func TestParseInvalidTrailingDash(t *testing.T) {
	_, err := cpuset.Parse("0-")
	assert.Error(t, err)
}

func TestParseInvalidSeparator(t *testing.T) {
	_, err := cpuset.Parse("0;1")
	assert.Error(t, err)
}
