package tilekernel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_MemoryBudget_DefaultsWhenUnset(t *testing.T) {
	c, err := NewConfig()
	require.NoError(t, err)
	defer c.Free()

	assert.Equal(t, uint64(1<<20), c.MemoryBudget(1<<20))
}

func TestConfig_MemoryBudget_UsesOverride(t *testing.T) {
	c, err := NewConfig()
	require.NoError(t, err)
	defer c.Free()

	require.NoError(t, c.Set(ConfigMemoryBudget, "4096"))
	assert.Equal(t, uint64(4096), c.MemoryBudget(1<<20))
}

func TestConfig_OffsetsBitsize_RejectsInvalidValue(t *testing.T) {
	c, err := NewConfig()
	require.NoError(t, err)
	defer c.Free()

	require.NoError(t, c.Set(ConfigOffsetsBitsize, "48"))
	assert.Equal(t, uint8(64), c.OffsetsBitsize(64))
}

func TestConfig_OffsetsElements_TrueOnlyWhenModeIsElements(t *testing.T) {
	c, err := NewConfig()
	require.NoError(t, err)
	defer c.Free()

	assert.False(t, c.OffsetsElements())
	require.NoError(t, c.Set(ConfigOffsetsMode, "elements"))
	assert.True(t, c.OffsetsElements())
}

func TestConfig_OffsetsExtraElement_ParsesBool(t *testing.T) {
	c, err := NewConfig()
	require.NoError(t, err)
	defer c.Free()

	assert.True(t, c.OffsetsExtraElement(true))
	require.NoError(t, c.Set(ConfigOffsetsExtra, "true"))
	assert.True(t, c.OffsetsExtraElement(false))
}

func TestConfig_MemoryBudgetVar_FallsBackToDefaultWhenUnset(t *testing.T) {
	c, err := NewConfig()
	require.NoError(t, err)
	defer c.Free()

	assert.Equal(t, uint64(1<<20), c.MemoryBudgetVar(1<<20))
	require.NoError(t, c.Set(ConfigMemoryBudgetVar, "8192"))
	assert.Equal(t, uint64(8192), c.MemoryBudgetVar(1<<20))
}

func TestConfig_ReadRangeOOB_DefaultsToError(t *testing.T) {
	c, err := NewConfig()
	require.NoError(t, err)
	defer c.Free()

	assert.Equal(t, "error", c.ReadRangeOOB())
	require.NoError(t, c.Set(ConfigReadRangeOOB, "warn"))
	assert.Equal(t, "warn", c.ReadRangeOOB())
}

func TestConfig_ReadRangeOOB_RejectsUnknownValue(t *testing.T) {
	c, err := NewConfig()
	require.NoError(t, err)
	defer c.Free()

	require.NoError(t, c.Set(ConfigReadRangeOOB, "ignore"))
	assert.Equal(t, "error", c.ReadRangeOOB())
}
