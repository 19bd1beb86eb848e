package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	cases := []struct {
		messages int
		lamports int64
		sol      float64
	}{
		{10, 10_000_000, 0.01},
		{25, 25_000_000, 0.025},
		{50, 50_000_000, 0.05},
		{75, 75_000_000, 0.075},
		{100, 100_000_000, 0.1},
		{250, 250_000_000, 0.25},
		{500, 500_000_000, 0.5},
		{750, 750_000_000, 0.75},
		{1000, 1_000_000_000, 1.0},
	}
	for _, tc := range cases {
		tier, ok := Lookup(tc.messages)
		require.True(t, ok, "tier %d", tc.messages)
		assert.Equal(t, tc.lamports, tier.Lamports)
		assert.Equal(t, tc.sol, tier.SOL)
	}
}

func TestLookupUnknown(t *testing.T) {
	for _, messages := range []int{0, -1, 11, 999, 1001} {
		_, ok := Lookup(messages)
		assert.False(t, ok, "tier %d must not exist", messages)
	}
}

func TestTiersIsACopy(t *testing.T) {
	tiers := Tiers()
	require.Len(t, tiers, 9)
	tiers[0].Lamports = 1

	again, ok := Lookup(10)
	require.True(t, ok)
	assert.Equal(t, int64(10_000_000), again.Lamports)
}

func TestFormatSOL(t *testing.T) {
	assert.Equal(t, "0.01", FormatSOL(10_000_000))
	assert.Equal(t, "0.075", FormatSOL(75_000_000))
	assert.Equal(t, "1", FormatSOL(1_000_000_000))
}
