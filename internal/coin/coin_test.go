package coin

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	c, err := Parse("100uosmo")
	require.NoError(t, err)
	require.Equal(t, "uosmo", c.Denom)
	require.True(t, c.Amount.Equal(sdkmath.NewInt(100)))
}

func TestParseIBCDenom(t *testing.T) {
	c, err := Parse("7ibc/27394FB092D2ECCD")
	require.NoError(t, err)
	require.Equal(t, "ibc/27394FB092D2ECCD", c.Denom)
	require.Equal(t, "7ibc/27394FB092D2ECCD", c.String())
}

func TestParseRejectsMalformed(t *testing.T) {
	for _, raw := range []string{"", "uosmo", "100", "100u", "10 0uosmo", "-5uosmo"} {
		_, err := Parse(raw)
		require.ErrorIs(t, err, ErrInvalidCoin, "input %q", raw)
	}
}

func TestCoinsAddMergesByDenom(t *testing.T) {
	cs := Coins{}.Add(NewInt64("uion", 5), NewInt64("ujuno", 2), NewInt64("uion", 3), NewInt64("uatom", 0))
	require.Len(t, cs, 2)
	require.Equal(t, "8uion,2ujuno", cs.String())
	require.True(t, cs.AmountOf("uion").Equal(sdkmath.NewInt(8)))
	require.True(t, cs.AmountOf("uatom").IsZero())
}

func TestParseCoins(t *testing.T) {
	cs, err := ParseCoins("3uion, 4ujuno")
	require.NoError(t, err)
	require.Equal(t, "3uion,4ujuno", cs.String())

	cs, err = ParseCoins("  ")
	require.NoError(t, err)
	require.Empty(t, cs)
}

func TestZeroValueCoinIsZero(t *testing.T) {
	var c Coin
	require.True(t, c.IsZero())
	require.False(t, c.IsPositive())
	require.Equal(t, "0", c.String())
}
