package coin

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateDenom(t *testing.T) {
	for _, denom := range []string{"uosmo", "ibc/27394FB092D2ECCD56123C74F36E4C1F926001CEADA9CA97EA622B25F41E5EB2", "factory/osmo1abc/ufoo", "gamm.pool-1_x:y"} {
		require.NoError(t, ValidateDenom(denom), denom)
	}
}

func TestValidateDenomErrors(t *testing.T) {
	require.ErrorIs(t, ValidateDenom("43Denom"), ErrDenomFirstChar)
	require.ErrorIs(t, ValidateDenom("ab"), ErrDenomLength)
	require.ErrorIs(t, ValidateDenom(strings.Repeat("a", 129)), ErrDenomLength)
	require.ErrorIs(t, ValidateDenom("uo$mo"), ErrDenomInvalidChar)
}
