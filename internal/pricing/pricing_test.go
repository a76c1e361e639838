package pricing

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func fp(v float64) *float64 { return &v }

func TestSellingRate(t *testing.T) {
	require.Equal(t, 6.0, SellingRate(5.00, 20))
	require.Equal(t, 11.5, SellingRate(10.00, 15))
	require.Equal(t, 7.06, SellingRate(6.42, 10))
	require.Equal(t, 5.0, SellingRate(5.00, 0))
}

func TestResolveMarginNewMedicine(t *testing.T) {
	_, err := ResolveMargin(nil, true, nil)
	require.ErrorIs(t, err, ErrMarginRequired)

	_, err = ResolveMargin(fp(0), true, nil)
	require.ErrorIs(t, err, ErrInvalidMargin)

	_, err = ResolveMargin(fp(-5), true, nil)
	require.ErrorIs(t, err, ErrInvalidMargin)

	res, err := ResolveMargin(fp(18), true, nil)
	require.NoError(t, err)
	require.Equal(t, 18.0, res.Margin)
	require.True(t, res.UpdateDefault)
}

func TestResolveMarginExistingMedicine(t *testing.T) {
	// Supplied margin wins and overwrites the default.
	res, err := ResolveMargin(fp(25), false, fp(12))
	require.NoError(t, err)
	require.Equal(t, 25.0, res.Margin)
	require.True(t, res.UpdateDefault)

	// Absent margin inherits the stored default silently.
	res, err = ResolveMargin(nil, false, fp(12))
	require.NoError(t, err)
	require.Equal(t, 12.0, res.Margin)
	require.False(t, res.UpdateDefault)

	// Zero behaves like absent.
	res, err = ResolveMargin(fp(0), false, fp(12))
	require.NoError(t, err)
	require.Equal(t, 12.0, res.Margin)

	// No stored default falls back to the constant.
	res, err = ResolveMargin(nil, false, nil)
	require.NoError(t, err)
	require.Equal(t, DefaultMargin, res.Margin)

	_, err = ResolveMargin(fp(-1), false, fp(12))
	require.ErrorIs(t, err, ErrInvalidMargin)
}
