package serial

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestComputeBaudFormula(t *testing.T) {
	// f/(2*(index+k)) with the default non-linearity constant.
	got := computeBaud(1789790, 0, defaultNonLinearity)
	require.InDelta(t, 1789790/(2*defaultNonLinearity), float64(got), 1)
}

func TestDivisorSpeedTableRange(t *testing.T) {
	d := NewDivisorSpeedTable(1789790, 0, 8)
	require.NotZero(t, d.Baud(0))
	require.Zero(t, d.Baud(9))
	require.Zero(t, d.Baud(-1))
}

func TestEnumSpeedTableRange(t *testing.T) {
	e := NewEnumSpeedTable(1789790, 0, []CFlag{B50, B110, B300})
	require.Equal(t, uint32(B110), e.Baud(1))
	require.Zero(t, e.Baud(3))
}
