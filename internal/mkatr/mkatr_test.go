package mkatr

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLookupDensityAliases(t *testing.T) {
	a, ok := LookupDensity("360k")
	require.True(t, ok)
	b, ok := LookupDensity("ds/dd")
	require.True(t, ok)
	require.Equal(t, a, b)
	require.EqualValues(t, 40, a.Tracks)
	require.EqualValues(t, 1, a.Heads)
	require.EqualValues(t, 18, a.SPT())
	require.EqualValues(t, 256, a.BPS())
}

func TestLookupDensityUnknown(t *testing.T) {
	_, ok := LookupDensity("bogus")
	require.False(t, ok)
}

func TestCustomGeometryRejectsOddBPS(t *testing.T) {
	_, err := CustomGeometry(40, 18, 1, 129)
	require.Error(t, err)
}

func TestCustomGeometrySingleSided(t *testing.T) {
	p, err := CustomGeometry(40, 18, 1, 128)
	require.NoError(t, err)
	require.EqualValues(t, 0, p.Heads)
}

func TestCreateFormatsAndMatchesDensity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "new.atr")
	geom, _ := LookupDensity("180k")
	img, err := Create(path, geom, false)
	require.NoError(t, err)
	defer img.Close()

	require.EqualValues(t, 720, img.Maxsec())
	require.EqualValues(t, 256, img.BPS())
}

func TestCreateLargeFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.atr")
	geom, _ := LookupDensity("16m")
	img, err := Create(path, geom, false)
	require.NoError(t, err)
	defer img.Close()

	require.EqualValues(t, 65534, img.Maxsec())
}
