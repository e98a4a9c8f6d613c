package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	require.Equal(t, defaultSerial, cfg.SerialDevice)
	require.InDelta(t, pokeyAvgHz, cfg.PokeyHz, 0.001)
	require.Empty(t, cfg.Drives)
}

func TestParseFlagsAndDrives(t *testing.T) {
	cfg, err := Parse([]string{
		"-s", "/dev/ttyUSB0", "-b", "2", "-d", "3", "-p", "/tmp/printer", "-t", "-u", "-8",
		"disk1.atr", "-f", "disk2.atr", "-", "/home/user/pcldir",
	})
	require.NoError(t, err)
	require.Equal(t, "/dev/ttyUSB0", cfg.SerialDevice)
	require.Equal(t, 2, cfg.TurboIndex)
	require.Equal(t, 3, cfg.BtDelay)
	require.Equal(t, "/tmp/printer", cfg.PrinterPath)
	require.True(t, cfg.AsciiTranslate)
	require.True(t, cfg.UpperCase)
	require.True(t, cfg.BlockPercom)

	require.Len(t, cfg.Drives, 4)
	require.Equal(t, Drive{Path: "disk1.atr"}, cfg.Drives[0])
	require.Equal(t, Drive{Path: "disk2.atr", Full13Force: true}, cfg.Drives[1])
	require.Equal(t, Drive{Skip: true}, cfg.Drives[2])
	require.Equal(t, Drive{Path: "/home/user/pcldir"}, cfg.Drives[3])
}

func TestParsePokeyFreqNamedConstants(t *testing.T) {
	cfg, err := Parse([]string{"-q", "pal"})
	require.NoError(t, err)
	require.InDelta(t, pokeyPALHz, cfg.PokeyHz, 0.001)

	cfg, err = Parse([]string{"-q", "ntscf"})
	require.NoError(t, err)
	require.InDelta(t, pokeyNTSCFreddyHz, cfg.PokeyHz, 0.001)

	cfg, err = Parse([]string{"-q", "60000"})
	require.NoError(t, err)
	require.InDelta(t, 60000.0, cfg.PokeyHz, 0.001)
}

func TestParseTrailingDashFRequiresArgument(t *testing.T) {
	_, err := Parse([]string{"disk1.atr", "-f"})
	require.Error(t, err)
}

func TestParseTooManyDrives(t *testing.T) {
	args := make([]string, 0, maxDrives+1)
	for i := 0; i < maxDrives+1; i++ {
		args = append(args, "-")
	}
	_, err := Parse(args)
	require.Error(t, err)
}
