package device

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewTableResetsAllUnits(t *testing.T) {
	tbl := NewTable()
	u := tbl.Unit(ClassDisk, 1)
	require.Equal(t, byte(ErrSuccess), u.Status.Err)
	require.Equal(t, byte(DefaultTimeout), u.Status.Timeout)
	require.False(t, u.PCLOn)
	require.Nil(t, u.FD)
}

func TestStatusAck(t *testing.T) {
	var s Status
	s.Ack('N')
	require.Equal(t, byte(StatNAK), s.Stat&StatNAK)

	s.Ack('E')
	require.Equal(t, byte(0), s.Stat&StatNAK)
	require.Equal(t, byte(StatExecFailed), s.Stat&StatExecFailed)

	s.Ack('C')
	require.Equal(t, byte(0), s.Stat&(StatNAK|StatExecFailed))
}

func TestPercomSPTBPSRoundTrip(t *testing.T) {
	var p Percom
	p.SetSPT(26)
	p.SetBPS(256)
	require.Equal(t, uint16(26), p.SPT())
	require.Equal(t, uint16(256), p.BPS())
	require.Equal(t, [8]byte{0, 0, 0, 26, 0, 0, 1, 0}, p.Bytes())
}

func TestParamBlockFaux(t *testing.T) {
	pb := ParamBlock{F1: 0x34, F2: 0x12, F3: 0x00}
	require.Equal(t, uint32(0x1234), pb.Faux())
}
