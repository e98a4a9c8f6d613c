package frame

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChecksumDeterministic(t *testing.T) {
	cases := [][]byte{
		{0x31, 0x53, 0x00, 0x00},
		{0xff, 0xff, 0xff, 0xff},
		{0x00, 0x00, 0x00, 0x00},
		{0x6f, 'P', 0x80, 0x01},
	}
	for _, p := range cases {
		require.Equal(t, Checksum(p), Checksum(append([]byte{}, p...)))
	}
}

func TestChecksumAllFFIsFixedPoint(t *testing.T) {
	// 0xff is the unique fixed point of the doubling step: 0xff+0xff
	// reduces back to 0xff, so a frame of all-0xff bytes checksums to
	// 0xff regardless of length.
	require.Equal(t, byte(0xff), Checksum([]byte{0xff, 0xff, 0xff, 0xff}))
	require.Equal(t, byte(0xff), Checksum([]byte{0xff, 0xff, 0xff, 0xff, 0xff}))
}

func TestChecksumEndAroundCarry(t *testing.T) {
	// 0xff + 0xff = 0x1fe -> (0x1fe & 0xff) + 1 = 0xff
	require.Equal(t, byte(0xff), Checksum([]byte{0xff, 0xff}))
	// 0x01 + 0xff = 0x100 -> (0x100 & 0xff) + 1 = 0x01
	require.Equal(t, byte(0x01), Checksum([]byte{0x01, 0xff}))
	require.Equal(t, byte(0), Checksum(nil))
}

func TestReadCommandDropsLeadingFF(t *testing.T) {
	payload := []byte{0x31, 0x53, 0x00, 0x00}
	ck := Checksum(payload)
	buf := bytes.NewBuffer(append([]byte{0xff}, append(payload, ck)...))

	cmd, err := ReadCommand(buf)
	require.NoError(t, err)
	require.Equal(t, byte(0x31), cmd.Device)
	require.Equal(t, byte(0x53), cmd.Code)
	require.Equal(t, byte(1), cmd.Unit())
	require.Equal(t, byte(0x30), cmd.Class())
}

func TestReadCommandBadChecksum(t *testing.T) {
	buf := bytes.NewBuffer([]byte{0x31, 0x53, 0x00, 0x00, 0x00})
	_, err := ReadCommand(buf)
	require.ErrorIs(t, err, ErrBadChecksum)
}

func TestReadWriteData(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte("hello, bus")
	require.NoError(t, WriteData(&buf, payload))

	got, err := ReadData(&buf, len(payload))
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestSectorAux(t *testing.T) {
	cmd := Command{Aux1: 0x34, Aux2: 0x12}
	require.Equal(t, uint16(0x1234), cmd.Sector())
}
