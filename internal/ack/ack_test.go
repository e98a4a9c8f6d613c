package ack

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/drac030/sio2go/internal/device"
)

func TestSendWritesByteAndUpdatesStatus(t *testing.T) {
	var buf bytes.Buffer
	s := New(&buf, time.Microsecond, 1)
	st := device.NewStatus()

	require.NoError(t, s.Send('A', &st))
	require.Equal(t, []byte{'A'}, buf.Bytes())
	require.Zero(t, st.Stat&device.StatNAK)

	require.NoError(t, s.Send('N', &st))
	require.NotZero(t, st.Stat&device.StatNAK)

	require.NoError(t, s.Send('A', &st))
	require.Zero(t, st.Stat&device.StatNAK)
}

func TestSendToleratesNilStatus(t *testing.T) {
	var buf bytes.Buffer
	s := New(&buf, time.Microsecond, 1)
	require.NoError(t, s.Send('C', nil))
}
