package printer

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFrameSize(t *testing.T) {
	require.Equal(t, 0x14, FrameSize('D'))
	require.Equal(t, 0x1d, FrameSize('S'))
	require.Equal(t, 0x28, FrameSize('X'))
}

func TestSinkNoTranslate(t *testing.T) {
	var buf bytes.Buffer
	s := NewSink(&buf)
	require.NoError(t, s.Write([]byte{0x9b, 'h', 'i'}))
	require.Equal(t, []byte{0x9b, 'h', 'i'}, buf.Bytes())
}

func TestSinkTranslateEOL(t *testing.T) {
	var buf bytes.Buffer
	s := NewSink(&buf)
	s.Translate = true
	require.NoError(t, s.Write([]byte{'h', 'i', 0x9b}))
	require.Equal(t, "hi\n", buf.String())
}
