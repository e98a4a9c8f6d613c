package pcl

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/drac030/sio2go/internal/clock"
	"github.com/drac030/sio2go/internal/device"
)

func newUnit(t *testing.T, root string) *device.Unit {
	t.Helper()
	u := &device.Unit{Status: device.NewStatus(), PCLOn: true, PCLRoot: root}
	return u
}

func TestFopenReadExistingFileLowercaseMode(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "foo.txt"), []byte("hello"), 0o644))

	s := NewServer(Lower)
	unit := newUnit(t, dir)

	pb := device.ParamBlock{Fno: FnOpen, Fmode: 0x04}
	copy(pb.Name[:], ugefina("FOO.TXT")[:])
	unit.PCLParbuf = pb
	s.Param(unit, pb)
	require.Equal(t, byte(device.ErrSuccess), unit.Status.Err)

	var buf bytes.Buffer
	err := s.Execute(unit, &buf, nil)
	require.NoError(t, err)
	require.Equal(t, byte(device.ErrSuccess), unit.Status.Err)

	// 1 handle byte + 23-byte entry, checksum trailer appended by WriteData.
	require.True(t, buf.Len() >= 1+EntrySize)
	out := buf.Bytes()
	require.Equal(t, byte(0x08), out[1]) // status byte: writable file
	require.Equal(t, []byte("FOO     TXT"), out[7:18])
}

func TestRenamePattern(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"a.txt", "b.txt", "c.dat"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), []byte("x"), 0o644))
	}

	s := NewServer(Lower)
	unit := newUnit(t, dir)

	pb := device.ParamBlock{Fno: FnRename}
	copy(pb.Name[:], []byte{'?', '?', '?', '?', '?', '?', '?', '?', 'T', 'X', 'T'})
	copy(pb.Names[:], []byte{'?', '?', '?', '?', '?', '?', '?', '?', 'B', 'A', 'K'})
	s.Param(unit, pb)
	require.Equal(t, byte(device.ErrSuccess), unit.Status.Err)

	_, err := os.Stat(filepath.Join(dir, "a.bak"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "b.bak"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "c.dat"))
	require.NoError(t, err) // untouched, extension didn't match

	// No TXT files left to rename.
	s.Param(unit, pb)
	require.Equal(t, byte(device.ErrNotFound), unit.Status.Err)
}

func TestPathEscapeRejectedByFopen(t *testing.T) {
	dir := t.TempDir()
	s := NewServer(Lower)
	unit := newUnit(t, dir)

	pb := device.ParamBlock{Fno: FnOpen, Fmode: 0x04}
	copy(pb.Path[:], []byte("<><><>"))
	s.Param(unit, pb)
	unit.PCLParbuf = pb

	var buf bytes.Buffer
	require.NoError(t, s.Execute(unit, &buf, nil))
	require.Equal(t, byte(device.ErrInvalidPath), unit.Status.Err)
}

func TestFopenThenFcloseRestoresHandleAndMtime(t *testing.T) {
	dir := t.TempDir()

	s := NewServer(Lower)
	unit := newUnit(t, dir)

	// Fmode 0x08 is create-for-write: F1..F6 carry the host-supplied
	// day/month/year/hour/min/sec the new file's mtime should end up at.
	stamp := clock.Timestamp{15, 6, 24, 10, 30, 0} // 2024-06-15 10:30:00
	pb := device.ParamBlock{
		Fno: FnOpen, Fmode: 0x08,
		F1: stamp[0], F2: stamp[1], F3: stamp[2], F4: stamp[3], F5: stamp[4], F6: stamp[5],
	}
	copy(pb.Name[:], ugefina("NEW.TXT")[:])
	unit.PCLParbuf = pb
	s.Param(unit, pb)

	var buf bytes.Buffer
	require.NoError(t, s.Execute(unit, &buf, nil))
	h := unit.PCLParbuf.Handle
	require.True(t, s.handles[h].inUse)
	require.False(t, s.handles[h].pendingStamp.IsUnset())

	closePb := device.ParamBlock{Fno: FnClose, Handle: h}
	s.Param(unit, closePb)
	require.False(t, s.handles[h].inUse)

	info, err := os.Stat(filepath.Join(dir, "new.txt"))
	require.NoError(t, err)
	require.Equal(t, stamp.Time().Unix(), info.ModTime().Unix())
}

func TestFreadPastEOFReturnsErr136(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "foo.txt"), []byte("hi"), 0o644))

	s := NewServer(Lower)
	unit := newUnit(t, dir)

	openPb := device.ParamBlock{Fno: FnOpen, Fmode: 0x04}
	copy(openPb.Name[:], ugefina("FOO.TXT")[:])
	unit.PCLParbuf = openPb
	s.Param(unit, openPb)
	var openBuf bytes.Buffer
	require.NoError(t, s.Execute(unit, &openBuf, nil))
	h := unit.PCLParbuf.Handle

	readPb := device.ParamBlock{Fno: FnRead, Handle: h, F1: 2}
	s.Param(unit, readPb)
	require.Equal(t, byte(device.ErrLastPacket), unit.Status.Err)
	unit.PCLParbuf = readPb
	var rbuf bytes.Buffer
	require.NoError(t, s.Execute(unit, &rbuf, nil))

	s.Param(unit, readPb)
	require.Equal(t, byte(device.ErrEOF), unit.Status.Err)
}
