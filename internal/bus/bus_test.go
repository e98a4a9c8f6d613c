package bus

import (
	"bytes"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/drac030/sio2go/internal/atr"
	"github.com/drac030/sio2go/internal/device"
	"github.com/drac030/sio2go/internal/frame"
	"github.com/drac030/sio2go/internal/pcl"
	"github.com/drac030/sio2go/internal/printer"
)

// fakeConn is a minimal io.ReadWriter backed by an input queue and an
// output buffer, letting a test script a host's half of the exchange.
type fakeConn struct {
	in  *bytes.Buffer
	out bytes.Buffer
}

func newFakeConn(script ...byte) *fakeConn {
	return &fakeConn{in: bytes.NewBuffer(script)}
}

func (f *fakeConn) Read(p []byte) (int, error)  { return f.in.Read(p) }
func (f *fakeConn) Write(p []byte) (int, error) { return f.out.Write(p) }

func newTestDispatcher(t *testing.T, conn io.ReadWriter) (*Dispatcher, *device.Table, map[byte]*atr.Image) {
	t.Helper()
	table := device.NewTable()
	pclServer := pcl.NewServer(pcl.Lower)
	images := map[byte]*atr.Image{}
	cfg := Config{PCLAddress: 0x6f, BasicDelay: time.Microsecond}
	d := New(conn, table, pclServer, nil, images, cfg)
	return d, table, images
}

func commandBytes(device, code, aux1, aux2 byte) []byte {
	raw := []byte{device, code, aux1, aux2}
	return append(raw, frame.Checksum(raw))
}

func TestDispatchUnmountedDiskStatusAcksNotNAK(t *testing.T) {
	conn := newFakeConn(commandBytes(0x31, 'S', 0, 0)...)
	d, _, _ := newTestDispatcher(t, conn)

	d.dispatch(frame.Command{Device: 0x31, Code: 'S'})
	require.Contains(t, conn.out.String(), "A")
}

func TestDispatchUnknownDeviceNAKs(t *testing.T) {
	conn := newFakeConn()
	d, _, _ := newTestDispatcher(t, conn)

	d.dispatch(frame.Command{Device: 0x99, Code: 'S'})
	require.Equal(t, "N", conn.out.String())
}

func TestDiskReadWriteRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.atr")
	img, err := atr.Create(path, false)
	require.NoError(t, err)
	require.NoError(t, img.PercomSet([8]byte{40, 1, 0, 18, 0, 0x00, 0, 128}))
	require.NoError(t, img.Format())

	payload := bytes.Repeat([]byte{0x42}, int(img.BPS()))
	writeFrame := append(payload, frame.Checksum(payload))

	conn := newFakeConn(writeFrame...)
	d, _, images := newTestDispatcher(t, conn)
	images[1] = img
	unit := d.table.Unit(device.ClassDisk, 1)
	unit.Percom = img.Percom()

	d.dispatch(frame.Command{Device: 0x31, Code: 'W', Aux1: 1, Aux2: 0})
	require.Contains(t, conn.out.String(), "C")

	got, err := img.ReadSector(1)
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestDiskWriteHonorsBootSectorBPS(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dd.atr")
	img, err := atr.Create(path, false)
	require.NoError(t, err)
	require.NoError(t, img.PercomSet([8]byte{40, 1, 0, 18, 0, 0x04, 1, 0}))
	require.NoError(t, img.Format())

	sector2 := bytes.Repeat([]byte{0x55}, 128)
	require.NoError(t, img.WriteSector(2, sector2))

	bootPayload := bytes.Repeat([]byte{0x42}, 128)
	writeFrame := append(bootPayload, frame.Checksum(bootPayload))

	conn := newFakeConn(writeFrame...)
	d, _, images := newTestDispatcher(t, conn)
	images[1] = img
	unit := d.table.Unit(device.ClassDisk, 1)
	unit.Percom = img.Percom()

	d.dispatch(frame.Command{Device: 0x31, Code: 'W', Aux1: 1, Aux2: 0})
	require.Contains(t, conn.out.String(), "C")
	require.Equal(t, 0, conn.in.Len(), "must read exactly the 128-byte boot-sector frame, not 256")

	got, err := img.ReadSector(1)
	require.NoError(t, err)
	require.Equal(t, bootPayload, got)

	still, err := img.ReadSector(2)
	require.NoError(t, err)
	require.Equal(t, sector2, still, "writing boot sector 1 must not spill into sector 2's slot")
}

func TestClockReadReturnsSixBytes(t *testing.T) {
	conn := newFakeConn()
	d, _, _ := newTestDispatcher(t, conn)

	d.dispatch(frame.Command{Device: devClock, Code: 'R'})
	require.Greater(t, conn.out.Len(), 0)
	require.Equal(t, 2+6+1, conn.out.Len()) // 'A', 'C', six time bytes, checksum
}

func TestReadCommandWithRecoveryShiftsOneByteWindow(t *testing.T) {
	valid := commandBytes(0x31, 'S', 0, 0)
	conn := newFakeConn(append([]byte{0x01}, valid...)...)
	d, _, _ := newTestDispatcher(t, conn)

	cmd, err := d.readCommandWithRecovery()
	require.NoError(t, err)
	require.Equal(t, byte(0x31), cmd.Device)
	require.Equal(t, byte('S'), cmd.Code)
	require.Equal(t, 0, conn.in.Len(), "recovery must shift the existing window, not devour extra bytes re-reading fresh frames")
}

func TestReadCommandWithRecoveryTogglesTurboAfterFourAttempts(t *testing.T) {
	// Five bytes for the initial frame plus one per shift-retry (four
	// retries) never form a valid checksum, exhausting the retry budget.
	garbage := bytes.Repeat([]byte{0x01}, 9)
	conn := newFakeConn(garbage...)
	d, _, _ := newTestDispatcher(t, conn)

	_, err := d.readCommandWithRecovery()
	require.Error(t, err)
	require.True(t, d.turbo, "turbo should toggle on after four failed resync attempts")
}

func TestPrinterWriteTranslatesAndWrites(t *testing.T) {
	var printed bytes.Buffer
	body := bytes.Repeat([]byte{'x'}, 0x28)
	conn := newFakeConn(append(body, frame.Checksum(body))...)
	table := device.NewTable()
	pclServer := pcl.NewServer(pcl.Lower)
	sink := printer.NewSink(&printed)
	d := New(conn, table, pclServer, sink, map[byte]*atr.Image{}, Config{PCLAddress: 0x6f, BasicDelay: time.Microsecond})

	d.dispatch(frame.Command{Device: devPrinter, Code: 'W', Aux1: 0, Aux2: 0})
	require.Equal(t, 0x28, printed.Len())
}
