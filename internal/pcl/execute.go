package pcl

import (
	"io"
	"os"
	"path/filepath"

	"github.com/drac030/sio2go/internal/ack"
	"github.com/drac030/sio2go/internal/clock"
	"github.com/drac030/sio2go/internal/device"
	"github.com/drac030/sio2go/internal/frame"
)

// Execute performs the R (execute) phase for the function recorded in
// unit.PCLParbuf: the functions with bulk data transfer data over conn,
// acknowledging receipt via ackr where the host sends a payload.
func (s *Server) Execute(unit *device.Unit, conn io.ReadWriter, ackr *ack.Sequencer) error {
	pb := unit.PCLParbuf
	switch pb.Fno {
	case FnRead:
		return s.execRead(unit, pb, conn)
	case FnWrite:
		return s.execWrite(unit, pb, conn, ackr)
	case FnTell:
		return s.execPos(unit, pb, conn, false)
	case FnLen:
		return s.execPos(unit, pb, conn, true)
	case FnNext:
		return s.execNext(unit, pb, conn)
	case FnOpen:
		return s.execOpen(unit, pb, conn, false)
	case FnFirst:
		return s.execOpen(unit, pb, conn, true)
	case FnGetCwd:
		return s.execGetCwd(unit, conn)
	case FnDFree:
		return s.execDFree(unit, conn)
	default:
		return nil
	}
}

func (s *Server) execRead(unit *device.Unit, pb device.ParamBlock, conn io.ReadWriter) error {
	slot, ok := s.slot(pb.Handle)
	if !ok {
		return frame.WriteData(conn, nil)
	}
	n := int(uint16(unit.Status.Spare)<<8 | uint16(unit.Status.Timeout))
	var payload []byte
	if slot.kind == entityDir {
		full := snapshotBytes(slot.dir)
		payload = full[slot.pos : slot.pos+int64(n)]
	} else {
		payload = make([]byte, n)
		_, err := slot.file.ReadAt(payload, slot.pos)
		if err != nil && err != io.EOF {
			return frame.WriteData(conn, nil)
		}
	}
	slot.pos += int64(n)
	return frame.WriteData(conn, payload)
}

func (s *Server) execWrite(unit *device.Unit, pb device.ParamBlock, conn io.ReadWriter, ackr *ack.Sequencer) error {
	n := int(uint16(unit.Status.Spare)<<8 | uint16(unit.Status.Timeout))
	payload, err := frame.ReadData(conn, n)
	if err != nil {
		return err
	}
	if ackr != nil {
		ackr.Send('A', &unit.Status)
	}
	slot, ok := s.slot(pb.Handle)
	if !ok || slot.kind == entityDir {
		return nil // directory handle: write silently discarded
	}
	if _, err := slot.file.WriteAt(payload, slot.pos); err != nil {
		unit.Status.Err = device.ErrIO
		return nil
	}
	slot.pos += int64(len(payload))
	if slot.pos > slot.size {
		slot.size = slot.pos
	}
	return nil
}

func (s *Server) execPos(unit *device.Unit, pb device.ParamBlock, conn io.ReadWriter, length bool) error {
	slot, ok := s.slot(pb.Handle)
	if !ok {
		return frame.WriteData(conn, []byte{0, 0, 0})
	}
	v := slot.pos
	if length {
		v = slot.size
		if slot.kind == entityDir {
			v = int64(len(slot.dir)) * EntrySize
		}
	}
	return frame.WriteData(conn, []byte{byte(v), byte(v >> 8), byte(v >> 16)})
}

func (s *Server) execNext(unit *device.Unit, pb device.ParamBlock, conn io.ReadWriter) error {
	slot, ok := s.slot(pb.Handle)
	if !ok || slot.kind != entityDir {
		unit.Status.Err = device.ErrBadHandle
		return frame.WriteData(conn, make([]byte, EntrySize))
	}
	mask := nameField11(pb.Name)
	e, found := s.firstOrNext(slot, mask, pb.Fatr1)
	if !found {
		unit.Status.Err = device.ErrNotFound
		return frame.WriteData(conn, make([]byte, EntrySize))
	}
	unit.Status.Err = device.ErrSuccess
	b := e.Bytes()
	return frame.WriteData(conn, b[:])
}

func (s *Server) firstOrNext(slot *handleSlot, mask [11]byte, fatr1 byte) (DirEntry, bool) {
	for slot.next < len(slot.dir) {
		e := slot.dir[slot.next]
		slot.next++
		isDir := e.Status&statusSubdir != 0
		writable := e.Status&statusProtect == 0
		if matchName(e.Name, mask) && matchAttributes(fatr1, isDir, writable) {
			return e, true
		}
	}
	return DirEntry{}, false
}

func openModeFlag(fmode byte) (int, bool) {
	switch fmode {
	case 0x04:
		return os.O_RDONLY, true
	case 0x08:
		return os.O_RDWR | os.O_CREATE | os.O_TRUNC, true
	case 0x09:
		return os.O_RDWR | os.O_CREATE, true
	case 0x0c:
		return os.O_RDWR, true
	default:
		return 0, false
	}
}

func (s *Server) execOpen(unit *device.Unit, pb device.ParamBlock, conn io.ReadWriter, forceDir bool) error {
	fail := func(code byte) error {
		unit.Status.Err = code
		return frame.WriteData(conn, make([]byte, 1+EntrySize))
	}

	dirPath, err := resolvePath(unit.PCLRoot, unit.PCLCwd, fieldString(pb.Path[:]), s.Case)
	if err != nil {
		return fail(device.ErrInvalidPath)
	}

	h := s.allocHandle()
	if h < 0 {
		return fail(device.ErrTooManyChannels)
	}
	slot := &s.handles[h]

	if forceDir || pb.Fmode == 0x10 {
		entries, err := buildSnapshot(unit.PCLRoot, dirPath, s.Case)
		if err != nil {
			s.freeHandle(h)
			return fail(device.ErrNotFound)
		}
		slot.kind = entityDir
		slot.dir = entries
		slot.localPath = dirPath
		slot.next = 1

		unit.PCLParbuf.Handle = byte(h)
		unit.Status.Err = device.ErrSuccess
		out := append([]byte{byte(h)}, func() []byte { b := entries[0].Bytes(); return b[:] }()...)
		return frame.WriteData(conn, out)
	}

	name := uexpand(nameField11(pb.Name), s.Case)
	flag, ok := openModeFlag(pb.Fmode)
	if !ok {
		s.freeHandle(h)
		return fail(device.ErrUnsupportedMode)
	}
	full := filepath.Join(dirPath, name)

	if info, statErr := os.Stat(full); statErr == nil {
		if flag&os.O_TRUNC != 0 && !writable(info) {
			s.freeHandle(h)
			return fail(device.ErrExistsOrRO)
		}
	} else if flag&os.O_CREATE == 0 {
		s.freeHandle(h)
		return fail(device.ErrNotFound)
	}

	f, err := os.OpenFile(full, flag, 0o644)
	if err != nil {
		s.freeHandle(h)
		if flag == os.O_RDONLY {
			return fail(device.ErrNotFound)
		}
		return fail(device.ErrExistsOrRO)
	}
	info, _ := f.Stat()

	slot.kind = entityFile
	slot.file = f
	slot.localPath = full
	slot.fpmode = pb.Fmode
	slot.size = info.Size()
	if pb.Fmode == 0x09 {
		slot.pos = info.Size()
	}
	if pb.Fmode == 0x08 {
		// Create-for-write supplies the new file's mtime in the
		// parameter block's F1..F6 (day, month, year, hour, min, sec);
		// freeHandle restores it at FCLOSE if it isn't all-zero.
		slot.pendingStamp = clock.Timestamp{pb.F1, pb.F2, pb.F3, pb.F4, pb.F5, pb.F6}
	}

	unit.PCLParbuf.Handle = byte(h)
	unit.Status.Err = device.ErrSuccess
	entry := newEntry(statusBase, 0, 0, ugefina(name), info.Size(), clock.Encode(info.ModTime()))
	b := entry.Bytes()
	out := append([]byte{byte(h)}, b[:]...)
	return frame.WriteData(conn, out)
}

func (s *Server) execGetCwd(unit *device.Unit, conn io.ReadWriter) error {
	buf := make([]byte, 64)
	for i := range buf {
		buf[i] = ' '
	}
	display := "/" + unit.PCLCwd
	display = filepath.ToSlash(display)
	out := []byte{}
	for i := 0; i < len(display) && i < 64; i++ {
		c := display[i]
		if c == '/' {
			c = '>'
		}
		out = append(out, caseByte(c, Upper))
	}
	copy(buf, out)
	return frame.WriteData(conn, buf)
}

func (s *Server) execDFree(unit *device.Unit, conn io.ReadWriter) error {
	buf := make([]byte, 65)
	label, err := os.ReadFile(filepath.Join(unit.PCLRoot, volumeLabelFile))
	if err != nil || len(label) < 8 {
		for i := 0; i < 8; i++ {
			buf[i] = ' '
		}
	} else {
		copy(buf[:8], label[:8])
	}
	var stat fsStat
	free := stat.freeBytes(unit.PCLRoot)
	buf[8] = byte(free)
	buf[9] = byte(free >> 8)
	buf[10] = byte(free >> 16)
	return frame.WriteData(conn, buf)
}

type fsStat struct{}

// freeBytes reports available space on the mount's filesystem, clamped to
// fit the 24-bit wire field. Platform statfs details are isolated here so
// the rest of the package stays portable.
func (fsStat) freeBytes(path string) int64 {
	const max24 = 0xffffff
	free := diskFreeBytes(path)
	if free > max24 {
		free = max24
	}
	return free
}
