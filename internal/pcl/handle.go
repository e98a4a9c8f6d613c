package pcl

import (
	"os"

	"github.com/drac030/sio2go/internal/clock"
)

const numHandles = 16

type entityKind int

const (
	entityFile entityKind = iota
	entityDir
)

// handleSlot is one PCL I/O descriptor: either an open host file or a
// directory snapshot, plus the server-maintained logical position shared
// by FREAD/FWRITE/FSEEK/FTELL.
type handleSlot struct {
	inUse bool
	kind  entityKind

	file *os.File
	dir  []DirEntry
	next int // FNEXT cursor, index into dir (0 is the header)

	devno, cunit byte
	fpmode       byte
	localPath    string
	pos          int64
	size         int64
	eof          bool

	pendingStamp clock.Timestamp // applied to mtime at FCLOSE if non-zero
}

// allocHandle scans for a free slot and marks it in use, returning its
// index or -1 if the table is full.
func (s *Server) allocHandle() int {
	for i := 0; i < numHandles; i++ {
		if !s.handles[i].inUse {
			s.handles[i] = handleSlot{inUse: true}
			return i
		}
	}
	return -1
}

// freeHandle closes any open file, applies a pending mtime stamp, and
// releases the slot.
func (s *Server) freeHandle(h int) {
	slot := &s.handles[h]
	if slot.kind == entityFile && slot.file != nil {
		path := slot.file.Name()
		slot.file.Close()
		if !slot.pendingStamp.IsUnset() {
			t := slot.pendingStamp.Time()
			os.Chtimes(path, t, t)
		}
	}
	*slot = handleSlot{}
}

// closeAll frees every handle (PCL device INIT).
func (s *Server) closeAll() {
	for i := 0; i < numHandles; i++ {
		if s.handles[i].inUse {
			s.freeHandle(i)
		}
	}
}
