package pcl

import (
	"github.com/drac030/sio2go/internal/device"
)

// Function codes (PARBUF.fno).
const (
	FnRead   = 0x00
	FnWrite  = 0x01
	FnSeek   = 0x02
	FnTell   = 0x03
	FnLen    = 0x04
	FnNext   = 0x06
	FnClose  = 0x07
	FnInit   = 0x08
	FnOpen   = 0x09
	FnFirst  = 0x0a
	FnRename = 0x0b
	FnRemove = 0x0c
	FnChmod  = 0x0d
	FnMkdir  = 0x0e
	FnRmdir  = 0x0f
	FnChdir  = 0x10
	FnGetCwd = 0x11
	FnDFree  = 0x13
	FnChVol  = 0x14
)

// Idempotent reports whether a repeated, identical P-phase block for fno
// should be silently re-accepted rather than ignored as a stray retry.
func Idempotent(fno byte) bool {
	switch fno {
	case FnRead, FnWrite, FnSeek, FnTell, FnLen, FnMkdir, FnGetCwd:
		return true
	default:
		return false
	}
}

// Server holds the PCL subsystem's shared sixteen-entry handle table. A
// single Server instance backs every PCL-bound unit in the device table,
// mirroring the original's one global iodesc[] array.
type Server struct {
	Case    CaseMode
	handles [numHandles]handleSlot
}

// NewServer returns a Server in its initial (all handles free) state.
func NewServer(mode CaseMode) *Server {
	return &Server{Case: mode}
}

// setAuxSize packs a 16-bit size into the unit's status timeout/spare
// bytes, the PCL convention for carrying a P-phase result size.
func setAuxSize(unit *device.Unit, n int) {
	unit.Status.Timeout = byte(n)
	unit.Status.Spare = byte(n >> 8)
}

func (s *Server) slot(h byte) (*handleSlot, bool) {
	if int(h) >= numHandles || !s.handles[h].inUse {
		return nil, false
	}
	return &s.handles[h], true
}

// Param executes the P (parameter) phase: for functions whose work
// completes synchronously (FCLOSE, INIT, RENAME, REMOVE, CHMOD, MKDIR,
// RMDIR, CHDIR, CHVOL, FSEEK) the effect happens here. For functions whose
// payload moves in R (FREAD, FWRITE, FTELL, FLEN, FNEXT, FOPEN, FFIRST,
// GETCWD, DFREE) this only validates the request and, where the table
// calls for it, computes the result size into the status aux bytes.
func (s *Server) Param(unit *device.Unit, pb device.ParamBlock) {
	unit.Status.Err = device.ErrSuccess
	switch pb.Fno {
	case FnRead:
		s.paramRead(unit, pb)
	case FnWrite:
		s.paramWrite(unit, pb)
	case FnSeek:
		s.paramSeek(unit, pb)
	case FnTell, FnLen, FnNext, FnOpen, FnFirst, FnGetCwd, FnDFree:
		// Validated fully at R; P only checks the handle where one already
		// exists (FTELL/FLEN/FNEXT operate on an already-open handle).
		if pb.Fno == FnTell || pb.Fno == FnLen || pb.Fno == FnNext {
			if _, ok := s.slot(pb.Handle); !ok {
				unit.Status.Err = device.ErrBadHandle
			}
		}
	case FnClose:
		s.doClose(unit, pb)
	case FnInit:
		s.closeAll()
		setAuxSize(unit, 0) // protocol id 0
	case FnRename:
		s.doRename(unit, pb)
	case FnRemove:
		s.doRemove(unit, pb)
	case FnChmod:
		s.doChmod(unit, pb)
	case FnMkdir:
		s.doMkdir(unit, pb)
	case FnRmdir:
		s.doRmdir(unit, pb)
	case FnChdir:
		s.doChdir(unit, pb)
	case FnChVol:
		s.doChvol(unit, pb)
	default:
		unit.Status.Err = device.ErrBadFunction
	}
}
