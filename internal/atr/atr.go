// Package atr implements the ATR sector-image container format: header
// I/O, geometry inference ("PERCOM" negotiation), sector-number-to-offset
// translation including the boot-sector anomaly, and formatting.
package atr

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"syscall"

	"github.com/drac030/sio2go/internal/device"
)

// Signature is the required little-endian magic at offset 0 of an ATR file.
const Signature = 0x0296

// HeaderSize is the fixed size of the ATR header.
const HeaderSize = 16

// header is the on-disk, little-endian ATR header.
type header struct {
	Sig     uint16
	ParsLo  uint16
	BPS     uint16
	ParsHi  uint8
	Crc     uint32
	Spare   int32
	Protect uint8
}

// Error wraps a message and an underlying cause, in the teacher's style.
type Error struct {
	msg string
	err error
}

func (e Error) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}
func (e Error) Unwrap() error { return e.err }

func wrapErr(msg string, err error) error {
	if err == nil {
		return nil
	}
	return Error{msg: msg, err: err}
}

var (
	ErrBadSignature = Error{msg: "bad ATR signature"}
	ErrBadBPS       = Error{msg: "unsupported bytes-per-sector"}
	ErrTooSmall     = Error{msg: "image too small for its bps"}
)

// validBPS reports whether bps is one of the four sizes the format allows.
func validBPS(bps uint16) bool {
	switch bps {
	case 128, 256, 512, 1024:
		return true
	}
	return false
}

// Image is a mounted ATR container: an open file descriptor plus the
// geometry and boot-sector mode latched at mount (or format) time.
type Image struct {
	f           *os.File
	readOnly    bool
	hdr         header
	maxsec      uint32
	bps         uint16
	full13      bool
	full13Force bool
	percom      device.Percom
}

// Mount opens path read/write, falling back to read-only on EACCES/EROFS,
// reads and validates the header, and infers geometry from the density
// ladder. full13Force seeds the boot-sector storage mode to use on a
// subsequent Format call; it does not affect how an existing image is read.
func Mount(path string, full13Force bool) (*Image, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	readOnly := false
	if err != nil {
		var pathErr *fs.PathError
		if errors.As(err, &pathErr) && (errors.Is(err, fs.ErrPermission) || errors.Is(pathErr.Err, os.ErrPermission) || errors.Is(err, syscall.EROFS)) {
			f, err = os.OpenFile(path, os.O_RDONLY, 0)
			readOnly = true
		}
		if err != nil {
			return nil, wrapErr("open", err)
		}
	}

	img := &Image{f: f, readOnly: readOnly, full13Force: full13Force}
	if err := img.readHeader(); err != nil {
		f.Close()
		return nil, err
	}
	return img, nil
}

func (img *Image) readHeader() error {
	buf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(io.NewSectionReader(img.f, 0, HeaderSize), buf); err != nil {
		return wrapErr("read header", err)
	}
	img.hdr.Sig = binary.LittleEndian.Uint16(buf[0:2])
	img.hdr.ParsLo = binary.LittleEndian.Uint16(buf[2:4])
	img.hdr.BPS = binary.LittleEndian.Uint16(buf[4:6])
	img.hdr.ParsHi = buf[6]
	img.hdr.Crc = binary.LittleEndian.Uint32(buf[7:11])
	img.hdr.Spare = int32(binary.LittleEndian.Uint32(buf[11:15]))
	img.hdr.Protect = buf[15]

	if img.hdr.Sig != Signature {
		return ErrBadSignature
	}
	if !validBPS(img.hdr.BPS) {
		return ErrBadBPS
	}

	paragraphs := uint32(img.hdr.ParsHi)<<16 | uint32(img.hdr.ParsLo)
	size := uint64(paragraphs) * 16

	if err := driveSetup(img, size, img.hdr.BPS); err != nil {
		return err
	}
	return nil
}

// driveSetup infers geometry from (size, bps) per the density ladder and
// latches the boot-sector storage mode.
func driveSetup(img *Image, size uint64, bps uint16) error {
	img.bps = bps

	var sectors uint64
	if size%uint64(bps) == 0 {
		img.full13 = true
		sectors = size / uint64(bps)
	} else {
		if size < 384 {
			return ErrTooSmall
		}
		sectors = (size-384)/uint64(bps) + 3
	}
	if sectors < 1 {
		return ErrTooSmall
	}

	p := &img.percom
	p.Step = 3
	p.SetBPS(bps)

	switch {
	case sectors == 720:
		p.Tracks, p.Heads = 40, 0
		p.SetSPT(18)
		p.Flags = densityFlag(bps)
	case bps == 128 && sectors == 1040:
		p.Tracks, p.Heads = 40, 0
		p.SetSPT(26)
		p.Flags = device.PercomMFM
	case sectors == 1440:
		p.Tracks, p.Heads = 40, 1
		p.SetSPT(18)
		p.Flags = densityFlag(bps)
	case sectors == 2002:
		p.Tracks, p.Heads = 77, 0
		p.SetSPT(26)
		p.Flags = densityFlag(bps) | 0x02
	case sectors == 2880:
		p.Tracks, p.Heads = 80, 1
		p.SetSPT(18)
		p.Flags = densityFlag(bps)
	case sectors == 4004:
		p.Tracks, p.Heads = 77, 1
		p.SetSPT(26)
		p.Flags = densityFlag(bps) | 0x02
	case sectors == 5760:
		p.Tracks, p.Heads = 80, 1
		p.SetSPT(36)
		p.Flags = densityFlag(bps)
	default:
		p.Tracks = 1
		p.SetSPT(uint16(sectors % 65536))
		p.Heads = byte(sectors / 65536)
		p.Flags = densityFlag(bps)
		if sectors/65536 != 0 {
			p.Flags |= device.PercomLarge
		}
	}

	img.maxsec = uint32(sectors)
	return nil
}

// densityFlag returns the MFM flag bit for a given bps: single density
// (128) is unflagged, everything else needs MFM.
func densityFlag(bps uint16) byte {
	if bps == 128 {
		return 0
	}
	return device.PercomMFM
}

// Maxsec returns the highest valid sector number.
func (img *Image) Maxsec() uint32 { return img.maxsec }

// BPS returns the negotiated bytes-per-sector.
func (img *Image) BPS() uint16 { return img.bps }

// Full13 reports whether sectors 1-3 are stored as full bps-sized slots.
func (img *Image) Full13() bool { return img.full13 }

// ReadOnly reports whether the mount fell back to read-only.
func (img *Image) ReadOnly() bool { return img.readOnly }

// Percom returns the currently negotiated PERCOM block.
func (img *Image) Percom() device.Percom { return img.percom }

// Close releases the underlying file descriptor.
func (img *Image) Close() error {
	return img.f.Close()
}

// sectorBPS returns the effective bytes-per-sector for the given sector
// number: boot sectors 1-3 of a 256-bps image are always 128 bytes.
func (img *Image) sectorBPS(sector uint32) uint16 {
	if img.bps == 256 && sector >= 1 && sector < 4 {
		return 128
	}
	return img.bps
}

// SectorBPS exposes sectorBPS so callers sizing an incoming data frame
// (the bus dispatcher's disk write path) apply the same boot-sector
// anomaly the image uses internally for read/write/seek.
func (img *Image) SectorBPS(sector uint32) uint16 { return img.sectorBPS(sector) }

// seekOffset computes the file offset for a sector per the boot-sector
// anomaly rules in spec.md §4.3.
func (img *Image) seekOffset(sector uint32) int64 {
	off := int64(sector-1) * int64(img.bps)

	if img.bps == 256 && !img.full13 {
		if sector < 4 {
			off = int64(sector-1) * 128
		} else {
			off = int64(sector-4)*int64(img.bps) + 384
		}
	}
	return off + HeaderSize
}

// SeekOffset exposes seekOffset for callers and tests that need the raw
// file offset without performing I/O.
func (img *Image) SeekOffset(sector uint32) int64 { return img.seekOffset(sector) }

// ReadSector reads the payload for sector, which must be in [1, Maxsec()].
// On an underlying I/O error the caller is expected to still transmit a
// zero-filled payload (the host protocol has already committed to the
// transfer); ReadSector signals this by returning a zero-filled buffer
// alongside the error.
func (img *Image) ReadSector(sector uint32) ([]byte, error) {
	if sector == 0 || sector > img.maxsec {
		return nil, ErrSectorRange
	}
	bps := img.sectorBPS(sector)
	buf := make([]byte, bps)
	n, err := img.f.ReadAt(buf, img.seekOffset(sector))
	if err != nil && !(err == io.EOF && n == int(bps)) {
		return make([]byte, bps), wrapErr("read sector", err)
	}
	return buf, nil
}

// ErrSectorRange is returned when a requested sector is out of [1,maxsec].
var ErrSectorRange = Error{msg: "sector out of range"}

// WriteSector writes payload (already CRC-validated by the caller) to
// sector.
func (img *Image) WriteSector(sector uint32, payload []byte) error {
	if sector == 0 || sector > img.maxsec {
		return ErrSectorRange
	}
	if img.readOnly {
		return wrapErr("write sector", os.ErrPermission)
	}
	_, err := img.f.WriteAt(payload, img.seekOffset(sector))
	return wrapErr("write sector", err)
}

// PercomSet validates and applies a 13-byte PERCOM-set buffer (8 PERCOM
// bytes + 4 pad + checksum already stripped by the caller). It returns an
// error for any combination spec.md §4.3 rejects. The special case
// tracks==1 is accepted without mutating geometry.
func (img *Image) PercomSet(buf [8]byte) error {
	var p device.Percom
	p.Tracks, p.Step, p.SPTHi, p.SPTLo, p.Heads, p.Flags, p.BPSHi, p.BPSLo =
		buf[0], buf[1], buf[2], buf[3], buf[4], buf[5], buf[6], buf[7]

	if p.Tracks == 1 {
		return nil
	}

	bps := p.BPS()
	if !validBPS(bps) {
		return fmt.Errorf("percom set: %w", ErrBadBPS)
	}
	if bps >= 256 && p.Flags&device.PercomMFM == 0 {
		return fmt.Errorf("percom set: bps %d requires MFM flag", bps)
	}
	spt := p.SPT()
	if spt > 18 && p.Flags&device.PercomMFM == 0 {
		return fmt.Errorf("percom set: spt %d requires MFM flag", spt)
	}

	img.percom = p
	img.maxsec = percomMaxsec(p)
	img.bps = bps
	return nil
}

// SetGeometry directly assigns a PERCOM block and its derived maxsec,
// bypassing PercomSet's tracks==1 "accept but don't mutate" escape and its
// bus-facing validation. Used by mkatr, which only ever derives geometry
// from its own density table and needs tracks==1 large-format images to
// actually take effect.
func (img *Image) SetGeometry(p device.Percom) {
	img.percom = p
	img.bps = p.BPS()
	img.maxsec = percomMaxsec(p)
}

func percomMaxsec(p device.Percom) uint32 {
	maxsec := uint32(p.SPT()) * uint32(p.Tracks)
	if p.Flags&device.PercomLarge != 0 {
		maxsec += uint32(p.Heads) * 65536
	} else if p.Tracks == 40 || p.Tracks == 80 || p.Tracks == 77 {
		maxsec *= uint32(p.Heads) + 1
	}
	return maxsec
}

// PercomGet serializes the current PERCOM plus the 4-byte trailer the wire
// protocol expects after it ({0xff,0,0,0}).
func (img *Image) PercomGet() [12]byte {
	var out [12]byte
	pb := img.percom.Bytes()
	copy(out[:8], pb[:])
	out[8] = 0xff
	return out
}
