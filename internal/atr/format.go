package atr

import (
	"encoding/binary"

	"github.com/drac030/sio2go/internal/device"
)

// Format truncates the image to zero, rewrites the header with a fresh
// paragraph count derived from the current PERCOM, and writes zero sectors
// for every track×spt, honoring the bps==256 boot-sector mode (the first
// three sectors of track 0 are 128 bytes unless Full13Force is set).
// Formatting twice in a row yields byte-identical files (idempotent).
func (img *Image) Format() error {
	if img.readOnly {
		return wrapErr("format", errReadOnly)
	}

	spt := uint32(img.percom.SPT())
	trk := uint32(img.percom.Tracks)
	bps := img.bps

	if img.percom.Flags&device.PercomLarge != 0 {
		spt += uint32(img.percom.Heads) * 65536
	} else if trk == 40 || trk == 80 || trk == 77 {
		trk *= uint32(img.percom.Heads) + 1
	}

	img.full13 = img.full13Force

	var totalBytes uint64
	if !img.full13Force && bps == 256 {
		totalBytes = uint64(img.maxsec)*uint64(bps) - 3*128
	} else {
		totalBytes = uint64(img.maxsec) * uint64(bps)
	}
	paragraphs := totalBytes / 16

	if err := img.f.Truncate(0); err != nil {
		return wrapErr("format truncate", err)
	}

	var hdrBuf [HeaderSize]byte
	binary.LittleEndian.PutUint16(hdrBuf[0:2], Signature)
	binary.LittleEndian.PutUint16(hdrBuf[2:4], uint16(paragraphs%65536))
	binary.LittleEndian.PutUint16(hdrBuf[4:6], bps)
	hdrBuf[6] = byte(paragraphs / 65536)
	if _, err := img.f.WriteAt(hdrBuf[:], 0); err != nil {
		return wrapErr("format header", err)
	}

	zero := make([]byte, bps)
	for t := uint32(0); t < trk; t++ {
		for s := uint32(1); s <= spt; s++ {
			sbps := bps
			if t == 0 && s < 4 && bps == 256 && !img.full13Force {
				sbps = 128
			}
			sector := t*spt + s
			if _, err := img.f.WriteAt(zero[:sbps], img.seekOffset(sector)); err != nil {
				return wrapErr("format sector", err)
			}
		}
	}

	img.setupStatusBits()
	return nil
}

var errReadOnly = Error{msg: "image is read-only"}

// VerifyMap returns the 0xff-filled payload transmitted as the "verify
// map" after a successful format.
func (img *Image) VerifyMap() []byte {
	buf := make([]byte, img.bps)
	for i := range buf {
		buf[i] = 0xff
	}
	return buf
}

// StatusBits returns the stat-flag contribution this image makes to its
// unit's Status.Stat: bit 5 for 256-byte sectors, bit 7 for the ED
// 40/1/26/128 enhanced-density signature.
func (img *Image) StatusBits() byte {
	var bits byte
	if img.bps >= 256 {
		bits |= device.Stat256ByteSector
	}
	if img.maxsec == 1040 && img.bps == 128 &&
		img.percom.Flags&device.PercomMFM != 0 &&
		img.percom.Heads == 0 && img.percom.Tracks == 40 {
		bits |= device.StatEnhancedDens
	}
	return bits
}

func (img *Image) setupStatusBits() {
	// Recomputed on demand by StatusBits; nothing to latch here beyond
	// what Percom/BPS/Maxsec already carry.
}

// Create makes a brand-new zero-length ATR file at path and mounts it,
// ready for a caller to set PERCOM and Format. Used by both the "drive
// refuses unformatted media" recovery path and the mkatr tool.
func Create(path string, full13Force bool) (*Image, error) {
	return create(path, full13Force)
}
