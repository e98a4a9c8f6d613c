package pcl

import "github.com/drac030/sio2go/internal/clock"

// EntrySize is the wire size of one virtual directory entry.
const EntrySize = 23

// SDXMaxLen is the largest length a directory entry can report; larger
// host sizes are clamped.
const SDXMaxLen = 0xffffff

// Entry status bits.
const (
	statusBase    = 0x08 // set on every real entry (file or directory)
	statusProtect = 0x01 // host file not user-writable
	statusSubdir  = 0x20 // entry names a directory
)

// DirEntry is one 23-byte virtual directory entry: a synthesized header
// (the snapshot's own directory) followed by one entry per accepted
// child.
type DirEntry struct {
	Status byte
	MapLo  byte
	MapHi  byte
	Len    [3]byte
	Name   [11]byte
	Stamp  clock.Timestamp
}

// setMap packs the 5-bit parent depth ordinal and 11-bit node ordinal into
// the entry's two map bytes.
func (e *DirEntry) setMap(depth byte, node uint16) {
	v := uint16(depth&0x1f)<<11 | (node & 0x7ff)
	e.MapLo = byte(v)
	e.MapHi = byte(v >> 8)
}

// setLen packs a clamped byte length into the entry's 3-byte length field.
func (e *DirEntry) setLen(n int64) {
	if n > SDXMaxLen {
		n = SDXMaxLen
	}
	e.Len = [3]byte{byte(n), byte(n >> 8), byte(n >> 16)}
}

// len24 unpacks the entry's 3-byte length field.
func (e DirEntry) len24() int64 {
	return int64(e.Len[0]) | int64(e.Len[1])<<8 | int64(e.Len[2])<<16
}

// Bytes serializes the entry in wire order.
func (e DirEntry) Bytes() [EntrySize]byte {
	var b [EntrySize]byte
	b[0] = e.Status
	b[1] = e.MapLo
	b[2] = e.MapHi
	copy(b[3:6], e.Len[:])
	copy(b[6:17], e.Name[:])
	copy(b[17:23], e.Stamp[:])
	return b
}

func newEntry(status byte, depth byte, node uint16, name [11]byte, size int64, stamp clock.Timestamp) DirEntry {
	e := DirEntry{Status: status, Name: name, Stamp: stamp}
	e.setMap(depth, node)
	e.setLen(size)
	return e
}
