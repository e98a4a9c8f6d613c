// Package mkatr implements the density table and image-creation logic
// shared by the mkatr CLI.
package mkatr

import (
	"fmt"

	"github.com/drac030/sio2go/internal/atr"
	"github.com/drac030/sio2go/internal/device"
)

// Error wraps a mkatr-layer failure.
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

func percom(trk, heads byte, flags byte, bps, spt uint16) device.Percom {
	var p device.Percom
	p.Tracks = trk
	p.Step = 3
	p.Heads = heads
	p.Flags = flags
	p.SetBPS(bps)
	p.SetSPT(spt)
	return p
}

// Known density presets, aliased by both their capacity name and their
// single/double-sided abbreviation. Grounded directly on the original
// tool's percom_ed/percom_qd/percom_hd/percom_hd32 tables and the
// per-density overrides in make_atr().
var densities = map[string]device.Percom{
	"90k":   percom(40, 0, 0, 128, 18),
	"ss/sd": percom(40, 0, 0, 128, 18),
	"130k":  percom(40, 0, device.PercomMFM, 128, 26),
	"ss/ed": percom(40, 0, device.PercomMFM, 128, 26),
	"180k":  percom(40, 0, device.PercomMFM, 256, 18),
	"ss/dd": percom(40, 0, device.PercomMFM, 256, 18),
	"360k":  percom(40, 1, device.PercomMFM, 256, 18),
	"ds/dd": percom(40, 1, device.PercomMFM, 256, 18),
	"720k":  percom(80, 1, device.PercomMFM, 256, 18),
	"ds/qd": percom(80, 1, device.PercomMFM, 256, 18),
	"1440k": percom(80, 1, device.PercomMFM, 256, 36),
	"ds/hd": percom(80, 1, device.PercomMFM, 256, 36),
	"16m":   percom(1, 0, device.PercomMFM, 256, 65534),
	"32m":   percom(1, 0, device.PercomMFM, 512, 65534),
}

// LookupDensity resolves a density name (either the capacity form like
// "360k" or the side/density form like "ds/dd") to its PERCOM preset.
func LookupDensity(name string) (device.Percom, bool) {
	p, ok := densities[name]
	return p, ok
}

// CustomGeometry builds a PERCOM block from explicit track/spt/heads/bps
// values, mirroring the original's "-t -s -h -b" escape hatch. heads
// counts sides (1 = one side) and is stored zero-based in the PERCOM
// block; spt beyond 65535 is folded into the heads field as the "large"
// encoding.
func CustomGeometry(trk, spt, heads, bps int) (device.Percom, error) {
	var p device.Percom
	p.Step = 3

	flg := byte(0)
	if spt >= 65536 {
		extraHeads := (spt * trk) / 65536
		spt -= extraHeads * 65536
		heads = extraHeads
		flg = device.PercomLarge
	} else if heads > 0 {
		heads--
	}
	if bps > 128 || spt > 18 {
		flg |= device.PercomMFM
	}
	if bps != 128 {
		if bps&0x00ff != 0 || bps > 0x8000 {
			return p, Error{msg: fmt.Sprintf("mkatr: invalid bps %d", bps)}
		}
	}

	p.Tracks = byte(trk)
	p.SetSPT(uint16(spt))
	p.Heads = byte(heads)
	p.Flags = flg
	p.SetBPS(uint16(bps))
	return p, nil
}

// Create makes a new ATR file at path with the given geometry and formats
// it. The caller is responsible for closing the returned image.
func Create(path string, geometry device.Percom, full13Force bool) (*atr.Image, error) {
	img, err := atr.Create(path, full13Force)
	if err != nil {
		return nil, Error{msg: "mkatr: create", err: err}
	}
	img.SetGeometry(geometry)
	if err := img.Format(); err != nil {
		img.Close()
		return nil, Error{msg: "mkatr: format", err: err}
	}
	return img, nil
}
