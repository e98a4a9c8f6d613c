package bus

import (
	"github.com/drac030/sio2go/internal/atr"
	"github.com/drac030/sio2go/internal/clock"
	"github.com/drac030/sio2go/internal/device"
	"github.com/drac030/sio2go/internal/frame"
)

func (d *Dispatcher) handleDisk(cmd frame.Command) {
	unit := d.unit(device.ClassDisk, cmd)
	img := d.images[unitOf(cmd.Device)]
	if img == nil && cmd.Code != 'S' {
		// Unmounted unit: NAK everything except status, matching an empty
		// drive bay that still answers a poll.
		d.ackr.Send('N', &unit.Status)
		return
	}
	if cmd.Code >= 0x80 {
		d.ackr.Send('N', &unit.Status)
		return
	}

	switch cmd.Code {
	case 'R', 'V':
		d.diskRead(unit, img, cmd, cmd.Code == 'V')
	case 'P', 'W':
		d.diskWrite(unit, img, cmd)
	case 'S':
		d.diskStatus(unit)
	case 'N':
		d.diskReadPercom(unit)
	case 'O':
		d.diskWritePercom(unit, img)
	case '"':
		d.diskFormat1050(unit, img)
	case '!':
		d.diskFormat(unit, img)
	default:
		d.ackr.Send('N', &unit.Status)
	}
}

func (d *Dispatcher) diskRead(unit *device.Unit, img *atr.Image, cmd frame.Command, verifyOnly bool) {
	d.ackr.Send('A', &unit.Status)
	sector := uint32(cmd.Sector())
	payload, err := img.ReadSector(sector)
	if err != nil {
		d.ackr.Send('E', &unit.Status)
		frame.WriteData(d.conn, payload) // zero-filled, per spec
		return
	}
	d.ackr.Send('C', &unit.Status)
	if !verifyOnly {
		frame.WriteData(d.conn, payload)
	}
}

func (d *Dispatcher) diskWrite(unit *device.Unit, img *atr.Image, cmd frame.Command) {
	d.ackr.Send('A', &unit.Status)
	sector := uint32(cmd.Sector())
	n := int(img.SectorBPS(sector))
	payload, err := frame.ReadData(d.conn, n)
	if err != nil {
		unit.Status.Stat |= device.StatDataCRC
		d.ackr.Send('E', &unit.Status)
		return
	}
	d.ackr.Send('A', &unit.Status)
	if err := img.WriteSector(sector, payload); err != nil {
		d.ackr.Send('E', &unit.Status)
		return
	}
	d.ackr.Send('C', &unit.Status)
}

// diskStatus advances the rotating spare-byte offset across SDX
// timestamp bytes on each poll, per the original's toff counter.
func (d *Dispatcher) diskStatus(unit *device.Unit) {
	ts := clock.Now()
	unit.Status.Spare = ts[unit.StatusRot%byte(len(ts))]
	unit.StatusRot++
	if unit.StatusRot >= byte(len(ts)) {
		unit.StatusRot = 0
	}
	d.sendStatus(unit)
}

func (d *Dispatcher) diskReadPercom(unit *device.Unit) {
	if d.cfg.BlockPercom {
		d.ackr.Send('N', &unit.Status)
		return
	}
	d.ackr.Send('A', &unit.Status)
	d.ackr.Send('C', &unit.Status)
	buf := unit.Percom.Bytes()
	out := append(buf[:], 0xff, 0, 0, 0)
	frame.WriteData(d.conn, out)
}

func (d *Dispatcher) diskWritePercom(unit *device.Unit, img *atr.Image) {
	if d.cfg.BlockPercom {
		d.ackr.Send('N', &unit.Status)
		return
	}
	d.ackr.Send('A', &unit.Status)
	raw, err := frame.ReadData(d.conn, 12)
	if err != nil {
		d.ackr.Send('E', &unit.Status)
		return
	}
	var buf [8]byte
	copy(buf[:], raw[:8])
	d.ackr.Send('A', &unit.Status)
	if err := img.PercomSet(buf); err != nil {
		d.ackr.Send('E', &unit.Status)
		return
	}
	unit.Percom = img.Percom()
	unit.Status.Err = device.ErrSuccess
	d.ackr.Send('C', &unit.Status)
}

func (d *Dispatcher) diskFormat1050(unit *device.Unit, img *atr.Image) {
	if unit.Percom.Tracks == 1 {
		d.ackr.Send('N', &unit.Status)
		return
	}
	d.diskFormat(unit, img)
}

func (d *Dispatcher) diskFormat(unit *device.Unit, img *atr.Image) {
	d.ackr.Send('A', &unit.Status)
	if err := img.Format(); err != nil {
		d.ackr.Send('E', &unit.Status)
		return
	}
	unit.Percom = img.Percom()
	unit.Maxsec = img.Maxsec()
	unit.BPS = img.BPS()
	d.ackr.Send('C', &unit.Status)
	frame.WriteData(d.conn, img.VerifyMap())
}
