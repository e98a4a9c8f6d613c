package bus

import (
	"github.com/drac030/sio2go/internal/device"
	"github.com/drac030/sio2go/internal/frame"
	"github.com/drac030/sio2go/internal/pcl"
)

// handlePCL services one PCL command letter ('P' or 'R') against the unit
// selected by caux2's low nibble (PCLink ignores the device byte's unit
// field).
func (d *Dispatcher) handlePCL(cmd frame.Command) {
	cunit := cmd.Aux2 & 0x0f
	unit := d.table.Unit(device.ClassPCL, cunit)

	if cunit != 0 && !unit.PCLOn {
		d.ackr.Send('N', &unit.Status)
		return
	}

	switch cmd.Code {
	case 'P':
		d.pclParam(unit, cmd)
	case 'R':
		if d.lastPCLCode == 'R' {
			d.ackr.Send('N', &unit.Status)
			return
		}
		d.pclExecute(unit)
	case 'S':
		d.sendStatus(unit)
	default:
		d.ackr.Send('N', &unit.Status)
	}
	d.lastPCLCode = cmd.Code
}

func (d *Dispatcher) pclParam(unit *device.Unit, cmd frame.Command) {
	d.ackr.Send('A', &unit.Status)
	parsize := int(cmd.Aux1)
	if parsize == 0 {
		parsize = 256
	}
	raw, err := frame.ReadData(d.conn, parsize)
	if err != nil {
		unit.Status.Stat |= device.StatDataCRC
		d.ackr.Send('E', &unit.Status)
		return
	}
	d.ackr.Send('A', &unit.Status)

	pb := decodeParamBlock(raw)
	retry := unit.PCLHadReq && pb == unit.PCLParbuf
	if retry && !pcl.Idempotent(pb.Fno) {
		d.ackr.Send('C', &unit.Status)
		return
	}
	unit.PCLParbuf = pb
	unit.PCLHadReq = true
	if !retry {
		d.pcl.Param(unit, pb)
	}
	d.ackr.Send('C', &unit.Status)
}

func (d *Dispatcher) pclExecute(unit *device.Unit) {
	if err := d.pcl.Execute(unit, d.conn, d.ackr); err != nil {
		d.ackr.Send('E', &unit.Status)
		return
	}
	d.ackr.Send('C', &unit.Status)
}

// decodeParamBlock unpacks the 128-byte wire PARBUF into a ParamBlock.
func decodeParamBlock(raw []byte) device.ParamBlock {
	var pb device.ParamBlock
	get := func(i int) byte {
		if i < len(raw) {
			return raw[i]
		}
		return 0
	}
	pb.Fno = get(0)
	pb.Handle = get(1)
	pb.F1, pb.F2, pb.F3 = get(2), get(3), get(4)
	pb.F4, pb.F5, pb.F6 = get(5), get(6), get(7)
	pb.Fmode = get(8)
	pb.Fatr1 = get(9)
	pb.Fatr2 = get(10)
	for i := 0; i < 12 && 11+i < len(raw); i++ {
		pb.Name[i] = raw[11+i]
	}
	for i := 0; i < 12 && 23+i < len(raw); i++ {
		pb.Names[i] = raw[23+i]
	}
	for i := 0; i < 65 && 35+i < len(raw); i++ {
		pb.Path[i] = raw[35+i]
	}
	return pb
}
