// Package bus implements the top-level command loop: frame reception,
// desynchronization recovery, and routing to the disk, PCL, printer, and
// clock handlers that share a device.Table.
package bus

import (
	"context"
	"io"
	"time"

	"github.com/drac030/sio2go/internal/ack"
	"github.com/drac030/sio2go/internal/atr"
	"github.com/drac030/sio2go/internal/clock"
	"github.com/drac030/sio2go/internal/device"
	"github.com/drac030/sio2go/internal/frame"
	"github.com/drac030/sio2go/internal/pcl"
	"github.com/drac030/sio2go/internal/printer"
	"github.com/drac030/sio2go/internal/serial"
)

// Device class/address bytes on the wire.
const (
	devDisk0   = 0x31 // disk unit 1; class is devByte>>4, unit is devByte&0xf
	devPrinter = 0x40
	devClock   = 0x45
	devDCBInfo = 0x21
)

// Error is the package's wrapped-error type, matching the pattern used
// throughout the module.
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

// Config holds the dispatcher's runtime-tunable knobs (see cmd/sioemud's
// flags).
type Config struct {
	PCLAddress     byte
	BlockPercom    bool
	BasicDelay     time.Duration
	BtMultiplier   int
	Verbose        bool
	UseCommandLine bool // -m: gate command reads on the sampled COMMAND line

	// Port, when non-nil, is the physical serial port backing conn. It
	// enables turbo renegotiation on desync and COMMAND-line sampling;
	// both are no-ops without it (e.g. in tests against a fake conn).
	Port *serial.Port
	// Speed is consulted on desync recovery's turbo toggle.
	Speed serial.SpeedTable
	// TurboIndex is the Speed index applied when turbo is switched on;
	// switching off falls back to the standard 19200 baud rate.
	TurboIndex int
}

// Dispatcher drives one serial connection against a shared device table.
type Dispatcher struct {
	conn    io.ReadWriter
	table   *device.Table
	pcl     *pcl.Server
	printer *printer.Sink
	images  map[byte]*atr.Image // unit number -> mounted disk image
	cfg     Config
	ackr    *ack.Sequencer

	turbo       bool
	lastPCLCode byte

	cmdSampled bool
	cmdMask    serial.ModemLine
}

// New returns a Dispatcher for conn.
func New(conn io.ReadWriter, table *device.Table, pclServer *pcl.Server, printerSink *printer.Sink, images map[byte]*atr.Image, cfg Config) *Dispatcher {
	return &Dispatcher{
		conn:    conn,
		table:   table,
		pcl:     pclServer,
		printer: printerSink,
		images:  images,
		cfg:     cfg,
		ackr:    ack.New(conn, cfg.BasicDelay, cfg.BtMultiplier),
	}
}

// Run services commands until ctx is cancelled or a fatal I/O error
// occurs on the serial port.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		cmd, err := d.readCommandWithRecovery()
		if err != nil {
			return Error{msg: "bus: fatal read failure", err: err}
		}
		d.dispatch(cmd)
	}
}

// readCommandWithRecovery reads one command frame. On checksum failure it
// shifts the 5-byte window left by one and refills only the vacated byte
// (peeking ahead only when input is already pending), retrying up to four
// times before toggling turbo and starting over with a fresh frame.
func (d *Dispatcher) readCommandWithRecovery() (frame.Command, error) {
	d.sampleCommandLine()

	for {
		d.waitForCommandLine()
		window, err := frame.ReadRawFrame(d.conn)
		if err != nil {
			return frame.Command{}, err
		}

		for attempt := 0; ; {
			cmd, decErr := frame.DecodeCommand(window)
			if decErr == nil {
				return cmd, nil
			}
			if attempt < 4 && d.dataPending() {
				attempt++
				copy(window[:frame.CommandSize], window[1:])
				b, perr := frame.ReadRawByte(d.conn)
				if perr != nil {
					return frame.Command{}, perr
				}
				window[frame.CommandSize] = b
				continue
			}
			d.toggleTurbo()
			break
		}
	}
}

// dataPending reports whether the connection has at least one byte ready
// to read without blocking. Connections that don't expose that (anything
// but a *serial.Port, e.g. in tests) are always treated as pending, which
// degrades to an ordinary blocking read.
func (d *Dispatcher) dataPending() bool {
	if d.cfg.Port == nil {
		return true
	}
	return d.cfg.Port.Pending()
}

// toggleTurbo flips the in-turbo flag and, when a physical port and speed
// table are configured, actually renegotiates the line rate: turbo on
// applies cfg.TurboIndex, turbo off falls back to the standard 19200 baud.
func (d *Dispatcher) toggleTurbo() {
	d.turbo = !d.turbo
	if d.cfg.Port == nil {
		return
	}
	if d.turbo {
		if d.cfg.Speed != nil {
			d.cfg.Speed.Apply(d.cfg.Port, d.cfg.TurboIndex)
		}
		return
	}
	attrs, err := d.cfg.Port.GetAttr2()
	if err != nil {
		return
	}
	attrs.SetCustomSpeed(19200)
	d.cfg.Port.SetAttr2(serial.TCSANOW, attrs)
}

// sampleCommandLine runs once, on the first command frame: it samples the
// modem-control lines twice, both times before any frame byte is read,
// to learn which one the host drives as
// "command asserted", mirroring the original's cmd_line_valid detection.
func (d *Dispatcher) sampleCommandLine() {
	if d.cmdSampled {
		return
	}
	d.cmdSampled = true
	if !d.cfg.UseCommandLine || d.cfg.Port == nil {
		return
	}
	sampler := serial.NewModemSampler(d.cfg.Port)
	_, _, changed, err := sampler.Sample()
	if err != nil {
		return
	}
	d.cmdMask = changed
}

// waitForCommandLine blocks until the sampled COMMAND line is asserted,
// gating fresh command-frame reads on it once sampleCommandLine has
// identified one. A no-op when no line was identified or no port is wired.
func (d *Dispatcher) waitForCommandLine() {
	if d.cmdMask == 0 || d.cfg.Port == nil {
		return
	}
	for {
		lines, err := d.cfg.Port.GetModemLines()
		if err != nil || lines&d.cmdMask != 0 {
			return
		}
		time.Sleep(time.Millisecond)
	}
}

func classOf(devByte byte) byte { return devByte >> 4 }
func unitOf(devByte byte) byte  { return devByte & 0x0f }

func (d *Dispatcher) dispatch(cmd frame.Command) {
	if d.pcl != nil && cmd.Device == d.cfg.PCLAddress {
		d.handlePCL(cmd)
		return
	}
	switch {
	case classOf(cmd.Device) == 0x3:
		d.handleDisk(cmd)
	case cmd.Device == devPrinter:
		d.handlePrinter(cmd)
	case cmd.Device == devClock:
		d.handleClock(cmd)
	case cmd.Device == devDCBInfo && unitOf(cmd.Device) == 1:
		d.handleDCBInfo(cmd)
	default:
		d.ackr.Send('N', nil)
	}
}

func (d *Dispatcher) unit(class byte, cmd frame.Command) *device.Unit {
	return d.table.Unit(class, unitOf(cmd.Device))
}

func (d *Dispatcher) handleDCBInfo(cmd frame.Command) {
	unit := d.unit(2, cmd)
	switch cmd.Code {
	case 'S':
		d.sendStatus(unit)
	default:
		d.ackr.Send('N', &unit.Status)
	}
}

func (d *Dispatcher) handleClock(cmd frame.Command) {
	unit := d.unit(device.ClassClock, cmd)
	switch cmd.Code {
	case 'S':
		d.sendStatus(unit)
	case 'R':
		d.ackr.Send('A', &unit.Status)
		ts := clock.Now()
		d.ackr.Send('C', &unit.Status)
		frame.WriteData(d.conn, ts[:])
	default:
		d.ackr.Send('N', &unit.Status)
	}
}

func (d *Dispatcher) handlePrinter(cmd frame.Command) {
	unit := d.table.Unit(device.ClassPrinter, unitOf(cmd.Device))
	switch cmd.Code {
	case 'S':
		d.sendStatus(unit)
	case 'W':
		d.ackr.Send('A', &unit.Status)
		n := printer.FrameSize(cmd.Aux1)
		payload, err := frame.ReadData(d.conn, n)
		if err != nil || d.printer == nil {
			d.ackr.Send('N', &unit.Status)
			return
		}
		if err := d.printer.Write(payload); err != nil {
			d.ackr.Send('E', &unit.Status)
			return
		}
		d.ackr.Send('C', &unit.Status)
	default:
		d.ackr.Send('N', &unit.Status)
	}
}

func (d *Dispatcher) sendStatus(unit *device.Unit) {
	d.ackr.Send('A', &unit.Status)
	d.ackr.Send('C', &unit.Status)
	frame.WriteData(d.conn, []byte{unit.Status.Stat, unit.Status.Err, unit.Status.Timeout, unit.Status.Spare})
}
