// Command sioemud emulates the peripheral bus (disk, PCLink, printer,
// clock) of an 8-bit serial I/O host over a real or virtual serial port.
package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/drac030/sio2go/internal/atr"
	"github.com/drac030/sio2go/internal/bus"
	"github.com/drac030/sio2go/internal/config"
	"github.com/drac030/sio2go/internal/device"
	"github.com/drac030/sio2go/internal/lockfile"
	"github.com/drac030/sio2go/internal/pcl"
	"github.com/drac030/sio2go/internal/printer"
	"github.com/drac030/sio2go/internal/serial"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		log.Printf("sioemud: %v", err)
		return -1
	}

	lk, err := lockfile.Acquire()
	if err != nil {
		if err == lockfile.ErrAlreadyLocked {
			log.Printf("sioemud: %v", err)
			return 1
		}
		log.Printf("sioemud: lockfile: %v", err)
		return -1
	}
	defer lk.Release()

	port, speedTable, err := openPort(cfg)
	if err != nil {
		log.Printf("sioemud: %v", err)
		return -int(errnoOf(err))
	}
	defer port.Close()

	table := device.NewTable()

	caseMode := pcl.Lower
	if cfg.UpperCase {
		caseMode = pcl.Upper
	}
	pclServer := pcl.NewServer(caseMode)

	images := map[byte]*atr.Image{}
	if err := mountDrives(cfg, table, images); err != nil {
		log.Printf("sioemud: %v", err)
		return -1
	}
	defer func() {
		for _, img := range images {
			img.Close()
		}
	}()

	var sink *printer.Sink
	if cfg.PrinterPath != "" {
		f, err := os.OpenFile(cfg.PrinterPath, os.O_WRONLY|os.O_CREATE, 0o644)
		if err != nil {
			log.Printf("sioemud: printer: %v", err)
			return -1
		}
		defer f.Close()
		sink = printer.NewSink(f)
		sink.Translate = cfg.AsciiTranslate
	}

	disp := bus.New(port, table, pclServer, sink, images, bus.Config{
		PCLAddress:     cfg.PCLAddress,
		BlockPercom:    cfg.BlockPercom,
		BasicDelay:     basicDelay,
		BtMultiplier:   cfg.BtDelay,
		Verbose:        cfg.ExtendedLog,
		UseCommandLine: cfg.UseCommandLine,
		Port:           port,
		Speed:          speedTable,
		TurboIndex:     cfg.HSIndex,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("serial port: %s", cfg.SerialDevice)
	if err := disp.Run(ctx); err != nil {
		log.Printf("sioemud: %v", err)
		return -1
	}
	return 0
}

// basicDelay mirrors the original's BASIC_DELAY scaling against the
// POKEY average frequency, expressed directly in wall-clock terms.
const basicDelay = 1_000_000 // nanoseconds, ~1ms between protocol phases

// openPort opens and configures the serial port, returning both it and
// the divisor speed table the dispatcher reuses on turbo renegotiation.
func openPort(cfg *config.Config) (*serial.Port, serial.SpeedTable, error) {
	opts := serial.NewOptions()
	port, err := serial.Open(cfg.SerialDevice, opts)
	if err != nil {
		return nil, nil, err
	}
	if err := port.MakeRaw(); err != nil {
		port.Close()
		return nil, nil, err
	}
	table := serial.NewDivisorSpeedTable(cfg.PokeyHz, cfg.PokeyConst, 15)
	if err := applySpeed(cfg, port, table); err != nil {
		port.Close()
		return nil, nil, err
	}
	return port, table, nil
}

// applySpeed configures the startup line rate: -b N>0 selects a fixed
// 19200*N rate; -b 0 (the default) enables the POKEY-formula custom
// turbo driven by -i/-q/-c.
func applySpeed(cfg *config.Config, port *serial.Port, table serial.SpeedTable) error {
	if cfg.TurboIndex > 0 {
		attrs, err := port.GetAttr2()
		if err != nil {
			return err
		}
		attrs.SetCustomSpeed(uint32(19200 * cfg.TurboIndex))
		return port.SetAttr2(serial.TCSANOW, attrs)
	}
	return table.Apply(port, cfg.HSIndex)
}

func mountDrives(cfg *config.Config, table *device.Table, images map[byte]*atr.Image) error {
	for i, d := range cfg.Drives {
		unitNum := byte(i + 1)
		if d.Skip || d.Path == "" {
			continue
		}

		info, err := os.Stat(d.Path)
		if err == nil && info.IsDir() {
			unit := table.Unit(device.ClassPCL, unitNum)
			unit.PCLOn = true
			unit.PCLRoot = d.Path
			unit.PCLCwd = ""
			log.Printf("drive %d: PCLink directory %s", unitNum, d.Path)
			continue
		}

		img, err := atr.Mount(d.Path, d.Full13Force)
		if err != nil {
			log.Printf("drive %d: %v", unitNum, err)
			continue
		}
		images[unitNum] = img
		unit := table.Unit(device.ClassDisk, unitNum)
		unit.Percom = img.Percom()
		unit.Maxsec = img.Maxsec()
		unit.BPS = img.BPS()
		unit.Status.Stat |= img.StatusBits()
		log.Printf("drive %d: ATR image %s (%d sectors, %d bytes/sector)", unitNum, d.Path, img.Maxsec(), img.BPS())
	}
	return nil
}

func errnoOf(err error) syscall.Errno {
	var errno syscall.Errno
	errors.As(err, &errno)
	return errno
}
