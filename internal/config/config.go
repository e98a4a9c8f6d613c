// Package config parses sioemud's command line into a validated Config,
// following the original's getopt layout (global flags first, then a
// drive list where each entry may be prefixed by its own "-f").
package config

import (
	"flag"
	"fmt"
	"strconv"
)

const (
	pokeyPALHz        = 1773447.0
	pokeyNTSCHz       = 1789790.0
	pokeyNTSCFreddyHz = 1789772.5
	pokeyAvgHz        = (pokeyNTSCHz + pokeyPALHz) / 2
	pokeyConst        = 7.1861

	defaultSerial = "/dev/ttyS0"
	maxDrives     = 15
)

// Error wraps a config-layer failure, matching the module's Error
// pattern.
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

// Drive describes one positional drive argument: an ATR path, a
// directory to mount as a PCLink drive, or "-" to leave the slot
// unassigned.
type Drive struct {
	Path        string
	Skip        bool
	Full13Force bool
}

// Config holds every flag sioemud accepts.
type Config struct {
	UseCommandLine bool
	ExtendedLog    bool
	SerialDevice   string
	TurboIndex     int
	BtDelay        int
	PrinterPath    string
	AsciiTranslate bool
	UpperCase      bool
	BlockPercom    bool
	HSIndex        int
	PokeyHz        float64
	PokeyConst     float64
	PCLAddress     byte

	Drives []Drive
}

func defaultConfig() Config {
	return Config{
		SerialDevice: defaultSerial,
		PokeyHz:      pokeyAvgHz,
		PokeyConst:   pokeyConst,
		PCLAddress:   0x6f,
	}
}

// Parse parses args (typically os.Args[1:]) into a Config.
func Parse(args []string) (*Config, error) {
	cfg := defaultConfig()

	fs := flag.NewFlagSet("sioemud", flag.ContinueOnError)
	fs.BoolVar(&cfg.UseCommandLine, "m", false, "use COMMAND line")
	fs.BoolVar(&cfg.ExtendedLog, "l", false, "extended log messages")
	fs.StringVar(&cfg.SerialDevice, "s", defaultSerial, "serial device")
	fs.IntVar(&cfg.TurboIndex, "b", 0, "set turbo to 19200*n (n<8)")
	fs.IntVar(&cfg.BtDelay, "d", 0, "additional delay for Bluetooth communication")
	fs.StringVar(&cfg.PrinterPath, "p", "", "printer file")
	fs.BoolVar(&cfg.AsciiTranslate, "t", false, "enable ATASCII->ASCII translation for printer")
	fs.BoolVar(&cfg.UpperCase, "u", false, "flip PCLink directory case mode")
	fs.BoolVar(&cfg.BlockPercom, "8", false, "block PERCOM commands")
	fs.IntVar(&cfg.HSIndex, "i", 0, "set HSINDEX")
	pokeyFreq := fs.String("q", "", "POKEY frequency: pal|ntsc|ntscf|<hz>")
	fs.Float64Var(&cfg.PokeyConst, "c", pokeyConst, "POKEY nonlinearity constant")

	if err := fs.Parse(args); err != nil {
		return nil, Error{msg: "config: flag parse failed", err: err}
	}

	if *pokeyFreq != "" {
		hz, err := parsePokeyFreq(*pokeyFreq)
		if err != nil {
			return nil, err
		}
		cfg.PokeyHz = hz
	}

	drives, err := parseDrives(fs.Args())
	if err != nil {
		return nil, err
	}
	cfg.Drives = drives

	return &cfg, nil
}

func parsePokeyFreq(s string) (float64, error) {
	switch s {
	case "pal":
		return pokeyPALHz, nil
	case "ntsc":
		return pokeyNTSCHz, nil
	case "ntscf":
		return pokeyNTSCFreddyHz, nil
	default:
		hz, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, Error{msg: fmt.Sprintf("config: invalid -q value %q", s), err: err}
		}
		return hz, nil
	}
}

// parseDrives walks the remaining positional args, honoring a leading
// "-f" as a per-drive full13force marker (the original's getopt loop
// re-scans argv itself for this, since -f's argument is the drive
// path, not a flag-parser-visible value).
func parseDrives(rest []string) ([]Drive, error) {
	var drives []Drive
	for i := 0; i < len(rest); i++ {
		full := false
		tok := rest[i]
		if tok == "-f" {
			i++
			if i >= len(rest) {
				return nil, Error{msg: "config: -f requires a following drive argument"}
			}
			full = true
			tok = rest[i]
		}
		if len(drives) >= maxDrives {
			return nil, Error{msg: "config: too many drives (max 15)"}
		}
		if tok == "-" {
			drives = append(drives, Drive{Skip: true})
			continue
		}
		drives = append(drives, Drive{Path: tok, Full13Force: full})
	}
	return drives, nil
}
