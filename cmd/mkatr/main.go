// Command mkatr creates a blank, formatted ATR disk image.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/drac030/sio2go/internal/device"
	"github.com/drac030/sio2go/internal/mkatr"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func usage() {
	fmt.Fprintln(os.Stderr, "mkatr [-d density | -t trk -s spt -h heads -b bps] [-f] FILE")
	fmt.Fprintln(os.Stderr, "density: 90k 130k 180k 360k 720k 1440k 16m 32m or ss/sd ss/ed ss/dd ds/dd ds/qd ds/hd")
}

func run(args []string) int {
	fs := flag.NewFlagSet("mkatr", flag.ContinueOnError)
	density := fs.String("d", "", "named density preset")
	trk := fs.Int("t", 40, "tracks")
	spt := fs.Int("s", 18, "sectors per track")
	heads := fs.Int("h", 1, "heads (1 or 2)")
	bps := fs.Int("b", 128, "bytes per sector")
	full13 := fs.Bool("f", false, "first 3 sectors of a formatted DD disk store full-size slots")
	fs.Usage = usage

	if err := fs.Parse(args); err != nil {
		return -1
	}
	if fs.NArg() != 1 {
		usage()
		return -1
	}
	path := fs.Arg(0)

	geom, err := resolveGeometry(*density, *trk, *spt, *heads, *bps)
	if err != nil {
		log.Printf("mkatr: %v", err)
		return -1
	}

	img, err := mkatr.Create(path, geom, *full13)
	if err != nil {
		log.Printf("mkatr: %v", err)
		return -1
	}
	defer img.Close()

	log.Printf("created %s: %d sectors, %d bytes/sector", path, img.Maxsec(), img.BPS())
	return 0
}

// resolveGeometry picks a named density preset when given, else builds
// the geometry from explicit track/spt/heads/bps values.
func resolveGeometry(density string, trk, spt, heads, bps int) (device.Percom, error) {
	if density != "" {
		p, ok := mkatr.LookupDensity(density)
		if !ok {
			return device.Percom{}, fmt.Errorf("unknown density %q", density)
		}
		return p, nil
	}
	return mkatr.CustomGeometry(trk, spt, heads, bps)
}
