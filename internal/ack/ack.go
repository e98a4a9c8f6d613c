// Package ack sends the single-byte protocol acknowledgements
// (A/C/N/E) shared by every device handler, with the basic-delay and
// Bluetooth-delay timing the bus dispatcher is configured with.
package ack

import (
	"io"
	"time"

	"github.com/drac030/sio2go/internal/device"
)

// Sequencer writes ack bytes to the serial line, pacing them per the
// configured delay model and mirroring the outcome into a Status.
type Sequencer struct {
	w          io.Writer
	basicDelay time.Duration
	btMult     int
}

// New returns a Sequencer. basicDelay is the per-byte pacing delay; btMult
// scales the pause following 'A' and 'C' (the "Bluetooth delay" knob).
func New(w io.Writer, basicDelay time.Duration, btMult int) *Sequencer {
	if btMult < 1 {
		btMult = 1
	}
	return &Sequencer{w: w, basicDelay: basicDelay, btMult: btMult}
}

// Send sleeps the basic delay, writes one ack byte ('A', 'C', 'N', or
// 'E'), and updates st if non-nil. After 'A' or 'C' it also sleeps the
// basic delay times btMult before returning.
func (s *Sequencer) Send(what byte, st *device.Status) error {
	time.Sleep(s.basicDelay)
	_, err := s.w.Write([]byte{what})
	if st != nil {
		st.Ack(what)
	}
	if what == 'A' || what == 'C' {
		time.Sleep(s.basicDelay * time.Duration(s.btMult))
	}
	return err
}
