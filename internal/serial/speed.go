package serial

import "math"

// ErrSpeedIndexRange is returned by a SpeedTable when asked to apply an
// out-of-range turbo index.
var ErrSpeedIndexRange = Error{msg: "speed: index out of range"}

// SpeedTable maps a turbo/HS index to a baud rate. Two backends exist:
// one for UARTs that accept an arbitrary custom divisor (Termios2's
// ISpeed/OSpeed), one for UARTs limited to a fixed enumeration of
// standard bauds (CFlag constants).
type SpeedTable interface {
	// Baud returns the baud rate for index, or 0 if out of range.
	Baud(index int) uint32
	// Apply configures p to run at index's baud rate.
	Apply(p *Port, index int) error
}

// defaultNonLinearity is the POKEY non-linearity constant used in the baud
// formula; callers may override it with -c.
const defaultNonLinearity = 7.1861

// computeBaud implements baud = round(f / (2*(index+k))).
func computeBaud(f float64, index int, k float64) uint32 {
	return uint32(math.Round(f / (2 * (float64(index) + k))))
}

// DivisorSpeedTable drives UARTs that accept an arbitrary custom divisor
// via Termios2.SetCustomSpeed.
type DivisorSpeedTable struct {
	Freq          float64 // POKEY quartz frequency (pal/ntsc/ntscf/Hz)
	NonLinearity  float64
	MaxIndex      int
}

// NewDivisorSpeedTable returns a table for a custom-divisor UART. A
// nonLinearity of 0 selects the default constant.
func NewDivisorSpeedTable(freq, nonLinearity float64, maxIndex int) *DivisorSpeedTable {
	if nonLinearity == 0 {
		nonLinearity = defaultNonLinearity
	}
	return &DivisorSpeedTable{Freq: freq, NonLinearity: nonLinearity, MaxIndex: maxIndex}
}

func (d *DivisorSpeedTable) Baud(index int) uint32 {
	if index < 0 || index > d.MaxIndex {
		return 0
	}
	return computeBaud(d.Freq, index, d.NonLinearity)
}

func (d *DivisorSpeedTable) Apply(p *Port, index int) error {
	baud := d.Baud(index)
	if baud == 0 {
		return ErrSpeedIndexRange
	}
	attrs, err := p.GetAttr2()
	if err != nil {
		return wrapErr("speed: get attr2", err)
	}
	attrs.SetCustomSpeed(baud)
	return p.SetAttr2(TCSANOW, attrs)
}

// EnumSpeedTable drives UARTs limited to the fixed CFlag baud
// enumeration. Baud returns the CFlag speed constant stored at
// Rates[index]; Freq and NonLinearity are stored but not used to choose
// a rate.
type EnumSpeedTable struct {
	Freq         float64
	NonLinearity float64
	Rates        []CFlag // CFlag speed constants, indexed by turbo index
}

func NewEnumSpeedTable(freq, nonLinearity float64, rates []CFlag) *EnumSpeedTable {
	if nonLinearity == 0 {
		nonLinearity = defaultNonLinearity
	}
	return &EnumSpeedTable{Freq: freq, NonLinearity: nonLinearity, Rates: rates}
}

func (e *EnumSpeedTable) Baud(index int) uint32 {
	if index < 0 || index >= len(e.Rates) {
		return 0
	}
	return uint32(e.Rates[index])
}

func (e *EnumSpeedTable) Apply(p *Port, index int) error {
	baud := e.Baud(index)
	if baud == 0 {
		return ErrSpeedIndexRange
	}
	attrs, err := p.GetAttr()
	if err != nil {
		return wrapErr("speed: get attr", err)
	}
	attrs.SetSpeed(CFlag(baud))
	return p.SetAttr(TCSANOW, attrs)
}

// ModemSampler detects which modem-control line the host drives to
// signal "command asserted", by XOR-ing two samples and reporting which
// line's bit changed.
type ModemSampler struct {
	p *Port
}

func NewModemSampler(p *Port) *ModemSampler { return &ModemSampler{p: p} }

// Sample reads the modem lines twice in immediate succession, with no
// delay between the readings, and returns the XOR of the two readings:
// the bits that changed, i.e. candidate command lines.
func (m *ModemSampler) Sample() (first, second ModemLine, changed ModemLine, err error) {
	first, err = m.p.GetModemLines()
	if err != nil {
		return 0, 0, 0, err
	}
	second, err = m.p.GetModemLines()
	if err != nil {
		return 0, 0, 0, err
	}
	return first, second, first ^ second, nil
}
