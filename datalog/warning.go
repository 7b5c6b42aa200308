package datalog

// Warning is the device-wide warning bitset written into every log line.
type Warning uint8

const (
	WarnBattery Warning = 1 << iota
	WarnVcc
	WarnSensor
	WarnController
	WarnControllerSkipped
	WarnLogSkipped
	WarnLogError
	WarnMissedAlarm
)

// one letter per bit, in bit order
const warningLetters = "BVSCclLM"

const WarningLegend = "# Warnings: B=battery low, V=Vcc low, S=sensor warning, C=controller warning, " +
	"c=controller check skipped, l=log sync skipped, L=log error, M=missed alarm"

const PowerWarnings = WarnBattery | WarnVcc

func (w Warning) Has(x Warning) bool {
	return w&x != 0
}

// String is "OK" when nothing is set, otherwise "!" and the letter of every
// set bit.
func (w Warning) String() string {
	if w == 0 {
		return "OK"
	}
	b := make([]byte, 1, len(warningLetters)+1)
	b[0] = '!'
	for i := 0; i < len(warningLetters); i++ {
		if w&(1<<i) != 0 {
			b = append(b, warningLetters[i])
		}
	}
	return string(b)
}

// Patterns returns the indicator flash counts for w, most important first.
// Power warnings hide everything else; otherwise sensor (2), controller (3)
// and log (4) warnings are each shown.
func (w Warning) Patterns() []int {
	if w.Has(PowerWarnings) {
		return []int{1}
	}
	var p []int
	if w.Has(WarnSensor) {
		p = append(p, 2)
	}
	if w.Has(WarnController | WarnControllerSkipped) {
		p = append(p, 3)
	}
	if w.Has(WarnLogError | WarnLogSkipped) {
		p = append(p, 4)
	}
	return p
}
