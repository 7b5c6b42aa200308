package datalog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWarningString(t *testing.T) {
	assert.Equal(t, "OK", Warning(0).String())
	assert.Equal(t, "!B", WarnBattery.String())
	assert.Equal(t, "!SL", (WarnLogError | WarnSensor).String())
	assert.Equal(t, "!BVSCclLM", Warning(0xFF).String())
}

func TestWarningPatterns(t *testing.T) {
	assert.Empty(t, Warning(0).Patterns())
	assert.Empty(t, WarnMissedAlarm.Patterns())
	assert.Equal(t, []int{1}, (WarnVcc | WarnSensor | WarnLogError).Patterns())
	assert.Equal(t, []int{2, 4}, (WarnSensor | WarnLogError).Patterns())
	assert.Equal(t, []int{3}, WarnControllerSkipped.Patterns())
	assert.Equal(t, []int{4}, WarnLogSkipped.Patterns())
}

func TestFormatTime(t *testing.T) {
	assert.Equal(t, "00:00", FormatTime(0))
	assert.Equal(t, "01:05", FormatTime(3600+5*60+59))
	assert.Equal(t, "49:00", FormatTime(49*3600))

	ts := time.Date(2021, 2, 15, 12, 0, 30, 0, time.UTC).Unix()
	assert.Equal(t, "2021.02.15 12:00", FormatTime(uint64(ts)))
}

func TestFormatLine(t *testing.T) {
	ts := uint64(time.Date(2024, 6, 1, 8, 15, 0, 0, time.UTC).Unix())
	s := &Snapshot{
		Time:     ts,
		Warnings: WarnSensor,
		Sensors: []Reading{
			{Value: 215, Valid: true},
			{Value: -3, Valid: true, Error: true},
			{},
		},
		Controllers: []Reading{{Value: 1, Valid: true}},
	}
	assert.Equal(t, "2024.06.01 08:15\t!S\t215\t!-3\t(invalid)\t1\r\n", FormatLine(s))

	assert.Equal(t, "00:02\tOK\r\n", FormatLine(&Snapshot{Time: 120}))
}

func TestHeaderLines(t *testing.T) {
	h := Header{
		BootID:      "b00t",
		Sensors:     []Column{{Name: "temp", Monitored: true}, {Name: "hum"}},
		Controllers: []string{"pump"},
	}
	lines := h.Lines()
	assert.Equal(t, "# time\twarnings\t[!]temp\thum\t[!]pump", lines[0])
	assert.Equal(t, WarningLegend, lines[1])
	assert.Equal(t, "# boot b00t", lines[2])
}
