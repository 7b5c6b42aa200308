package env

import "time"

const (
	GPIO02 = "GPIO02" // SDA
	GPIO03 = "GPIO03" // SCL
	GPIO04 = "GPIO04"
	GPIO05 = "GPIO05"
	GPIO06 = "GPIO06"
	GPIO12 = "GPIO12"
	GPIO13 = "GPIO13"
	GPIO16 = "GPIO16"
	GPIO17 = "GPIO17" // control button
	GPIO20 = "GPIO20" // status LED
	GPIO21 = "GPIO21"
	GPIO22 = "GPIO22"
	GPIO23 = "GPIO23"
	GPIO24 = "GPIO24"
	GPIO26 = "GPIO26"
	GPIO27 = "GPIO27"

	ButtonIn     = GPIO17
	IndicatorLed = GPIO20

	// indicator flash lengths
	DelayErr   = time.Millisecond * 100
	DelayLong  = time.Millisecond * 500
	DelayShort = time.Millisecond * 250
	DelayAck   = time.Millisecond * 100

	DefaultHoldInterval = time.Second * 2
	DefaultDebounce     = time.Millisecond * 50

	DefaultConfigFile = "/etc/envmon/envmon.yaml"
)
