package hal

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// DefaultIIODir is the sysfs directory of the rig's ADC.
const DefaultIIODir = "/sys/bus/iio/devices/iio:device0"

// IIOADC reads raw conversions from the industrial-io sysfs interface.
type IIOADC struct {
	dir string
}

// NewIIOADC creates an ADC over the given iio device directory. An empty dir
// selects DefaultIIODir.
func NewIIOADC(dir string) *IIOADC {
	if dir == "" {
		dir = DefaultIIODir
	}
	return &IIOADC{dir: dir}
}

func (a *IIOADC) Read(ch ADCChannel) (uint16, Status) {
	if ch < 0 || ch >= NumADCChannels {
		return 0, StatusInvalidParam
	}
	raw, err := os.ReadFile(fmt.Sprintf("%s/in_voltage%d_raw", a.dir, int(ch)))
	if err != nil {
		return 0, StatusError
	}
	v, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil || v < 0 {
		return 0, StatusError
	}
	return uint16(v), StatusOK
}

func (a *IIOADC) ReadValue(ch ADCChannel) (float64, Status) {
	raw, st := a.Read(ch)
	if st != StatusOK {
		return 0, st
	}
	return Calibrate(ch, raw), StatusOK
}

// Calibrate converts raw counts to the channel's physical unit: the voltage
// dividers give 10mV per count, the shunt amplifier 1mA per count, and the
// temperature channel goes through the on-die sensor transfer function.
func Calibrate(ch ADCChannel, raw uint16) float64 {
	switch ch {
	case ADCVoltage, ADCVoltageAux:
		return float64(raw) * 0.01
	case ADCCurrent:
		return float64(raw) * 0.001
	case ADCTemperature:
		v := float64(raw) * 3.3 / 4096
		return 27 - (v-0.706)/0.001721
	}
	return 0
}
