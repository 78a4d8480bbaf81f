package hal

// NewSimDevice returns a Device backed by fakes with nominal bench readings,
// used by the -sim flag to run the daemon without hardware.
func NewSimDevice() *Device {
	io := NewFakeIO()
	for _, pin := range []Pin{PinBtnUser, PinBtnReset, PinBtnMode, PinEmergency} {
		io.ConfigureInput(pin, PullUp)
	}

	adc := NewFakeADC()
	adc.SetValue(ADCVoltage, 24.0)
	adc.SetValue(ADCVoltageAux, 5.1)
	adc.SetValue(ADCCurrent, 1.2)
	adc.SetValue(ADCTemperature, 35.5)
	adc.SetRaw(ADCVoltage, 2400)
	adc.SetRaw(ADCVoltageAux, 510)
	adc.SetRaw(ADCCurrent, 1200)
	adc.SetRaw(ADCTemperature, 862)

	return &Device{
		IO:      io,
		ADC:     adc,
		Clock:   NewSystemClock(),
		Display: NewConsoleDisplay(),
	}
}
