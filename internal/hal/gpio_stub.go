//go:build !linux

package hal

import "errors"

// LinuxGPIO requires the Linux GPIO character device. On other platforms the
// constructor fails; use the fakes or the -sim flag instead.
type LinuxGPIO struct{}

func NewLinuxGPIO(chipName string) (*LinuxGPIO, error) {
	return nil, errors.New("gpio requires Linux (run with -sim on other platforms)")
}

func (g *LinuxGPIO) ConfigureInput(pin Pin, pull Pull) Status { return StatusNotSupported }

func (g *LinuxGPIO) ConfigureOutput(pin Pin) Status { return StatusNotSupported }

func (g *LinuxGPIO) Write(pin Pin, level bool) Status { return StatusNotSupported }

func (g *LinuxGPIO) Read(pin Pin) (bool, Status) { return false, StatusNotSupported }

func (g *LinuxGPIO) Toggle(pin Pin) Status { return StatusNotSupported }

func (g *LinuxGPIO) Watch(pin Pin, edge Edge, fn func(Pin, Edge)) Status {
	return StatusNotSupported
}

func (g *LinuxGPIO) Close() error { return nil }
