package hal

import (
	"fmt"
	"io"
	"time"

	"github.com/tarm/serial"
)

// ConsolePort is a SerialPort backed by a tarm/serial device. Reads are
// bounded by a short fixed timeout so a polling loop never blocks on an
// idle console.
type ConsolePort struct {
	port *serial.Port
}

// OpenConsole opens the serial console device at the given baud rate.
func OpenConsole(device string, baud int) (*ConsolePort, error) {
	port, err := serial.OpenPort(&serial.Config{
		Name:        device,
		Baud:        baud,
		ReadTimeout: 5 * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", device, err)
	}
	return &ConsolePort{port: port}, nil
}

// Read fills p with pending console bytes. The port's fixed read timeout
// applies regardless of timeoutMs; an idle port returns (0, StatusOK).
func (c *ConsolePort) Read(p []byte, timeoutMs uint32) (int, Status) {
	n, err := c.port.Read(p)
	if err == io.EOF {
		return 0, StatusOK
	}
	if err != nil {
		return 0, StatusError
	}
	return n, StatusOK
}

func (c *ConsolePort) Write(p []byte, timeoutMs uint32) (int, Status) {
	n, err := c.port.Write(p)
	if err != nil {
		return n, StatusError
	}
	return n, StatusOK
}

// Available is not supported by the underlying driver; callers poll Read.
func (c *ConsolePort) Available() (int, Status) {
	return 0, StatusNotSupported
}

func (c *ConsolePort) Close() error {
	return c.port.Close()
}
