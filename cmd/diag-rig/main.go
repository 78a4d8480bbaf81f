// Command diag-rig runs the multi-channel diagnostic test rig: a cooperative
// control loop over the panel buttons, channel outputs, safety monitor and
// serial console, with MQTT telemetry and an HTTP status page.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/mercer/diag-rig/internal/channels"
	"github.com/mercer/diag-rig/internal/emergency"
	"github.com/mercer/diag-rig/internal/hal"
	"github.com/mercer/diag-rig/internal/input"
	"github.com/mercer/diag-rig/internal/loop"
	"github.com/mercer/diag-rig/internal/metrics"
	"github.com/mercer/diag-rig/internal/mqtt"
	"github.com/mercer/diag-rig/internal/safety"
	"github.com/mercer/diag-rig/internal/status"
	"github.com/mercer/diag-rig/internal/web"
)

const version = "1.0.0"

// remoteQueueDepth bounds commands buffered from the MQTT command topic
// between loop passes.
const remoteQueueDepth = 8

type options struct {
	tick        time.Duration
	debounce    time.Duration
	longPress   time.Duration
	doubleClick time.Duration
	safety      time.Duration
	heartbeat   time.Duration
	statusEvery time.Duration
	selfTest    time.Duration
	broker      string
	httpAddr    string
	serialDev   string
	baud        int
	gpioChip    string
	adcDir      string
	sim         bool
}

func main() {
	var opt options
	flag.DurationVar(&opt.tick, "tick", 100*time.Millisecond, "Control loop tick budget")
	flag.DurationVar(&opt.debounce, "debounce", 50*time.Millisecond, "Button debounce window")
	flag.DurationVar(&opt.longPress, "long-press", 2*time.Second, "Long press threshold")
	flag.DurationVar(&opt.doubleClick, "double-click", 500*time.Millisecond, "Double click window")
	flag.DurationVar(&opt.safety, "safety-interval", 500*time.Millisecond, "Safety check interval")
	flag.DurationVar(&opt.heartbeat, "heartbeat", time.Second, "Heartbeat interval (0 to disable)")
	flag.DurationVar(&opt.statusEvery, "status-interval", 5*time.Second, "Status report interval")
	flag.DurationVar(&opt.selfTest, "self-test-interval", 5*time.Second, "ADC self-test interval (0 to disable)")
	flag.StringVar(&opt.broker, "broker", "tcp://192.168.1.60:1883", "MQTT broker address (empty to disable)")
	flag.StringVar(&opt.httpAddr, "http", ":8080", "HTTP status address (empty to disable)")
	flag.StringVar(&opt.serialDev, "serial", "", "Serial console device (empty to disable)")
	flag.IntVar(&opt.baud, "baud", 115200, "Serial console baud rate")
	flag.StringVar(&opt.gpioChip, "gpio-chip", "gpiochip0", "GPIO character device name")
	flag.StringVar(&opt.adcDir, "adc", hal.DefaultIIODir, "IIO ADC sysfs directory")
	flag.BoolVar(&opt.sim, "sim", false, "Run against simulated hardware")
	flag.Parse()

	if err := run(opt); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(opt options) error {
	log.Printf("=== Multi-Channel Diagnostic Test Rig ===")
	log.Printf("firmware %s (%s)", version, runtime.Version())

	dev, cleanup, err := buildDevice(opt)
	if err != nil {
		return err
	}
	defer cleanup()

	configurePins(dev.IO)

	bank := channels.New(dev.IO)

	// MQTT is optional; the rig degrades to local operation without it.
	var pub mqtt.Publisher
	var conn mqtt.ConnectionStatus
	var remote chan string
	if opt.broker != "" {
		rp := mqtt.NewRealPublisher(opt.broker)
		defer rp.Close()
		remote = make(chan string, remoteQueueDepth)
		rp.SubscribeCommands(remote)
		pub = rp
		conn = rp
	}

	tracker := status.NewTracker(time.Now(), status.Config{
		TickMs:      opt.tick.Milliseconds(),
		DebounceMs:  opt.debounce.Milliseconds(),
		SafetyMs:    opt.safety.Milliseconds(),
		HeartbeatMs: opt.heartbeat.Milliseconds(),
		StatusMs:    opt.statusEvery.Milliseconds(),
		Broker:      opt.broker,
		HTTPAddr:    opt.httpAddr,
		SerialDev:   opt.serialDev,
	})

	engine := input.New(dev.IO, input.Config{
		DebounceMs:    uint32(opt.debounce.Milliseconds()),
		LongPressMs:   uint32(opt.longPress.Milliseconds()),
		DoubleClickMs: uint32(opt.doubleClick.Milliseconds()),
	})
	monitor := safety.New(dev.ADC, dev.IO)
	coord := emergency.New(dev.IO, dev.Display)

	runner := loop.New(loop.Config{
		TickBudgetMs:     uint32(opt.tick.Milliseconds()),
		SafetyIntervalMs: uint32(opt.safety.Milliseconds()),
		HeartbeatMs:      uint32(opt.heartbeat.Milliseconds()),
		StatusIntervalMs: uint32(opt.statusEvery.Milliseconds()),
		SelfTestMs:       uint32(opt.selfTest.Milliseconds()),
	}, loop.Deps{
		Clock:   dev.Clock,
		IO:      dev.IO,
		ADC:     dev.ADC,
		Serial:  dev.Serial,
		Engine:  engine,
		Monitor: monitor,
		Bank:    bank,
		Tracker: tracker,
		Pub:     pub,
		Conn:    conn,
		Remote:  remote,
	})

	wire(engine, monitor, coord, bank, tracker, runner, pub, dev.IO, time.Now)

	// Interrupts last, once every emergency listener is in place.
	if st := engine.BindInterrupts(); st != hal.StatusOK {
		log.Printf("input: bind interrupts: %s (polling only)", st)
	}

	// Start HTTP status server
	if opt.httpAddr != "" {
		srv := web.New(opt.httpAddr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", opt.httpAddr)
	}

	// Publish startup event with full status snapshot
	if pub != nil {
		snap := tracker.Snapshot()
		startup := mqtt.SystemEvent{
			Timestamp:  snap.Now,
			Event:      "STARTUP",
			Retained:   true,
			RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
		}
		if err := pub.PublishSystem(startup); err != nil {
			log.Printf("failed to publish startup event: %v", err)
		} else {
			log.Printf("published startup event")
		}
	}

	sigReason := make(chan string, 1)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigCh
		log.Printf("received %v, shutting down", s)
		sigReason <- signalName(s)
		runner.RequestStop()
	}()

	log.Printf("started: tick=%v debounce=%v safety=%v heartbeat=%v broker=%s",
		opt.tick, opt.debounce, opt.safety, opt.heartbeat, opt.broker)

	runner.Run()

	// The loop has stopped: a signal arrived or the emergency tripped.
	engine.SetEnabled(false)
	engine.ClearEvents()

	reason := "UNKNOWN"
	if coord.Tripped() {
		reason = coord.Reason()
	} else {
		select {
		case name := <-sigReason:
			reason = name
		default:
		}
	}

	if pub != nil {
		if conn != nil {
			tracker.SetMQTTConnected(conn.IsConnected())
		}
		snap := tracker.Snapshot()
		event := mqtt.SystemEvent{
			Timestamp:  snap.Now,
			Event:      "SHUTDOWN",
			Reason:     reason,
			Retained:   true,
			RawPayload: status.FormatStatusEvent(snap, "SHUTDOWN", reason),
		}
		if err := pub.PublishSystem(event); err != nil {
			log.Printf("failed to publish shutdown event: %v", err)
		} else {
			log.Printf("published shutdown event")
		}
	}

	// Outputs are already safed when the emergency tripped.
	if !coord.Tripped() {
		bank.DisableAll()
	}
	shutdownPins(dev.IO)

	log.Printf("stopped: %s", reason)
	return nil
}

// wire connects the cross-package callbacks. Coordinator listeners run in
// registration order; the state recorders run before the publisher so the
// emergency event carries the tripped snapshot.
func wire(engine *input.Engine, monitor *safety.Monitor, coord *emergency.Coordinator,
	bank *channels.Bank, tracker *status.Tracker, runner *loop.Runner,
	pub mqtt.Publisher, io hal.DigitalIO, now func() time.Time) {

	coord.SetStop(runner.RequestStop)

	coord.Register(func(reason string) {
		bank.DisableAll()
		tracker.SetEmergency(reason)
		metrics.EmergencyTripped.Set(1)
	})
	if pub != nil {
		coord.Register(func(reason string) {
			snap := tracker.Snapshot()
			event := mqtt.SystemEvent{
				Timestamp:  now(),
				Event:      "EMERGENCY",
				Reason:     reason,
				Retained:   true,
				RawPayload: status.FormatStatusEvent(snap, "EMERGENCY", reason),
			}
			if err := pub.PublishSystem(event); err != nil {
				log.Printf("failed to publish emergency event: %v", err)
			}
		})
	}

	monitor.OnEmergency(coord.Shutdown)
	engine.OnEmergency(func() { coord.Shutdown("Emergency stop requested") })

	engine.OnUserToggle(func() {
		bank.ToggleAll()
		io.Toggle(hal.PinLEDComm)
	})
	engine.OnStatusRequest(runner.LogStatus)
	engine.OnChannelCommand(bank.Set)
}

// buildDevice assembles the hardware stack, or the simulated one under -sim.
func buildDevice(opt options) (*hal.Device, func(), error) {
	if opt.sim {
		log.Printf("hardware: simulated device")
		return hal.NewSimDevice(), func() {}, nil
	}

	gpio, err := hal.NewLinuxGPIO(opt.gpioChip)
	if err != nil {
		return nil, nil, fmt.Errorf("init gpio: %w", err)
	}
	cleanup := func() {
		if err := gpio.Close(); err != nil {
			log.Printf("gpio close: %v", err)
		}
	}

	dev := &hal.Device{
		IO:      gpio,
		ADC:     hal.NewIIOADC(opt.adcDir),
		Clock:   hal.NewSystemClock(),
		Display: hal.NewConsoleDisplay(),
	}

	if opt.serialDev != "" {
		port, err := openConsole(opt.serialDev, opt.baud)
		if err != nil {
			log.Printf("serial: %v, continuing without console", err)
		} else {
			dev.Serial = port
			prev := cleanup
			cleanup = func() {
				port.Close()
				prev()
			}
		}
	}
	return dev, cleanup, nil
}

// openConsole retries the serial open with exponential backoff. USB adapters
// can enumerate a few seconds after an init unit starts the daemon.
func openConsole(device string, baud int) (*hal.ConsolePort, error) {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 15 * time.Second

	var port *hal.ConsolePort
	err := backoff.Retry(func() error {
		p, err := hal.OpenConsole(device, baud)
		if err != nil {
			log.Printf("serial: open %s: %v, retrying", device, err)
			return err
		}
		port = p
		return nil
	}, bo)
	if err != nil {
		return nil, fmt.Errorf("open serial console %s: %w", device, err)
	}
	return port, nil
}

// configurePins claims every rig line: buttons as pulled-up inputs (active
// low), everything else as outputs driven low. The power LED comes on last.
func configurePins(io hal.DigitalIO) {
	for _, pin := range []hal.Pin{hal.PinBtnUser, hal.PinBtnReset, hal.PinBtnMode, hal.PinEmergency} {
		if st := io.ConfigureInput(pin, hal.PullUp); st != hal.StatusOK {
			log.Printf("gpio: configure input %d: %s", pin, st)
		}
	}
	outputs := []hal.Pin{
		hal.PinLEDStatus, hal.PinLEDError, hal.PinLEDComm, hal.PinLEDPower,
		hal.PinChannel0, hal.PinChannel1, hal.PinChannel2, hal.PinChannel3,
		hal.PinRelay1, hal.PinRelay2, hal.PinBuzzer, hal.PinFan,
	}
	for _, pin := range outputs {
		if st := io.ConfigureOutput(pin); st != hal.StatusOK {
			log.Printf("gpio: configure output %d: %s", pin, st)
		}
	}
	io.Write(hal.PinLEDPower, true)
}

// shutdownPins turns the indicators off on the way out.
func shutdownPins(io hal.DigitalIO) {
	for _, pin := range []hal.Pin{hal.PinLEDStatus, hal.PinLEDError, hal.PinLEDComm, hal.PinLEDPower, hal.PinBuzzer} {
		io.Write(pin, false)
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}
