package safety

import (
	"fmt"
	"log"

	"github.com/mercer/diag-rig/internal/hal"
)

// Monitor samples the safety parameters and derives the aggregate system
// status. It is driven from the scheduler goroutine only.
type Monitor struct {
	adc hal.AnalogIn
	io  hal.DigitalIO

	params  [numParams]ParamData
	enabled bool

	totalViolations uint32
	emergencyFn     func(reason string)

	started   bool
	startTick uint32
}

// New creates a monitor with the default thresholds.
func New(adc hal.AnalogIn, io hal.DigitalIO) *Monitor {
	m := &Monitor{adc: adc, io: io, enabled: true}
	m.params[ParamVoltage] = ParamData{
		Warning:   VoltageCritical * warningFraction,
		Critical:  VoltageCritical,
		Emergency: VoltageEmergency,
	}
	m.params[ParamCurrent] = ParamData{
		Warning:   CurrentCritical * warningFraction,
		Critical:  CurrentCritical,
		Emergency: CurrentEmergency,
	}
	m.params[ParamTemperature] = ParamData{
		Warning:   TempCritical * warningFraction,
		Critical:  TempCritical,
		Emergency: TempEmergency,
	}
	m.params[ParamHealth] = ParamData{
		Value:     100,
		Warning:   HealthWarning,
		Critical:  HealthCritical,
		Emergency: HealthEmergency,
	}
	return m
}

// OnEmergency registers the shutdown trigger invoked when the aggregate
// status reaches Emergency. The reason names the offending parameter.
func (m *Monitor) OnEmergency(fn func(reason string)) {
	m.emergencyFn = fn
}

// Check runs one monitoring cycle at the given tick: sample every parameter,
// reclassify, and trip the emergency path if the aggregate status reaches
// Emergency. A no-op while disabled or once Emergency has been reached.
func (m *Monitor) Check(now uint32) {
	if !m.enabled || m.Overall() == LevelEmergency {
		return
	}
	if !m.started {
		m.started = true
		m.startTick = now
	}

	m.sample(ParamVoltage, hal.ADCVoltage, now)
	m.sample(ParamCurrent, hal.ADCCurrent, now)
	m.sample(ParamTemperature, hal.ADCTemperature, now)
	m.updateStatus(ParamHealth, m.healthScore(now), now)

	if m.Overall() != LevelEmergency {
		return
	}
	for p := ParamVoltage; p < numParams; p++ {
		if m.params[p].Status == LevelEmergency {
			m.trip(p)
			return
		}
	}
}

func (m *Monitor) sample(p Parameter, ch hal.ADCChannel, now uint32) {
	v, st := m.adc.ReadValue(ch)
	if st != hal.StatusOK {
		// A failed read skips the parameter for this cycle; the previous
		// classification stands.
		log.Printf("safety: %s sample failed: %s", p, st)
		return
	}
	m.updateStatus(p, v, now)
}

// updateStatus reclassifies p against its thresholds. Transitions to a
// higher severity count as violations and get the graduated response;
// recovery to a lower severity is silent.
func (m *Monitor) updateStatus(p Parameter, value float64, now uint32) {
	d := &m.params[p]
	d.Value = value
	d.LastCheck = now

	next := m.classify(p, value)
	if next > d.Status {
		d.Violations++
		m.totalViolations++
		m.handleViolation(p, next)
	}
	d.Status = next
}

func (m *Monitor) classify(p Parameter, value float64) Level {
	d := &m.params[p]
	if p == ParamHealth {
		switch {
		case value <= d.Emergency:
			return LevelEmergency
		case value <= d.Critical:
			return LevelCritical
		case value <= d.Warning:
			return LevelWarning
		}
		return LevelOK
	}
	if p == ParamTemperature && value < TempMin {
		// Below the operating floor is a fault in its own right.
		return LevelCritical
	}
	switch {
	case value >= d.Emergency:
		return LevelEmergency
	case value >= d.Critical:
		return LevelCritical
	case value >= d.Warning:
		return LevelWarning
	}
	return LevelOK
}

// handleViolation is the graduated response to an upward transition below
// Emergency. The emergency trip itself happens in Check once the aggregate
// is known.
func (m *Monitor) handleViolation(p Parameter, l Level) {
	switch l {
	case LevelWarning:
		log.Printf("safety: %s warning at %.2f", p, m.params[p].Value)
		m.io.Write(hal.PinLEDError, true)
	case LevelCritical:
		log.Printf("safety: %s critical at %.2f, reduce load", p, m.params[p].Value)
		m.io.Write(hal.PinLEDError, true)
	}
}

func (m *Monitor) trip(p Parameter) {
	d := m.params[p]
	var reason string
	if p == ParamHealth {
		reason = fmt.Sprintf("%s %.2f below emergency threshold %.2f", p, d.Value, d.Emergency)
	} else {
		reason = fmt.Sprintf("%s %.2f exceeded emergency threshold %.2f", p, d.Value, d.Emergency)
	}
	log.Printf("safety: %s", reason)
	if m.emergencyFn != nil {
		m.emergencyFn(reason)
	}
}

// healthScore derives the composite health value from accumulated violations
// and runtime wear, clamped to [0, 100].
func (m *Monitor) healthScore(now uint32) float64 {
	uptimeDays := float64(now-m.startTick) / (24 * 3600 * 1000)
	score := 100 - 5*float64(m.totalViolations) - uptimeDays
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// Overall returns the worst status across all parameters, recomputed on
// every call.
func (m *Monitor) Overall() Level {
	worst := LevelOK
	for i := range m.params {
		if m.params[i].Status > worst {
			worst = m.params[i].Status
		}
	}
	return worst
}

// Status returns the monitoring state for one parameter.
func (m *Monitor) Status(p Parameter) (ParamData, hal.Status) {
	if p < 0 || p >= numParams {
		return ParamData{}, hal.StatusInvalidParam
	}
	return m.params[p], hal.StatusOK
}

// Params returns a copy of every parameter's state, in parameter order.
func (m *Monitor) Params() []ParamData {
	out := make([]ParamData, numParams)
	copy(out, m.params[:])
	return out
}

// SetEnabled turns monitoring on or off. While disabled nothing is sampled
// and stale classifications are retained.
func (m *Monitor) SetEnabled(enabled bool) {
	m.enabled = enabled
	if enabled {
		log.Printf("safety: monitoring enabled")
	} else {
		log.Printf("safety: monitoring disabled")
	}
}

// Enabled reports whether monitoring is active.
func (m *Monitor) Enabled() bool {
	return m.enabled
}

// TotalViolations returns the count of upward transitions since startup.
func (m *Monitor) TotalViolations() uint32 {
	return m.totalViolations
}

// ResetViolations zeroes the per-parameter and global violation counters.
func (m *Monitor) ResetViolations() {
	for i := range m.params {
		m.params[i].Violations = 0
	}
	m.totalViolations = 0
	log.Printf("safety: violation counters reset")
}

// LogStatus writes the current classification of every parameter to the log.
func (m *Monitor) LogStatus() {
	log.Printf("safety: overall %s, %d violations", m.Overall(), m.totalViolations)
	for p := ParamVoltage; p < numParams; p++ {
		d := m.params[p]
		log.Printf("safety:   %s %.2f [%s] warn=%.2f crit=%.2f emerg=%.2f violations=%d",
			p, d.Value, d.Status, d.Warning, d.Critical, d.Emergency, d.Violations)
	}
}
