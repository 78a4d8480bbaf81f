// Package safety classifies the rig's electrical and thermal parameters
// against escalating thresholds and trips the emergency path when a hard
// limit is crossed.
package safety

// Level is a safety classification. Higher values are more severe.
type Level int

const (
	LevelOK Level = iota
	LevelWarning
	LevelCritical
	LevelEmergency
)

func (l Level) String() string {
	switch l {
	case LevelOK:
		return "OK"
	case LevelWarning:
		return "WARNING"
	case LevelCritical:
		return "CRITICAL"
	case LevelEmergency:
		return "EMERGENCY"
	}
	return "UNKNOWN"
}

// Parameter identifies a monitored quantity.
type Parameter int

const (
	ParamVoltage Parameter = iota
	ParamCurrent
	ParamTemperature
	ParamHealth
	numParams
)

// NumParams is the number of monitored parameters.
const NumParams = int(numParams)

func (p Parameter) String() string {
	switch p {
	case ParamVoltage:
		return "VOLTAGE"
	case ParamCurrent:
		return "CURRENT"
	case ParamTemperature:
		return "TEMPERATURE"
	case ParamHealth:
		return "HEALTH"
	}
	return "UNKNOWN"
}

// ParamData is the monitoring state for one parameter.
type ParamData struct {
	Value      float64
	Warning    float64
	Critical   float64
	Emergency  float64
	Status     Level
	LastCheck  uint32
	Violations uint32
}

// Default thresholds. Warning sits at 90% of critical for the electrical
// and thermal parameters. Health scores descend, so its ladder is inverted,
// and temperature additionally has a lower operating bound.
const (
	VoltageCritical  = 30.0
	VoltageEmergency = 35.0

	CurrentCritical  = 10.0
	CurrentEmergency = 12.0

	TempCritical  = 85.0
	TempEmergency = 95.0
	TempMin       = -10.0

	HealthWarning   = 80.0
	HealthCritical  = 60.0
	HealthEmergency = 40.0

	warningFraction = 0.9
)
