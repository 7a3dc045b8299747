package types

import "fmt"

// ParameterName identifies one of the machine process parameters an operator
// can adjust.
type ParameterName string

const (
	ParamTemperature ParameterName = "temperature"
	ParamPressure    ParameterName = "pressure"
	ParamSpeed       ParameterName = "speed"
)

// ParameterNames lists every parameter in display order.
var ParameterNames = []ParameterName{ParamTemperature, ParamPressure, ParamSpeed}

// Valid reports whether n is one of the known parameters.
func (n ParameterName) Valid() bool {
	switch n {
	case ParamTemperature, ParamPressure, ParamSpeed:
		return true
	}
	return false
}

// Default process parameters used when a session starts.
const (
	DefaultTemperature = 150.0
	DefaultPressure    = 5.0
	DefaultSpeed       = 1200.0
)

// ParameterSet is the payload sent to the prediction service. Its JSON form is
// the wire body of the simulate request.
type ParameterSet struct {
	Temperature float64 `json:"temperature"` // °C
	Pressure    float64 `json:"pressure"`    // bar
	Speed       float64 `json:"speed"`       // RPM
}

// DefaultParameterSet returns the session defaults.
func DefaultParameterSet() ParameterSet {
	return ParameterSet{
		Temperature: DefaultTemperature,
		Pressure:    DefaultPressure,
		Speed:       DefaultSpeed,
	}
}

// Get returns the value of the named field.
func (p ParameterSet) Get(name ParameterName) (float64, error) {
	switch name {
	case ParamTemperature:
		return p.Temperature, nil
	case ParamPressure:
		return p.Pressure, nil
	case ParamSpeed:
		return p.Speed, nil
	}
	return 0, fmt.Errorf("unknown parameter %q", name)
}

// With returns a copy of p with the named field replaced.
func (p ParameterSet) With(name ParameterName, value float64) (ParameterSet, error) {
	switch name {
	case ParamTemperature:
		p.Temperature = value
	case ParamPressure:
		p.Pressure = value
	case ParamSpeed:
		p.Speed = value
	default:
		return p, fmt.Errorf("unknown parameter %q", name)
	}
	return p, nil
}

// ParameterBounds describes the operating range presented to the operator.
// Bounds are advisory: nothing in the core enforces them.
type ParameterBounds struct {
	Name ParameterName `json:"name"`
	Unit string        `json:"unit"`
	Min  float64       `json:"min"`
	Max  float64       `json:"max"`
	Step float64       `json:"step"`
}

// Contains reports whether v lies inside the advisory range.
func (b ParameterBounds) Contains(v float64) bool {
	return v >= b.Min && v <= b.Max
}

// DefaultBounds returns the control panel ranges in display order.
func DefaultBounds() []ParameterBounds {
	return []ParameterBounds{
		{Name: ParamTemperature, Unit: "°C", Min: 100, Max: 200, Step: 1},
		{Name: ParamPressure, Unit: "bar", Min: 2.0, Max: 8.0, Step: 0.1},
		{Name: ParamSpeed, Unit: "RPM", Min: 500, Max: 2000, Step: 10},
	}
}
