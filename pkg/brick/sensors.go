package brick

import "fmt"

// SensorName identifies a sensor port on the brick.
type SensorName string

// Sensor ports of the brick.
const (
	S1 SensorName = "S1" // lift rotation
	S2 SensorName = "S2" // crane front touch switch
	S3 SensorName = "S3" // crane rear touch switch
)

// RotationStep is the number of rotation units the platform reports per
// mechanical increment.
const RotationStep = 16

// AllSensors returns all sensor ports in port order.
func AllSensors() []SensorName {
	return []SensorName{S1, S2, S3}
}

// Index returns the zero based port number, or -1 for unknown ports.
func (n SensorName) Index() int {
	switch n {
	case S1:
		return 0
	case S2:
		return 1
	case S3:
		return 2
	}
	return -1
}

// SensorType selects the transducer attached to a port.
type SensorType int

const (
	SensorRaw SensorType = iota
	SensorTouch
	SensorRotation
)

func (t SensorType) String() string {
	switch t {
	case SensorRaw:
		return "raw"
	case SensorTouch:
		return "touch"
	case SensorRotation:
		return "rotation"
	}
	return fmt.Sprintf("SensorType(%d)", int(t))
}

// SensorMode selects how a port converts its raw reading.
type SensorMode int

const (
	ModeRaw SensorMode = iota
	ModeBoolean
	ModeAngle
)

func (m SensorMode) String() string {
	switch m {
	case ModeRaw:
		return "raw"
	case ModeBoolean:
		return "boolean"
	case ModeAngle:
		return "angle"
	}
	return fmt.Sprintf("SensorMode(%d)", int(m))
}

// Sensor is a single sensor port.
type Sensor interface {
	SetTypeAndMode(typ SensorType, mode SensorMode)
	// Activate powers the port so readings reflect the transducer.
	Activate()
	// Passivate powers the port down.
	Passivate()
	ReadBoolean() bool
	ReadValue() int
}

// Quantize rounds a raw rotation count toward zero to a multiple of RotationStep.
func Quantize(raw int) int {
	return raw / RotationStep * RotationStep
}
