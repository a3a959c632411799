// Package wire defines the messages exchanged between the operator station and
// the vehicle and their CBOR frame encoding. One frame is one transport message.
package wire

import "fmt"

// MotorKind tags a MotorCommand.
type MotorKind uint8

const (
	MotorThrust MotorKind = iota
	MotorSteer
	MotorTurretAngle
	// MotorEnd stops the motor controller. It is local to the vehicle and
	// never appears on the wire.
	MotorEnd
)

func (k MotorKind) String() string {
	switch k {
	case MotorThrust:
		return "Thrust"
	case MotorSteer:
		return "Steer"
	case MotorTurretAngle:
		return "TurretAngle"
	case MotorEnd:
		return "End"
	default:
		return fmt.Sprintf("MotorKind(%d)", uint8(k))
	}
}

// MotorCommand is a single actuator update.
type MotorCommand struct {
	Kind  MotorKind
	Value float32
}

// Thrust builds a thrust command, value in [-1, 1].
func Thrust(v float32) MotorCommand { return MotorCommand{Kind: MotorThrust, Value: v} }

// Steer builds a steer command, value in [-1, 1].
func Steer(v float32) MotorCommand { return MotorCommand{Kind: MotorSteer, Value: v} }

// TurretAngle builds a turret command.
func TurretAngle(v float32) MotorCommand { return MotorCommand{Kind: MotorTurretAngle, Value: v} }

// End builds the local stop sentinel.
func End() MotorCommand { return MotorCommand{Kind: MotorEnd} }

func (m MotorCommand) String() string {
	if m.Kind == MotorEnd {
		return "End"
	}
	return fmt.Sprintf("%s(%g)", m.Kind, m.Value)
}

// CommandClass identifies the actuator family a Command addresses.
type CommandClass uint8

const (
	ClassMotor CommandClass = iota
)

// Command is the unit sent from operator to vehicle.
type Command struct {
	Class CommandClass
	Motor MotorCommand
}

// NewMotorCommand wraps m in a Command.
func NewMotorCommand(m MotorCommand) Command {
	return Command{Class: ClassMotor, Motor: m}
}

func (c Command) String() string {
	switch c.Class {
	case ClassMotor:
		return "Motor(" + c.Motor.String() + ")"
	default:
		return fmt.Sprintf("Command(class=%d)", uint8(c.Class))
	}
}

// ReportKind tags a Report.
type ReportKind uint8

const (
	ReportStatus ReportKind = iota
)

// StatusReport is the periodic vehicle heartbeat.
type StatusReport struct {
	UptimeMs       uint64
	CommandsRouted uint64
}

// Report is the unit sent from vehicle to operator.
type Report struct {
	Kind   ReportKind
	Status StatusReport
}

// NewStatusReport wraps s in a Report.
func NewStatusReport(s StatusReport) Report {
	return Report{Kind: ReportStatus, Status: s}
}

func (r Report) String() string {
	switch r.Kind {
	case ReportStatus:
		return fmt.Sprintf("Status(uptime_ms=%d, commands_routed=%d)", r.Status.UptimeMs, r.Status.CommandsRouted)
	default:
		return fmt.Sprintf("Report(kind=%d)", uint8(r.Kind))
	}
}
