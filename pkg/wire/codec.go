package wire

import (
	"errors"
	"fmt"
	"math"

	"github.com/fxamacker/cbor/v2"
)

// Frames are two-element CBOR arrays [tag, body]. A Command frame carries the
// class as its tag and [kind, value] as its body; a Report frame carries the
// report kind and a kind-specific array body.
type frame struct {
	_    struct{} `cbor:",toarray"`
	Tag  uint8
	Body cbor.RawMessage
}

type motorBody struct {
	_     struct{} `cbor:",toarray"`
	Kind  uint8
	Value float32
}

type statusBody struct {
	_              struct{} `cbor:",toarray"`
	UptimeMs       uint64
	CommandsRouted uint64
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	// Core Deterministic Encoding: equal values always produce equal bytes.
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("wire: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyEnforcedAPF,
		IndefLength: cbor.IndefLengthForbidden,
	}.DecMode()
	if err != nil {
		panic("wire: CBOR decoder initialization failed: " + err.Error())
	}
}

// EncodeCommand frames c. MotorEnd and out-of-range values are rejected.
func EncodeCommand(c Command) ([]byte, error) {
	if c.Class != ClassMotor {
		return nil, &SerializationError{Reason: "unknown command class " + c.String()}
	}
	if err := validateMotor(c.Motor); err != nil {
		return nil, &SerializationError{Reason: err.Error()}
	}

	body, err := encMode.Marshal(motorBody{Kind: uint8(c.Motor.Kind), Value: c.Motor.Value})
	if err != nil {
		return nil, &SerializationError{Reason: "motor body", Err: err}
	}
	data, err := encMode.Marshal(frame{Tag: uint8(c.Class), Body: body})
	if err != nil {
		return nil, &SerializationError{Reason: "command frame", Err: err}
	}
	return data, nil
}

// DecodeCommand parses exactly one Command frame.
func DecodeCommand(data []byte) (Command, error) {
	f, err := decodeFrame(data)
	if err != nil {
		return Command{}, err
	}
	if CommandClass(f.Tag) != ClassMotor {
		return Command{}, &DeserializationError{Reason: "unknown command class"}
	}

	var body motorBody
	if err := decMode.Unmarshal(f.Body, &body); err != nil {
		return Command{}, &DeserializationError{Reason: "motor body", Err: err}
	}
	m := MotorCommand{Kind: MotorKind(body.Kind), Value: body.Value}
	if err := validateMotor(m); err != nil {
		return Command{}, &DeserializationError{Reason: err.Error()}
	}
	return NewMotorCommand(m), nil
}

// EncodeReport frames r.
func EncodeReport(r Report) ([]byte, error) {
	var body []byte
	var err error
	switch r.Kind {
	case ReportStatus:
		body, err = encMode.Marshal(statusBody{UptimeMs: r.Status.UptimeMs, CommandsRouted: r.Status.CommandsRouted})
	default:
		return nil, &SerializationError{Reason: "unknown report kind " + r.String()}
	}
	if err != nil {
		return nil, &SerializationError{Reason: "report body", Err: err}
	}

	data, err := encMode.Marshal(frame{Tag: uint8(r.Kind), Body: body})
	if err != nil {
		return nil, &SerializationError{Reason: "report frame", Err: err}
	}
	return data, nil
}

// DecodeReport parses exactly one Report frame.
func DecodeReport(data []byte) (Report, error) {
	f, err := decodeFrame(data)
	if err != nil {
		return Report{}, err
	}

	switch ReportKind(f.Tag) {
	case ReportStatus:
		var body statusBody
		if err := decMode.Unmarshal(f.Body, &body); err != nil {
			return Report{}, &DeserializationError{Reason: "status body", Err: err}
		}
		return NewStatusReport(StatusReport{UptimeMs: body.UptimeMs, CommandsRouted: body.CommandsRouted}), nil
	default:
		return Report{}, &DeserializationError{Reason: "unknown report kind"}
	}
}

func decodeFrame(data []byte) (frame, error) {
	var f frame
	if len(data) == 0 {
		return f, &DeserializationError{Reason: "empty frame"}
	}
	// Unmarshal rejects trailing bytes after the first data item.
	if err := decMode.Unmarshal(data, &f); err != nil {
		return f, &DeserializationError{Reason: "frame", Err: err}
	}
	// Bodies are always arrays (major type 4); null or scalars would decode
	// into zero-valued structs.
	if len(f.Body) == 0 || f.Body[0]&0xE0 != 0x80 {
		return f, &DeserializationError{Reason: "body is not an array"}
	}
	return f, nil
}

func validateMotor(m MotorCommand) error {
	v := float64(m.Value)
	switch m.Kind {
	case MotorThrust, MotorSteer:
		if math.IsNaN(v) || v < -1 || v > 1 {
			return fmt.Errorf("%s outside [-1, 1]", m)
		}
	case MotorTurretAngle:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s is not finite", m)
		}
	case MotorEnd:
		return errors.New("End is local to the vehicle and has no wire form")
	default:
		return fmt.Errorf("unknown motor kind %s", m.Kind)
	}
	return nil
}
