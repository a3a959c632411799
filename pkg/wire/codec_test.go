package wire

import (
	"bytes"
	"encoding/hex"
	"errors"
	"math"
	"testing"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("bad hex %q: %v", s, err)
	}
	return b
}

func TestEncodeCommandGolden(t *testing.T) {
	tests := []struct {
		name string
		cmd  Command
		want string
	}{
		{"thrust half", NewMotorCommand(Thrust(0.5)), "82008200f93800"},
		{"thrust zero", NewMotorCommand(Thrust(0)), "82008200f90000"},
		{"steer full left", NewMotorCommand(Steer(-1)), "82008201f9bc00"},
		{"turret single precision", NewMotorCommand(TurretAngle(0.1)), "82008202fa3dcccccd"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EncodeCommand(tt.cmd)
			if err != nil {
				t.Fatalf("EncodeCommand(%v) failed: %v", tt.cmd, err)
			}
			if hex.EncodeToString(got) != tt.want {
				t.Errorf("EncodeCommand(%v) = %x, want %s", tt.cmd, got, tt.want)
			}

			// Deterministic: a second encoding is byte-identical.
			again, _ := EncodeCommand(tt.cmd)
			if !bytes.Equal(got, again) {
				t.Errorf("EncodeCommand(%v) not deterministic: %x vs %x", tt.cmd, got, again)
			}
		})
	}
}

func TestCommandRoundTrip(t *testing.T) {
	cmds := []MotorCommand{
		Thrust(1), Thrust(-1), Thrust(0.25),
		Steer(0), Steer(0.75), Steer(-0.333),
		TurretAngle(-90), TurretAngle(3.5e6),
	}
	for _, m := range cmds {
		data, err := EncodeCommand(NewMotorCommand(m))
		if err != nil {
			t.Fatalf("EncodeCommand(%v) failed: %v", m, err)
		}
		got, err := DecodeCommand(data)
		if err != nil {
			t.Fatalf("DecodeCommand(%x) failed: %v", data, err)
		}
		if got != NewMotorCommand(m) {
			t.Errorf("round trip of %v = %v", m, got)
		}
	}
}

func TestEncodeCommandRejects(t *testing.T) {
	tests := []struct {
		name string
		cmd  Command
	}{
		{"end sentinel", NewMotorCommand(End())},
		{"thrust above range", NewMotorCommand(Thrust(1.01))},
		{"steer below range", NewMotorCommand(Steer(-2))},
		{"thrust NaN", NewMotorCommand(Thrust(float32(math.NaN())))},
		{"turret infinite", NewMotorCommand(TurretAngle(float32(math.Inf(1))))},
		{"unknown kind", NewMotorCommand(MotorCommand{Kind: 42})},
		{"unknown class", Command{Class: 7, Motor: Thrust(0)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := EncodeCommand(tt.cmd)
			if !errors.Is(err, ErrSerialization) {
				t.Fatalf("EncodeCommand(%v) error = %v, want ErrSerialization", tt.cmd, err)
			}
			var serr *SerializationError
			if !errors.As(err, &serr) {
				t.Errorf("Expected *SerializationError, got %T", err)
			}
		})
	}
}

func TestDecodeCommandRejects(t *testing.T) {
	tests := []struct {
		name  string
		frame string
	}{
		{"empty", ""},
		{"truncated", "82008200f938"},
		{"trailing byte", "82008200f9380000"},
		{"end on the wire", "82008203f90000"},
		{"unknown class", "82018200f93800"},
		{"thrust out of range", "82008200f94000"},
		{"null body", "8200f6"},
		{"scalar body", "820001"},
		{"body arity", "83008200f9380000"},
		{"motor arity", "82008300f9380000"},
		{"text string", "626869"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeCommand(mustHex(t, tt.frame))
			if !errors.Is(err, ErrDeserialization) {
				t.Errorf("DecodeCommand(%s) error = %v, want ErrDeserialization", tt.frame, err)
			}
		})
	}
}

func TestReportGoldenAndRoundTrip(t *testing.T) {
	r := NewStatusReport(StatusReport{UptimeMs: 1500, CommandsRouted: 3})

	data, err := EncodeReport(r)
	if err != nil {
		t.Fatalf("EncodeReport failed: %v", err)
	}
	if got := hex.EncodeToString(data); got != "8200821905dc03" {
		t.Errorf("EncodeReport = %s, want 8200821905dc03", got)
	}

	back, err := DecodeReport(data)
	if err != nil {
		t.Fatalf("DecodeReport failed: %v", err)
	}
	if back != r {
		t.Errorf("round trip = %v, want %v", back, r)
	}
}

func TestDecodeReportRejects(t *testing.T) {
	for _, frame := range []string{"", "82058200", "82008219", "8200f6", "8200821905dc0300"} {
		if _, err := DecodeReport(mustHex(t, frame)); !errors.Is(err, ErrDeserialization) {
			t.Errorf("DecodeReport(%s) error = %v, want ErrDeserialization", frame, err)
		}
	}

	if _, err := EncodeReport(Report{Kind: 9}); !errors.Is(err, ErrSerialization) {
		t.Errorf("EncodeReport(unknown) error = %v, want ErrSerialization", err)
	}
}
