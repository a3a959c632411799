package diagnostic

import (
	"github.com/goliath-teleop/core/domain/session"
	"github.com/goliath-teleop/core/pkg/flatbuffers/goliath/telemetry"
	"github.com/goliath-teleop/core/pkg/log"
	"github.com/goliath-teleop/core/pkg/zeromq"
)

// TelemetryObserver publishes every transition as a SessionState event, and
// a Fault event when a session terminates on an error. Publish failures are
// logged and otherwise ignored.
func TelemetryObserver(pub *zeromq.EventPublisher, logger log.Logger) session.Observer {
	return func(t session.Transition) {
		events := []zeromq.Event{{
			SessionID: t.SessionID,
			Kind:      telemetry.EventKindSessionState,
			Time:      t.At,
			Detail:    t.State.String(),
			Payload:   []byte(t.Remote),
		}}
		if t.Err != nil {
			events = append(events, zeromq.Event{
				SessionID: t.SessionID,
				Kind:      telemetry.EventKindFault,
				Time:      t.At,
				Detail:    t.Err.Error(),
			})
		}
		for _, ev := range events {
			if err := pub.Publish(ev); err != nil {
				logger.Warnf("Telemetry dropped: %v", err)
			}
		}
	}
}
