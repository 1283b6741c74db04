package ws

import (
	"encoding/json"
	"time"
)

// MessageType tags the kind of payload an Envelope carries.
type MessageType string

// The closed set of message types clients can receive.
const (
	TypeMetricsUpdate     MessageType = "metrics_update"
	TypeTopologyUpdate    MessageType = "topology_update"
	TypeAlert             MessageType = "alert"
	TypeCertExpiryWarning MessageType = "cert_expiry_warning"
	TypeAck               MessageType = "ack"
)

// Envelope is the JSON message unit delivered to subscribers. One envelope
// instance is serialized once per broadcast and the same bytes are written to
// every recipient; construct a new envelope rather than mutating one.
//
// Severity is only set for TypeAlert messages.
type Envelope struct {
	Type      MessageType `json:"type"`
	Timestamp string      `json:"timestamp"` // RFC3339
	Severity  string      `json:"severity,omitempty"`
	Data      any         `json:"data"`
}

func newEnvelope(t MessageType, data any) Envelope {
	return Envelope{
		Type:      t,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Data:      data,
	}
}

// MetricsUpdate wraps a metrics snapshot for delivery.
func MetricsUpdate(data any) Envelope {
	return newEnvelope(TypeMetricsUpdate, data)
}

// TopologyUpdate wraps a mesh topology graph for delivery.
func TopologyUpdate(data any) Envelope {
	return newEnvelope(TypeTopologyUpdate, data)
}

// Alert wraps an alert event for delivery. An empty severity defaults to "info".
func Alert(severity string, data any) Envelope {
	if severity == "" {
		severity = "info"
	}
	env := newEnvelope(TypeAlert, data)
	env.Severity = severity
	return env
}

// CertExpiryWarning wraps a certificate expiry notice for delivery.
func CertExpiryWarning(data any) Envelope {
	return newEnvelope(TypeCertExpiryWarning, data)
}

// Ack wraps a synchronous acknowledgement of an inbound client message.
func Ack(data any) Envelope {
	return newEnvelope(TypeAck, data)
}

// encode serializes the envelope to its wire form.
func (e Envelope) encode() ([]byte, error) {
	return json.Marshal(e)
}
