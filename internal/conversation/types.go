// Package conversation records bridged message traffic per tenant.
package conversation

import "time"

// Direction tells which way a message crossed the bridge.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// Origin is the source tag carried on every record. The values are part
// of the persisted vocabulary shared with the legacy panel and must not
// change.
type Origin string

const (
	OriginInbound   Origin = "entrada"
	OriginManual    Origin = "salida_manual"
	OriginAutomatic Origin = "salida_automatica"
)

// Event is one message to run through the bridge.
type Event struct {
	TenantID    int64
	Phone       string
	Body        string
	TransportID string
	ActorRef    string
	WorkflowRef string
}

// Record is the persisted form of an event, keyed by its generated ref.
type Record struct {
	Ref         string    `json:"ref"`
	TenantID    int64     `json:"tenant_id"`
	Phone       string    `json:"phone"`
	Direction   Direction `json:"direction"`
	Origin      Origin    `json:"origin"`
	Body        string    `json:"body"`
	TransportID string    `json:"transport_id,omitempty"`
	ActorRef    string    `json:"actor_ref,omitempty"`
	WorkflowRef string    `json:"workflow_ref,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
