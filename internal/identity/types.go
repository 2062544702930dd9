package identity

// Kind classifies the resolved actor behind a phone number.
type Kind string

const (
	KindOperator  Kind = "operator"
	KindAnonymous Kind = "anonymous"
)

// Membership is one active tenant membership of an operator. The order of
// memberships is stable across lookups so ordinal tenant selection works.
type Membership struct {
	TenantID   int64  `json:"tenant_id"`
	TenantName string `json:"tenant_name"`
	Role       string `json:"role"`
	IsOwner    bool   `json:"is_owner"`
}

// ActorIdentity is the per-event classification of a phone number. It is
// recomputed for every inbound message and never cached.
type ActorIdentity struct {
	Kind        Kind         `json:"kind"`
	OperatorID  string       `json:"operator_id,omitempty"`
	DisplayName string       `json:"display_name,omitempty"`
	Phone       string       `json:"phone"`
	Memberships []Membership `json:"memberships,omitempty"`
}

// IsOperator reports whether the actor routes through the operator path.
func (a ActorIdentity) IsOperator() bool {
	return a.Kind == KindOperator
}

// TenantIDs returns the membership tenant ids in their stable order.
func (a ActorIdentity) TenantIDs() []int64 {
	out := make([]int64, 0, len(a.Memberships))
	for _, m := range a.Memberships {
		out = append(out, m.TenantID)
	}
	return out
}

// OperatorRecord is the directory's view of a registered operator with the
// active memberships attached.
type OperatorRecord struct {
	ID          string
	Phone       string
	DisplayName string
	Memberships []Membership
}
