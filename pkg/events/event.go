// Package events defines the notifications the core emits for a watcher
// and the sinks that deliver them.
package events

import (
	"time"
)

// Type defines the kind of event emitted by a core component.
type Type string

const (
	TypeInterestRouted      Type = "interest_routed"       // TypeInterestRouted indicates an interests document was updated or received a suggestion.
	TypePersonalFactWritten Type = "personal_fact_written" // TypePersonalFactWritten indicates facts were appended to a relationship file.
	TypeClaimsVerified      Type = "claims_verified"       // TypeClaimsVerified indicates a reply went through claim verification.
)

// Sources name the component an event comes from.
const (
	SourceRouter   = "knowledge-router"
	SourceVerifier = "claim-verifier"
)

// Event is one notification. Data carries event-specific fields and is
// serialized as-is.
type Event struct {
	Time   time.Time
	Type   Type
	Source string
	Data   map[string]interface{}
}

// NewInterestRoutedEvent creates an event for a routed interest cluster.
func NewInterestRoutedEvent(cluster, action, target string, keywords []string) Event {
	return Event{
		Type:   TypeInterestRouted,
		Source: SourceRouter,
		Data: map[string]interface{}{
			"cluster":  cluster,
			"action":   action,
			"target":   target,
			"keywords": keywords,
		},
	}
}

// NewPersonalFactWrittenEvent creates an event for facts written about subject.
func NewPersonalFactWrittenEvent(subject, target string, facts []string) Event {
	return Event{
		Type:   TypePersonalFactWritten,
		Source: SourceRouter,
		Data: map[string]interface{}{
			"subject": subject,
			"target":  target,
			"count":   len(facts),
		},
	}
}

// NewClaimsVerifiedEvent summarizes a verification pass.
func NewClaimsVerifiedEvent(total, supported, unsupported, contradicted int, modified bool) Event {
	return Event{
		Type:   TypeClaimsVerified,
		Source: SourceVerifier,
		Data: map[string]interface{}{
			"claims":       total,
			"supported":    supported,
			"unsupported":  unsupported,
			"contradicted": contradicted,
			"modified":     modified,
		},
	}
}
