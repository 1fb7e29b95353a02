package clicks

import (
	"time"

	"github.com/google/uuid"
)

// TopicClickRecorded is the broker topic carrying click events.
const TopicClickRecorded = "clicks.recorded"

// Outcome is the terminal result of a resolution attempt.
type Outcome string

const (
	OutcomeFound    Outcome = "found"
	OutcomeNotFound Outcome = "not_found"
	OutcomeExpired  Outcome = "expired"
)

// RequestMeta carries the request attributes a click event is built from.
type RequestMeta struct {
	ClientAddress string
	UserAgent     string
	Referrer      string
}

// Event is one resolution attempt, published once and never mutated.
// Delivery is at-most-once; the analytics path tolerates loss.
type Event struct {
	EventID       string    `json:"eventId"`
	AliasID       uuid.UUID `json:"aliasId"`
	Outcome       Outcome   `json:"outcome"`
	Timestamp     time.Time `json:"timestamp"`
	ClientAddress string    `json:"clientAddress"`
	UserAgent     string    `json:"userAgent"`
	Referrer      string    `json:"referrer,omitempty"`
	Country       string    `json:"country,omitempty"`
	City          string    `json:"city,omitempty"`
	DeviceType    string    `json:"deviceType"`
	Browser       string    `json:"browser"`
	OS            string    `json:"os"`
}
