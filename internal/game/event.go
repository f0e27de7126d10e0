package game

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// EventType discriminates log entries.
type EventType uint8

const (
	EventTypeUnknown EventType = iota
	EventTypePlace
	EventTypeRemove
	EventTypeCollect
	EventTypeRugPull
	EventTypeAirdrop
	EventTypeAchievement
)

// EventVersion is stamped on every entry so a replay tool can tell
// schema generations apart.
const EventVersion uint8 = 1

// Event is the core structure of the city event log
type Event struct {
	Version   uint8           `json:"version"`            // Schema version
	Type      EventType       `json:"type"`               // Event type
	Timestamp int64           `json:"timestamp"`          // Unix nano
	Sequence  uint64          `json:"sequence"`           // Monotonic sequence
	TickNum   uint64          `json:"tickNum"`            // Simulation tick this occurred in
	SourceID  string          `json:"sourceId,omitempty"` // Building instance (for rate limiting)
	Payload   json.RawMessage `json:"payload,omitempty"`  // JSON-encoded payload
}

// String names the type for logs and dashboards.
func (t EventType) String() string {
	switch t {
	case EventTypePlace:
		return "place"
	case EventTypeRemove:
		return "remove"
	case EventTypeCollect:
		return "collect"
	case EventTypeRugPull:
		return "rug_pull"
	case EventTypeAirdrop:
		return "airdrop"
	case EventTypeAchievement:
		return "achievement"
	default:
		return "unknown"
	}
}

// One payload shape per event type.

// PlacePayload contains building placement details
type PlacePayload struct {
	InstanceID string          `json:"instanceId"`
	BuildingID string          `json:"buildingId"`
	GridX      int             `json:"gridX"`
	GridY      int             `json:"gridY"`
	Cost       decimal.Decimal `json:"cost"`
	Treasury   decimal.Decimal `json:"treasury"`
}

// RemovePayload contains building removal details
type RemovePayload struct {
	InstanceID string          `json:"instanceId"`
	BuildingID string          `json:"buildingId"`
	GridX      int             `json:"gridX"`
	GridY      int             `json:"gridY"`
	Refund     decimal.Decimal `json:"refund"`
}

// CollectPayload contains yield collection details
type CollectPayload struct {
	InstanceID string          `json:"instanceId"`
	BuildingID string          `json:"buildingId"`
	Amount     decimal.Decimal `json:"amount"`
	Treasury   decimal.Decimal `json:"treasury"`
}

// RugPullPayload contains details of a market crash hitting one building
type RugPullPayload struct {
	InstanceID string          `json:"instanceId"`
	BuildingID string          `json:"buildingId"`
	GridX      int             `json:"gridX"`
	GridY      int             `json:"gridY"`
	Loss       decimal.Decimal `json:"loss"`
}

// AirdropPayload contains windfall details
type AirdropPayload struct {
	Amount   decimal.Decimal `json:"amount"`
	Treasury decimal.Decimal `json:"treasury"`
	GridX    int             `json:"gridX"`
	GridY    int             `json:"gridY"`
}

// AchievementPayload contains milestone details
type AchievementPayload struct {
	Name      string `json:"name"`
	Buildings int    `json:"buildings"`
}

// EncodePayload marshals a payload, swallowing marshal errors into a
// nil (payloads are plain structs; they do not fail).
func EncodePayload(payload interface{}) json.RawMessage {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	return data
}

// NewEvent stamps the wall-clock time; the sequence is assigned later
// by the log.
func NewEvent(eventType EventType, tickNum uint64, sourceID string, payload interface{}) Event {
	return Event{
		Version:   EventVersion,
		Type:      eventType,
		Timestamp: time.Now().UnixNano(),
		TickNum:   tickNum,
		SourceID:  sourceID,
		Payload:   EncodePayload(payload),
	}
}
