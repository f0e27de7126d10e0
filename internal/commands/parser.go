package commands

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	// MaxMessageBytes bounds inbound client payloads
	MaxMessageBytes = 512

	// MaxPanDelta caps how far a single pan message may move the camera
	MaxPanDelta = 4096
)

// ClientMessage is the raw JSON browser clients send over the WebSocket
type ClientMessage struct {
	Action     string  `json:"action"`
	BuildingID string  `json:"buildingId,omitempty"`
	ID         string  `json:"id,omitempty"`
	X          int     `json:"x,omitempty"`
	Y          int     `json:"y,omitempty"`
	DX         float64 `json:"dx,omitempty"`
	DY         float64 `json:"dy,omitempty"`
	Factor     float64 `json:"factor,omitempty"`
}

// Parse validates a raw client payload and returns a typed command.
// Payload fields the action does not use are ignored.
func Parse(raw []byte, clientID string) (Command, error) {
	if len(raw) > MaxMessageBytes {
		return Command{}, fmt.Errorf("message too large (%d bytes)", len(raw))
	}

	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return Command{}, fmt.Errorf("malformed message: %w", err)
	}

	action := strings.ToLower(strings.TrimSpace(msg.Action))
	cmd := Command{
		Type:       GetActionType(action),
		Action:     action,
		ClientID:   clientID,
		ReceivedAt: time.Now(),
	}

	switch cmd.Type {
	case CmdPlace:
		if msg.BuildingID == "" {
			return Command{}, fmt.Errorf("place: missing buildingId")
		}
		if msg.X < 0 || msg.Y < 0 {
			return Command{}, fmt.Errorf("place: invalid coordinates (%d,%d)", msg.X, msg.Y)
		}
		cmd.BuildingID = msg.BuildingID
		cmd.X = msg.X
		cmd.Y = msg.Y

	case CmdRemove, CmdCollect:
		if msg.ID == "" {
			return Command{}, fmt.Errorf("%s: missing id", action)
		}
		cmd.TargetID = msg.ID

	case CmdCollectAll:
		// No payload

	case CmdPan:
		cmd.DX = clampDelta(msg.DX)
		cmd.DY = clampDelta(msg.DY)

	case CmdZoom:
		if msg.Factor <= 0 {
			return Command{}, fmt.Errorf("zoom: invalid factor %g", msg.Factor)
		}
		cmd.Factor = msg.Factor

	default:
		return Command{}, fmt.Errorf("unknown action %q", msg.Action)
	}

	return cmd, nil
}

// clampDelta keeps one message from flinging the camera off-world
func clampDelta(d float64) float64 {
	if d > MaxPanDelta {
		return MaxPanDelta
	}
	if d < -MaxPanDelta {
		return -MaxPanDelta
	}
	return d
}
