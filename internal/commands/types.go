package commands

import "time"

// Command is a parsed, validated client request ready for the tick drain
type Command struct {
	Type       CommandType
	Action     string // raw action string, for logging
	ClientID   string
	BuildingID string  // catalogue id for place
	TargetID   string  // placed instance id for remove/collect
	X, Y       int     // grid coordinates for place
	DX, DY     float64 // pan deltas in screen pixels
	Factor     float64 // zoom multiplier
	ReceivedAt time.Time
}

// CommandType picks the executor branch a command lands in.
type CommandType int

const (
	CmdPlace CommandType = iota
	CmdRemove
	CmdCollect
	CmdCollectAll
	CmdPan
	CmdZoom
	CmdUnknown
)

// SupportedActions maps client action strings to types
var SupportedActions = map[string]CommandType{
	// Place variants
	"place": CmdPlace,
	"build": CmdPlace,

	// Remove variants
	"remove":   CmdRemove,
	"demolish": CmdRemove,

	// Collect variants
	"collect": CmdCollect,

	// Collect-all variants
	"collect_all": CmdCollectAll,
	"collectall":  CmdCollectAll,

	// Camera variants
	"pan":  CmdPan,
	"zoom": CmdZoom,
}

// GetActionType returns the command type for a lowercased action string
func GetActionType(action string) CommandType {
	if t, ok := SupportedActions[action]; ok {
		return t
	}
	return CmdUnknown
}
