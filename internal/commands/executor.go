package commands

import (
	"log"

	"cryptopolis/internal/game"
)

// CameraController is the camera surface pan/zoom commands drive.
// The city renderer satisfies it.
type CameraController interface {
	Pan(dx, dy float64)
	ZoomBy(factor float64)
}

// Executor routes drained commands to the engine and camera
type Executor struct {
	engine *game.Engine
	camera CameraController
}

// NewExecutor creates a command executor
func NewExecutor(engine *game.Engine, camera CameraController) *Executor {
	return &Executor{
		engine: engine,
		camera: camera,
	}
}

// Apply handles a single command. The engine logs successful mutations
// itself; the executor only reports refusals and collections.
func (ex *Executor) Apply(cmd Command) {
	switch cmd.Type {
	case CmdPlace:
		ex.handlePlace(cmd)
	case CmdRemove:
		ex.handleRemove(cmd)
	case CmdCollect:
		ex.handleCollect(cmd)
	case CmdCollectAll:
		ex.handleCollectAll(cmd)
	case CmdPan:
		if ex.camera != nil {
			ex.camera.Pan(cmd.DX, cmd.DY)
		}
	case CmdZoom:
		if ex.camera != nil {
			ex.camera.ZoomBy(cmd.Factor)
		}
	default:
		// The parser already rejected unknown actions; nothing to do
	}
}

// handlePlace buys and places a building
func (ex *Executor) handlePlace(cmd Command) {
	_, err := ex.engine.PlaceBuilding(cmd.BuildingID, cmd.X, cmd.Y)
	if err != nil {
		log.Printf("⚠️ %s: place %s at (%d,%d): %v",
			cmd.ClientID, cmd.BuildingID, cmd.X, cmd.Y, err)
	}
}

// handleRemove demolishes a placed building
func (ex *Executor) handleRemove(cmd Command) {
	_, err := ex.engine.RemoveBuilding(cmd.TargetID)
	if err != nil {
		log.Printf("⚠️ %s: remove %s: %v", cmd.ClientID, cmd.TargetID, err)
	}
}

// handleCollect sweeps one building's pending yield
func (ex *Executor) handleCollect(cmd Command) {
	amount, err := ex.engine.CollectYield(cmd.TargetID)
	if err != nil {
		log.Printf("⚠️ %s: collect %s: %v", cmd.ClientID, cmd.TargetID, err)
		return
	}
	if amount.IsPositive() {
		log.Printf("💰 %s collected %s from %s", cmd.ClientID, amount.StringFixed(2), cmd.TargetID)
	}
}

// handleCollectAll sweeps every building
func (ex *Executor) handleCollectAll(cmd Command) {
	total := ex.engine.CollectAllYield()
	if total.IsPositive() {
		log.Printf("💰 %s collected %s from the whole city", cmd.ClientID, total.StringFixed(2))
	}
}
