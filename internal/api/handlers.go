package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"cryptopolis/internal/game"

	"github.com/go-chi/chi/v5"
)

// Request handlers. Every handler reads the lock-free snapshot or
// calls an engine method; none of them hold state of their own.

const (
	// Thumbnail size bounds, anything outside is clamped
	minThumbDim     = 32
	maxThumbDim     = 1280
	defaultThumbW   = 320
	defaultThumbH   = 180
	defaultEventCap = 256
	maxEventCap     = 512
)

func (h *routerHandlers) handleGetState(w http.ResponseWriter, r *http.Request) {
	snap := h.engine.GetSnapshot()

	buildings := make([]map[string]interface{}, 0, len(snap.Buildings))
	for i := range snap.Buildings {
		buildings = append(buildings, snap.Buildings[i].ToJSON())
	}

	writeJSON(w, map[string]interface{}{
		"tick":           snap.TickNumber,
		"gridSize":       snap.GridSize,
		"gridVersion":    snap.GridVersion,
		"treasury":       snap.Treasury,
		"pendingYield":   snap.PendingYield,
		"lifetimeEarned": snap.LifetimeEarned,
		"buildings":      buildings,
		"buildingCount":  snap.BuildingCount,
		"eventHead":      snap.EventHead,
	})
}

func (h *routerHandlers) handleGetStats(w http.ResponseWriter, r *http.Request) {
	snap := h.engine.GetSnapshot()
	stats := map[string]interface{}{
		"tick":          h.engine.GetTickCount(),
		"buildingCount": snap.BuildingCount,
		"treasury":      snap.Treasury,
		"streaming":     h.streamer.IsStreaming(),
		"streamStats":   h.streamer.GetStats(),
		"eventLog":      h.engine.GetEventLog().GetStats(),
	}
	if h.queue != nil {
		stats["commands"] = h.queue.Stats()
	}
	writeJSON(w, stats)
}

func (h *routerHandlers) handleGetCatalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.engine.GetCatalog().All())
}

func (h *routerHandlers) handleGetMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{
		"render": h.streamer.RenderMetrics(),
		"camera": h.streamer.Camera(),
	})
}

func (h *routerHandlers) handleGetSynergy(w http.ResponseWriter, r *http.Request) {
	snap := h.engine.GetSnapshot()

	bonuses := make(map[string]float64, len(snap.Buildings))
	for i := range snap.Buildings {
		b := &snap.Buildings[i]
		bonuses[b.ID] = b.Bonus
	}

	writeJSON(w, map[string]interface{}{
		"connections": snap.Connections,
		"bonuses":     bonuses,
	})
}

func (h *routerHandlers) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	since, _ := strconv.ParseUint(r.URL.Query().Get("since"), 10, 64)

	limit := defaultEventCap
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > maxEventCap {
		limit = maxEventCap
	}

	eventLog := h.engine.GetEventLog()
	events := eventLog.EventsSince(since, limit)
	if events == nil {
		events = []game.Event{}
	}

	writeJSON(w, map[string]interface{}{
		"events": events,
		"head":   eventLog.Head(),
	})
}

func (h *routerHandlers) handlePreview(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	buildingID := q.Get("buildingId")
	if buildingID == "" {
		writeError(w, "buildingId is required", http.StatusBadRequest)
		return
	}
	x, errX := strconv.Atoi(q.Get("x"))
	y, errY := strconv.Atoi(q.Get("y"))
	if errX != nil || errY != nil {
		writeError(w, "x and y are required", http.StatusBadRequest)
		return
	}

	quote, err := h.engine.PreviewPlacement(buildingID, x, y)
	if err != nil {
		writeError(w, err.Error(), statusForError(err))
		return
	}
	writeJSON(w, quote)
}

func (h *routerHandlers) handleThumbnail(w http.ResponseWriter, r *http.Request) {
	width := clampDim(queryInt(r, "w", defaultThumbW))
	height := clampDim(queryInt(r, "h", defaultThumbH))

	snap := h.engine.GetSnapshot()
	if h.thumbs != nil {
		if png := h.thumbs.Get(snap.GridVersion, width, height); png != nil {
			writePNG(w, png)
			return
		}
	}

	png, err := h.streamer.OverviewPNG(width, height)
	if err != nil {
		writeError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	if h.thumbs != nil {
		h.thumbs.Put(snap.GridVersion, width, height, png)
	}
	writePNG(w, png)
}

func (h *routerHandlers) handleFramePNG(w http.ResponseWriter, r *http.Request) {
	png, err := h.streamer.EncodeFrontPNG()
	if err != nil {
		writeError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writePNG(w, png)
}

func (h *routerHandlers) handlePlaceBuilding(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BuildingID string `json:"buildingId"`
		X          int    `json:"x"`
		Y          int    `json:"y"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if req.BuildingID == "" {
		writeError(w, "buildingId is required", http.StatusBadRequest)
		return
	}

	pb, err := h.engine.PlaceBuilding(req.BuildingID, req.X, req.Y)
	if err != nil {
		writeError(w, err.Error(), statusForError(err))
		return
	}
	writeJSON(w, pb)
}

func (h *routerHandlers) handleRemoveBuilding(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	pb, err := h.engine.RemoveBuilding(id)
	if err != nil {
		writeError(w, err.Error(), statusForError(err))
		return
	}
	writeJSON(w, pb)
}

func (h *routerHandlers) handleCollectYield(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	amount, err := h.engine.CollectYield(id)
	if err != nil {
		writeError(w, err.Error(), statusForError(err))
		return
	}
	writeJSON(w, map[string]interface{}{"collected": amount})
}

func (h *routerHandlers) handleCollectAll(w http.ResponseWriter, r *http.Request) {
	total := h.engine.CollectAllYield()
	writeJSON(w, map[string]interface{}{"collected": total})
}

func (h *routerHandlers) handleStreamStart(w http.ResponseWriter, r *http.Request) {
	log.Println("📡 Stream start requested via API")
	if err := h.streamer.Start(); err != nil {
		log.Printf("❌ Stream start failed: %v", err)
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]bool{"success": true})
}

func (h *routerHandlers) handleStreamStop(w http.ResponseWriter, r *http.Request) {
	log.Println("📡 Stream stop requested via API")
	h.streamer.Stop()
	writeJSON(w, map[string]bool{"success": true})
}

func (h *routerHandlers) handleStreamStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.streamer.GetStats())
}

// statusForError maps engine errors to HTTP status codes
func statusForError(err error) int {
	switch {
	case errors.Is(err, game.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, game.ErrTileOccupied):
		return http.StatusConflict
	case errors.Is(err, game.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, game.ErrUnknownBuilding), errors.Is(err, game.ErrOutOfBounds):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Response and query helpers shared by the handlers above.

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func writePNG(w http.ResponseWriter, png []byte) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(png)
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

func clampDim(d int) int {
	if d < minThumbDim {
		return minThumbDim
	}
	if d > maxThumbDim {
		return maxThumbDim
	}
	return d
}
