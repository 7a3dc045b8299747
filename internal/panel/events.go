package panel

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"goldenbatch/internal/types"
)

// eventBuffer is the number of outcomes queued per stream before the client
// is considered too slow and disconnected.
const eventBuffer = 32

// HandleEvents streams every outcome publication as an "outcome" server-sent
// event, starting with the current outcome.
func (s *Server) HandleEvents(w http.ResponseWriter, r *http.Request) {
	logger := types.LoggerFromContext(r.Context())
	rc := http.NewResponseController(w)

	updates := make(chan types.Outcome, eventBuffer)
	lagged := make(chan struct{})
	var lagOnce sync.Once

	unsubscribe := s.Simulations.Watch(func(o types.Outcome) {
		select {
		case updates <- o:
		default:
			lagOnce.Do(func() { close(lagged) })
		}
	})
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		logger.Error("event stream unsupported", "error", err.Error())
		return
	}

	interval := s.Heartbeat
	if interval <= 0 {
		interval = defaultHeartbeat
	}
	heartbeat := time.NewTicker(interval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-lagged:
			logger.Warn("event stream client too slow, closing")
			return
		case o := <-updates:
			if err := writeEvent(w, "outcome", newOutcomeView(o)); err != nil {
				logger.Debug("event stream write failed", "error", err.Error())
				return
			}
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

func writeEvent(w http.ResponseWriter, event string, data any) error {
	body, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, body)
	return err
}
