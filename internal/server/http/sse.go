package httpserver

import (
	"encoding/json"
	"net/http"

	logpkg "github.com/ChitLaq/ChitLaq-sub005/pkg/log"
)

// handleStreamSSE attaches the connection's user to the stream hub and
// relays matched events as Server-Sent Events until the client goes away.
func (s *Server) handleStreamSSE(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	connID := r.URL.Query().Get("connectionId")
	userID, err := s.resolveConnection(r.Context(), connID)
	if err != nil {
		writeDomainErr(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeErr(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	conn := s.rt.StreamHub().Attach(userID)
	defer conn.Close()
	s.logger.Debug("stream attached", logpkg.Str("user_id", userID), logpkg.Str("connection_id", connID))

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-conn.Events():
			if !ok {
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if _, err := w.Write([]byte("event: " + ev.Type + "\ndata: ")); err != nil {
				return
			}
			if _, err := w.Write(payload); err != nil {
				return
			}
			if _, err := w.Write([]byte("\n\n")); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
