package playlist

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
)

// maxPlaylistBody bounds POST bodies.
const maxPlaylistBody = 1 << 20

// Handler routes /api/playlist requests by method. GET returns the
// playlist stored in file as JSON; POST validates the body and writes
// it to file. If onLoad is not nil a stored playlist is also handed to
// it; leave it nil when a watcher on file does that already.
func Handler(file string, onLoad func(*Playlist)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			getPlaylistHandler(w, r, file)
		case http.MethodPost:
			setPlaylistHandler(w, r, file, onLoad)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

func getPlaylistHandler(w http.ResponseWriter, r *http.Request, file string) {
	slog.Info("Handling GET /api/playlist request")
	// Read on every request, the file may have been edited by hand
	p, err := LoadFile(file)
	if err != nil {
		slog.Error("Failed to read playlist file for API", "error", err)
		http.Error(w, "Failed to read playlist", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(p); err != nil {
		slog.Error("Failed to encode playlist to JSON", "error", err)
		http.Error(w, "Failed to serialize playlist", http.StatusInternalServerError)
	}
}

func setPlaylistHandler(w http.ResponseWriter, r *http.Request, file string, onLoad func(*Playlist)) {
	slog.Info("Handling POST /api/playlist request")
	defer r.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxPlaylistBody))
	if err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	p, err := Load(raw)
	if err != nil {
		slog.Error("Validation failed for new playlist", "error", err)
		http.Error(w, fmt.Sprintf("Invalid playlist: %v", err), http.StatusBadRequest)
		return
	}

	data, err := encodeFor(file, p)
	if err != nil {
		slog.Error("Failed to encode playlist", "error", err)
		http.Error(w, "Failed to prepare playlist for saving", http.StatusInternalServerError)
		return
	}
	if err := os.WriteFile(file, data, 0o644); err != nil {
		slog.Error("Failed to write playlist file", "error", err)
		http.Error(w, "Failed to save playlist", http.StatusInternalServerError)
		return
	}

	slog.Info("Successfully updated playlist file", "steps", p.Len())
	if onLoad != nil {
		onLoad(p)
	}
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "Playlist updated successfully.")
}
