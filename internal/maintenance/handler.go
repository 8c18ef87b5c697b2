package maintenance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"blog-api/internal/auth"
	"blog-api/internal/observability"
)

// Orphaned photos younger than this survive a sweep. An upload whose blog
// row has not committed yet must not be reaped out from under the request.
const photoGracePeriod = 24 * time.Hour

// PhotoReferences lists the photo URLs the database still points at.
type PhotoReferences interface {
	ListPhotoPaths(ctx context.Context) ([]string, error)
}

// CleanupHandler reclaims refresh-token rows whose bearer tokens expired long
// ago, plus storage files no blog references anymore. Expiry is only ever
// checked at verification time, so rotated-away and abandoned rows stay in
// the table until this endpoint sweeps them.
type CleanupHandler struct {
	repo             *auth.Repository
	photos           PhotoReferences
	photoDir         string
	logger           *observability.Logger
	cronSecret       string
	refreshRetention time.Duration
	batchSize        int
}

func NewCleanupHandler(
	repo *auth.Repository,
	photos PhotoReferences,
	photoDir string,
	logger *observability.Logger,
	cronSecret string,
	refreshRetention time.Duration,
	batchSize int,
) *CleanupHandler {
	if refreshRetention <= 0 {
		refreshRetention = 14 * 24 * time.Hour
	}
	if batchSize <= 0 {
		batchSize = 500
	}
	return &CleanupHandler{
		repo:             repo,
		photos:           photos,
		photoDir:         photoDir,
		logger:           logger,
		cronSecret:       strings.TrimSpace(cronSecret),
		refreshRetention: refreshRetention,
		batchSize:        batchSize,
	}
}

func (h *CleanupHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if h.cronSecret == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}

	header := strings.TrimSpace(r.Header.Get("Authorization"))
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) != h.cronSecret {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	cutoff := time.Now().UTC().Add(-h.refreshRetention)
	deleted, err := h.repo.DeleteStale(r.Context(), cutoff, h.batchSize)
	if err != nil {
		h.logger.Error("auth_cleanup_failed", map[string]any{"error": err.Error()})
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "cleanup failed"})
		return
	}

	orphans, err := h.sweepOrphanPhotos(r.Context())
	if err != nil {
		h.logger.Error("photo_sweep_failed", map[string]any{"error": err.Error()})
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "cleanup failed"})
		return
	}

	h.logger.Info("cleanup_completed", map[string]any{
		"deleted_refresh_tokens": deleted,
		"deleted_photos":         orphans,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"status":                 "ok",
		"deleted_refresh_tokens": deleted,
		"deleted_photos":         orphans,
	})
}

// sweepOrphanPhotos deletes storage files that no blog row references,
// skipping anything newer than the grace period.
func (h *CleanupHandler) sweepOrphanPhotos(ctx context.Context) (int, error) {
	if h.photos == nil || h.photoDir == "" {
		return 0, nil
	}

	paths, err := h.photos.ListPhotoPaths(ctx)
	if err != nil {
		return 0, fmt.Errorf("list photo references: %w", err)
	}

	referenced := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		referenced[path.Base(p)] = struct{}{}
	}

	entries, err := os.ReadDir(h.photoDir)
	if err != nil {
		return 0, fmt.Errorf("read storage dir: %w", err)
	}

	modCutoff := time.Now().Add(-photoGracePeriod)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if _, ok := referenced[entry.Name()]; ok {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(modCutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(h.photoDir, entry.Name())); err != nil {
			return removed, fmt.Errorf("remove orphan photo: %w", err)
		}
		removed++
	}

	return removed, nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
