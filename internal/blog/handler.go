package blog

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"

	"blog-api/internal/auth"
	"blog-api/internal/media"
)

const maxJSONBodyBytes = 12 << 20 // covers a base64 photo payload

type Handler struct {
	repo   *Repository
	photos media.Store
}

func NewHandler(repo *Repository, photos media.Store) *Handler {
	return &Handler{repo: repo, photos: photos}
}

type createRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Photo   string `json:"photo"`
}

type updateRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Photo   string `json:"photo"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	var body createRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	body.Title = strings.TrimSpace(body.Title)
	body.Content = strings.TrimSpace(body.Content)
	if body.Title == "" || body.Content == "" || body.Photo == "" {
		writeError(w, http.StatusBadRequest, "title, content and photo are required")
		return
	}

	photoURL, err := h.photos.SaveDataURL(body.Photo, user.ID)
	if err != nil {
		if errors.Is(err, media.ErrInvalidImage) || errors.Is(err, media.ErrImageTooBig) {
			writeError(w, http.StatusBadRequest, "photo must be a png or jpeg data url within the size limit")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to store photo")
		return
	}

	b, err := h.repo.Create(r.Context(), user.ID, body.Title, body.Content, photoURL)
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to create blog")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]Summary{"blog": b.Summary()})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	blogs, err := h.repo.List(r.Context())
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to list blogs")
		return
	}

	summaries := make([]Summary, 0, len(blogs))
	for _, b := range blogs {
		summaries = append(summaries, b.Summary())
	}

	writeJSON(w, http.StatusOK, map[string][]Summary{"blogs": summaries})
}

func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if uuid.Validate(id) != nil {
		writeError(w, http.StatusBadRequest, "invalid blog id")
		return
	}

	details, err := h.repo.GetDetails(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "blog not found")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to load blog")
		return
	}

	writeJSON(w, http.StatusOK, map[string]Details{"blog": details})
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := r.PathValue("id")
	if uuid.Validate(id) != nil {
		writeError(w, http.StatusBadRequest, "invalid blog id")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	var body updateRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	b, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "blog not found")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to load blog")
		return
	}

	if title := strings.TrimSpace(body.Title); title != "" {
		b.Title = title
	}
	if content := strings.TrimSpace(body.Content); content != "" {
		b.Content = content
	}
	replacedPhoto := ""
	if body.Photo != "" {
		replacedPhoto = b.PhotoPath
		photoURL, err := h.photos.SaveDataURL(body.Photo, user.ID)
		if err != nil {
			if errors.Is(err, media.ErrInvalidImage) || errors.Is(err, media.ErrImageTooBig) {
				writeError(w, http.StatusBadRequest, "photo must be a png or jpeg data url within the size limit")
				return
			}
			sentry.CaptureException(err)
			writeError(w, http.StatusInternalServerError, "failed to store photo")
			return
		}
		b.PhotoPath = photoURL
	}

	if err := h.repo.Update(r.Context(), b); err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "blog not found")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to update blog")
		return
	}

	// The old file goes only once the row points at the new one. A failed
	// update leaves the fresh file unreferenced for the maintenance sweep.
	if replacedPhoto != "" && replacedPhoto != b.PhotoPath {
		if err := h.photos.Remove(replacedPhoto); err != nil {
			sentry.CaptureException(err)
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Blog updated successfully"})
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if uuid.Validate(id) != nil {
		writeError(w, http.StatusBadRequest, "invalid blog id")
		return
	}

	b, err := h.repo.GetByID(r.Context(), id)
	if err != nil && !errors.Is(err, ErrNotFound) {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to load blog")
		return
	}

	if err := h.repo.Delete(r.Context(), id); err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to delete blog")
		return
	}

	if b.PhotoPath != "" {
		if err := h.photos.Remove(b.PhotoPath); err != nil {
			sentry.CaptureException(err)
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Blog deleted successfully"})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
