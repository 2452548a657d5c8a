package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/lehigh-university-libraries/bookscore/internal/aggregate"
	"github.com/lehigh-university-libraries/bookscore/internal/models"
	"github.com/lehigh-university-libraries/bookscore/internal/scrape"
)

type RunRequest struct {
	Title  string `json:"title" validate:"required"`
	URL    string `json:"url" validate:"required,url"`
	Author string `json:"author"`
	Genre  string `json:"genre"`
}

// HandleCreateRun scrapes one book, merges it into the master dataset and
// predicts its rating. Failed runs are kept so they show up in the run list.
func (h *Handler) HandleCreateRun(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if !h.decode(w, r, &req) {
		return
	}

	entry := scrape.Entry{Title: req.Title, URL: req.URL, Author: req.Author, Genre: req.Genre}

	run, err := h.service.Run(r.Context(), entry)
	if err != nil {
		slog.Error("Run failed", "title", req.Title, "url", req.URL, "error", err)
		run = &models.Run{
			ID:        uuid.New().String(),
			URL:       req.URL,
			Title:     aggregate.NormalizeTitle(req.Title),
			Author:    req.Author,
			Genre:     req.Genre,
			Error:     err.Error(),
			CreatedAt: time.Now(),
		}
		h.runStore.Set(run)
		h.writeJSONStatus(w, http.StatusBadGateway, run)
		return
	}

	h.runStore.Set(run)
	h.writeJSONStatus(w, http.StatusCreated, run)
}

func (h *Handler) HandleRuns(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, h.runStore.GetAll())
}

func (h *Handler) HandleRunDetail(w http.ResponseWriter, r *http.Request) {
	run, exists := h.runStore.Get(chi.URLParam(r, "id"))
	if !exists {
		h.writeError(w, "Run not found", http.StatusNotFound)
		return
	}
	h.writeJSON(w, run)
}
