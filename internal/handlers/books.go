package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/lehigh-university-libraries/bookscore/internal/models"
	"github.com/lehigh-university-libraries/bookscore/internal/predict"
)

// HandleBooks lists the master dataset. ?rated=true or ?rated=false filters by
// whether the user has scored the book.
func (h *Handler) HandleBooks(w http.ResponseWriter, r *http.Request) {
	ds, err := h.service.LoadMaster()
	if err != nil {
		h.writeError(w, "Failed to load master dataset: "+err.Error(), http.StatusInternalServerError)
		return
	}

	books := ds.Books
	if raw := r.URL.Query().Get("rated"); raw != "" {
		rated, err := strconv.ParseBool(raw)
		if err != nil {
			h.writeError(w, "Invalid rated filter: "+raw, http.StatusBadRequest)
			return
		}
		if rated {
			books = ds.Rated()
		} else {
			books = ds.Unrated()
		}
	}
	if books == nil {
		books = []models.Book{}
	}

	h.writeJSON(w, books)
}

func (h *Handler) HandleBookDetail(w http.ResponseWriter, r *http.Request) {
	title, err := url.PathUnescape(chi.URLParam(r, "title"))
	if err != nil {
		h.writeError(w, "Invalid title", http.StatusBadRequest)
		return
	}

	ds, err := h.service.LoadMaster()
	if err != nil {
		h.writeError(w, "Failed to load master dataset: "+err.Error(), http.StatusInternalServerError)
		return
	}

	book, ok := ds.Find(title)
	if !ok {
		h.writeError(w, "Book not found", http.StatusNotFound)
		return
	}
	h.writeJSON(w, book)
}

type PredictRequest struct {
	Books []models.Book `json:"books" validate:"required,min=1"`
}

type PredictResponse struct {
	Predictions []predict.Prediction `json:"predictions"`
}

// HandlePredict rates books with a model fitted on the master dataset. The
// books are not added to the master dataset.
func (h *Handler) HandlePredict(w http.ResponseWriter, r *http.Request) {
	var req PredictRequest
	if !h.decode(w, r, &req) {
		return
	}

	predictions, err := h.service.PredictBooks(req.Books)
	if err != nil {
		var dataErr *predict.DataError
		if errors.As(err, &dataErr) {
			h.writeError(w, "Cannot predict: "+dataErr.Error(), http.StatusUnprocessableEntity)
			return
		}
		h.writeError(w, "Prediction failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, PredictResponse{Predictions: predictions})
}
