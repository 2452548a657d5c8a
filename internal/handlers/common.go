// Package handlers exposes the workflow over HTTP.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/lehigh-university-libraries/bookscore/internal/storage"
	"github.com/lehigh-university-libraries/bookscore/internal/workflow"
)

const maxRequestBodySize = 1 << 20

type Handler struct {
	runStore *storage.RunStore
	service  *workflow.Service
	validate *validator.Validate
}

func New(service *workflow.Service) *Handler {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	return &Handler{
		runStore: storage.New(),
		service:  service,
		validate: v,
	}
}

// Routes returns the API router.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("OK"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/books", h.HandleBooks)
		r.Get("/books/{title}", h.HandleBookDetail)
		r.Post("/predict", h.HandlePredict)

		r.Post("/runs", h.HandleCreateRun)
		r.Get("/runs", h.HandleRuns)
		r.Get("/runs/{id}", h.HandleRunDetail)
	})

	return r
}

// Response helpers
func (h *Handler) writeJSON(w http.ResponseWriter, data interface{}) {
	h.writeJSONStatus(w, http.StatusOK, data)
}

func (h *Handler) writeJSONStatus(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Unable to encode JSON response", "err", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message string, code int) {
	if code >= http.StatusInternalServerError {
		slog.Error(message)
	} else {
		slog.Warn(message)
	}
	http.Error(w, message, code)
}

// decode reads a JSON request body into dst and validates it.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return false
	}

	if err := h.validate.Struct(dst); err != nil {
		h.writeError(w, validationMessage(err), http.StatusBadRequest)
		return false
	}
	return true
}

func validationMessage(err error) string {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return "Invalid request: " + err.Error()
	}

	problems := make([]string, 0, len(validationErrs))
	for _, e := range validationErrs {
		var msg string
		switch e.Tag() {
		case "required":
			msg = "is required"
		case "url":
			msg = "must be a valid URL"
		case "min":
			msg = "must have at least " + e.Param() + " item(s)"
		default:
			msg = "is invalid"
		}
		field := e.Namespace()
		if i := strings.Index(field, "."); i >= 0 {
			field = field[i+1:]
		}
		problems = append(problems, fmt.Sprintf("%s %s", field, msg))
	}
	sort.Strings(problems)

	return "Invalid request: " + strings.Join(problems, "; ")
}
