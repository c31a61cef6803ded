// Package ui renders recorded runs as HTML pages.
package ui

import (
	"bytes"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/me/relay/internal/store"
	"github.com/me/relay/pkg/model"
)

// UI handles the web pages.
type UI struct {
	store  store.Store
	logger *slog.Logger
}

// New creates a new UI handler.
func New(st store.Store, logger *slog.Logger) *UI {
	return &UI{
		store:  st,
		logger: logger.With("component", "ui"),
	}
}

// RegisterRoutes registers all UI routes on the given router.
func (ui *UI) RegisterRoutes(r chi.Router) {
	r.Get("/", ui.HandleRunList)
	r.Get("/runs/{id}", ui.HandleRunDetail)
}

// HandleRunList renders the most recent runs.
func (ui *UI) HandleRunList(w http.ResponseWriter, r *http.Request) {
	opts := model.DefaultListOptions()
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			opts.Limit = n
		}
	}
	opts.Clamp()

	runs, total, err := ui.store.ListRuns(r.Context(), opts)
	if err != nil {
		ui.renderError(w, "Failed to list runs", err)
		return
	}
	ui.render(w, http.StatusOK, "runs", map[string]any{
		"Title": "Runs - relay",
		"Runs":  runs,
		"Total": total,
	})
}

// HandleRunDetail renders one run and its units.
func (ui *UI) HandleRunDetail(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	run, err := ui.store.GetRun(r.Context(), id)
	if err != nil {
		ui.renderError(w, "Failed to load run", err)
		return
	}
	if run == nil {
		ui.render(w, http.StatusNotFound, "error", map[string]any{
			"Title":   "Not Found - relay",
			"Message": "Run " + id + " not found",
		})
		return
	}

	units, err := ui.store.ListUnits(r.Context(), id)
	if err != nil {
		ui.renderError(w, "Failed to load units", err)
		return
	}
	ui.render(w, http.StatusOK, "run", map[string]any{
		"Title": "Run " + run.ID + " - relay",
		"Run":   run,
		"Units": units,
	})
}

func (ui *UI) render(w http.ResponseWriter, status int, name string, data map[string]any) {
	var buf bytes.Buffer
	if err := renderTemplate(&buf, name, data); err != nil {
		ui.logger.Error("template render failed", "template", name, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

func (ui *UI) renderError(w http.ResponseWriter, message string, err error) {
	ui.logger.Error(message, "error", err)
	ui.render(w, http.StatusInternalServerError, "error", map[string]any{
		"Title":   "Error - relay",
		"Message": message,
	})
}
