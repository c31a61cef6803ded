package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/me/relay/pkg/model"
)

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	opts, fieldErrs := parseListOptions(r)
	if len(fieldErrs) > 0 {
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError("invalid query", fieldErrs...))
		return
	}

	runs, total, err := s.store.ListRuns(r.Context(), opts)
	if err != nil {
		respondInternal(w, reqID, err)
		return
	}
	if runs == nil {
		runs = []*model.Run{}
	}

	opts.Clamp()
	respondList(w, reqID, runs, model.PageOf(opts, len(runs), total))
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	run, err := s.store.GetRun(r.Context(), id)
	if err != nil {
		respondInternal(w, reqID, err)
		return
	}
	if run == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("run", id))
		return
	}
	respondOK(w, reqID, run)
}

func (s *Server) handleListUnits(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	run, err := s.store.GetRun(r.Context(), id)
	if err != nil {
		respondInternal(w, reqID, err)
		return
	}
	if run == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("run", id))
		return
	}

	units, err := s.store.ListUnits(r.Context(), id)
	if err != nil {
		respondInternal(w, reqID, err)
		return
	}
	if units == nil {
		units = []*model.UnitRecord{}
	}

	if res := r.URL.Query().Get("result"); res != "" {
		want, err := model.ParseResult(res)
		if err != nil {
			respondError(w, reqID, http.StatusBadRequest,
				model.NewValidationError("invalid query", model.FieldError{Field: "result", Message: err.Error()}))
			return
		}
		filtered := units[:0]
		for _, u := range units {
			if u.Result != nil && *u.Result == want {
				filtered = append(filtered, u)
			}
		}
		units = filtered
	}

	respondList(w, reqID, units, model.PageOf(model.ListOptions{Limit: len(units)}, len(units), len(units)))
}

func (s *Server) handleGetUnit(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")
	name := chi.URLParam(r, "name")

	u, err := s.store.GetUnit(r.Context(), id, name)
	if err != nil {
		respondInternal(w, reqID, err)
		return
	}
	if u == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("unit", name))
		return
	}
	respondOK(w, reqID, u)
}

func parseListOptions(r *http.Request) (model.ListOptions, []model.FieldError) {
	opts := model.DefaultListOptions()
	var errs []model.FieldError
	q := r.URL.Query()
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, model.FieldError{Field: "limit", Message: "must be an integer"})
		}
		opts.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, model.FieldError{Field: "offset", Message: "must be an integer"})
		}
		opts.Offset = n
	}
	return opts, errs
}
