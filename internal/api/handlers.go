// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ManuGH/dialwatch/internal/activity"
	"github.com/ManuGH/dialwatch/internal/discovery"
	xglog "github.com/ManuGH/dialwatch/internal/log"
	"github.com/ManuGH/dialwatch/internal/sink"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const maxBodyBytes = 64 << 10

type appsResponse struct {
	Apps    []string `json:"apps"`
	Running bool     `json:"running"`
}

type sinkView struct {
	ID                      string                    `json:"id"`
	FriendlyName            string                    `json:"friendly_name"`
	ApplicationURL          string                    `json:"application_url"`
	SupportsAppAvailability bool                      `json:"supports_app_availability"`
	Apps                    map[string]sink.AppStatus `json:"apps"`
}

type activityRequest struct {
	RouteID string `json:"route_id"`
	SinkID  string `json:"sink_id"`
	AppName string `json:"app_name"`
}

type scanResponse struct {
	Sinks    []sinkView `json:"sinks"`
	Duration string     `json:"duration"`
}

func (s *Server) handleListApps(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, appsResponse{
		Apps:    s.deps.Engine.RegisteredApps(),
		Running: s.deps.Engine.IsRunning(),
	})
}

func (s *Server) handleRegisterApp(w http.ResponseWriter, r *http.Request) {
	name, err := pathParam(r, "name")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := s.deps.Engine.RegisterApp(name); err != nil {
		if errors.Is(err, discovery.ErrEmptyAppName) {
			writeBadRequest(w, err)
			return
		}
		writeError(w, http.StatusInternalServerError, "register_failed", err)
		return
	}
	if !s.persist(w, r) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUnregisterApp(w http.ResponseWriter, r *http.Request) {
	name, err := pathParam(r, "name")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	s.deps.Engine.UnregisterApp(name)
	if !s.persist(w, r) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// persist snapshots the app set after a change. The in-memory change stands
// even when the store write fails.
func (s *Server) persist(w http.ResponseWriter, r *http.Request) bool {
	if err := s.deps.Engine.Snapshot(r.Context()); err != nil {
		l := xglog.WithContext(r.Context(), s.logger)
		l.Error().
			Err(err).
			Str(xglog.FieldEvent, "api.snapshot_failed").
			Msg("registered apps not persisted")
		writeError(w, http.StatusInternalServerError, "persist_failed", err)
		return false
	}
	return true
}

func (s *Server) handleListSinks(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.sinkViews())
}

func (s *Server) sinkViews() []sinkView {
	sinks := s.deps.Sinks.DialSinks()
	out := make([]sinkView, 0, len(sinks))
	for _, ds := range sinks {
		out = append(out, sinkView{
			ID:                      ds.ID(),
			FriendlyName:            ds.FriendlyName(),
			ApplicationURL:          ds.ApplicationURL(),
			SupportsAppAvailability: ds.SupportsAppAvailability(),
			Apps:                    ds.AppStatuses(),
		})
	}
	return out
}

func (s *Server) handleListActivities(w http.ResponseWriter, _ *http.Request) {
	acts := s.deps.Activities.Activities()
	if acts == nil {
		acts = []activity.Activity{}
	}
	writeJSON(w, http.StatusOK, acts)
}

func (s *Server) handleAddActivity(w http.ResponseWriter, r *http.Request) {
	var req activityRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeBadRequest(w, err)
		return
	}
	if req.RouteID == "" {
		req.RouteID = uuid.NewString()
	}

	a := activity.Activity{
		Route:     activity.Route{ID: req.RouteID, SinkID: req.SinkID},
		AppName:   req.AppName,
		CreatedAt: time.Now().UTC(),
	}
	switch err := s.deps.Activities.Add(a); {
	case errors.Is(err, activity.ErrInvalid):
		writeBadRequest(w, err)
		return
	case errors.Is(err, activity.ErrDuplicateRoute):
		writeError(w, http.StatusConflict, "duplicate_route", err)
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "add_failed", err)
		return
	}

	l := xglog.WithContext(r.Context(), s.logger)
	l.Info().
		Str(xglog.FieldEvent, "api.activity_added").
		Str(xglog.FieldRouteID, a.Route.ID).
		Str(xglog.FieldSinkID, a.Route.SinkID).
		Str(xglog.FieldAppName, a.AppName).
		Msg("activity tracked")
	writeJSON(w, http.StatusCreated, a)
}

func (s *Server) handleRemoveActivity(w http.ResponseWriter, r *http.Request) {
	routeID, err := pathParam(r, "routeID")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	if !s.deps.Activities.RemoveByRouteID(routeID) {
		writeNotFound(w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleScan runs one cycle inline. A pending periodic rescan keeps its
// schedule.
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	s.deps.Engine.Scan(r.Context())
	writeJSON(w, http.StatusOK, scanResponse{
		Sinks:    s.sinkViews(),
		Duration: time.Since(start).String(),
	})
}

func pathParam(r *http.Request, key string) (string, error) {
	v, err := url.PathUnescape(chi.URLParam(r, key))
	if err != nil {
		return "", err
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return "", errors.New(key + " is required")
	}
	return v, nil
}
