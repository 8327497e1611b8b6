// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package dial

import (
	"fmt"
	"html"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// MockApp describes one application served by MockServer.
type MockApp struct {
	State     string // raw <state> text, e.g. "running" or "installable=http://..."
	AllowStop bool
	Extra     map[string]string // rendered inside <additionalData>
}

// MockServer is a configurable DIAL REST endpoint for tests.
type MockServer struct {
	*httptest.Server
	mu       sync.RWMutex
	apps     map[string]MockApp
	status   map[string]int // forced HTTP status per app
	requests map[string]int
}

// NewMockServer starts a DIAL mock. ApplicationURL returns the base to hand
// to New.
func NewMockServer() *MockServer {
	m := &MockServer{
		apps:     make(map[string]MockApp),
		status:   make(map[string]int),
		requests: make(map[string]int),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/apps/", m.handleApp)
	m.Server = httptest.NewServer(mux)
	return m
}

// ApplicationURL is the DIAL Application-URL of the mock.
func (m *MockServer) ApplicationURL() string {
	return m.URL + "/apps/"
}

// SetApp installs or replaces an application.
func (m *MockServer) SetApp(name string, app MockApp) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.apps[name] = app
}

// SetStatus forces an HTTP status for the app; 0 clears it.
func (m *MockServer) SetStatus(name string, code int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if code == 0 {
		delete(m.status, name)
		return
	}
	m.status[name] = code
}

// Requests returns how often the app resource was fetched.
func (m *MockServer) Requests(name string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requests[name]
}

func (m *MockServer) handleApp(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/apps/")

	m.mu.Lock()
	m.requests[name]++
	code, forced := m.status[name]
	app, ok := m.apps[name]
	m.mu.Unlock()

	if forced {
		w.WriteHeader(code)
		return
	}
	if !ok {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	_, _ = fmt.Fprint(w, RenderAppXML(name, app))
}

// RenderAppXML renders a DIAL service document.
func RenderAppXML(name string, app MockApp) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	b.WriteString(`<service xmlns="` + ServiceNamespace + `" dialVer="2.1">`)
	b.WriteString("<name>" + html.EscapeString(name) + "</name>")
	fmt.Fprintf(&b, `<options allowStop="%t"/>`, app.AllowStop)
	b.WriteString("<state>" + html.EscapeString(app.State) + "</state>")
	if len(app.Extra) > 0 {
		b.WriteString("<additionalData>")
		for k, v := range app.Extra {
			fmt.Fprintf(&b, "<%s>%s</%s>", k, html.EscapeString(v), k)
		}
		b.WriteString("</additionalData>")
	}
	b.WriteString("</service>")
	return b.String()
}
