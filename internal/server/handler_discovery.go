package server

import "net/http"

type endpointInfo struct {
	Path        string   `json:"path"`
	Methods     []string `json:"methods"`
	Description string   `json:"description"`
}

type discoveryResponse struct {
	Name      string         `json:"name"`
	Version   string         `json:"version"`
	Endpoints []endpointInfo `json:"endpoints"`
}

func (s *Server) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	respondOK(w, reqID, discoveryResponse{
		Name:    "relay results API",
		Version: "v1",
		Endpoints: []endpointInfo{
			{"/api/v1/runs", []string{"GET"}, "Recorded runs, newest first. Accepts ?limit= and ?offset="},
			{"/api/v1/runs/{id}", []string{"GET"}, "Single run with result counts"},
			{"/api/v1/runs/{id}/units", []string{"GET"}, "Units of a run with status and result"},
			{"/api/v1/runs/{id}/units/{name}", []string{"GET"}, "Single unit of a run"},
			{"/api/v1/health", []string{"GET"}, "Server health and version"},
			{"/ui/", []string{"GET"}, "HTML pages for browsing runs"},
		},
	})
}
