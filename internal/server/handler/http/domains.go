package http

import (
	"encoding/json"
	"net/http"
)

// ListDomains handles GET /api/domains.
func (h *CredentialsHandler) ListDomains(w http.ResponseWriter, _ *http.Request) {
	out := []DomainView{}
	for _, d := range h.Model.Domains() {
		out = append(out, newDomainView(d))
	}
	writeJSON(w, http.StatusOK, out)
}

// AddDomainRequest is the body of POST /api/domains. Removable defaults to true.
type AddDomainRequest struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Removable *bool  `json:"removable"`
}

// AddDomain handles POST /api/domains.
func (h *CredentialsHandler) AddDomain(w http.ResponseWriter, r *http.Request) {
	var req AddDomainRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	removable := true
	if req.Removable != nil {
		removable = *req.Removable
	}

	d := h.Model.AddDomain(req.ID, req.Name, removable)
	if d == nil {
		http.Error(w, "domain already exists", http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusCreated, newDomainView(d))
}

// GetDomain handles GET /api/domains/{id}.
func (h *CredentialsHandler) GetDomain(w http.ResponseWriter, r *http.Request) {
	d := h.domainFromPath(w, r)
	if d == nil {
		return
	}
	writeJSON(w, http.StatusOK, newDomainView(d))
}

// RemoveDomain handles DELETE /api/domains/{id}. System domains are kept.
func (h *CredentialsHandler) RemoveDomain(w http.ResponseWriter, r *http.Request) {
	d := h.domainFromPath(w, r)
	if d == nil {
		return
	}
	if !d.Removable() {
		http.Error(w, "domain is not removable", http.StatusConflict)
		return
	}
	h.Model.RemoveDomain(d)
	w.WriteHeader(http.StatusNoContent)
}
