// Package http provides the HTTP handlers of the credentials API.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/atinyakov/CredKeeper/internal/domain"
	"github.com/atinyakov/CredKeeper/internal/models"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// CredentialsModel defines the credentials operations required by the
// handlers.
type CredentialsModel interface {
	Domains() []*domain.Domain
	Domain(id string) *domain.Domain
	AddDomain(id, name string, removable bool) *domain.Domain
	RemoveDomain(d *domain.Domain) bool

	CredentialType(id string) (models.CredentialType, bool)
	CredentialTypes() []models.CredentialType
	DefaultCredentialType() (models.CredentialType, bool)

	AddCredentials(d *domain.Domain, credType models.CredentialType, user string, props map[string]string)
	AddPromptedCredentials(d *domain.Domain, credType models.CredentialType, user string)
	RemoveCredentials(d *domain.Domain, credType models.CredentialType, user string)
	Credentials(ctx context.Context, d *domain.Domain, credType models.CredentialType, user string) (models.Outcome, error)
	SetDefaultCredential(d *domain.Domain, credType models.CredentialType, user string) error

	Save(ctx context.Context) bool
}

// CredentialsHandler serves the /api endpoints.
type CredentialsHandler struct {
	// Model performs the underlying credential operations.
	Model CredentialsModel
	Log   *zap.Logger
}

// TypeView is the JSON form of a credential type.
type TypeView struct {
	ID      string `json:"id"`
	Default bool   `json:"default"`
}

// EntryView is one credential type held by a user.
type EntryView struct {
	Type     string `json:"type"`
	Prompted bool   `json:"prompted"`
}

// UserView lists the credential types of one user.
type UserView struct {
	User    string      `json:"user"`
	Entries []EntryView `json:"entries"`
}

// DomainView is the JSON form of a domain.
type DomainView struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Removable   bool       `json:"removable"`
	DefaultUser string     `json:"default_user,omitempty"`
	DefaultType string     `json:"default_type,omitempty"`
	Users       []UserView `json:"users"`
}

// CredentialView is the JSON form of resolved credentials.
type CredentialView struct {
	User       string            `json:"user"`
	Type       string            `json:"type"`
	Properties map[string]string `json:"properties"`
}

func newDomainView(d *domain.Domain) DomainView {
	v := DomainView{
		ID:          d.ID(),
		Name:        d.Name(),
		Removable:   d.Removable(),
		DefaultUser: d.DefaultUsername(),
		Users:       []UserView{},
	}
	if t := d.DefaultType(); t != nil {
		v.DefaultType = t.ID()
	}
	for _, user := range d.Usernames() {
		uv := UserView{User: user}
		for _, t := range d.CredentialTypes(user) {
			uv.Entries = append(uv.Entries, EntryView{Type: t.ID(), Prompted: d.RequiresPrompt(user, t)})
		}
		v.Users = append(v.Users, uv)
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// domainFromPath resolves the {id} URL parameter, answering 404 itself when
// there is no such domain.
func (h *CredentialsHandler) domainFromPath(w http.ResponseWriter, r *http.Request) *domain.Domain {
	d := h.Model.Domain(chi.URLParam(r, "id"))
	if d == nil {
		http.Error(w, "domain not found", http.StatusNotFound)
	}
	return d
}

// credentialType resolves a type id; "" means the default type.
func (h *CredentialsHandler) credentialType(id string) (models.CredentialType, error) {
	if id == "" {
		t, ok := h.Model.DefaultCredentialType()
		if !ok {
			return nil, models.ErrUnknownType
		}
		return t, nil
	}
	t, ok := h.Model.CredentialType(id)
	if !ok {
		return nil, models.ErrUnknownType
	}
	return t, nil
}

// userFromPath returns the unescaped {user} URL parameter.
func userFromPath(r *http.Request) string {
	raw := chi.URLParam(r, "user")
	if user, err := url.PathUnescape(raw); err == nil {
		return user
	}
	return raw
}

// Types handles GET /api/types.
func (h *CredentialsHandler) Types(w http.ResponseWriter, _ *http.Request) {
	def, _ := h.Model.DefaultCredentialType()
	out := []TypeView{}
	for _, t := range h.Model.CredentialTypes() {
		out = append(out, TypeView{ID: t.ID(), Default: def != nil && def.ID() == t.ID()})
	}
	writeJSON(w, http.StatusOK, out)
}

// AddCredentialsRequest is the body of POST /api/domains/{id}/credentials.
type AddCredentialsRequest struct {
	User       string            `json:"user"`
	Type       string            `json:"type"`
	Properties map[string]string `json:"properties"`
	Prompted   bool              `json:"prompted"`
}

// AddCredentials handles POST /api/domains/{id}/credentials.
func (h *CredentialsHandler) AddCredentials(w http.ResponseWriter, r *http.Request) {
	d := h.domainFromPath(w, r)
	if d == nil {
		return
	}

	var req AddCredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.User == "" {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	t, err := h.credentialType(req.Type)
	if err != nil {
		http.Error(w, "unknown credential type", http.StatusBadRequest)
		return
	}

	if req.Prompted {
		h.Model.AddPromptedCredentials(d, t, req.User)
	} else {
		h.Model.AddCredentials(d, t, req.User, req.Properties)
	}
	writeJSON(w, http.StatusCreated, newDomainView(d))
}

// GetCredentials handles GET /api/domains/{id}/credentials/{user}?type=.
// Credentials that would need a prompt are reported as not found.
func (h *CredentialsHandler) GetCredentials(w http.ResponseWriter, r *http.Request) {
	d := h.domainFromPath(w, r)
	if d == nil {
		return
	}
	t, err := h.credentialType(r.URL.Query().Get("type"))
	if err != nil {
		http.Error(w, "unknown credential type", http.StatusBadRequest)
		return
	}

	out, err := h.Model.Credentials(r.Context(), d, t, userFromPath(r))
	switch {
	case errors.Is(err, models.ErrNoPassword):
		http.Error(w, "secure storage is locked", http.StatusLocked)
		return
	case err != nil:
		h.Log.Error("resolve credentials", zap.String("domain", d.ID()), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	case !out.Available():
		http.Error(w, "credentials unavailable", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, CredentialView{User: out.User, Type: t.ID(), Properties: out.Result.ToMap()})
}

// RemoveCredentials handles DELETE /api/domains/{id}/credentials/{user}?type=.
func (h *CredentialsHandler) RemoveCredentials(w http.ResponseWriter, r *http.Request) {
	d := h.domainFromPath(w, r)
	if d == nil {
		return
	}
	t, err := h.credentialType(r.URL.Query().Get("type"))
	if err != nil {
		http.Error(w, "unknown credential type", http.StatusBadRequest)
		return
	}
	user := userFromPath(r)
	if !d.UserTypeExists(user, t) {
		http.Error(w, "credentials not found", http.StatusNotFound)
		return
	}

	h.Model.RemoveCredentials(d, t, user)
	w.WriteHeader(http.StatusNoContent)
}

// SetDefaultRequest is the body of PUT /api/domains/{id}/default.
type SetDefaultRequest struct {
	User string `json:"user"`
	Type string `json:"type"`
}

// SetDefault handles PUT /api/domains/{id}/default.
func (h *CredentialsHandler) SetDefault(w http.ResponseWriter, r *http.Request) {
	d := h.domainFromPath(w, r)
	if d == nil {
		return
	}

	var req SetDefaultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	t, err := h.credentialType(req.Type)
	if err != nil {
		http.Error(w, "unknown credential type", http.StatusBadRequest)
		return
	}

	if err := h.Model.SetDefaultCredential(d, t, req.User); err != nil {
		if errors.Is(err, models.ErrInvalidArgument) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.Log.Error("set default credential", zap.String("domain", d.ID()), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, newDomainView(d))
}

// Save handles POST /api/save.
func (h *CredentialsHandler) Save(w http.ResponseWriter, r *http.Request) {
	if !h.Model.Save(r.Context()) {
		http.Error(w, "secure storage is locked", http.StatusLocked)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"saved": true})
}
