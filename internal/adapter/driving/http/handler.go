// Package httphandler is the JSON API driving adapter over the record stores.
package httphandler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ericfisherdev/cookiesync/internal/application"
	"github.com/ericfisherdev/cookiesync/internal/domain/model"
	"github.com/ericfisherdev/cookiesync/internal/domain/port/driven"
)

// maxBodyBytes bounds request bodies, including domain configuration blobs.
const maxBodyBytes = 1 << 20

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	registry *application.Registry
	logger   *slog.Logger
}

// NewHandler creates a Handler over an initialized registry.
func NewHandler(registry *application.Registry, logger *slog.Logger) *Handler {
	return &Handler{
		registry: registry,
		logger:   logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/health", h.Health)

	mux.HandleFunc("GET /api/v1/credentials", h.GetCredentials)
	mux.HandleFunc("PATCH /api/v1/credentials", h.UpdateCredentials)
	mux.HandleFunc("DELETE /api/v1/credentials", h.ResetCredentials)

	mux.HandleFunc("GET /api/v1/settings", h.GetSettings)
	mux.HandleFunc("PATCH /api/v1/settings", h.UpdateSettings)
	mux.HandleFunc("POST /api/v1/settings/storage-key", h.CommitStorageKey)

	mux.HandleFunc("GET /api/v1/domains", h.ListDomains)
	mux.HandleFunc("DELETE /api/v1/domains", h.ResetDomains)
	mux.HandleFunc("GET /api/v1/domains/{domain}", h.GetDomain)
	mux.HandleFunc("PUT /api/v1/domains/{domain}", h.PutDomain)
	mux.HandleFunc("DELETE /api/v1/domains/{domain}", h.DeleteDomain)

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// Health reports that the service is up and the stores are loaded.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:     "ok",
		Time:       time.Now().UTC().Format(time.RFC3339),
		StorageKey: h.registry.Keys.LastKnownKey(),
	})
}

// GetCredentials returns the remote-store credential with the token masked.
func (h *Handler) GetCredentials(w http.ResponseWriter, _ *http.Request) {
	if err := h.registry.CredentialsErr(); err != nil {
		h.writeStoreError(w, "get credentials", err)
		return
	}
	writeJSON(w, http.StatusOK, toCredentialResponse(h.registry.Credentials.Get()))
}

// UpdateCredentials merges the supplied fields into the stored credential.
func (h *Handler) UpdateCredentials(w http.ResponseWriter, r *http.Request) {
	var patch model.CredentialPatch
	if !decodeBody(w, r, &patch) {
		return
	}

	if err := h.registry.Credentials.Update(r.Context(), patch); err != nil {
		h.writeStoreError(w, "update credentials", err)
		return
	}

	writeJSON(w, http.StatusOK, toCredentialResponse(h.registry.Credentials.Get()))
}

// ResetCredentials restores the empty credential.
func (h *Handler) ResetCredentials(w http.ResponseWriter, r *http.Request) {
	if err := h.registry.Credentials.Reset(r.Context()); err != nil {
		h.writeStoreError(w, "reset credentials", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetSettings returns the sync settings and the effective storage key.
func (h *Handler) GetSettings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, toSettingsResponse(h.registry.Settings.Get()))
}

// UpdateSettings merges the supplied settings. A storageKey in the body is a
// commit boundary and goes through the key coordinator, never straight into
// the settings store.
//
// The key is committed first and the encoding second; each is its own commit.
// A failed key transition leaves the encoding untouched, while a failed
// encoding write after a successful key change keeps the new key.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var patch model.SettingsPatch
	if !decodeBody(w, r, &patch) {
		return
	}

	candidate := patch.StorageKey
	patch.StorageKey = nil

	if candidate != nil {
		if _, err := h.registry.Keys.CommitKeyIfChanged(r.Context(), *candidate); err != nil {
			h.writeStoreError(w, "commit storage key", err)
			return
		}
	}

	if patch.ProtobufEncoding != nil {
		if err := h.registry.Settings.Update(r.Context(), patch); err != nil {
			h.writeStoreError(w, "update settings", err)
			return
		}
	}

	writeJSON(w, http.StatusOK, toSettingsResponse(h.registry.Settings.Get()))
}

// CommitStorageKey applies a storage key at a caller-chosen commit boundary.
func (h *Handler) CommitStorageKey(w http.ResponseWriter, r *http.Request) {
	var req CommitKeyRequest
	if !decodeBody(w, r, &req) {
		return
	}

	reset, err := h.registry.Keys.CommitKeyIfChanged(r.Context(), req.StorageKey)
	if err != nil {
		h.writeStoreError(w, "commit storage key", err)
		return
	}

	writeJSON(w, http.StatusOK, CommitKeyResponse{
		StorageKey:       h.registry.Keys.LastKnownKey(),
		DomainsWereReset: reset,
	})
}

// ListDomains returns every cached domain configuration.
func (h *Handler) ListDomains(w http.ResponseWriter, _ *http.Request) {
	configs := h.registry.DomainConfigs.Get()

	resp := DomainConfigsResponse{
		StorageKey: h.registry.Keys.LastKnownKey(),
		Domains:    make(map[string]json.RawMessage, len(configs)),
	}
	for domain, blob := range configs {
		resp.Domains[domain] = blob
	}

	writeJSON(w, http.StatusOK, resp)
}

// ResetDomains empties the domain configuration cache.
func (h *Handler) ResetDomains(w http.ResponseWriter, r *http.Request) {
	if err := h.registry.DomainConfigs.Reset(r.Context()); err != nil {
		h.writeStoreError(w, "reset domain configs", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetDomain returns the raw configuration blob of one domain.
func (h *Handler) GetDomain(w http.ResponseWriter, r *http.Request) {
	domain := r.PathValue("domain")

	blob, ok := h.registry.DomainConfigs.Get()[domain]
	if !ok {
		writeError(w, http.StatusNotFound, "domain config not found")
		return
	}

	writeRawJSON(w, http.StatusOK, blob)
}

// PutDomain stores the request body as the configuration blob of one domain.
func (h *Handler) PutDomain(w http.ResponseWriter, r *http.Request) {
	domain := r.PathValue("domain")
	if strings.TrimSpace(domain) == "" {
		writeError(w, http.StatusBadRequest, "domain is required")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}
	if !json.Valid(body) {
		writeError(w, http.StatusBadRequest, "domain config must be valid JSON")
		return
	}

	patch := model.DomainConfigPatch{domain: json.RawMessage(body)}
	if err := h.registry.DomainConfigs.Update(r.Context(), patch); err != nil {
		h.writeStoreError(w, "put domain config", err)
		return
	}

	writeRawJSON(w, http.StatusOK, body)
}

// DeleteDomain removes the configuration of one domain.
func (h *Handler) DeleteDomain(w http.ResponseWriter, r *http.Request) {
	domain := r.PathValue("domain")

	if _, ok := h.registry.DomainConfigs.Get()[domain]; !ok {
		writeError(w, http.StatusNotFound, "domain config not found")
		return
	}

	if err := h.registry.DomainConfigs.Update(r.Context(), model.DomainConfigPatch{domain: nil}); err != nil {
		h.writeStoreError(w, "delete domain config", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// writeStoreError maps store and coordinator failures to responses.
func (h *Handler) writeStoreError(w http.ResponseWriter, action string, err error) {
	h.logger.Error("failed to "+action, "error", err)

	if errors.Is(err, driven.ErrEncryptionKeyNotSet) {
		writeError(w, http.StatusConflict, "credential encryption key is not configured")
		return
	}

	var transitionErr *application.StateTransitionError
	if errors.As(err, &transitionErr) {
		writeError(w, http.StatusServiceUnavailable, "storage key change did not complete, retry")
		return
	}

	var persistenceErr *application.PersistenceError
	if errors.As(err, &persistenceErr) {
		writeError(w, http.StatusServiceUnavailable, "storage unavailable")
		return
	}

	writeError(w, http.StatusInternalServerError, "internal server error")
}

// decodeBody decodes a JSON request body into v, writing a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
