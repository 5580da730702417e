package httphandler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ericfisherdev/cookiesync/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	writeRawJSON(w, status, data)
}

// writeRawJSON writes an already encoded JSON document.
func writeRawJSON(w http.ResponseWriter, status int, data []byte) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status     string `json:"status"`
	Time       string `json:"time"`
	StorageKey string `json:"storageKey"`
}

// CredentialResponse is the JSON representation of the stored credential.
// The token itself never leaves the process; only a masked hint does.
type CredentialResponse struct {
	TokenSet     bool   `json:"tokenSet"`
	TokenHint    string `json:"tokenHint,omitempty"`
	AccountID    string `json:"accountId"`
	NamespaceID  string `json:"namespaceId"`
	NamespaceURL string `json:"namespaceUrl,omitempty"`
	Complete     bool   `json:"complete"`
}

// SettingsResponse is the JSON representation of the sync settings.
type SettingsResponse struct {
	StorageKey          string `json:"storageKey"`
	ProtobufEncoding    bool   `json:"protobufEncoding"`
	EffectiveStorageKey string `json:"effectiveStorageKey"`
}

// CommitKeyRequest is the JSON body for the storage key commit endpoint.
type CommitKeyRequest struct {
	StorageKey string `json:"storageKey"`
}

// CommitKeyResponse reports the active key after a commit and whether the
// domain configuration cache was discarded.
type CommitKeyResponse struct {
	StorageKey       string `json:"storageKey"`
	DomainsWereReset bool   `json:"domainsWereReset"`
}

// DomainConfigsResponse lists every cached domain configuration together with
// the storage key they were populated under.
type DomainConfigsResponse struct {
	StorageKey string                     `json:"storageKey"`
	Domains    map[string]json.RawMessage `json:"domains"`
}

func toCredentialResponse(c model.Credential) CredentialResponse {
	return CredentialResponse{
		TokenSet:     c.Token != "",
		TokenHint:    maskToken(c.Token),
		AccountID:    c.AccountID,
		NamespaceID:  c.NamespaceID,
		NamespaceURL: c.NamespaceDashboardURL(),
		Complete:     c.IsComplete(),
	}
}

func toSettingsResponse(s model.Settings) SettingsResponse {
	return SettingsResponse{
		StorageKey:          s.StorageKey,
		ProtobufEncoding:    s.ProtobufEncoding,
		EffectiveStorageKey: s.EffectiveStorageKey(),
	}
}

// maskToken keeps the last four characters of tokens long enough that doing
// so does not reveal most of the secret.
func maskToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) < 12 {
		return strings.Repeat("*", 8)
	}
	return strings.Repeat("*", 8) + token[len(token)-4:]
}
