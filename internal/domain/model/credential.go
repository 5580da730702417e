package model

import (
	"fmt"
	"net/url"
	"strings"
)

// Credential holds the Cloudflare Workers KV account used as the remote
// store. Fields may be empty at rest; they are only validated when the sync
// transport contacts Cloudflare.
type Credential struct {
	Token       string `json:"token"`
	AccountID   string `json:"accountId"`
	NamespaceID string `json:"namespaceId"`
}

// DefaultCredential returns the empty credential.
func DefaultCredential() Credential {
	return Credential{}
}

// Clone returns a copy of c.
func (c Credential) Clone() Credential {
	return c
}

// IsComplete reports whether every field needed to reach the remote store is set.
func (c Credential) IsComplete() bool {
	return strings.TrimSpace(c.Token) != "" &&
		strings.TrimSpace(c.AccountID) != "" &&
		strings.TrimSpace(c.NamespaceID) != ""
}

// NamespaceDashboardURL returns the Cloudflare dashboard page of the KV
// namespace, or "" when either identifier is blank.
func (c Credential) NamespaceDashboardURL() string {
	account := strings.TrimSpace(c.AccountID)
	namespace := strings.TrimSpace(c.NamespaceID)
	if account == "" || namespace == "" {
		return ""
	}
	return fmt.Sprintf("https://dash.cloudflare.com/%s/workers/kv/namespaces/%s",
		url.PathEscape(account), url.PathEscape(namespace))
}

// CredentialPatch is a partial Credential. Nil fields are left unchanged.
type CredentialPatch struct {
	Token       *string `json:"token,omitempty"`
	AccountID   *string `json:"accountId,omitempty"`
	NamespaceID *string `json:"namespaceId,omitempty"`
}

// Apply implements Patch.
func (p CredentialPatch) Apply(base Credential) Credential {
	if p.Token != nil {
		base.Token = *p.Token
	}
	if p.AccountID != nil {
		base.AccountID = *p.AccountID
	}
	if p.NamespaceID != nil {
		base.NamespaceID = *p.NamespaceID
	}
	return base
}
