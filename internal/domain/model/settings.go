package model

import "strings"

// DefaultStorageKey is the storage partition key used when none is configured.
const DefaultStorageKey = "sync-your-cookie"

// Settings controls how cookies are written to the remote store.
// StorageKey partitions the per-domain configuration cache; ProtobufEncoding
// selects binary payloads instead of JSON text.
type Settings struct {
	StorageKey       string `json:"storageKey"`
	ProtobufEncoding bool   `json:"protobufEncoding"`
}

// DefaultSettings returns the settings used when nothing has been stored.
func DefaultSettings() Settings {
	return Settings{StorageKey: DefaultStorageKey}
}

// Clone returns a copy of s.
func (s Settings) Clone() Settings {
	return s
}

// EffectiveStorageKey returns the partition key actually in force.
func (s Settings) EffectiveStorageKey() string {
	return EffectiveStorageKey(s.StorageKey)
}

// EffectiveStorageKey trims key and falls back to DefaultStorageKey when the
// result is empty.
func EffectiveStorageKey(key string) string {
	if trimmed := strings.TrimSpace(key); trimmed != "" {
		return trimmed
	}
	return DefaultStorageKey
}

// SettingsPatch is a partial Settings. Nil fields are left unchanged.
type SettingsPatch struct {
	StorageKey       *string `json:"storageKey,omitempty"`
	ProtobufEncoding *bool   `json:"protobufEncoding,omitempty"`
}

// Apply implements Patch.
func (p SettingsPatch) Apply(base Settings) Settings {
	if p.StorageKey != nil {
		base.StorageKey = *p.StorageKey
	}
	if p.ProtobufEncoding != nil {
		base.ProtobufEncoding = *p.ProtobufEncoding
	}
	return base
}
