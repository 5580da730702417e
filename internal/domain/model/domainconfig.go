package model

import (
	"encoding/json"
	"maps"
	"slices"
)

// DomainConfigs maps a cookie domain to its cached sync configuration. The
// blobs are opaque here; they are produced and consumed by the sync
// transport. The whole collection is only valid under the storage key that
// was active when it was populated.
type DomainConfigs map[string]json.RawMessage

// DefaultDomainConfigs returns an empty collection.
func DefaultDomainConfigs() DomainConfigs {
	return DomainConfigs{}
}

// Clone returns a deep copy of d. A nil collection clones to an empty one.
func (d DomainConfigs) Clone() DomainConfigs {
	out := make(DomainConfigs, len(d))
	for domain, blob := range d {
		out[domain] = slices.Clone(blob)
	}
	return out
}

// Domains returns the domain names in sorted order.
func (d DomainConfigs) Domains() []string {
	return slices.Sorted(maps.Keys(d))
}

// DomainConfigPatch sets or removes individual domain entries. A nil blob
// removes the domain; any other value replaces it.
type DomainConfigPatch map[string]json.RawMessage

// Apply implements Patch.
func (p DomainConfigPatch) Apply(base DomainConfigs) DomainConfigs {
	if base == nil {
		base = DomainConfigs{}
	}
	for domain, blob := range p {
		if blob == nil {
			delete(base, domain)
			continue
		}
		base[domain] = slices.Clone(blob)
	}
	return base
}
