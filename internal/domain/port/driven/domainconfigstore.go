package driven

import "github.com/ericfisherdev/cookiesync/internal/domain/model"

// DomainConfigStore persists the per-domain configuration cache. Save
// replaces the whole collection; saving an empty collection removes every
// entry.
type DomainConfigStore interface {
	RecordRepo[model.DomainConfigs]
}
