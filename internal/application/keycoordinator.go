package application

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ericfisherdev/cookiesync/internal/domain/model"
)

// KeyChangeCoordinator keeps the domain configuration cache valid for the
// active storage key. When a committed key differs from the last key it saw,
// it empties the domain configuration store before persisting the new key.
//
// The transition check runs only when a caller reaches a commit boundary
// (for example, a settings form being closed), never on intermediate input.
type KeyChangeCoordinator struct {
	settings *SettingsStore
	domains  *DomainConfigStore
	logger   *slog.Logger

	mu           sync.Mutex
	lastKnownKey string
	initialized  bool
}

// NewKeyChangeCoordinator creates a coordinator over the given stores. Init
// must be called once the settings store has loaded.
func NewKeyChangeCoordinator(settings *SettingsStore, domains *DomainConfigStore, logger *slog.Logger) *KeyChangeCoordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &KeyChangeCoordinator{
		settings: settings,
		domains:  domains,
		logger:   logger,
	}
}

// Init seeds the last known key from the loaded settings.
func (c *KeyChangeCoordinator) Init() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lastKnownKey = c.settings.Get().EffectiveStorageKey()
	c.initialized = true
	c.logger.Debug("key coordinator initialized", "storage_key", c.lastKnownKey)
}

// LastKnownKey returns the effective key the domain configuration cache is
// currently valid for.
func (c *KeyChangeCoordinator) LastKnownKey() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastKnownKey
}

// CommitKeyIfChanged applies candidate as the storage key. The effective key
// is candidate trimmed, or model.DefaultStorageKey when that is empty. If it
// differs from the last known key, the domain configuration store is reset
// first; then the stored key is normalized to the effective key. It reports
// whether a reset happened.
//
// On failure nothing is advanced and a *StateTransitionError is returned;
// calling again with the same candidate retries the whole transition.
func (c *KeyChangeCoordinator) CommitKeyIfChanged(ctx context.Context, candidate string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.initialized {
		c.lastKnownKey = c.settings.Get().EffectiveStorageKey()
		c.initialized = true
	}

	effective := model.EffectiveStorageKey(candidate)
	from := c.lastKnownKey
	changed := effective != from

	if changed {
		if err := c.domains.Reset(ctx); err != nil {
			c.logger.Error("storage key transition failed", "from", from, "to", effective, "step", StepResetDomains, "error", err)
			return false, &StateTransitionError{From: from, To: effective, Step: StepResetDomains, Err: err}
		}
	}

	if c.settings.Get().StorageKey != effective {
		if err := c.settings.Update(ctx, model.SettingsPatch{StorageKey: &effective}); err != nil {
			c.logger.Error("storage key transition failed", "from", from, "to", effective, "step", StepNormalizeSettings, "error", err)
			return false, &StateTransitionError{From: from, To: effective, Step: StepNormalizeSettings, Err: err}
		}
	}

	c.lastKnownKey = effective
	if changed {
		c.logger.Info("storage key changed, domain configs reset", "from", from, "to", effective)
	}
	return changed, nil
}

// Reconcile runs the transition rule for the key currently held by the
// settings store, normalizing a blank or padded stored key.
func (c *KeyChangeCoordinator) Reconcile(ctx context.Context) (bool, error) {
	return c.CommitKeyIfChanged(ctx, c.settings.Get().StorageKey)
}

// Adopt takes the effective key of the stored settings as the last known key
// without touching the domain configs. It reports whether the key changed.
func (c *KeyChangeCoordinator) Adopt() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := c.settings.Get().EffectiveStorageKey()
	changed := key != c.lastKnownKey
	if changed {
		c.logger.Info("storage key adopted from another process", "from", c.lastKnownKey, "to", key)
	}
	c.lastKnownKey = key
	c.initialized = true
	return changed
}
