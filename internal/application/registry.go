package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ericfisherdev/cookiesync/internal/domain/model"
	"github.com/ericfisherdev/cookiesync/internal/domain/port/driven"
)

// Record names.
const (
	RecordCredential   = "credential"
	RecordSettings     = "settings"
	RecordDomainConfig = "domain_config"
)

// Typed record stores.
type (
	CredentialStore   = RecordStore[model.Credential, model.CredentialPatch]
	SettingsStore     = RecordStore[model.Settings, model.SettingsPatch]
	DomainConfigStore = RecordStore[model.DomainConfigs, model.DomainConfigPatch]
)

// NewCredentialStore creates the credential record store.
func NewCredentialStore(repo driven.CredentialStore, logger *slog.Logger) *CredentialStore {
	return NewRecordStore[model.Credential, model.CredentialPatch](RecordCredential, repo, model.DefaultCredential, logger)
}

// NewSettingsStore creates the settings record store.
func NewSettingsStore(repo driven.SettingsStore, logger *slog.Logger) *SettingsStore {
	return NewRecordStore[model.Settings, model.SettingsPatch](RecordSettings, repo, model.DefaultSettings, logger)
}

// NewDomainConfigStore creates the domain configuration record store.
func NewDomainConfigStore(repo driven.DomainConfigStore, logger *slog.Logger) *DomainConfigStore {
	return NewRecordStore[model.DomainConfigs, model.DomainConfigPatch](RecordDomainConfig, repo, model.DefaultDomainConfigs, logger)
}

var errCredentialsNotLoaded = errors.New("credential store not loaded")

// Registry holds the single shared instance of each record store and the key
// coordinator for a process. Build it once at startup, call Init, and inject
// it where the stores are needed.
type Registry struct {
	Credentials   *CredentialStore
	Settings      *SettingsStore
	DomainConfigs *DomainConfigStore
	Keys          *KeyChangeCoordinator

	logger *slog.Logger

	mu             sync.Mutex
	credentialsErr error
}

// NewRegistry wires the stores over the given repositories.
func NewRegistry(
	credentials driven.CredentialStore,
	settings driven.SettingsStore,
	domainConfigs driven.DomainConfigStore,
	logger *slog.Logger,
) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	settingsStore := NewSettingsStore(settings, logger)
	domainStore := NewDomainConfigStore(domainConfigs, logger)

	return &Registry{
		Credentials:   NewCredentialStore(credentials, logger),
		Settings:      settingsStore,
		DomainConfigs: domainStore,
		Keys:          NewKeyChangeCoordinator(settingsStore, domainStore, logger),
		logger:        logger,
	}
}

// Init loads every store and seeds the key coordinator. It must complete
// before any store is read.
//
// A stored token that cannot be opened because no encryption key is
// configured does not fail Init: the credential store keeps its defaults and
// stays not ready, and CredentialsErr reports why. Writes to it fail until a
// refresh succeeds, so the sealed token is never overwritten.
func (r *Registry) Init(ctx context.Context) error {
	if err := r.Credentials.Init(ctx); err != nil {
		if !errors.Is(err, driven.ErrEncryptionKeyNotSet) {
			return fmt.Errorf("init registry: %w", err)
		}
		r.logger.Warn("stored credential is sealed and no secret key is configured", "error", err)
		r.mu.Lock()
		r.credentialsErr = err
		r.mu.Unlock()
	}

	for _, load := range []func(context.Context) error{
		r.Settings.Init,
		r.DomainConfigs.Init,
	} {
		if err := load(ctx); err != nil {
			return fmt.Errorf("init registry: %w", err)
		}
	}
	r.Keys.Init()
	return nil
}

// CredentialsErr returns the error that kept the credential store from
// loading, or nil once it has loaded.
func (r *Registry) CredentialsErr() error {
	select {
	case <-r.Credentials.Ready():
		return nil
	default:
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.credentialsErr == nil {
		return errCredentialsNotLoaded
	}
	return r.credentialsErr
}

// Sync reloads every store from durable storage. It is called when another
// process has written to the shared database.
//
// Domain configs are reloaded before a changed storage key is published, so
// a settings listener never sees the new key next to the entries of the old
// one. A key committed by another process is adopted without a second reset:
// that process's coordinator already emptied the domain configs before
// persisting the key.
//
// A failing store does not stop the others from refreshing; every failure is
// returned joined.
func (r *Registry) Sync(ctx context.Context) error {
	var errs []error

	if _, err := r.refresh(ctx, r.Credentials.Name(), r.Credentials.Refresh); err != nil {
		errs = append(errs, err)
	}

	refreshDomains := func(ctx context.Context) error {
		_, err := r.refresh(ctx, r.DomainConfigs.Name(), r.DomainConfigs.Refresh)
		return err
	}
	if err := refreshDomains(ctx); err != nil {
		errs = append(errs, err)
	}

	// Another process may commit a key between the reload above and the
	// settings read, so domains are reloaded again before a new key is
	// published.
	settingsChanged, err := r.refresh(ctx, r.Settings.Name(), func(ctx context.Context) (bool, error) {
		return r.Settings.RefreshWith(ctx, refreshDomains)
	})
	if err != nil {
		errs = append(errs, err)
	}
	if settingsChanged {
		r.Keys.Adopt()
	}

	return errors.Join(errs...)
}

func (r *Registry) refresh(ctx context.Context, name string, fn func(context.Context) (bool, error)) (bool, error) {
	changed, err := fn(ctx)
	if err == nil && changed {
		r.logger.Info("record changed externally", "record", name)
	}
	return changed, err
}
