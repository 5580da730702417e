package driven

import "github.com/ericfisherdev/cookiesync/internal/domain/model"

// SettingsStore persists the sync behaviour settings.
type SettingsStore interface {
	RecordRepo[model.Settings]
}
