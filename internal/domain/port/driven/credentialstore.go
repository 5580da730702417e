package driven

import (
	"errors"

	"github.com/ericfisherdev/cookiesync/internal/domain/model"
)

// ErrEncryptionKeyNotSet is returned by CredentialStore operations when a
// non-empty token has to be sealed or opened and COOKIESYNC_SECRET_KEY has not
// been configured.
var ErrEncryptionKeyNotSet = errors.New("encryption key not configured: set COOKIESYNC_SECRET_KEY")

// CredentialStore persists the remote-store credential. The adapter seals the
// token at rest; this interface operates on plaintext at the domain boundary.
type CredentialStore interface {
	RecordRepo[model.Credential]
}
