package chat

import (
	"strings"

	"github.com/lalith-99/parley/internal/errs"
	"github.com/lalith-99/parley/internal/models"
)

// ValidateEnvelope enforces which encrypted fields must be present for the
// given kind. Plaintext messages need none. The returned error names every
// missing field, not just the first.
func ValidateEnvelope(kind models.MessageKind, encrypted bool, env models.Envelope) error {
	if !encrypted {
		return nil
	}

	var missing []string
	if env.EncryptedContent == "" {
		missing = append(missing, "encrypted_content")
	}
	switch kind {
	case models.KindGroup:
		if !completeKeyMap(env.EncryptedKeys) {
			missing = append(missing, "encrypted_keys")
		}
	case models.KindPrivate:
		if env.EncryptedKey == "" {
			missing = append(missing, "encrypted_key")
		}
		if env.EncryptedKeySelf == "" {
			missing = append(missing, "encrypted_key_self")
		}
	}
	if env.IV == "" {
		missing = append(missing, "iv")
	}

	if len(missing) == 0 {
		return nil
	}
	return &errs.FieldError{
		Err:    errs.ErrIncompleteEnvelope,
		Msg:    "encrypted " + string(kind) + " message is missing " + strings.Join(missing, ", "),
		Fields: missing,
	}
}

func completeKeyMap(keys map[string]string) bool {
	if len(keys) == 0 {
		return false
	}
	for member, wrapped := range keys {
		if member == "" || wrapped == "" {
			return false
		}
	}
	return true
}
