// Package recipient maps a user-supplied identifier to exactly one account.
package recipient

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"github.com/spbu-ds-practicum-2025/dinarflow-transfer-engine/internal/domain"
)

// PhoneDigits is the length of a national phone number.
const PhoneDigits = 8

// IdentifierKind is the detected form of a recipient identifier.
type IdentifierKind string

const (
	IdentifierPhone IdentifierKind = "phone"
	IdentifierEmail IdentifierKind = "email"
	IdentifierName  IdentifierKind = "name"
)

// Classify detects the identifier form and normalizes it.
//
// A leading digit means a phone number: non-digits are dropped and the last
// eight digits are kept, which strips a 216 country prefix. Otherwise an
// identifier containing '@' is an email and is case-folded. Anything else
// is a display name.
func Classify(identifier string) (IdentifierKind, string, error) {
	id := strings.TrimSpace(identifier)
	if id == "" {
		return "", "", domain.NewValidationError("recipient", "recipient is required")
	}

	first := []rune(id)[0]
	if unicode.IsDigit(first) || (first == '+' && len(id) > 1 && unicode.IsDigit(rune(id[1]))) {
		digits := strings.Map(func(r rune) rune {
			if r >= '0' && r <= '9' {
				return r
			}
			return -1
		}, id)
		if len(digits) < PhoneDigits {
			return "", "", domain.NewValidationError("recipient",
				fmt.Sprintf("phone number must have at least %d digits", PhoneDigits))
		}
		return IdentifierPhone, digits[len(digits)-PhoneDigits:], nil
	}

	if strings.Contains(id, "@") {
		return IdentifierEmail, strings.ToLower(id), nil
	}

	return IdentifierName, id, nil
}

// Resolver resolves recipients against a Directory.
type Resolver struct {
	directory domain.Directory
}

// NewResolver creates a new Resolver.
func NewResolver(directory domain.Directory) *Resolver {
	return &Resolver{directory: directory}
}

// Resolve returns the single active account matching identifier.
func (r *Resolver) Resolve(ctx context.Context, actorID uuid.UUID, identifier string) (uuid.UUID, error) {
	kind, value, err := Classify(identifier)
	if err != nil {
		return uuid.Nil, err
	}

	var profiles []domain.Profile
	switch kind {
	case IdentifierPhone:
		profiles, err = r.directory.FindByPhone(ctx, value)
	case IdentifierEmail:
		profiles, err = r.directory.FindByEmail(ctx, value)
	default:
		profiles, err = r.directory.FindByDisplayName(ctx, value)
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to look up recipient by %s: %w", kind, err)
	}

	var matches []uuid.UUID
	for _, p := range profiles {
		if p.Status == domain.AccountStatusActive {
			matches = append(matches, p.AccountID)
		}
	}

	switch len(matches) {
	case 0:
		return uuid.Nil, domain.ErrRecipientNotFound
	case 1:
	default:
		return uuid.Nil, domain.ErrAmbiguousRecipient
	}

	if matches[0] == actorID {
		return uuid.Nil, domain.ErrSelfTransferNotAllowed
	}
	return matches[0], nil
}
