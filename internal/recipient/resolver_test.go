package recipient

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spbu-ds-practicum-2025/dinarflow-transfer-engine/internal/domain"
	"github.com/spbu-ds-practicum-2025/dinarflow-transfer-engine/internal/memory"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		input   string
		kind    IdentifierKind
		value   string
		wantErr bool
	}{
		{input: "20123456", kind: IdentifierPhone, value: "20123456"},
		{input: "+216 20 123 456", kind: IdentifierPhone, value: "20123456"},
		{input: "21620123456", kind: IdentifierPhone, value: "20123456"},
		{input: "20-12-34-56", kind: IdentifierPhone, value: "20123456"},
		{input: "2012", wantErr: true},
		{input: "sarah@example.com", kind: IdentifierEmail, value: "sarah@example.com"},
		{input: "  Sarah@Example.COM ", kind: IdentifierEmail, value: "sarah@example.com"},
		{input: "Sarah Ben Ali", kind: IdentifierName, value: "Sarah Ben Ali"},
		{input: "   ", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			kind, value, err := Classify(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.kind, kind)
			assert.Equal(t, tt.value, value)
		})
	}
}

func TestResolver_Resolve(t *testing.T) {
	ctx := context.Background()
	actor := uuid.New()
	sarah := uuid.New()
	karim1, karim2 := uuid.New(), uuid.New()
	suspended := uuid.New()

	dir := memory.NewDirectory(
		domain.Profile{AccountID: actor, Email: "me@example.com", Phone: "55000000", DisplayName: "Me", Status: domain.AccountStatusActive},
		domain.Profile{AccountID: sarah, Email: "sarah@example.com", Phone: "20123456", DisplayName: "Sarah", Status: domain.AccountStatusActive},
		domain.Profile{AccountID: karim1, Email: "k1@example.com", Phone: "22000001", DisplayName: "Karim", Status: domain.AccountStatusActive},
		domain.Profile{AccountID: karim2, Email: "k2@example.com", Phone: "22000002", DisplayName: "karim", Status: domain.AccountStatusActive},
		domain.Profile{AccountID: suspended, Email: "gone@example.com", Phone: "29999999", DisplayName: "Gone", Status: domain.AccountStatusSuspended},
	)
	r := NewResolver(dir)

	tests := []struct {
		name       string
		identifier string
		want       uuid.UUID
		wantErr    error
	}{
		{name: "phone", identifier: "20123456", want: sarah},
		{name: "phone with country prefix", identifier: "+21620123456", want: sarah},
		{name: "email", identifier: "SARAH@example.com", want: sarah},
		{name: "name", identifier: "sarah", want: sarah},
		{name: "unknown email", identifier: "nobody@example.com", wantErr: domain.ErrRecipientNotFound},
		{name: "unknown name", identifier: "Nobody", wantErr: domain.ErrRecipientNotFound},
		{name: "ambiguous name", identifier: "KARIM", wantErr: domain.ErrAmbiguousRecipient},
		{name: "inactive account", identifier: "29999999", wantErr: domain.ErrRecipientNotFound},
		{name: "self", identifier: "me@example.com", wantErr: domain.ErrSelfTransferNotAllowed},
		{name: "short phone", identifier: "123", wantErr: domain.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Resolve(ctx, actor, tt.identifier)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, uuid.Nil, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
