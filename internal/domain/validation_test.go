package domain

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		value   string
		want    string
		wantErr bool
	}{
		{value: "100", want: "100"},
		{value: "100.5", want: "100.5"},
		{value: "0.01", want: "0.01"},
		{value: "12.340", want: "12.34"},
		{value: "", wantErr: true},
		{value: "0", wantErr: true},
		{value: "0.00", wantErr: true},
		{value: "-5", wantErr: true},
		{value: "1e3", wantErr: true},
		{value: "10.005", wantErr: true},
		{value: "abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			got, err := ParseAmount(tt.value, 2)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestValidateStruct_TransferRequest(t *testing.T) {
	valid := func() TransferRequest {
		return TransferRequest{
			RequestID: "r1",
			ActorID:   uuid.New(),
			Kind:      KindWalletToWallet,
			Recipient: "20123456",
			Amount:    decimal.NewFromInt(10),
		}
	}

	tests := []struct {
		name      string
		mutate    func(r *TransferRequest)
		wantField string
		wantMsg   string
	}{
		{name: "valid", mutate: func(r *TransferRequest) {}},
		{name: "note at limit in characters", mutate: func(r *TransferRequest) { r.Note = strings.Repeat("é", MaxNoteLength) }},
		{name: "request id at limit", mutate: func(r *TransferRequest) { r.RequestID = strings.Repeat("k", MaxRequestIDLength) }},
		{
			name:      "missing request id",
			mutate:    func(r *TransferRequest) { r.RequestID = "" },
			wantField: "requestId",
			wantMsg:   "requestId is required",
		},
		{
			name:      "request id too long",
			mutate:    func(r *TransferRequest) { r.RequestID = strings.Repeat("k", MaxRequestIDLength+1) },
			wantField: "requestId",
			wantMsg:   "requestId must be at most 128 characters",
		},
		{
			name:      "missing actor",
			mutate:    func(r *TransferRequest) { r.ActorID = uuid.Nil },
			wantField: "accountId",
			wantMsg:   "accountId is required",
		},
		{
			name:      "note too long",
			mutate:    func(r *TransferRequest) { r.Note = strings.Repeat("a", MaxNoteLength+1) },
			wantField: "note",
			wantMsg:   "note must be at most 280 characters",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid()
			tt.mutate(&req)

			err := ValidateStruct(req)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}

			assert.ErrorIs(t, err, ErrValidation)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.wantField, ve.Field)
			assert.Equal(t, tt.wantMsg, ve.Message)
		})
	}
}

func TestValidateStruct_UnknownTagMessage(t *testing.T) {
	payload := struct {
		Email string `json:"email" validate:"email"`
	}{Email: "not-an-email"}

	err := ValidateStruct(payload)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "email", ve.Field)
	assert.Equal(t, "email failed 'email' check", ve.Message)
}

func TestValidateCurrencyCode(t *testing.T) {
	assert.NoError(t, ValidateCurrencyCode("TND"))
	assert.Error(t, ValidateCurrencyCode(""))
	assert.Error(t, ValidateCurrencyCode("TN"))
	assert.Error(t, ValidateCurrencyCode("tnd"))
}
