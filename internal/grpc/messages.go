package grpc

// TransferRequest asks the engine to execute a transfer for AccountID.
type TransferRequest struct {
	AccountID string `json:"accountId" validate:"required,uuid"`
	RequestID string `json:"requestId" validate:"required,max=128"`
	Kind      string `json:"kind" validate:"required"`
	Recipient string `json:"recipient,omitempty"`
	Amount    string `json:"amount" validate:"required"`
	Note      string `json:"note,omitempty" validate:"max=280"`
}

// TransferResponse describes a completed transfer.
type TransferResponse struct {
	TransferID     string   `json:"transferId"`
	Status         string   `json:"status"`
	Replayed       bool     `json:"replayed,omitempty"`
	CounterpartyID string   `json:"counterpartyId"`
	Amount         string   `json:"amount"`
	Currency       string   `json:"currency"`
	Reference      string   `json:"reference"`
	Balances       Balances `json:"balances"`
	CompletedAt    string   `json:"completedAt"`
}

type Balances struct {
	Wallet string `json:"wallet"`
	Bank   string `json:"bank"`
}

type GetUsageRequest struct {
	AccountID string `json:"accountId" validate:"required,uuid"`
}

type GetUsageResponse struct {
	AccountID  string          `json:"accountId"`
	AsOf       string          `json:"asOf"`
	Categories []CategoryUsage `json:"categories"`
}

// CategoryUsage holds amounts as decimal strings.
type CategoryUsage struct {
	Category            string  `json:"category"`
	Used                Windows `json:"used"`
	Limits              Windows `json:"limits"`
	Remaining           Windows `json:"remaining"`
	PerTransactionLimit string  `json:"perTransactionLimit"`
}

type Windows struct {
	Daily   string `json:"daily"`
	Weekly  string `json:"weekly"`
	Monthly string `json:"monthly"`
}
