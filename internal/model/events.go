package model

// Lifecycle event payloads, field names matching the contract parameters.
// uint256 parameters are carried as decimal strings so no width is lost
// between decode and projection.

// DepositedEventData is the decoded Deposited event payload.
type DepositedEventData struct {
	DealID           string `json:"dealId"`
	Buyer            string `json:"buyer"`
	Seller           string `json:"seller"`
	Amount           string `json:"amount"`
	TimeoutInSeconds string `json:"timeoutInSeconds"`
}

// ReleasedEventData is the decoded Released event payload.
type ReleasedEventData struct {
	DealID    string `json:"dealId"`
	Seller    string `json:"seller"`
	NetAmount string `json:"netAmount"`
	Fee       string `json:"fee"`
}

// RefundedEventData is the decoded Refunded event payload.
type RefundedEventData struct {
	DealID string `json:"dealId"`
	Buyer  string `json:"buyer"`
	Amount string `json:"amount"`
}

// DisputeRaisedEventData is the decoded DisputeRaised event payload.
type DisputeRaisedEventData struct {
	DealID   string `json:"dealId"`
	Disputer string `json:"disputer"`
}

// DisputeResolvedEventData is the decoded DisputeResolved event payload.
type DisputeResolvedEventData struct {
	DealID string `json:"dealId"`
	Winner string `json:"winner"`
	Amount string `json:"amount"`
}
