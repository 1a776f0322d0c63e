package model

// Deal is the derived projection of one escrow agreement, keyed by the
// contract-assigned deal identifier. It is created by Deposited, mutated by
// the other lifecycle events, and never deleted.
type Deal struct {
	ID               string `json:"id"`
	Buyer            string `json:"buyer"`
	Seller           string `json:"seller"`
	Amount           string `json:"amount"`
	TimeoutInSeconds string `json:"timeout_in_seconds"`
	CreatedAt        uint64 `json:"created_at"`
	IsCompleted      bool   `json:"is_completed"`
	IsDisputed       bool   `json:"is_disputed"`
	IsRefunded       bool   `json:"is_refunded"`
	DepositTx        string `json:"deposit_tx,omitempty"`
	ReleaseTx        string `json:"release_tx,omitempty"`
	RefundTx         string `json:"refund_tx,omitempty"`
}

// User is a participant address referenced by deals. It carries no state
// beyond its identity and exists to give buyer/seller a stable foreign key.
type User struct {
	Address string `json:"address"`
}
