package model

import (
	"encoding/json"
	"fmt"
)

// EventRecord is one immutable row per emitted contract event. The ID is
// derived from the transaction hash and log index, so re-recording the same
// event overwrites the row with identical values.
type EventRecord struct {
	ID             string          `json:"id"`
	EventName      string          `json:"event_name"`
	Params         json.RawMessage `json:"params"`
	BlockNumber    uint64          `json:"block_number"`
	BlockTimestamp uint64          `json:"block_timestamp"`
	TxHash         string          `json:"tx_hash"`
	LogIndex       uint64          `json:"log_index"`
}

// EventRecordID builds the deterministic record identifier: the transaction
// hash concatenated with the log's position within the transaction.
func EventRecordID(txHash string, logIndex uint64) string {
	return fmt.Sprintf("%s-%d", txHash, logIndex)
}
