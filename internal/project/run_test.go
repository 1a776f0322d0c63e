package project

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"escrowScope/internal/escrow"
	"escrowScope/internal/model"
	"escrowScope/internal/storage/memory"
)

func writeEventsFile(t *testing.T, records []model.TypedEventRecord) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "typed_events.jsonl")
	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("create input: %v", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	for _, record := range records {
		if err := encoder.Encode(record); err != nil {
			t.Fatalf("encode record: %v", err)
		}
	}
	return path
}

func TestRunProjectsFileInOrder(t *testing.T) {
	store := memory.NewStore()
	statePath := filepath.Join(t.TempDir(), "state.json")
	projector := NewProjector(Config{
		StateStore: &FileStateStore{Path: statePath},
	}, store, nil)

	records := []model.TypedEventRecord{
		deposited(t, "1", 100, "0x01"),
		typedRecord(t, escrow.EventReleased, model.ReleasedEventData{
			DealID: "1", Seller: sellerAddr, NetAmount: "990", Fee: "10",
		}, 101, "0x02", 0),
	}
	path := writeEventsFile(t, records)

	if err := projector.Run(context.Background(), path); err != nil {
		t.Fatalf("run: %v", err)
	}

	deal, ok, _ := store.GetDeal(context.Background(), "1")
	if !ok || !deal.IsCompleted {
		t.Fatalf("projection incomplete: %+v", deal)
	}

	block, ok, err := (&FileStateStore{Path: statePath}).Load(context.Background())
	if err != nil || !ok {
		t.Fatalf("state missing: %v", err)
	}
	if block != 101 {
		t.Fatalf("state block mismatch: %d", block)
	}
}

func TestRunResumesAndReappliesSafely(t *testing.T) {
	store := memory.NewStore()
	statePath := filepath.Join(t.TempDir(), "state.json")
	stateStore := &FileStateStore{Path: statePath}

	records := []model.TypedEventRecord{
		deposited(t, "1", 100, "0x01"),
		typedRecord(t, escrow.EventRefunded, model.RefundedEventData{
			DealID: "1", Buyer: buyerAddr, Amount: "1000000",
		}, 101, "0x02", 0),
	}
	path := writeEventsFile(t, records)

	projector := NewProjector(Config{StateStore: stateStore}, store, nil)
	if err := projector.Run(context.Background(), path); err != nil {
		t.Fatalf("first run: %v", err)
	}

	// A second run over the same file re-applies only the boundary block;
	// the view must not change.
	before, _, _ := store.GetDeal(context.Background(), "1")
	if err := projector.Run(context.Background(), path); err != nil {
		t.Fatalf("second run: %v", err)
	}
	after, _, _ := store.GetDeal(context.Background(), "1")

	if before != after {
		t.Fatalf("resume changed state: %+v != %+v", before, after)
	}
	if !after.IsRefunded || !after.IsCompleted {
		t.Fatalf("refund flags lost: %+v", after)
	}
}
