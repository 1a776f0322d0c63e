package project

import (
	"context"
	"encoding/json"
	"reflect"
	"testing"

	"escrowScope/internal/escrow"
	"escrowScope/internal/model"
	"escrowScope/internal/storage/memory"
)

const (
	buyerAddr  = "0xAaAAAAaaAaaAAaAAaaAAAaaaAaaaAAAAAAAaaaAa"
	sellerAddr = "0xbBbbBBbbbBBBbbbBbbbbBBbBbbBbBbbBBbbBBbBB"
)

func newTestProjector() (*Projector, *memory.Store) {
	store := memory.NewStore()
	return NewProjector(Config{}, store, nil), store
}

func typedRecord(t *testing.T, name string, payload interface{}, block uint64, txHash string, logIndex uint64) model.TypedEventRecord {
	t.Helper()
	decoded, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return model.TypedEventRecord{
		ChainID:     137,
		BlockNumber: block,
		BlockHash:   "0xblock",
		TxHash:      txHash,
		LogIndex:    logIndex,
		Address:     "0x7445B80f07ffcC031cecd3FC645878Baa8373819",
		EventName:   name,
		Timestamp:   1700000000 + block,
		Decoded:     decoded,
	}
}

func deposited(t *testing.T, dealID string, block uint64, txHash string) model.TypedEventRecord {
	return typedRecord(t, escrow.EventDeposited, model.DepositedEventData{
		DealID:           dealID,
		Buyer:            buyerAddr,
		Seller:           sellerAddr,
		Amount:           "1000000",
		TimeoutInSeconds: "259200",
	}, block, txHash, 0)
}

func TestReleasedBeforeDepositedIsNoop(t *testing.T) {
	projector, store := newTestProjector()
	ctx := context.Background()

	record := typedRecord(t, escrow.EventReleased, model.ReleasedEventData{
		DealID:    "42",
		Seller:    sellerAddr,
		NetAmount: "990",
		Fee:       "10",
	}, 100, "0x01", 0)

	if err := projector.Apply(ctx, record); err != nil {
		t.Fatalf("apply released: %v", err)
	}

	if _, ok, _ := store.GetDeal(ctx, "42"); ok {
		t.Fatalf("deal should not exist")
	}
	// The raw record is still kept.
	if store.EventCount() != 1 {
		t.Fatalf("expected raw record, got %d", store.EventCount())
	}
}

func TestDepositedIsIdempotent(t *testing.T) {
	projector, store := newTestProjector()
	ctx := context.Background()

	record := deposited(t, "42", 100, "0x01")
	if err := projector.Apply(ctx, record); err != nil {
		t.Fatalf("first apply: %v", err)
	}
	first, ok, _ := store.GetDeal(ctx, "42")
	if !ok {
		t.Fatalf("deal missing")
	}

	if err := projector.Apply(ctx, record); err != nil {
		t.Fatalf("second apply: %v", err)
	}
	second, _, _ := store.GetDeal(ctx, "42")

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("deposit not idempotent: %+v != %+v", first, second)
	}
	if second.IsCompleted || second.IsDisputed || second.IsRefunded {
		t.Fatalf("fresh deal has set flags: %+v", second)
	}
	if second.Buyer != buyerAddr || second.Seller != sellerAddr {
		t.Fatalf("party mismatch: %+v", second)
	}
	if second.Amount != "1000000" || second.TimeoutInSeconds != "259200" {
		t.Fatalf("amount mismatch: %+v", second)
	}
}

func TestTerminalCompletionSticks(t *testing.T) {
	projector, store := newTestProjector()
	ctx := context.Background()

	if err := projector.Apply(ctx, deposited(t, "42", 100, "0x01")); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	released := typedRecord(t, escrow.EventReleased, model.ReleasedEventData{
		DealID: "42", Seller: sellerAddr, NetAmount: "990", Fee: "10",
	}, 101, "0x02", 0)
	if err := projector.Apply(ctx, released); err != nil {
		t.Fatalf("release: %v", err)
	}

	// Redelivered deposit must not clear the terminal flag.
	if err := projector.Apply(ctx, deposited(t, "42", 100, "0x01")); err != nil {
		t.Fatalf("redelivered deposit: %v", err)
	}

	deal, _, _ := store.GetDeal(ctx, "42")
	if !deal.IsCompleted {
		t.Fatalf("completion regressed: %+v", deal)
	}
	if deal.ReleaseTx != "0x02" {
		t.Fatalf("release tx lost: %+v", deal)
	}
}

func TestRefundImpliesCompleted(t *testing.T) {
	projector, store := newTestProjector()
	ctx := context.Background()

	if err := projector.Apply(ctx, deposited(t, "42", 100, "0x01")); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	refunded := typedRecord(t, escrow.EventRefunded, model.RefundedEventData{
		DealID: "42", Buyer: buyerAddr, Amount: "1000000",
	}, 101, "0x02", 0)
	if err := projector.Apply(ctx, refunded); err != nil {
		t.Fatalf("refund: %v", err)
	}

	deal, _, _ := store.GetDeal(ctx, "42")
	if !deal.IsRefunded || !deal.IsCompleted {
		t.Fatalf("refund flags inconsistent: %+v", deal)
	}
	if deal.RefundTx != "0x02" {
		t.Fatalf("refund tx missing: %+v", deal)
	}
}

func TestDisputeResolutionClosesAndCompletes(t *testing.T) {
	projector, store := newTestProjector()
	ctx := context.Background()

	if err := projector.Apply(ctx, deposited(t, "42", 100, "0x01")); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	raised := typedRecord(t, escrow.EventDisputeRaised, model.DisputeRaisedEventData{
		DealID: "42", Disputer: buyerAddr,
	}, 101, "0x02", 0)
	if err := projector.Apply(ctx, raised); err != nil {
		t.Fatalf("raise: %v", err)
	}

	deal, _, _ := store.GetDeal(ctx, "42")
	if !deal.IsDisputed || deal.IsCompleted {
		t.Fatalf("dispute not open: %+v", deal)
	}

	resolved := typedRecord(t, escrow.EventDisputeResolved, model.DisputeResolvedEventData{
		DealID: "42", Winner: sellerAddr, Amount: "1000000",
	}, 102, "0x03", 0)
	if err := projector.Apply(ctx, resolved); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	deal, _, _ = store.GetDeal(ctx, "42")
	if deal.IsDisputed || !deal.IsCompleted {
		t.Fatalf("resolution flags wrong: %+v", deal)
	}
}

func TestLazyUserCreationIsIdempotent(t *testing.T) {
	projector, store := newTestProjector()
	ctx := context.Background()

	if err := projector.Apply(ctx, deposited(t, "1", 100, "0x01")); err != nil {
		t.Fatalf("deposit 1: %v", err)
	}
	if err := projector.Apply(ctx, deposited(t, "2", 101, "0x02")); err != nil {
		t.Fatalf("deposit 2: %v", err)
	}

	// Same buyer and seller across both deals: exactly two users.
	if store.UserCount() != 2 {
		t.Fatalf("expected 2 users, got %d", store.UserCount())
	}
	if !store.HasUser(buyerAddr) || !store.HasUser(sellerAddr) {
		t.Fatalf("missing user rows")
	}
}

func TestRawRecordUniqueness(t *testing.T) {
	projector, store := newTestProjector()
	ctx := context.Background()

	// Two events in the same transaction, different log indices.
	first := typedRecord(t, escrow.EventFeeUpdated, map[string]string{"newFee": "100"}, 100, "0x01", 0)
	second := typedRecord(t, escrow.EventFeeUpdated, map[string]string{"newFee": "200"}, 100, "0x01", 1)

	if err := projector.Apply(ctx, first); err != nil {
		t.Fatalf("first: %v", err)
	}
	if err := projector.Apply(ctx, second); err != nil {
		t.Fatalf("second: %v", err)
	}
	if store.EventCount() != 2 {
		t.Fatalf("expected 2 records, got %d", store.EventCount())
	}

	// Replaying one of them leaves a single surviving record.
	if err := projector.Apply(ctx, second); err != nil {
		t.Fatalf("replay: %v", err)
	}
	if store.EventCount() != 2 {
		t.Fatalf("replay duplicated record: %d", store.EventCount())
	}

	record, ok := store.Event(model.EventRecordID("0x01", 1))
	if !ok {
		t.Fatalf("record missing")
	}
	if record.EventName != escrow.EventFeeUpdated || record.LogIndex != 1 {
		t.Fatalf("record mismatch: %+v", record)
	}
}

func TestUnknownDealLifecycleEventsAreNoops(t *testing.T) {
	projector, store := newTestProjector()
	ctx := context.Background()

	records := []model.TypedEventRecord{
		typedRecord(t, escrow.EventRefunded, model.RefundedEventData{DealID: "9", Buyer: buyerAddr, Amount: "1"}, 100, "0x01", 0),
		typedRecord(t, escrow.EventDisputeRaised, model.DisputeRaisedEventData{DealID: "9", Disputer: buyerAddr}, 101, "0x02", 0),
		typedRecord(t, escrow.EventDisputeResolved, model.DisputeResolvedEventData{DealID: "9", Winner: buyerAddr, Amount: "1"}, 102, "0x03", 0),
	}
	for _, record := range records {
		if err := projector.Apply(ctx, record); err != nil {
			t.Fatalf("apply %s: %v", record.EventName, err)
		}
	}

	if store.DealCount() != 0 {
		t.Fatalf("no deals expected, got %d", store.DealCount())
	}
	if store.EventCount() != 3 {
		t.Fatalf("raw records expected, got %d", store.EventCount())
	}
}

func TestMalformedDepositWritesNothingDerived(t *testing.T) {
	projector, store := newTestProjector()
	ctx := context.Background()

	record := typedRecord(t, escrow.EventDeposited, model.DepositedEventData{
		DealID:           "42",
		Buyer:            "not-an-address",
		Seller:           sellerAddr,
		Amount:           "1000000",
		TimeoutInSeconds: "259200",
	}, 100, "0x01", 0)

	if err := projector.Apply(ctx, record); err != nil {
		t.Fatalf("apply: %v", err)
	}

	if store.DealCount() != 0 || store.UserCount() != 0 {
		t.Fatalf("partial write: deals=%d users=%d", store.DealCount(), store.UserCount())
	}
	if store.EventCount() != 1 {
		t.Fatalf("raw record expected")
	}
}

func TestAdministrativeEventsOnlyRecorded(t *testing.T) {
	projector, store := newTestProjector()
	ctx := context.Background()

	records := []model.TypedEventRecord{
		typedRecord(t, escrow.EventFeeUpdated, map[string]string{"newFee": "250"}, 100, "0x01", 0),
		typedRecord(t, escrow.EventPaused, map[string]string{"account": buyerAddr}, 101, "0x02", 0),
		typedRecord(t, escrow.EventOwnershipTransferred, map[string]string{"previousOwner": buyerAddr, "newOwner": sellerAddr}, 102, "0x03", 0),
	}
	for _, record := range records {
		if err := projector.Apply(ctx, record); err != nil {
			t.Fatalf("apply %s: %v", record.EventName, err)
		}
	}

	if store.DealCount() != 0 || store.UserCount() != 0 {
		t.Fatalf("administrative events touched the deal view")
	}
	if store.EventCount() != 3 {
		t.Fatalf("expected 3 records, got %d", store.EventCount())
	}
}

func TestDealLifecycleScenario(t *testing.T) {
	projector, store := newTestProjector()
	ctx := context.Background()

	if err := projector.Apply(ctx, deposited(t, "42", 100, "0x01")); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	deal, ok, _ := store.GetDeal(ctx, "42")
	if !ok {
		t.Fatalf("deal missing")
	}
	want := model.Deal{
		ID:               "42",
		Buyer:            buyerAddr,
		Seller:           sellerAddr,
		Amount:           "1000000",
		TimeoutInSeconds: "259200",
		CreatedAt:        deal.CreatedAt,
		DepositTx:        "0x01",
	}
	if !reflect.DeepEqual(deal, want) {
		t.Fatalf("deal mismatch: %+v", deal)
	}

	raised := typedRecord(t, escrow.EventDisputeRaised, model.DisputeRaisedEventData{
		DealID: "42", Disputer: buyerAddr,
	}, 101, "0x02", 0)
	if err := projector.Apply(ctx, raised); err != nil {
		t.Fatalf("raise: %v", err)
	}
	deal, _, _ = store.GetDeal(ctx, "42")
	if !deal.IsDisputed {
		t.Fatalf("dispute flag missing: %+v", deal)
	}

	resolved := typedRecord(t, escrow.EventDisputeResolved, model.DisputeResolvedEventData{
		DealID: "42", Winner: sellerAddr, Amount: "1000000",
	}, 102, "0x03", 0)
	if err := projector.Apply(ctx, resolved); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	deal, _, _ = store.GetDeal(ctx, "42")
	if deal.IsDisputed || !deal.IsCompleted || deal.IsRefunded {
		t.Fatalf("final state wrong: %+v", deal)
	}
}
