package project

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"escrowScope/internal/escrow"
	"escrowScope/internal/model"
)

const saveEvery = 1000

// Config controls projection behavior.
type Config struct {
	StateStore StateStore
}

// Projector applies decoded escrow events, in chain order, to the
// materialized Deal/User view and the raw-event records. Every event gets a
// raw record; only the five deal-lifecycle events touch the Deal state
// machine. All transitions are idempotent, so re-applying an event after a
// partial failure converges on the same state.
type Projector struct {
	cfg    Config
	store  Store
	logger *zap.Logger
}

func NewProjector(cfg Config, store Store, logger *zap.Logger) *Projector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Projector{
		cfg:    cfg,
		store:  store,
		logger: logger,
	}
}

// Run projects a typed events JSONL file into the store, resuming from the
// recorded block. The boundary block is re-applied on resume; idempotent
// transitions make that safe.
func (p *Projector) Run(ctx context.Context, inputPath string) error {
	if p.store == nil {
		return fmt.Errorf("store is nil")
	}

	var resumeBlock uint64
	if p.cfg.StateStore != nil {
		block, ok, err := p.cfg.StateStore.Load(ctx)
		if err != nil {
			return err
		}
		if ok {
			resumeBlock = block
			p.logger.Info("resume projection", zap.Uint64("last_processed_block", block))
		}
	}

	file, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	var total, applied, skipped int
	var lastBlock, lastLogIndex, maxBlock uint64

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		total++

		var record model.TypedEventRecord
		if err := json.Unmarshal(line, &record); err != nil {
			return fmt.Errorf("parse typed event line %d: %w", total, err)
		}

		if record.BlockNumber < resumeBlock {
			skipped++
			continue
		}

		if record.BlockNumber < lastBlock ||
			(record.BlockNumber == lastBlock && record.LogIndex < lastLogIndex) {
			p.logger.Warn("out-of-order event",
				zap.Uint64("block", record.BlockNumber),
				zap.Uint64("log_index", record.LogIndex),
				zap.Uint64("prev_block", lastBlock),
				zap.Uint64("prev_log_index", lastLogIndex),
			)
		}
		lastBlock, lastLogIndex = record.BlockNumber, record.LogIndex

		if err := p.Apply(ctx, record); err != nil {
			return fmt.Errorf("apply %s at %s-%d: %w", record.EventName, record.TxHash, record.LogIndex, err)
		}
		applied++

		if record.BlockNumber > maxBlock {
			maxBlock = record.BlockNumber
		}
		if p.cfg.StateStore != nil && applied%saveEvery == 0 {
			if err := p.cfg.StateStore.Save(ctx, maxBlock); err != nil {
				return err
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan input: %w", err)
	}

	if p.cfg.StateStore != nil && maxBlock > 0 {
		if err := p.cfg.StateStore.Save(ctx, maxBlock); err != nil {
			return err
		}
	}

	p.logger.Info("projection complete",
		zap.Int("total", total),
		zap.Int("applied", applied),
		zap.Int("skipped", skipped),
		zap.Uint64("last_block", maxBlock),
	)
	return nil
}

// Apply records the raw event and runs the matching deal transition.
// Storage errors propagate so the event can be retried; everything else is
// absorbed according to the no-op rules.
func (p *Projector) Apply(ctx context.Context, record model.TypedEventRecord) error {
	if record.EventName == "" {
		return fmt.Errorf("missing event name")
	}
	if record.TxHash == "" {
		return fmt.Errorf("missing transaction hash")
	}

	eventRecord := model.EventRecord{
		ID:             model.EventRecordID(record.TxHash, record.LogIndex),
		EventName:      record.EventName,
		Params:         record.Decoded,
		BlockNumber:    record.BlockNumber,
		BlockTimestamp: record.Timestamp,
		TxHash:         record.TxHash,
		LogIndex:       record.LogIndex,
	}
	if err := p.store.PutEvent(ctx, eventRecord); err != nil {
		return fmt.Errorf("record event: %w", err)
	}

	switch record.EventName {
	case escrow.EventDeposited:
		return p.applyDeposited(ctx, record)
	case escrow.EventReleased:
		return p.applyReleased(ctx, record)
	case escrow.EventRefunded:
		return p.applyRefunded(ctx, record)
	case escrow.EventDisputeRaised:
		return p.applyDisputeRaised(ctx, record)
	case escrow.EventDisputeResolved:
		return p.applyDisputeResolved(ctx, record)
	default:
		// Administrative events carry no deal state; the raw record is all.
		return nil
	}
}

func (p *Projector) applyDeposited(ctx context.Context, record model.TypedEventRecord) error {
	var data model.DepositedEventData
	if err := json.Unmarshal(record.Decoded, &data); err != nil {
		return fmt.Errorf("decode Deposited payload: %w", err)
	}
	if data.DealID == "" {
		return fmt.Errorf("Deposited without dealId")
	}
	if !common.IsHexAddress(data.Buyer) || !common.IsHexAddress(data.Seller) {
		p.logger.Warn("deposited with malformed party address",
			zap.String("deal_id", data.DealID),
			zap.String("buyer", data.Buyer),
			zap.String("seller", data.Seller),
		)
		return nil
	}

	existing, ok, err := p.store.GetDeal(ctx, data.DealID)
	if err != nil {
		return err
	}
	if ok && existing.DepositTx == record.TxHash {
		// Redelivery of the deposit that created this deal. Keeping the
		// existing row preserves flags set by later events in the stream.
		return nil
	}

	if err := p.store.EnsureUser(ctx, data.Buyer); err != nil {
		return fmt.Errorf("ensure buyer: %w", err)
	}
	if err := p.store.EnsureUser(ctx, data.Seller); err != nil {
		return fmt.Errorf("ensure seller: %w", err)
	}

	deal := model.Deal{
		ID:               data.DealID,
		Buyer:            data.Buyer,
		Seller:           data.Seller,
		Amount:           data.Amount,
		TimeoutInSeconds: data.TimeoutInSeconds,
		CreatedAt:        record.Timestamp,
		DepositTx:        record.TxHash,
	}
	return p.store.PutDeal(ctx, deal)
}

func (p *Projector) applyReleased(ctx context.Context, record model.TypedEventRecord) error {
	var data model.ReleasedEventData
	if err := json.Unmarshal(record.Decoded, &data); err != nil {
		return fmt.Errorf("decode Released payload: %w", err)
	}

	deal, ok, err := p.store.GetDeal(ctx, data.DealID)
	if err != nil {
		return err
	}
	if !ok {
		p.logUnknownDeal(escrow.EventReleased, data.DealID)
		return nil
	}

	deal.IsCompleted = true
	deal.ReleaseTx = record.TxHash
	return p.store.PutDeal(ctx, deal)
}

func (p *Projector) applyRefunded(ctx context.Context, record model.TypedEventRecord) error {
	var data model.RefundedEventData
	if err := json.Unmarshal(record.Decoded, &data); err != nil {
		return fmt.Errorf("decode Refunded payload: %w", err)
	}

	deal, ok, err := p.store.GetDeal(ctx, data.DealID)
	if err != nil {
		return err
	}
	if !ok {
		p.logUnknownDeal(escrow.EventRefunded, data.DealID)
		return nil
	}

	deal.IsCompleted = true
	deal.IsRefunded = true
	deal.RefundTx = record.TxHash
	return p.store.PutDeal(ctx, deal)
}

func (p *Projector) applyDisputeRaised(ctx context.Context, record model.TypedEventRecord) error {
	var data model.DisputeRaisedEventData
	if err := json.Unmarshal(record.Decoded, &data); err != nil {
		return fmt.Errorf("decode DisputeRaised payload: %w", err)
	}

	deal, ok, err := p.store.GetDeal(ctx, data.DealID)
	if err != nil {
		return err
	}
	if !ok {
		p.logUnknownDeal(escrow.EventDisputeRaised, data.DealID)
		return nil
	}

	deal.IsDisputed = true
	return p.store.PutDeal(ctx, deal)
}

func (p *Projector) applyDisputeResolved(ctx context.Context, record model.TypedEventRecord) error {
	var data model.DisputeResolvedEventData
	if err := json.Unmarshal(record.Decoded, &data); err != nil {
		return fmt.Errorf("decode DisputeResolved payload: %w", err)
	}

	deal, ok, err := p.store.GetDeal(ctx, data.DealID)
	if err != nil {
		return err
	}
	if !ok {
		p.logUnknownDeal(escrow.EventDisputeResolved, data.DealID)
		return nil
	}

	// Resolution closes the dispute and terminates the deal no matter which
	// party won; the contract only resolves disputes on still-open deals.
	deal.IsDisputed = false
	deal.IsCompleted = true
	return p.store.PutDeal(ctx, deal)
}

func (p *Projector) logUnknownDeal(eventName, dealID string) {
	// Expected when the deal predates the configured start block.
	p.logger.Warn("lifecycle event for unknown deal",
		zap.String("event", eventName),
		zap.String("deal_id", dealID),
	)
}
