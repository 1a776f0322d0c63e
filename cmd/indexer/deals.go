package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"escrowScope/internal/storage/postgres"
)

func newDealsCmd() *cobra.Command {
	dealsCmd := &cobra.Command{
		Use:   "deals",
		Short: "List deals for a participant address",
		RunE:  runDeals,
	}

	dealsCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	dealsCmd.Flags().String("participant", "", "buyer or seller address")
	dealsCmd.Flags().Int("limit", 50, "maximum deals to return")

	return dealsCmd
}

func runDeals(cmd *cobra.Command, _ []string) error {
	dsn, _ := cmd.Flags().GetString("pg-dsn")
	participant, _ := cmd.Flags().GetString("participant")
	limit, _ := cmd.Flags().GetInt("limit")

	if dsn == "" {
		dsn = os.Getenv("ESCROW_PG_DSN")
	}
	if dsn == "" {
		return fmt.Errorf("pg dsn is required")
	}
	if !common.IsHexAddress(participant) {
		return fmt.Errorf("invalid participant address: %s", participant)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := postgres.NewStore(ctx, dsn)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer store.Close()

	deals, err := store.ListDealsByParticipant(ctx, common.HexToAddress(participant).Hex(), limit)
	if err != nil {
		return fmt.Errorf("list deals: %w", err)
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(deals)
}
