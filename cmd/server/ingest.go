package main

import (
	"encoding/json"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/sakif/tour-tracker/internal/ingest"
	"github.com/sakif/tour-tracker/internal/service"
)

// NewIngestCmd creates the ingest subcommand: the same pass as
// POST /api/events/process, run from a shell or a cron job.
func NewIngestCmd() *cobra.Command {
	var dmaID, maxEvents int

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Fetch Ticketmaster events for one DMA and store them",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runIngest(cmd, dmaID, maxEvents)
		},
	}
	cmd.Flags().IntVar(&dmaID, "dma", 0, "Ticketmaster designated market area id (required)")
	cmd.Flags().IntVar(&maxEvents, "max", ingest.DefaultMaxEvents, "maximum events to process")
	_ = cmd.MarkFlagRequired("dma")

	return cmd
}

func runIngest(cmd *cobra.Command, dmaID, maxEvents int) error {
	cfg, logger, err := bootstrap(cmd)
	if err != nil {
		return err
	}
	if cfg.Ticketmaster.Key == "" {
		return oops.Code("CONFIG_INVALID").Errorf("TM_API_KEY is required")
	}

	ctx := cmd.Context()
	store, err := openStore(ctx, cfg, logger, true)
	if err != nil {
		return err
	}
	defer store.Close()

	client := ingest.NewClient(cfg.Ticketmaster.Key, cfg.Ticketmaster.BaseURL, cfg.Ticketmaster.Timeout)
	processor := ingest.NewProcessor(client, service.NewCatalogService(store, nil, logger), nil, logger)

	report, err := processor.Process(ctx, dmaID, maxEvents)
	if err != nil {
		return oops.Code("INGEST_FAILED").With("dma", dmaID).Wrap(err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
