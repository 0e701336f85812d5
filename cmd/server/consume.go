package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/sakif/tour-tracker/internal/ingest"
	"github.com/sakif/tour-tracker/internal/service"
)

// NewConsumeCmd creates the consume subcommand.
func NewConsumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "consume",
		Short: "Resolve Ticketmaster events published to an AMQP queue",
		Long: `Consume raw Ticketmaster event documents from the queue named by
AMQP_QUEUE and resolve each into catalog rows. Malformed events are
dropped; store failures are requeued. Reconnects with backoff until
SIGINT or SIGTERM.`,
		RunE: runConsume,
	}
}

func runConsume(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := bootstrap(cmd)
	if err != nil {
		return err
	}
	if cfg.AMQP.URL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("AMQP_URL is required")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg, logger, true)
	if err != nil {
		return err
	}
	defer store.Close()

	processor := ingest.NewProcessor(nil, service.NewCatalogService(store, nil, logger), nil, logger)
	consumer := ingest.NewConsumer(cfg.AMQP.URL, cfg.AMQP.Queue, processor, logger)

	if err := consumer.Run(ctx); err != nil {
		return oops.Code("CONSUMER_FAILED").Wrap(err)
	}
	return nil
}
