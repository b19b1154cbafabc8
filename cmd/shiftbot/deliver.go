package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/gyaneshwarpardhi/shiftbot/internal/event"
	"github.com/gyaneshwarpardhi/shiftbot/internal/ledger"
	"github.com/gyaneshwarpardhi/shiftbot/internal/normalize"
)

var (
	deliverUser   string
	deliverServer string
	deliverChan   string
	deliverModel  string
	deliverGross  string
	deliverFans   string
)

var deliverCmd = &cobra.Command{
	Use:   "deliver <login|break|logout_break|logout>",
	Short: "Send one event to the ledger webhook and print the outcome",
	Long: `Deliver builds a single shift event and posts it to the configured
ledger webhook, exactly as the bot would. Useful to check the webhook
deployment without going through Discord.

The logout kind requires --model, --gross and --fans.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ev, err := buildEvent(event.Kind(args[0]), time.Now())
		if err != nil {
			return err
		}

		res, err := ledger.New(cfg.Ledger.URL).Deliver(context.Background(), ev)
		fmt.Fprintf(os.Stdout, "event %s (%s) delivered=%t in %s\n", ev.ID, ev.Kind, res.Delivered, res.Duration.Round(time.Millisecond))
		return err
	},
}

func init() {
	deliverCmd.Flags().StringVar(&deliverUser, "user", "cli#0", "Actor as name#discriminator")
	deliverCmd.Flags().StringVar(&deliverServer, "server", "", "Workspace name (empty for a direct message)")
	deliverCmd.Flags().StringVar(&deliverChan, "channel", "", "Channel name")
	deliverCmd.Flags().StringVar(&deliverModel, "model", "", "Model name (logout only)")
	deliverCmd.Flags().StringVar(&deliverGross, "gross", "", "Gross amount (logout only)")
	deliverCmd.Flags().StringVar(&deliverFans, "fans", "", "Subscribed fans (logout only)")
	rootCmd.AddCommand(deliverCmd)
}

func buildEvent(kind event.Kind, now time.Time) (*event.Event, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown event kind %q", kind)
	}
	var origin *event.Origin
	if deliverServer != "" {
		origin = &event.Origin{Workspace: deliverServer, Channel: deliverChan}
	}
	ev := event.New(kind, parseActor(deliverUser), origin, now)
	if kind == event.KindLogout {
		sales, err := normalize.SalesReport(deliverModel, deliverGross, deliverFans)
		if err != nil {
			return nil, err
		}
		ev.Sales = sales
	}
	return ev, nil
}

func parseActor(tag string) event.Actor {
	for i := len(tag) - 1; i >= 0; i-- {
		if tag[i] == '#' {
			return event.Actor{ID: tag, Username: tag[:i], Discriminator: tag[i+1:]}
		}
	}
	return event.Actor{ID: tag, Username: tag, Discriminator: "0"}
}
