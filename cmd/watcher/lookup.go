package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sollane/worldstate-watcher/internal/lookup"
)

func newLookupClient() (*lookup.Client, error) {
	cache, err := lookup.NewFileCache(cfg.Lookup.CacheDir, map[string]time.Duration{
		"item_details": time.Duration(cfg.Lookup.ItemTTLSec) * time.Second,
		"item_orders":  time.Duration(cfg.Lookup.OrdersTTLSec) * time.Second,
	}, logger)
	if err != nil {
		return nil, err
	}
	return lookup.NewClient(newGateway(), cache, cfg.Lookup.BaseURL, logger), nil
}

func lookupCmd() *cobra.Command {
	var (
		orders bool
		rank   int
	)

	cmd := &cobra.Command{
		Use:   "lookup SLUG",
		Short: "Fetch item details or orders through the cached market lookup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newLookupClient()
			if err != nil {
				return err
			}

			var payload []byte
			if orders {
				payload, err = client.ItemOrders(cmd.Context(), args[0], rank)
			} else {
				payload, err = client.ItemDetails(cmd.Context(), args[0])
			}
			if err != nil {
				return err
			}

			fmt.Println(string(payload))
			return nil
		},
	}

	cmd.Flags().BoolVar(&orders, "orders", false, "fetch top orders instead of item details")
	cmd.Flags().IntVar(&rank, "rank", -1, "mod rank for order lookups (-1 for any)")

	return cmd
}
