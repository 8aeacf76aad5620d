package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sollane/worldstate-watcher/internal/subscription"
)

func subsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "subs",
		Short: "Manage fissure subscriptions",
	}

	cmd.AddCommand(subsAddCmd())
	cmd.AddCommand(subsRemoveCmd())
	cmd.AddCommand(subsListCmd())
	return cmd
}

func openStore() (*subscription.Store, error) {
	return subscription.NewStore(cfg.Subscriptions.File, cfg.Subscriptions.MaxPerOwner, logger)
}

func subsAddCmd() *cobra.Command {
	var (
		owner      string
		channel    string
		difficulty string
		tier       string
		planet     string
		nodeFilter string
	)

	cmd := &cobra.Command{
		Use:   "add MISSION_TYPE",
		Short: "Add a fissure subscription",
		Long: `Add a fissure subscription for an owner on a delivery channel.

Examples:
  # Watch normal defense fissures of any tier anywhere
  worldstate-watcher subs add Defense --owner U1 --channel ops

  # Watch steel path survival on Axi fissures only
  worldstate-watcher subs add Survival --owner U1 --channel ops --difficulty steel --tier Axi

  # Narrow to nodes whose name or path contains "Cordelia"
  worldstate-watcher subs add Capture --owner U1 --channel ops --node Cordelia`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}

			sub := subscription.New(owner, channel, args[0], difficulty, tier, planet, nodeFilter)
			if err := store.Add(sub); err != nil {
				switch {
				case errors.Is(err, subscription.ErrDuplicate):
					return fmt.Errorf("an identical subscription already exists")
				case errors.Is(err, subscription.ErrQuotaExceeded):
					return fmt.Errorf("owner %s already holds %d subscriptions (the maximum)",
						owner, cfg.Subscriptions.MaxPerOwner)
				default:
					return err
				}
			}

			fmt.Printf("Subscribed %s on channel %s: %s %s tier=%s planet=%s\n",
				owner, channel, sub.MissionType, sub.Difficulty, sub.Tier, sub.Planet)
			return nil
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "owner id (required)")
	cmd.Flags().StringVar(&channel, "channel", "", "delivery channel id (required)")
	cmd.Flags().StringVar(&difficulty, "difficulty", "normal", "normal, steel, or both")
	cmd.Flags().StringVar(&tier, "tier", "all", "fissure tier or all")
	cmd.Flags().StringVar(&planet, "planet", "all", "planet or all")
	cmd.Flags().StringVar(&nodeFilter, "node", "", "substring filter on node name or path")
	_ = cmd.MarkFlagRequired("owner")
	_ = cmd.MarkFlagRequired("channel")

	return cmd
}

func subsRemoveCmd() *cobra.Command {
	var (
		owner       string
		channel     string
		missionType string
		difficulty  string
		tier        string
		planet      string
		nodeFilter  string
	)

	cmd := &cobra.Command{
		Use:   "remove",
		Short: "Remove subscriptions matching the given filters",
		Long: `Remove subscriptions for an owner on a channel. Unset filter flags act
as wildcards; with no filters every subscription the owner holds on the
channel is removed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}

			removed := store.Remove(owner, channel, subscription.RemoveFilter{
				MissionType: missionType,
				Difficulty:  difficulty,
				Tier:        tier,
				Planet:      planet,
				NodeFilter:  nodeFilter,
			})

			if len(removed) == 0 {
				fmt.Println("No matching subscriptions")
				return nil
			}
			for _, sub := range removed {
				fmt.Printf("Removed: %s %s tier=%s planet=%s\n",
					sub.MissionType, sub.Difficulty, sub.Tier, sub.Planet)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "owner id (required)")
	cmd.Flags().StringVar(&channel, "channel", "", "delivery channel id (required)")
	cmd.Flags().StringVar(&missionType, "type", "", "mission type filter")
	cmd.Flags().StringVar(&difficulty, "difficulty", "", "difficulty filter")
	cmd.Flags().StringVar(&tier, "tier", "", "tier filter")
	cmd.Flags().StringVar(&planet, "planet", "", "planet filter")
	cmd.Flags().StringVar(&nodeFilter, "node", "", "node substring filter")
	_ = cmd.MarkFlagRequired("owner")
	_ = cmd.MarkFlagRequired("channel")

	return cmd
}

func subsListCmd() *cobra.Command {
	var (
		owner   string
		channel string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List subscriptions",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}

			var subs []subscription.Subscription
			switch {
			case owner != "":
				subs = store.ListByOwner(owner, channel)
			case channel != "":
				subs = store.ListByChannel(channel)
			default:
				subs = store.All()
			}

			if len(subs) == 0 {
				fmt.Println("No subscriptions")
				return nil
			}
			for _, sub := range subs {
				node := sub.NodeFilter
				if node == "" {
					node = "-"
				}
				fmt.Printf("%-12s %-12s %-20s %-8s %-8s %-10s %s\n",
					sub.Owner, sub.Channel, sub.MissionType, sub.Difficulty, sub.Tier, sub.Planet, node)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "filter by owner id")
	cmd.Flags().StringVar(&channel, "channel", "", "filter by channel id")

	return cmd
}
