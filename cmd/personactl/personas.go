package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"personahub/pkg/domain"
)

const commandTimeout = 15 * time.Second

var (
	flagName      string
	flagWelcome   string
	flagAPIKey    string
	flagLogoColor string
	flagHeader    string
	flagAnalytics string
	flagForce     bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List personas (falls back to the local mirror when offline)",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := newRegistry()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
		defer cancel()
		if err := reg.Refresh(ctx); err != nil {
			return err
		}
		if reg.Stale() {
			fmt.Fprintln(os.Stderr, "warning: persona service unreachable, showing locally mirrored data")
		}
		personas := reg.Personas()
		if len(personas) == 0 {
			fmt.Println("no personas configured")
			return nil
		}
		tw := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "UNIQUE ID\tNAME\tWELCOME\tAPI KEY")
		for _, p := range personas {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.UniqueID, p.Name, truncate(p.WelcomeText, 40), maskKey(p.APIKey))
		}
		return tw.Flush()
	},
}

var getCmd = &cobra.Command{
	Use:   "get <uniqueId>",
	Short: "Show one persona",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
		defer cancel()
		p, err := newAPIClient().GetPersona(ctx, args[0])
		if err != nil {
			return err
		}
		printPersona(p)
		return nil
	},
}

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a persona",
	RunE: func(cmd *cobra.Command, args []string) error {
		p := domain.Persona{
			Name:            flagName,
			WelcomeText:     flagWelcome,
			APIKey:          flagAPIKey,
			ChatLogoColor:   flagLogoColor,
			ChatHeaderColor: flagHeader,
			AnalyticsURL:    flagAnalytics,
		}
		return savePersona(cmd.Context(), p)
	},
}

var updateCmd = &cobra.Command{
	Use:   "update <uniqueId>",
	Short: "Update a persona",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
		defer cancel()
		p, err := newAPIClient().GetPersona(ctx, args[0])
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("name") {
			p.Name = flagName
		}
		if cmd.Flags().Changed("welcome") {
			p.WelcomeText = flagWelcome
		}
		if cmd.Flags().Changed("api-key") {
			p.APIKey = flagAPIKey
		}
		if cmd.Flags().Changed("logo-color") {
			p.ChatLogoColor = flagLogoColor
		}
		if cmd.Flags().Changed("header-color") {
			p.ChatHeaderColor = flagHeader
		}
		if cmd.Flags().Changed("analytics-url") {
			p.AnalyticsURL = flagAnalytics
		}
		return savePersona(cmd.Context(), p)
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <uniqueId>",
	Short: "Delete a persona",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := newRegistry()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
		defer cancel()
		if err := reg.Refresh(ctx); err != nil {
			return err
		}
		var target domain.Persona
		found := false
		for _, p := range reg.Personas() {
			if p.UniqueID == args[0] {
				target, found = p, true
				break
			}
		}
		if !found {
			return fmt.Errorf("persona %s not found", args[0])
		}
		if !flagForce {
			fmt.Printf("delete persona %q (%s)? [y/N] ", target.Name, target.UniqueID)
			var answer string
			fmt.Scanln(&answer)
			if answer != "y" && answer != "Y" {
				fmt.Println("aborted")
				return nil
			}
		}
		if err := reg.Remove(ctx, target.ID, target.UniqueID); err != nil {
			return err
		}
		fmt.Printf("deleted %s\n", target.UniqueID)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show persona service health",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
		defer cancel()
		health, err := newAPIClient().CheckHealth(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("connected:   %v\n", health.Connected)
		fmt.Printf("database:    %s\n", health.Database)
		if health.ConnectionString != "" {
			fmt.Printf("connection:  %s\n", health.ConnectionString)
		}
		fmt.Printf("personas:    %d\n", health.ChatbotCount)
		return nil
	},
}

func savePersona(ctx context.Context, p domain.Persona) error {
	reg, err := newRegistry()
	if err != nil {
		return err
	}
	opCtx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()
	// Seed the working set so upserts see current unique ids.
	if err := reg.Refresh(opCtx); err != nil && p.ID != "" {
		return err
	}
	saved, err := reg.Upsert(opCtx, p)
	if err != nil {
		return err
	}
	fmt.Printf("saved persona %q (%s)\n", saved.Name, saved.UniqueID)
	return nil
}

func printPersona(p domain.Persona) {
	tw := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "uniqueId:\t%s\n", p.UniqueID)
	fmt.Fprintf(tw, "name:\t%s\n", p.Name)
	fmt.Fprintf(tw, "welcome:\t%s\n", p.WelcomeText)
	fmt.Fprintf(tw, "apiKey:\t%s\n", maskKey(p.APIKey))
	if p.ChatLogoColor != "" {
		fmt.Fprintf(tw, "logoColor:\t%s\n", p.ChatLogoColor)
	}
	if p.ChatHeaderColor != "" {
		fmt.Fprintf(tw, "headerColor:\t%s\n", p.ChatHeaderColor)
	}
	if p.AnalyticsURL != "" {
		fmt.Fprintf(tw, "analyticsUrl:\t%s\n", p.AnalyticsURL)
	}
	tw.Flush()
}

func maskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

func init() {
	for _, cmd := range []*cobra.Command{createCmd, updateCmd} {
		cmd.Flags().StringVar(&flagName, "name", "", "persona display name")
		cmd.Flags().StringVar(&flagWelcome, "welcome", "", "welcome message")
		cmd.Flags().StringVar(&flagAPIKey, "api-key", "", "backend API key (app-...)")
		cmd.Flags().StringVar(&flagLogoColor, "logo-color", "", "chat logo color")
		cmd.Flags().StringVar(&flagHeader, "header-color", "", "chat header color")
		cmd.Flags().StringVar(&flagAnalytics, "analytics-url", "", "analytics dashboard URL")
	}
	deleteCmd.Flags().BoolVarP(&flagForce, "force", "f", false, "skip confirmation")

	rootCmd.AddCommand(listCmd, getCmd, createCmd, updateCmd, deleteCmd, statusCmd)
}
