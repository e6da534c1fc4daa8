package main

import (
	"context"
	"fmt"
	"net/url"
	"os"

	"github.com/mdp/qrterminal/v3"
	"github.com/spf13/cobra"
)

var flagShareBase string

var shareCmd = &cobra.Command{
	Use:   "share <uniqueId>",
	Short: "Print the public chat link for a persona, with a QR code",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
		defer cancel()
		p, err := newAPIClient().GetPersona(ctx, args[0])
		if err != nil {
			return err
		}
		link := fmt.Sprintf("%s/chatbot/%s/%s", flagShareBase, url.PathEscape(p.Name), p.UniqueID)
		fmt.Printf("%s\n\n", link)
		qrterminal.GenerateWithConfig(link, qrterminal.Config{
			Level:     qrterminal.M,
			Writer:    os.Stdout,
			BlackChar: qrterminal.BLACK,
			WhiteChar: qrterminal.WHITE,
			QuietZone: 1,
		})
		return nil
	},
}

func init() {
	shareCmd.Flags().StringVar(&flagShareBase, "base-url",
		envOr("PERSONAHUB_PUBLIC_URL", "http://localhost:3000"), "public dashboard base URL")
	rootCmd.AddCommand(shareCmd)
}
