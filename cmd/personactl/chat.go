package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"personahub/pkg/chatsession"
	"personahub/pkg/domain"
)

var chatCmd = &cobra.Command{
	Use:   "chat <uniqueId>",
	Short: "Talk to a persona interactively",
	Long: `Opens a WebSocket conversation with the given persona. Bot replies are
rendered from Markdown. Use /reset to start the conversation over and
/quit to leave.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
		defer cancel()
		p, err := newAPIClient().GetPersona(ctx, args[0])
		if err != nil {
			return err
		}
		return runChat(cmd.Context(), p)
	},
}

func runChat(ctx context.Context, p domain.Persona) error {
	prompt := func() { fmt.Print("> ") }
	sess := chatsession.New(flagChatServer, p, slog.Default(),
		chatsession.WithNotify(func(m domain.ChatMessage) {
			switch m.Sender {
			case domain.SenderBot:
				fmt.Printf("\r%s: %s\n", p.Name, renderMarkdown(m.Content))
				prompt()
			case domain.SenderSystem:
				fmt.Printf("\r! %s\n", m.Content)
				prompt()
			}
		}))
	defer sess.Close()

	if err := sess.Connect(ctx); err != nil {
		if errors.Is(err, chatsession.ErrNoAPIKey) {
			return fmt.Errorf("persona %q has no API key configured", p.Name)
		}
		return err
	}

	if p.WelcomeText != "" {
		fmt.Printf("%s: %s\n", p.Name, renderMarkdown(p.WelcomeText))
	}
	fmt.Println("(/reset to start over, /quit to exit)")
	prompt()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			prompt()
			continue
		case "/quit", "/exit":
			return nil
		case "/reset":
			if err := sess.Reset(); err != nil {
				fmt.Printf("! reset failed: %v\n", err)
			} else {
				fmt.Println("conversation reset")
				if p.WelcomeText != "" {
					fmt.Printf("%s: %s\n", p.Name, renderMarkdown(p.WelcomeText))
				}
			}
			prompt()
			continue
		}
		if err := sess.Send(line); err != nil {
			if errors.Is(err, chatsession.ErrNotReady) {
				return errors.New("connection to the chat relay was lost")
			}
			fmt.Printf("! %v\n", err)
			prompt()
		}
	}
	return scanner.Err()
}

func init() {
	rootCmd.AddCommand(chatCmd)
}
