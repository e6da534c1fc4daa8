package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"personahub/internal/util"
	"personahub/pkg/mirror"
	"personahub/pkg/personaclient"
	"personahub/pkg/registry"
)

// mirrorQuota caps the on-disk mirror, matching the storage budget a
// browser grants a single origin.
const mirrorQuota = 5 << 20

var (
	flagServer     string
	flagChatServer string
	flagDataDir    string
	flagAdminToken string
	flagLogLevel   string
)

var rootCmd = &cobra.Command{
	Use:           "personactl",
	Short:         "Manage and talk to chatbot personas",
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		util.InitLogger(flagLogLevel, "personactl")
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagServer, "server", envOr("PERSONAHUB_SERVER", "http://localhost:8000"), "persona service base URL")
	pf.StringVar(&flagChatServer, "chat-server", envOr("PERSONAHUB_CHAT_SERVER", "ws://localhost:8001"), "chat relay base URL")
	pf.StringVar(&flagDataDir, "data-dir", defaultDataDir(), "directory for the local persona mirror")
	pf.StringVar(&flagAdminToken, "token", os.Getenv("PERSONAHUB_ADMIN_TOKEN"), "admin bearer token for mutating calls")
	pf.StringVar(&flagLogLevel, "log-level", "warn", "log level (debug, info, warn, error)")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func defaultDataDir() string {
	if v := os.Getenv("PERSONAHUB_DATA_DIR"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".personahub"
	}
	return filepath.Join(home, ".personahub")
}

func newAPIClient() *personaclient.Client {
	var opts []personaclient.Option
	if flagAdminToken != "" {
		opts = append(opts, personaclient.WithAuthToken(flagAdminToken))
	}
	return personaclient.NewClient(flagServer, opts...)
}

func newRegistry() (*registry.Registry, error) {
	fileKV, err := mirror.NewFileKV(filepath.Join(flagDataDir, "mirror"), mirrorQuota)
	if err != nil {
		return nil, fmt.Errorf("init mirror: %w", err)
	}
	mir := mirror.NewAdapter(fileKV, mirror.NewMemKV())
	return registry.New(newAPIClient(), mir, slog.Default()), nil
}
