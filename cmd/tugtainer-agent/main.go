package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cuemby/tugtainer/pkg/agent"
	"github.com/cuemby/tugtainer/pkg/containerengine"
	"github.com/cuemby/tugtainer/pkg/log"
)

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "tugtainer-agent",
	Short: "tugtainer agent: per-host signed HTTP surface over containerd",
	Long: `tugtainer-agent runs on every monitored host. It exposes container,
image, manifest, and command operations over a signed HTTP surface that the
controller's host client calls.`,
	Version: Version,
	RunE:    runAgent,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("tugtainer-agent version %s\nCommit: %s\nBuilt: %s\n", Version, Commit, BuildTime))

	rootCmd.Flags().String("listen-addr", "0.0.0.0:9876", "Address the agent HTTP surface binds to")
	rootCmd.Flags().String("containerd-socket", containerengine.DefaultSocketPath, "containerd gRPC socket path")
	rootCmd.Flags().String("secret", "", "Shared HMAC secret; empty disables request signing")
	rootCmd.Flags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.Flags().Bool("log-json", true, "Output logs in JSON format")
}

func runAgent(cmd *cobra.Command, args []string) error {
	logLevel, _ := cmd.Flags().GetString("log-level")
	logJSON, _ := cmd.Flags().GetBool("log-json")
	log.Init(log.Config{Level: log.Level(logLevel), JSONOutput: logJSON})

	listenAddr, _ := cmd.Flags().GetString("listen-addr")
	socketPath, _ := cmd.Flags().GetString("containerd-socket")
	secret, _ := cmd.Flags().GetString("secret")

	eng, err := containerengine.New(socketPath)
	if err != nil {
		return fmt.Errorf("connecting to containerd: %w", err)
	}
	defer eng.Close()

	srv := agent.NewServer(eng, agent.Config{Secret: secret})

	log.Logger.Info().Str("listen_addr", listenAddr).Str("containerd_socket", socketPath).Msg("agent started")
	return srv.Start(listenAddr)
}
