package cli

import (
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"alsrag/internal/adapter/server"
	"alsrag/internal/adapter/source"
	"alsrag/internal/port"
	"alsrag/internal/usecase"
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Answer incoming messages in a poll loop",
	Long: `Poll the configured source for new messages and answer each one with a
short reply grounded in the stored documentation.

With the file source, write {"message": "...", "processed": false} to the
input file; the exchange is written to the output file.`,
	Args: cobra.NoArgs,
	RunE: runAgent,
}

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the agent loop with the HTTP status and tool endpoints",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(agentCmd)
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
}

func resolvePath(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(rootDir, p)
}

func buildLoop(a *app) (*usecase.PollLoop, error) {
	var (
		src       port.InputSource
		watchPath string
	)
	switch cfg.Agent.Source {
	case "file", "":
		watchPath = resolvePath(cfg.Agent.InputPath)
		src = source.NewFileSource(watchPath, logger)
	case "tweet":
		if cfg.Agent.TweetURL == "" {
			return nil, fmt.Errorf("agent.tweet_url is required for the tweet source")
		}
		src = source.NewTweetSource(cfg.Agent.TweetURL, cfg.Agent.ReplyURL, cfg.LLM.Timeout, logger)
	default:
		return nil, fmt.Errorf("unknown agent source %q", cfg.Agent.Source)
	}

	sink := source.NewFileSink(resolvePath(cfg.Agent.OutputPath))
	if err := sink.EnsureExists(); err != nil {
		return nil, err
	}

	return usecase.NewPollLoop(src, sink, a.responder(), usecase.PollOptions{
		Interval:  cfg.Agent.PollInterval,
		WatchPath: watchPath,
	}, logger), nil
}

func runAgent(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	loop, err := buildLoop(a)
	if err != nil {
		return err
	}

	fmt.Println("ALS AI Agent is running.")
	if cfg.Agent.Source == "file" || cfg.Agent.Source == "" {
		fmt.Printf("To interact: update %s with a new message and set 'processed' to false\n", cfg.Agent.InputPath)
		fmt.Printf("Responses will be saved to %s\n", cfg.Agent.OutputPath)
	}
	return loop.Run(ctx)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	loop, err := buildLoop(a)
	if err != nil {
		return err
	}

	addr := cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}
	srv := server.New(a.retriever(), loop.Running, registry, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return loop.Run(gctx)
	})
	g.Go(func() error {
		return srv.ListenAndServe(gctx, addr)
	})

	fmt.Printf("ALS AI Tweet Agent started, listening on %s\n", addr)
	return g.Wait()
}
