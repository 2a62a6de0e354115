package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/zfogg/feedsync/internal/devserver"
	"github.com/zfogg/feedsync/pkg/config"
	"go.uber.org/zap"
)

var (
	configFile string
	addr       string
	seedUsers  int
	seedPosts  int
	debugMode  bool
)

var rootCmd = &cobra.Command{
	Use:          "feedsync-devserver",
	Short:        "In-memory feed API for local development",
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().StringVar(&configFile, "config", "", "Config file path")
	rootCmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")
	rootCmd.Flags().IntVar(&seedUsers, "seed-users", 0, "Create this many demo users on startup")
	rootCmd.Flags().IntVar(&seedPosts, "seed-posts", 4, "Posts per demo user")
	rootCmd.Flags().BoolVar(&debugMode, "debug", false, "Run gin in debug mode")
}

func run(cmd *cobra.Command, args []string) error {
	if err := config.Init(configFile); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := devserver.NewLogger(config.GetString("server.log_level"), config.GetString("server.log_file"))
	defer func() { _ = log.Sync() }()

	if debugMode {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	cfg := devserver.ConfigFromConfig()
	if addr != "" {
		cfg.Addr = addr
	}
	srv := devserver.New(cfg, log)

	if seedUsers > 0 {
		usernames, err := srv.Seed(devserver.SeedOptions{
			Users:           seedUsers,
			PostsPerUser:    seedPosts,
			CommentsPerPost: 2,
		})
		if err != nil {
			return err
		}
		log.Info("Demo users ready", zap.Strings("usernames", usernames), zap.String("password", "password123"))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return srv.Run(ctx)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
