package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"codeberg.org/arekan/animeshot/internal/bot"
	"codeberg.org/arekan/animeshot/internal/cli"
	"codeberg.org/arekan/animeshot/internal/delivery"
	"codeberg.org/arekan/animeshot/internal/frame"
	"codeberg.org/arekan/animeshot/internal/media"
	"codeberg.org/arekan/animeshot/internal/meta"
	"codeberg.org/arekan/animeshot/internal/registry"
	"codeberg.org/arekan/animeshot/internal/search"
	"codeberg.org/arekan/animeshot/internal/session"
	"codeberg.org/arekan/animeshot/internal/telegram"
)

func main() {
	// Create flags instance
	flags := cli.NewFlags()

	// Create root command
	rootCmd := cli.CreateRootCommand(flags)

	// Set up command initialization
	cobra.OnInitialize(func() {
		cli.InitConfig(flags.CfgFile)
	})

	// Set the run function
	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runBot(flags)
	}

	// Execute command
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runBot(flags *cli.Flags) error {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if flags.Verbose || viper.GetBool("bot.verbose") {
		log.SetLevel(logrus.DebugLevel)
	}

	token := cli.GetBotToken()
	if token == "" {
		return fmt.Errorf("no bot token configured (set ANIMESHOT_BOT_TOKEN or bot.token)")
	}

	endpoint := flags.SearchEndpoint
	if endpoint == "" {
		endpoint = viper.GetString("search.endpoint")
	}
	if endpoint == "" {
		return fmt.Errorf("no search endpoint configured (set --search-endpoint or search.endpoint)")
	}

	client := telegram.NewClient(token)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	me, err := client.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("verify bot token: %w", err)
	}
	log.WithField("username", me.Username).Info("authorized")

	// Session store: Redis when configured, in-memory otherwise.
	var sessions session.Store
	redisAddr := flags.RedisAddr
	if redisAddr == "" {
		redisAddr = viper.GetString("storage.redis_addr")
	}
	if redisAddr != "" {
		store, err := session.NewRedisStore(redisAddr, flags.RedisPassword, flags.RedisDB)
		if err != nil {
			return fmt.Errorf("session store: %w", err)
		}
		defer store.Close()
		sessions = store
		log.WithField("addr", redisAddr).Info("using redis session store")
	} else {
		sessions = session.NewMemoryStore()
	}

	dbPath := flags.DBPath
	if fromConfig := viper.GetString("storage.db_path"); fromConfig != "" {
		dbPath = fromConfig
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("create registry directory: %w", err)
	}
	users, err := registry.Open(dbPath)
	if err != nil {
		return err
	}
	defer users.Close()

	extractor := frame.NewExtractorWithGrabber(frame.FFmpegGrabber{}, flags.FrameAttempts)
	downloader := media.NewYtDlpDownloader(flags.Proxy)
	acquirer := media.NewAcquirer(client, downloader, extractor)

	b := bot.New(bot.Deps{
		Transport: client,
		Acquirer:  acquirer,
		Searcher:  search.NewClient(endpoint),
		Metadata:  meta.NewClient(),
		Renderer:  delivery.NewController(client, log),
		Sessions:  sessions,
		Users:     users,
		AdminID:   cli.GetAdminID(),
		Log:       log,
	})

	if err := b.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	log.Info("shutting down")
	return nil
}
