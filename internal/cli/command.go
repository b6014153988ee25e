package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"codeberg.org/arekan/animeshot/internal"
)

// CreateRootCommand creates and configures the root cobra command
func CreateRootCommand(flags *Flags) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "animeshot",
		Short: "Anime screenshot identification bot",
		Long: `animeshot runs a Telegram bot that identifies the source anime of a
screenshot or a short video clip.

Users send a photo or a TikTok / YouTube Shorts link; the bot extracts a
still frame, runs a reverse image search and replies with paginated
matches. A secondary command looks up anime metadata by title.`,
		Args:    cobra.NoArgs,
		Version: internal.Version,
	}

	// Set up flags
	setupFlags(rootCmd, flags)

	return rootCmd
}

func setupFlags(cmd *cobra.Command, flags *Flags) {
	home, _ := os.UserHomeDir()
	defaultDBPath := filepath.Join(home, ".local", "state", "animeshot", "users.db")

	// Global flags
	cmd.PersistentFlags().StringVar(&flags.CfgFile, "config", "", "config file (default is $HOME/.animeshot.yaml)")

	// Local flags
	cmd.Flags().BoolVarP(&flags.Verbose, "verbose", "v", false, "Enable debug logging")
	cmd.Flags().StringVar(&flags.BotToken, "bot-token", "", "Telegram bot token (or ANIMESHOT_BOT_TOKEN)")
	cmd.Flags().Int64Var(&flags.AdminID, "admin-id", 0, "Telegram user ID of the bot admin")
	cmd.Flags().StringVar(&flags.SearchEndpoint, "search-endpoint", "", "Reverse image search endpoint URL")
	cmd.Flags().StringVar(&flags.Proxy, "proxy", flags.Proxy, "SOCKS5 proxy for video downloads")
	cmd.Flags().IntVar(&flags.FrameAttempts, "frame-attempts", flags.FrameAttempts, "Max frames probed when looking for a non-black frame")
	cmd.Flags().StringVar(&flags.DBPath, "db-path", defaultDBPath, "SQLite user registry path")
	cmd.Flags().StringVar(&flags.RedisAddr, "redis-addr", "", "Redis address for session storage (empty = in-memory)")
	cmd.Flags().StringVar(&flags.RedisPassword, "redis-password", "", "Redis password")
	cmd.Flags().IntVar(&flags.RedisDB, "redis-db", 0, "Redis database number")

	// Bind flags to viper
	bindFlagsToViper(cmd)
}

func bindFlagsToViper(cmd *cobra.Command) {
	viper.BindPFlag("bot.token", cmd.Flags().Lookup("bot-token"))
	viper.BindPFlag("bot.admin_id", cmd.Flags().Lookup("admin-id"))
	viper.BindPFlag("bot.verbose", cmd.Flags().Lookup("verbose"))
	viper.BindPFlag("search.endpoint", cmd.Flags().Lookup("search-endpoint"))
	viper.BindPFlag("media.proxy", cmd.Flags().Lookup("proxy"))
	viper.BindPFlag("media.frame_attempts", cmd.Flags().Lookup("frame-attempts"))
	viper.BindPFlag("storage.db_path", cmd.Flags().Lookup("db-path"))
	viper.BindPFlag("storage.redis_addr", cmd.Flags().Lookup("redis-addr"))
	viper.BindPFlag("storage.redis_password", cmd.Flags().Lookup("redis-password"))
	viper.BindPFlag("storage.redis_db", cmd.Flags().Lookup("redis-db"))
}

// InitConfig initializes viper configuration
func InitConfig(cfgFile string) {
	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error getting home directory: %v\n", err)
			return
		}

		// Search config in home directory with name ".animeshot" (without extension)
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".animeshot")
	}

	// Environment variables
	viper.SetEnvPrefix("ANIMESHOT")
	viper.AutomaticEnv()

	// Read config file
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// GetBotToken retrieves the Telegram bot token from environment or config
func GetBotToken() string {
	// First check environment variable
	if token := os.Getenv("ANIMESHOT_BOT_TOKEN"); token != "" {
		return token
	}

	// Then check config file
	return viper.GetString("bot.token")
}

// GetAdminID retrieves the admin's Telegram user ID from environment or config
func GetAdminID() int64 {
	if raw := os.Getenv("ANIMESHOT_ADMIN_ID"); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return id
		}
	}
	return viper.GetInt64("bot.admin_id")
}
