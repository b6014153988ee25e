package cli

import (
	"codeberg.org/arekan/animeshot/internal/frame"
	"codeberg.org/arekan/animeshot/internal/media"
)

// Flags holds all command-line flag values
type Flags struct {
	// General flags
	CfgFile string
	Verbose bool

	// Telegram flags
	BotToken string
	AdminID  int64

	// Pipeline flags
	SearchEndpoint string
	Proxy          string
	FrameAttempts  int

	// Storage flags
	DBPath        string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// NewFlags creates a new Flags instance with default values
func NewFlags() *Flags {
	return &Flags{
		Proxy:         media.DefaultProxy,
		FrameAttempts: frame.DefaultMaxAttempts,
	}
}
