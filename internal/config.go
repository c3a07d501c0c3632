package internal

import "time"

// Config holds every runtime knob of the server, loaded from the
// environment in cmd/server.
type Config struct {
	Host string `env:"HOST,default=0.0.0.0"`
	Port int    `env:"PORT,default=8080"`

	LogLevel string `env:"LOG_LEVEL,default=info"`

	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`

	JWTSecret         string        `env:"JWT_SECRET,required=true"`
	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,default=24h"`

	// Per-connection delivery buffer. When a connection falls this many
	// events behind, further events are dropped for it (the durable store
	// remains the source of truth).
	ConnectionBufferSize int `env:"CONNECTION_BUFFER_SIZE,default=64"`

	BadgerGCInterval time.Duration `env:"BADGER_GC_INTERVAL,default=10m"`

	// Comma-separated list of words masked by moderation. Empty disables it.
	CensoredWords   string `env:"CENSORED_WORDS"`
	CharReplacement string `env:"CHARACTER_REPLACEMENT,default=*"`
}
