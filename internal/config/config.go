package config

import (
	"os"

	"github.com/joho/godotenv"
)

// DefaultServerURL is the compiled-in endpoint; SHIRITORI_SERVER_URL
// overrides it for local development against the stub server.
const DefaultServerURL = "wss://word-game-server.onrender.com/ws"

// DefaultListenAddr is where the stub server binds.
const DefaultListenAddr = ":8080"

type Config struct {
	ServerURL  string
	ListenAddr string
}

// Load reads .env if present, then the environment.
func Load() Config {
	_ = godotenv.Load() // optional; env wins either way

	return Config{
		ServerURL:  getenv("SHIRITORI_SERVER_URL", DefaultServerURL),
		ListenAddr: getenv("SHIRITORI_LISTEN_ADDR", DefaultListenAddr),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
