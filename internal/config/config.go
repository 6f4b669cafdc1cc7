// Package config loads node configuration from the environment, the way
// the teacher's walletserver/config package loads its ServerConfig: a
// best-effort .env load followed by os.Getenv reads with defaults.
package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds everything Node Assembly needs to bind a coordinator to a
// concrete gossip endpoint and store.
type Config struct {
	UserName       string
	AgentName      string
	DataDir        string
	ListenAddr     string
	BootstrapPeers []string
}

// Load reads Config from the environment. A missing .env file is not an
// error; SMEMO_* variables simply fall back to their defaults.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		UserName:   os.Getenv("SMEMO_USER_NAME"),
		AgentName:  getenvDefault("SMEMO_AGENT_NAME", "smemo-agent"),
		DataDir:    os.Getenv("SMEMO_DATA_DIR"),
		ListenAddr: os.Getenv("SMEMO_LISTEN_ADDR"),
	}
	if cfg.UserName == "" {
		if host, err := os.Hostname(); err == nil {
			cfg.UserName = host
		} else {
			cfg.UserName = "anonymous"
		}
	}
	if raw := os.Getenv("SMEMO_BOOTSTRAP_PEERS"); raw != "" {
		for _, addr := range strings.Split(raw, ",") {
			addr = strings.TrimSpace(addr)
			if addr != "" {
				cfg.BootstrapPeers = append(cfg.BootstrapPeers, addr)
			}
		}
	}
	return cfg
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
