package config

import (
	"log/slog"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from a file and environment variables.
func Load(logger *slog.Logger, fileName string) (*Config, error) {
	v := viper.New()

	// 1. Set default values
	v.SetDefault("server.listenAddress", ":5001")
	v.SetDefault("server.auth.sessionSecret", "default-secret-key-change-me")
	v.SetDefault("server.auth.federatedIssuer", "")
	v.SetDefault("server.auth.federatedSecret", "")
	v.SetDefault("transport.idleTimeout", "30s")
	v.SetDefault("transport.maxOutboundBufferFrames", 256)
	v.SetDefault("hub.heartbeatInterval", "10s")
	v.SetDefault("hub.presenceBroadcastMinInterval", "500ms")
	v.SetDefault("hub.duplicateOfferWindow", "2s")
	v.SetDefault("hub.pairConfirmationDelay", "500ms")
	v.SetDefault("profile.cacheTTL", "60s")
	v.SetDefault("profile.dsn", "")
	v.SetDefault("sink.dsn", "")
	v.SetDefault("logging.level", "info")

	// 2. Set config file details
	v.SetConfigName(fileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(".") // look for config in the working directory

	// 3. Set up environment variable handling
	v.SetEnvPrefix("OMCGILL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 4. Read the configuration file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// Config file was found but another error was produced
			return nil, err
		}
		logger.Warn("Config file not found. ignoring error and relying on defaults/env vars")
	}

	// 5. Unmarshal the configuration into our struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
