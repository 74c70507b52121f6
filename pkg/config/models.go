package config

import "time"

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Transport TransportConfig `mapstructure:"transport"`
	Hub       HubConfig       `mapstructure:"hub"`
	Profile   ProfileConfig   `mapstructure:"profile"`
	Sink      SinkConfig      `mapstructure:"sink"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type ServerConfig struct {
	ListenAddress string     `mapstructure:"listenAddress"`
	Auth          AuthConfig `mapstructure:"auth"`
}

type AuthConfig struct {
	// HMAC secret for locally issued session tokens.
	SessionSecret string `mapstructure:"sessionSecret"`
	// Expected issuer of federated identity tokens. Empty disables the
	// federated verifier and only session tokens are accepted.
	FederatedIssuer string `mapstructure:"federatedIssuer"`
	// HMAC secret shared with the federated identity provider.
	FederatedSecret string `mapstructure:"federatedSecret"`
}

type TransportConfig struct {
	// A connection with no inbound frame (heartbeats included) for this
	// long is closed.
	IdleTimeout time.Duration `mapstructure:"idleTimeout"`
	// Outbound frames queued per connection before it is declared
	// unhealthy and closed.
	MaxOutboundBufferFrames int `mapstructure:"maxOutboundBufferFrames"`
}

type HubConfig struct {
	HeartbeatInterval            time.Duration `mapstructure:"heartbeatInterval"`
	PresenceBroadcastMinInterval time.Duration `mapstructure:"presenceBroadcastMinInterval"`
	DuplicateOfferWindow         time.Duration `mapstructure:"duplicateOfferWindow"`
	PairConfirmationDelay        time.Duration `mapstructure:"pairConfirmationDelay"`
}

type ProfileConfig struct {
	CacheTTL time.Duration `mapstructure:"cacheTTL"`
	// SQLite path for the profile store. Empty means profiles are
	// unavailable and all matching degrades to Any/Any.
	DSN string `mapstructure:"dsn"`
}

type SinkConfig struct {
	// SQLite path for the message store. Empty disables persistence.
	DSN string `mapstructure:"dsn"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}
