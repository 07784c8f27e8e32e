package redis

import "time"

// SSHConfig holds the settings for tunneling the Redis connection
// through an SSH server. Password and private key auth can be
// combined; at least one must be set.
type SSHConfig struct {
	Host           string
	Port           int
	User           string
	Password       string
	PrivateKeyPath string
}

// IsValid reports whether the SSH settings are complete enough to
// open a tunnel.
func (s SSHConfig) IsValid() bool {
	return s.Host != "" && s.Port > 0 && s.Port <= 65535 && s.User != "" &&
		(s.Password != "" || s.PrivateKeyPath != "")
}

// ConnectionConfig describes one Redis endpoint. The zero value is
// not usable; start from DefaultConfig.
type ConnectionConfig struct {
	Host         string
	Port         int
	AuthPassword string

	ConnectionTimeout time.Duration
	ExecuteTimeout    time.Duration

	UseTLS       bool
	UseSSHTunnel bool
	SSH          SSHConfig

	// OverrideClusterHost controls whether cluster traversals connect
	// to the host reported by CLUSTER SLOTS (true) or keep the
	// configured host and only switch ports (false). The latter is
	// required behind SSH tunnels, where cluster-announced IPs are not
	// reachable from the client.
	OverrideClusterHost bool
}

// DefaultConfig returns a config for host:port with the stock 60s
// timeouts and OverrideClusterHost enabled.
func DefaultConfig(host string, port int) ConnectionConfig {
	return ConnectionConfig{
		Host:                host,
		Port:                port,
		ConnectionTimeout:   60 * time.Second,
		ExecuteTimeout:      60 * time.Second,
		OverrideClusterHost: true,
	}
}

// IsValid reports whether the config can be used to connect.
func (c ConnectionConfig) IsValid() bool {
	return c.Host != "" && c.Port > 0 && c.Port <= 65535
}

// UseAuth reports whether an AUTH command should be sent after
// connecting.
func (c ConnectionConfig) UseAuth() bool {
	return c.AuthPassword != ""
}
