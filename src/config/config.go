package config

import (
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/fluxnet/fluxnet/src/common"
	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

// Default filenames.
const (
	// DefaultKeyfile is the default name of the file containing the node's
	// private key
	DefaultKeyfile = "priv_key"

	// DefaultConfigName is the base name of the optional config file in the
	// data directory (fluxnet.toml, fluxnet.yaml or fluxnet.json).
	DefaultConfigName = "fluxnet"
)

// Registry kinds.
const (
	RegistryStatic = "static"
	RegistryJSON   = "json"
	RegistryDaemon = "daemon"
)

// Default configuration values.
const (
	DefaultLogLevel        = "info"
	DefaultIPAddress       = "127.0.0.1"
	DefaultAPIPort         = 16127
	DefaultWSPath          = "/ws/flux/"
	DefaultListenAddr      = ":16127"
	DefaultMinPeers        = 5
	DefaultDiscoveryFast   = 1000 * time.Millisecond
	DefaultDiscoverySlow   = 30000 * time.Millisecond
	DefaultHeartbeat       = 30000 * time.Millisecond
	DefaultDialTimeout     = 5000 * time.Millisecond
	DefaultWriteTimeout    = 5000 * time.Millisecond
	DefaultRegistryTimeout = 10000 * time.Millisecond
	DefaultFutureTolerance = 120000 * time.Millisecond
	DefaultStaleAfter      = 300000 * time.Millisecond
	DefaultRegistry        = RegistryJSON
	DefaultDaemonAddr      = "127.0.0.1:16124"
	DefaultInboundRate     = 0
	DefaultInboundBurst    = 20
)

// Config contains all the configuration properties of a fluxnet node.
type Config struct {
	// DataDir is the top-level directory containing the key file, the
	// optional config file and, for the json registry, nodes.json.
	DataDir string `mapstructure:"datadir"`

	// LogLevel determines the chattiness of the log output.
	LogLevel string `mapstructure:"log"`

	// LogFile, when set, receives a copy of every log line.
	LogFile string `mapstructure:"log-file"`

	// IPAddress is the public address of this node as it appears in the node
	// registry. Discovery never dials it.
	IPAddress string `mapstructure:"ip"`

	// APIPort is the port peers serve the overlay websocket on. Outbound
	// connections dial ws://<ip>:<APIPort>/ws/flux/.
	APIPort int `mapstructure:"api-port"`

	// ListenAddr is the local address:port of the HTTP service.
	ListenAddr string `mapstructure:"listen"`

	// MinPeers caps the number of outbound connections discovery aims for.
	MinPeers int `mapstructure:"min-peers"`

	// DiscoveryFast is the delay before the next discovery round while more
	// outbound peers are needed.
	DiscoveryFast time.Duration `mapstructure:"discovery-fast"`

	// DiscoverySlow is the delay before the next discovery round once enough
	// outbound peers are connected.
	DiscoverySlow time.Duration `mapstructure:"discovery-slow"`

	// Heartbeat is the period of the ping broadcast.
	Heartbeat time.Duration `mapstructure:"heartbeat"`

	// DialTimeout bounds the websocket handshake of outbound connections.
	DialTimeout time.Duration `mapstructure:"dial-timeout"`

	// WriteTimeout bounds every single message write.
	WriteTimeout time.Duration `mapstructure:"write-timeout"`

	// RegistryTimeout bounds every node registry query.
	RegistryTimeout time.Duration `mapstructure:"registry-timeout"`

	// FutureTolerance is how far in the future a broadcast timestamp may be.
	FutureTolerance time.Duration `mapstructure:"future-tolerance"`

	// StaleAfter is the age after which a broadcast is outdated.
	StaleAfter time.Duration `mapstructure:"stale-after"`

	// Registry selects the node registry: static, json or daemon.
	Registry string `mapstructure:"registry"`

	// DaemonAddr is the JSON-RPC endpoint of the local chain daemon.
	DaemonAddr string `mapstructure:"daemon-addr"`

	// DaemonUser and DaemonPassword are the RPC credentials of the daemon.
	DaemonUser     string `mapstructure:"daemon-user"`
	DaemonPassword string `mapstructure:"daemon-password"`

	// AdminSecret is the HMAC secret of the bearer tokens that grant access
	// to the administrative endpoints. Empty disables them.
	AdminSecret string `mapstructure:"admin-secret"`

	// InboundRate is the number of messages per second an inbound connection
	// may send. Zero or less disables the limit.
	InboundRate float64 `mapstructure:"inbound-rate"`

	// InboundBurst is the burst size of the inbound limit.
	InboundBurst int `mapstructure:"inbound-burst"`

	// PrivateKey is the WIF (or hex) private key of the node. When empty the
	// key is read from the key file in DataDir.
	PrivateKey string `mapstructure:"private-key"`

	logger *logrus.Logger
}

// NewDefaultConfig returns a config object with default values.
func NewDefaultConfig() *Config {
	config := &Config{
		DataDir:         DefaultDataDir(),
		LogLevel:        DefaultLogLevel,
		IPAddress:       DefaultIPAddress,
		APIPort:         DefaultAPIPort,
		ListenAddr:      DefaultListenAddr,
		MinPeers:        DefaultMinPeers,
		DiscoveryFast:   DefaultDiscoveryFast,
		DiscoverySlow:   DefaultDiscoverySlow,
		Heartbeat:       DefaultHeartbeat,
		DialTimeout:     DefaultDialTimeout,
		WriteTimeout:    DefaultWriteTimeout,
		RegistryTimeout: DefaultRegistryTimeout,
		FutureTolerance: DefaultFutureTolerance,
		StaleAfter:      DefaultStaleAfter,
		Registry:        DefaultRegistry,
		DaemonAddr:      DefaultDaemonAddr,
		InboundRate:     DefaultInboundRate,
		InboundBurst:    DefaultInboundBurst,
	}

	return config
}

// NewTestConfig returns a config object with default values and a special
// logger for debugging tests.
func NewTestConfig(t testing.TB, level logrus.Level) *Config {
	config := NewDefaultConfig()
	config.logger = common.NewTestLogger(t, level)
	return config
}

// SetDataDir sets the top-level directory.
func (c *Config) SetDataDir(dataDir string) {
	c.DataDir = dataDir
}

// Keyfile returns the full path of the file containing the private key.
func (c *Config) Keyfile() string {
	return filepath.Join(c.DataDir, DefaultKeyfile)
}

// WSPath returns the path peers serve the overlay websocket on.
func (c *Config) WSPath() string {
	return DefaultWSPath
}

// Logger returns a formatted logrus Entry, with prefix set to "fluxnet".
func (c *Config) Logger() *logrus.Entry {
	if c.logger == nil {
		c.logger = logrus.New()
		c.logger.Level = LogLevel(c.LogLevel)
		c.logger.Formatter = new(prefixed.TextFormatter)

		if c.LogFile != "" {
			c.logger.Hooks.Add(lfshook.NewHook(
				lfshook.PathMap{
					logrus.DebugLevel: c.LogFile,
					logrus.InfoLevel:  c.LogFile,
					logrus.WarnLevel:  c.LogFile,
					logrus.ErrorLevel: c.LogFile,
					logrus.FatalLevel: c.LogFile,
					logrus.PanicLevel: c.LogFile,
				},
				&logrus.JSONFormatter{},
			))
		}
	}
	return c.logger.WithField("prefix", "fluxnet")
}

// DefaultDataDir return the default directory name for top-level fluxnet
// config based on the underlying OS, attempting to respect conventions.
func DefaultDataDir() string {
	// Try to place the data folder in the user's home dir
	home := HomeDir()
	if home != "" {
		if runtime.GOOS == "darwin" {
			return filepath.Join(home, ".Fluxnet")
		} else if runtime.GOOS == "windows" {
			return filepath.Join(home, "AppData", "Roaming", "Fluxnet")
		} else {
			return filepath.Join(home, ".fluxnet")
		}
	}
	// As we cannot guess a stable location, return empty and handle later
	return ""
}

// HomeDir returns the user's home directory.
func HomeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if usr, err := user.Current(); err == nil {
		return usr.HomeDir
	}
	return ""
}

// LogLevel parses a string into a Logrus log level.
func LogLevel(l string) logrus.Level {
	switch l {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.DebugLevel
	}
}
