package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fluxnet/fluxnet/src/config"
	"github.com/fluxnet/fluxnet/src/crypto/keys"
	"github.com/fluxnet/fluxnet/src/net"
	"github.com/fluxnet/fluxnet/src/node"
	"github.com/fluxnet/fluxnet/src/peers"
	"github.com/fluxnet/fluxnet/src/service"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

//NewRunCmd returns the command that starts a fluxnet node
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "run",
		Short:   "Run node",
		PreRunE: loadConfig,
		RunE:    runFluxnet,
	}
	AddRunFlags(cmd)
	return cmd
}

/*******************************************************************************
* RUN
*******************************************************************************/

func runFluxnet(cmd *cobra.Command, args []string) error {
	conf := &_config.Node
	logger := conf.Logger()

	identity, err := newIdentity(conf)
	if err != nil {
		logger.Error("Cannot load private key: ", err)
		return err
	}

	registry, err := newRegistry(conf)
	if err != nil {
		logger.Error("Cannot create node registry: ", err)
		return err
	}

	incoming := net.NewInboundSet()
	auth := service.NewTokenAuthorizer(conf.AdminSecret, logger.WithField("component", "service"))

	n := node.NewNode(conf, registry, identity, auth, incoming)

	svc := service.NewService(conf.ListenAddr,
		conf.WSPath(),
		n,
		incoming,
		auth,
		logger.WithField("component", "service"),
	)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- svc.Serve()
	}()

	n.Start()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-signalCh:
		logger.WithField("signal", sig).Info("Received signal, stopping")
	case err = <-serveErr:
		if err != nil {
			logger.WithError(err).Error("API server stopped")
		}
	}

	n.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if serr := svc.Shutdown(ctx); serr != nil && err == nil {
		err = serr
	}

	return err
}

func newIdentity(conf *config.Config) (*keys.KeyIdentity, error) {
	if conf.PrivateKey != "" {
		key, err := keys.ParseKeyString(conf.PrivateKey)
		if err != nil {
			return nil, err
		}
		return keys.NewKeyIdentity(key), nil
	}

	keyfile := keys.NewSimpleKeyfile(conf.Keyfile())
	identity := keys.NewKeyIdentityFromFile(keyfile)

	// fail now rather than on the first broadcast
	if _, err := identity.PrivateKey(""); err != nil {
		return nil, err
	}

	return identity, nil
}

func newRegistry(conf *config.Config) (peers.Registry, error) {
	switch conf.Registry {
	case config.RegistryStatic:
		records, err := parseStaticNodes(_config.StaticNodes)
		if err != nil {
			return nil, err
		}
		return peers.NewStaticRegistry(records...), nil
	case config.RegistryJSON:
		return peers.NewJSONRegistry(conf.DataDir), nil
	case config.RegistryDaemon:
		return peers.NewDaemonRegistry(conf.DaemonAddr,
			conf.DaemonUser,
			conf.DaemonPassword,
			conf.RegistryTimeout,
		), nil
	default:
		return nil, fmt.Errorf("unknown registry %q", conf.Registry)
	}
}

/*******************************************************************************
* CONFIG
*******************************************************************************/

//AddRunFlags adds flags to the Run command
func AddRunFlags(cmd *cobra.Command) {
	c := &_config.Node

	cmd.Flags().String("datadir", c.DataDir, "Top-level directory for configuration and data")
	cmd.Flags().String("log", c.LogLevel, "debug, info, warn, error, fatal, panic")
	cmd.Flags().String("log-file", c.LogFile, "Also write logs as JSON to this file")

	// Identity
	cmd.Flags().String("ip", c.IPAddress, "Public IP of this node, as listed in the node registry")
	cmd.Flags().String("private-key", c.PrivateKey, "WIF or hex private key (default: read from datadir/priv_key)")

	// Network
	cmd.Flags().StringP("listen", "l", c.ListenAddr, "Listen IP:Port for the HTTP service")
	cmd.Flags().Int("api-port", c.APIPort, "Port other nodes serve the overlay on")
	cmd.Flags().Duration("dial-timeout", c.DialTimeout, "Timeout of outbound handshakes")
	cmd.Flags().Duration("write-timeout", c.WriteTimeout, "Timeout of every message write")
	cmd.Flags().Float64("inbound-rate", c.InboundRate, "Messages per second accepted per inbound connection, 0 for no limit")
	cmd.Flags().Int("inbound-burst", c.InboundBurst, "Burst of the inbound rate limit")

	// Discovery and heartbeat
	cmd.Flags().Int("min-peers", c.MinPeers, "Maximum number of outbound peers discovery aims for")
	cmd.Flags().Duration("discovery-fast", c.DiscoveryFast, "Delay between discovery rounds while peers are missing")
	cmd.Flags().Duration("discovery-slow", c.DiscoverySlow, "Delay between discovery rounds once enough peers are connected")
	cmd.Flags().Duration("heartbeat", c.Heartbeat, "Time between pings")

	// Authentication
	cmd.Flags().Duration("future-tolerance", c.FutureTolerance, "How far in the future a broadcast may be dated")
	cmd.Flags().Duration("stale-after", c.StaleAfter, "Age after which a broadcast is outdated")

	// Node registry
	cmd.Flags().String("registry", c.Registry, "Node registry: static, json or daemon")
	cmd.Flags().Duration("registry-timeout", c.RegistryTimeout, "Timeout of node registry queries")
	cmd.Flags().StringSlice("static-nodes", _config.StaticNodes, "pubkey@ip entries of the static registry")
	cmd.Flags().String("daemon-addr", c.DaemonAddr, "JSON-RPC address of the chain daemon")
	cmd.Flags().String("daemon-user", c.DaemonUser, "RPC user of the chain daemon")
	cmd.Flags().String("daemon-password", c.DaemonPassword, "RPC password of the chain daemon")

	// Service
	cmd.Flags().String("admin-secret", c.AdminSecret, "HMAC secret of admin tokens, empty disables admin operations")
}

func loadConfig(cmd *cobra.Command, args []string) error {

	err := bindFlagsLoadViper(cmd)
	if err != nil {
		return err
	}

	_config.Node.SetDataDir(_config.Node.DataDir)

	logFields := logrus.Fields{
		"fluxnet.DataDir":         _config.Node.DataDir,
		"fluxnet.LogLevel":        _config.Node.LogLevel,
		"fluxnet.IPAddress":       _config.Node.IPAddress,
		"fluxnet.ListenAddr":      _config.Node.ListenAddr,
		"fluxnet.APIPort":         _config.Node.APIPort,
		"fluxnet.MinPeers":        _config.Node.MinPeers,
		"fluxnet.DiscoveryFast":   _config.Node.DiscoveryFast,
		"fluxnet.DiscoverySlow":   _config.Node.DiscoverySlow,
		"fluxnet.Heartbeat":       _config.Node.Heartbeat,
		"fluxnet.DialTimeout":     _config.Node.DialTimeout,
		"fluxnet.WriteTimeout":    _config.Node.WriteTimeout,
		"fluxnet.RegistryTimeout": _config.Node.RegistryTimeout,
		"fluxnet.FutureTolerance": _config.Node.FutureTolerance,
		"fluxnet.StaleAfter":      _config.Node.StaleAfter,
		"fluxnet.Registry":        _config.Node.Registry,
		"fluxnet.InboundRate":     _config.Node.InboundRate,
		"fluxnet.InboundBurst":    _config.Node.InboundBurst,
	}

	switch _config.Node.Registry {
	case config.RegistryDaemon:
		logFields["fluxnet.DaemonAddr"] = _config.Node.DaemonAddr
	case config.RegistryStatic:
		logFields["StaticNodes"] = len(_config.StaticNodes)
	}

	_config.Node.Logger().WithFields(logFields).Debug("RUN")

	return nil
}

// Bind all flags and read the config into viper
func bindFlagsLoadViper(cmd *cobra.Command) error {
	// Register flags with viper. Include flags from this command and all other
	// persistent flags from the parent
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// first unmarshal to read from CLI flags
	if err := viper.Unmarshal(_config); err != nil {
		return err
	}

	// look for config file in [datadir]/fluxnet.toml (.json, .yaml also work)
	viper.SetConfigName(config.DefaultConfigName) // name of config file (without extension)
	viper.AddConfigPath(_config.Node.DataDir)     // search root directory

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		_config.Node.Logger().Debugf("Using config file: %s", viper.ConfigFileUsed())
	} else if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		_config.Node.Logger().Debugf("No config file found in: %s", _config.Node.DataDir)
	} else {
		return err
	}

	// second unmarshal to read from config file
	return viper.Unmarshal(_config)
}
