package commands

import (
	"fmt"
	"strings"

	"github.com/fluxnet/fluxnet/src/config"
	"github.com/fluxnet/fluxnet/src/peers"
)

//CLIConfig contains configuration for the Run command
type CLIConfig struct {
	Node config.Config `mapstructure:",squash"`

	// StaticNodes populates the static registry, one pubkey@ip per entry.
	StaticNodes []string `mapstructure:"static-nodes"`
}

//NewDefaultCLIConfig creates a CLIConfig with default values
func NewDefaultCLIConfig() *CLIConfig {
	return &CLIConfig{
		Node: *config.NewDefaultConfig(),
	}
}

// parseStaticNodes turns pubkey@ip entries into enabled node records.
func parseStaticNodes(entries []string) ([]peers.NodeRecord, error) {
	records := make([]peers.NodeRecord, 0, len(entries))
	for _, e := range entries {
		parts := strings.SplitN(strings.TrimSpace(e), "@", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("static node %q is not pubkey@ip", e)
		}
		records = append(records, peers.NewNodeRecord(parts[0], parts[1]))
	}
	return records, nil
}
