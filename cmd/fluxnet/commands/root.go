package commands

import (
	"github.com/spf13/cobra"
)

var (
	_config = NewDefaultCLIConfig()
)

//RootCmd is the root command for fluxnet
var RootCmd = &cobra.Command{
	Use:              "fluxnet",
	Short:            "fluxnet overlay node",
	TraverseChildren: true,
}
