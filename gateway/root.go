package gateway

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/smarthome/extgateway/configuration"
	"github.com/smarthome/extgateway/internal/dcontext"
	"github.com/smarthome/extgateway/version"
)

var showVersion bool

func init() {
	RootCmd.AddCommand(ServeCmd)
	RootCmd.AddCommand(VersionCmd)
	RootCmd.Flags().BoolVarP(&showVersion, "version", "v", false, "show the version and exit")
}

// RootCmd is the main command for the 'extgateway' binary.
var RootCmd = &cobra.Command{
	Use:   "extgateway",
	Short: "`extgateway`",
	Long:  "`extgateway` serves the extension administration api.",
	Run: func(cmd *cobra.Command, args []string) {
		if showVersion {
			version.FprintVersion(cmd.OutOrStdout())
			return
		}
		_ = cmd.Usage()
	},
}

// VersionCmd prints the version of the binary.
var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "`version` prints the version and exits",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		version.FprintVersion(cmd.OutOrStdout())
	},
}

// ServeCmd is a cobra command for running the gateway.
var ServeCmd = &cobra.Command{
	Use:   "serve <config>",
	Short: "`serve` runs the extension gateway",
	Long:  "`serve` runs the extension gateway until it receives SIGINT or SIGTERM.",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		config, err := resolveConfiguration(args)
		if err != nil {
			fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
			_ = cmd.Usage()
			os.Exit(1)
		}

		ctx := dcontext.Background()

		gateway, err := NewGateway(ctx, config)
		if err != nil {
			dcontext.GetLogger(ctx).Fatalln(err)
		}

		if err = gateway.ListenAndServe(); err != nil {
			dcontext.GetLogger(ctx).Fatalln(err)
		}
	},
}

// resolveConfiguration reads the configuration from the path given as the
// first argument or, failing that, from EXTGATEWAY_CONFIGURATION_PATH.
func resolveConfiguration(args []string) (*configuration.Configuration, error) {
	var configurationPath string

	if len(args) > 0 {
		configurationPath = args[0]
	} else if os.Getenv("EXTGATEWAY_CONFIGURATION_PATH") != "" {
		configurationPath = os.Getenv("EXTGATEWAY_CONFIGURATION_PATH")
	}

	if configurationPath == "" {
		return nil, fmt.Errorf("configuration path unspecified")
	}

	fp, err := os.Open(configurationPath)
	if err != nil {
		return nil, err
	}
	defer fp.Close()

	config, err := configuration.Parse(fp)
	if err != nil {
		return nil, fmt.Errorf("error parsing %s: %w", configurationPath, err)
	}

	return config, nil
}
