// accumulo-admin drives the structural table operations client against
// an in-process cluster. It exists to exercise and demonstrate the
// client library end to end; point a real transport at the rpc
// interfaces to run it against an actual cluster.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/nstruharova/accumulo/pkg/client"
	"github.com/nstruharova/accumulo/pkg/util/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	configPath string
	verbosity  int32
)

// registerFlags installs the persistent flags. Underscores in flag names
// are normalized to dashes so both spellings resolve.
func registerFlags(fs *pflag.FlagSet) {
	fs.StringVar(&configPath, "config", "", "path to a YAML client config")
	fs.Int32Var(&verbosity, "verbosity", 0, "log verbosity level")
	fs.SetNormalizeFunc(func(f *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})
}

func main() {
	root := &cobra.Command{
		Use:           "accumulo-admin",
		Short:         "structural table operations client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			log.SetVerbosity(verbosity)
		},
	}
	registerFlags(root.PersistentFlags())

	root.AddCommand(demoCmd())
	root.AddCommand(configCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadConfig() (client.Config, error) {
	if configPath == "" {
		return client.DefaultConfig(), nil
	}
	return client.LoadConfig(configPath)
}

func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "print the effective client configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			fmt.Printf("control plane:   %s\n", cfg.ControlPlaneAddr)
			fmt.Printf("user:            %s\n", cfg.User)
			fmt.Printf("split workers:   %d\n", cfg.SplitWorkers)
			opts := cfg.RetryOptions()
			fmt.Printf("retry backoff:   %s initial, %s max, x%.1f\n",
				opts.InitialBackoff, opts.MaxBackoff, opts.Multiplier)
			return nil
		},
	}
}

func demoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "run the structural operations walkthrough on an in-process cluster",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runDemo(context.Background(), cfg)
		},
	}
}
