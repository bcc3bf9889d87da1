// Package cli provides the command-line interface for wirecurl.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"dqx0.com/go/wireclient/internal/config"
	"dqx0.com/go/wireclient/internal/obs"
)

var cfgFile string
var cfg *config.Config

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "wirecurl",
	Short: "A raw-socket HTTP/1.1 and WebSocket client",
	Long: `Wirecurl speaks HTTP/1.1 and WebSocket directly over TCP or TLS sockets.

Examples:
  # Fetch a page
  wirecurl get https://example.com/

  # Send a request with headers and a body
  wirecurl request -X POST -H 'content-type: application/json' -d '{"a":1}' http://127.0.0.1:8080/items

  # Open a WebSocket session; stdin lines are sent as text messages
  wirecurl ws ws://127.0.0.1:8080/echo`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(requestCmd)
	rootCmd.AddCommand(wsCmd)
	rootCmd.AddCommand(configCmd)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/wirecurl/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolP("insecure", "k", false, "skip TLS certificate verification")
	rootCmd.PersistentFlags().Duration("timeout", 0, "connect timeout")

	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("insecure", rootCmd.PersistentFlags().Lookup("insecure"))
	viper.BindPFlag("timeout", rootCmd.PersistentFlags().Lookup("timeout"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	var err error
	if cfgFile != "" {
		cfg, err = config.LoadFromFile(cfgFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v, using defaults\n", err)
		cfg = config.DefaultConfig()
	}

	if viper.IsSet("log_level") && viper.GetString("log_level") != "" {
		cfg.Logging.Level = viper.GetString("log_level")
	}
	if viper.GetBool("insecure") {
		cfg.HTTP.InsecureTLS = true
	}
	if viper.IsSet("timeout") && viper.GetDuration("timeout") > 0 {
		cfg.HTTP.Timeout = viper.GetDuration("timeout")
	}
}

// GetConfig returns the loaded configuration
func GetConfig() *config.Config {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return cfg
}

func newLogger(cmd *cobra.Command) obs.Logger {
	c := GetConfig()
	lvl, err := obs.ParseLevel(c.Logging.Level)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
	}
	return obs.NewZerolog(cmd.ErrOrStderr(), lvl, c.Logging.Format).With("wirecurl")
}
