package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/logsink-io/logsink/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "logsink",
	Short: "Append-only HTTP log sink",
	Long: `logsink listens for HTTP POST requests on a single endpoint and
appends each request body to a local file, one record per line. The body
is treated as an opaque byte sequence and never parsed.`,
	Example: `  logsink
  logsink --port 9100 --endpoint /ingest
  LOGSINK_FILE=/var/log/sink/records.txt logsink --fsync`,
	RunE:          runServe,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.Flags().String("host", config.DefaultHost, "Bind address")
	rootCmd.Flags().Int("port", config.DefaultPort, "Bind port")
	rootCmd.Flags().String("endpoint", config.DefaultEndpoint, "Accepted POST path")
	rootCmd.Flags().String("file", config.DefaultFile, "Log file to append to")
	rootCmd.Flags().Bool("fsync", false, "Fsync after every append")
	rootCmd.Flags().String("log-level", "info", "Log level (debug, info, warn, error)")

	viper.BindPFlag("host", rootCmd.Flags().Lookup("host"))
	viper.BindPFlag("port", rootCmd.Flags().Lookup("port"))
	viper.BindPFlag("endpoint", rootCmd.Flags().Lookup("endpoint"))
	viper.BindPFlag("file", rootCmd.Flags().Lookup("file"))
	viper.BindPFlag("fsync", rootCmd.Flags().Lookup("fsync"))
	viper.BindPFlag("log-level", rootCmd.Flags().Lookup("log-level"))

	viper.SetEnvPrefix("LOGSINK")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
