// Command aw-garmin copies Garmin sleep and activity data into ActivityWatch (or Kafka/Postgres)
// without inserting the same event twice.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/AndreyKarmanov/aw-garmin/internal/config"
	"github.com/AndreyKarmanov/aw-garmin/internal/domain"
	xlog "github.com/AndreyKarmanov/aw-garmin/internal/log"
)

const (
	exitFailure = 1
	exitAuth    = 2
)

var (
	envFile  string
	logLevel string
	cfg      config.Config
)

var rootCmd = &cobra.Command{
	Use:   "aw-garmin",
	Short: "Incrementally sync Garmin Connect health data into ActivityWatch",
	Long: `aw-garmin pulls sleep stages and all-day activities from Garmin Connect and writes them
as events into an ActivityWatch bucket. A per-stream watermark records the latest synced event
end so repeated runs over overlapping date windows never insert duplicates.

Configuration is read from the environment and from a .env file next to the executable.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(envFile)
		if err != nil {
			return err
		}
		if logLevel != "" {
			loaded.LogLevel = logLevel
		}
		xlog.Configure(xlog.Config{Level: loaded.LogLevel, File: loaded.LogFile, Service: "aw-garmin"})
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", config.DefaultEnvFile(), "dotenv file to read configuration from")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override LOG_LEVEL (debug, info, warn, error)")

	rootCmd.AddCommand(syncCmd, statusCmd, daemonCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	if errors.Is(err, domain.ErrAuth) {
		return exitAuth
	}
	return exitFailure
}
