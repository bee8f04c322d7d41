// Command crowdshield-report files incident reports from a device the way
// the attendee app does: one persistent device id, a one-minute cooldown
// between reports, and an AI suggestion with a keyword fallback.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/CrowdShield/CS-Backend/internal/classify"
	"github.com/CrowdShield/CS-Backend/internal/device"
	"github.com/CrowdShield/CS-Backend/internal/localstate"
	"github.com/CrowdShield/CS-Backend/internal/logging"
	"github.com/CrowdShield/CS-Backend/internal/ratelimit"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	apiURL      string
	analyzeURL  string
	analyzeKey  string
	stateFile   string
	httpTimeout time.Duration
	verbose     bool
)

var rootCmd = &cobra.Command{
	Use:   "crowdshield-report",
	Short: "Report crowd safety incidents to CrowdShield",
	Long: `Report crowd safety incidents to CrowdShield.

Available subcommands:
  report    - Submit a report for a zone
  status    - Show whether this device may report now
  device-id - Print this device's persistent id`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := "warn"
		if verbose {
			level = "debug"
		}
		_, err := logging.Init(level, true)
		return err
	},
}

func init() {
	_ = godotenv.Load(".env.local")

	rootCmd.PersistentFlags().StringVar(&apiURL, "api", envOr("CROWDSHIELD_API_URL", "http://localhost:5050"), "CrowdShield API base URL")
	rootCmd.PersistentFlags().StringVar(&analyzeURL, "analyze-url", os.Getenv("CROWDSHIELD_ANALYZE_URL"), "Classification endpoint (default: <api>/analyze)")
	rootCmd.PersistentFlags().StringVar(&analyzeKey, "analyze-key", os.Getenv("CROWDSHIELD_ANALYZE_KEY"), "Shared key for the classification endpoint")
	rootCmd.PersistentFlags().StringVar(&stateFile, "state", envOr("CROWDSHIELD_STATE_FILE", defaultStateFile()), "Local state file holding the device id and last report time")
	rootCmd.PersistentFlags().DurationVar(&httpTimeout, "timeout", 15*time.Second, "HTTP timeout for API calls")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log requests and notices")

	rootCmd.AddCommand(reportCmd, statusCmd, deviceIDCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func defaultStateFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".crowdshield-state.yaml"
	}
	return filepath.Join(dir, "crowdshield", "state.yaml")
}

// session bundles the per-device collaborators every subcommand needs.
type session struct {
	state    localstate.Store
	identity *device.Identity
	limiter  *ratelimit.Submission
}

func openSession() (*session, error) {
	if err := os.MkdirAll(filepath.Dir(stateFile), 0o755); err != nil {
		return nil, fmt.Errorf("creating state dir: %w", err)
	}
	state := localstate.NewFile(stateFile)
	return &session{
		state:    state,
		identity: device.NewIdentity(state),
		limiter:  ratelimit.NewSubmission(state),
	}, nil
}

func classifierEndpoint() string {
	if analyzeURL != "" {
		return analyzeURL
	}
	return strings.TrimRight(apiURL, "/") + "/analyze"
}

func newClassifier() classify.Classifier {
	return classify.NewRemote(classifierEndpoint(), analyzeKey, classify.DefaultTimeout)
}
