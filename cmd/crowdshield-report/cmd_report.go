package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/CrowdShield/CS-Backend/internal/apiclient"
	"github.com/CrowdShield/CS-Backend/internal/capture"
	"github.com/CrowdShield/CS-Backend/internal/reports"
	"github.com/spf13/cobra"
)

var (
	reportCategory string
	reportZone     string
	reportText     string
	reportAudio    string
	reportLat      float64
	reportLon      float64
	reportPreview  bool
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Submit a report for a zone",
	Long: `Submit an incident report.

The report is classified before it is sent. When the classification service
is unreachable a keyword match is used instead. A device may file one report
per minute.`,
	Example: `  crowdshield-report report --category crowd_pressure --zone "Front Stage" --text "barrier bending"
  crowdshield-report report --category medical --zone VIP --audio note.webm --lat 51.50 --lon -0.12`,
	RunE: runReport,
}

func init() {
	reportCmd.Flags().StringVarP(&reportCategory, "category", "c", "", "Category: "+joinValues(reports.Categories))
	reportCmd.Flags().StringVarP(&reportZone, "zone", "z", "", "Zone: "+joinValues(reports.Zones))
	reportCmd.Flags().StringVarP(&reportText, "text", "t", "", "Optional description (up to 200 characters)")
	reportCmd.Flags().StringVar(&reportAudio, "audio", "", "Optional audio file to attach")
	reportCmd.Flags().Float64Var(&reportLat, "lat", 0, "Latitude")
	reportCmd.Flags().Float64Var(&reportLon, "lon", 0, "Longitude")
	reportCmd.Flags().BoolVar(&reportPreview, "preview", false, "Print the AI suggestion before submitting")
	_ = reportCmd.MarkFlagRequired("category")
	_ = reportCmd.MarkFlagRequired("zone")
	reportCmd.MarkFlagsRequiredTogether("lat", "lon")
}

func joinValues[T ~string](values []T) string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = fmt.Sprintf("%q", string(v))
	}
	return strings.Join(out, ", ")
}

func runReport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()

	sess, err := openSession()
	if err != nil {
		return err
	}

	api := apiclient.New(apiURL, httpTimeout)
	deps := capture.Deps{
		Identity:   sess.identity,
		Limiter:    sess.limiter,
		Inserter:   api,
		Classifier: newClassifier(),
		Uploader:   api,
	}
	var recorder *fileRecorder
	if reportAudio != "" {
		recorder = &fileRecorder{path: reportAudio}
		deps.Recorder = recorder
	}
	if cmd.Flags().Changed("lat") {
		deps.Locator = staticLocator{coords: capture.Coordinates{Latitude: reportLat, Longitude: reportLon}}
	}

	w := capture.New(deps, capture.Options{})
	defer w.Close()

	if err := w.StartWithCategory(ctx, reports.Category(reportCategory)); err != nil {
		var rl *capture.RateLimitedError
		if errors.As(err, &rl) {
			return fmt.Errorf("please wait %d seconds before reporting again", rl.Seconds)
		}
		return err
	}
	if err := w.SetZone(reports.Zone(reportZone)); err != nil {
		return err
	}
	if reportText != "" {
		if err := w.SetText(reportText); err != nil {
			return err
		}
	}

	if deps.Locator != nil {
		if _, err := w.RequestLocation(ctx); err != nil {
			return err
		}
	}

	if recorder != nil {
		if err := w.StartRecording(ctx); err != nil {
			return err
		}
		if recorder.last != nil {
			select {
			case <-recorder.last.Drained():
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err := w.StopRecording(); err != nil {
			return err
		}
	}

	if reportPreview {
		res, err := w.Analyze(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Suggestion: %s urgency, %s\n", res.Urgency, res.AICategory.Label())
	}

	report, err := w.Submit(ctx)
	printNotices(cmd.ErrOrStderr(), w.Notices())
	if err != nil {
		var rl *capture.RateLimitedError
		if errors.As(err, &rl) {
			return fmt.Errorf("please wait %d seconds before reporting again", rl.Seconds)
		}
		return err
	}

	fmt.Fprintf(out, "Report sent for %s (%s).\n", report.Zone, report.Category.Label())
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func printNotices(w io.Writer, notices []capture.Notice) {
	for _, n := range notices {
		fmt.Fprintf(w, "note: %s\n", n.Message)
	}
}
