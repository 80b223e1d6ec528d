// Command shapes-stats polls a subscriber's metrics endpoint and prints live counters.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/ajmhs/training-listeners-read-write/internal/adapters/observability"
)

func main() {
	if err := statsCommand(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "shapes-stats: %v\n", err)
		os.Exit(1)
	}
}

func statsCommand(args []string) error {
	fs := flag.NewFlagSet("shapes-stats", flag.ExitOnError)
	url := fs.String("url", "http://localhost:9100/metrics", "Prometheus metrics endpoint")
	interval := fs.Duration("interval", 2*time.Second, "Refresh interval")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	client := &http.Client{Timeout: *interval}
	fmt.Printf("Streaming metrics from %s (Ctrl+C to stop)\n", *url)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := printMetricsSnapshot(ctx, client, *url, os.Stdout); err != nil {
				fmt.Fprintf(os.Stderr, "stats error: %v\n", err)
			}
		}
	}
}

var watched = []string{
	observability.SamplesRead,
	observability.SamplesInvalid,
	observability.MatchedPublishers,
	observability.FeedQueueLength,
	observability.FeedDropped,
}

func printMetricsSnapshot(ctx context.Context, client *http.Client, url string, out io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	values, err := scanMetrics(resp.Body, watched)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "[%s] read=%.0f invalid=%.0f publishers=%.0f queue=%.0f dropped=%.0f\n",
		time.Now().Format(time.RFC3339),
		values[observability.SamplesRead],
		values[observability.SamplesInvalid],
		values[observability.MatchedPublishers],
		values[observability.FeedQueueLength],
		values[observability.FeedDropped],
	)
	return nil
}

// scanMetrics reads the given families out of the text exposition format. Labelled
// series of one family are summed.
func scanMetrics(r io.Reader, names []string) (map[string]float64, error) {
	var parser expfmt.TextParser
	families, err := parser.TextToMetricFamilies(r)
	if err != nil {
		return nil, fmt.Errorf("parse metrics: %w", err)
	}

	values := make(map[string]float64, len(names))
	for _, n := range names {
		var total float64
		if fam, ok := families[n]; ok {
			for _, m := range fam.GetMetric() {
				total += sampleValue(fam.GetType(), m)
			}
		}
		values[n] = total
	}
	return values, nil
}

func sampleValue(kind dto.MetricType, m *dto.Metric) float64 {
	switch kind {
	case dto.MetricType_COUNTER:
		return m.GetCounter().GetValue()
	case dto.MetricType_GAUGE:
		return m.GetGauge().GetValue()
	case dto.MetricType_UNTYPED:
		return m.GetUntyped().GetValue()
	default:
		return 0
	}
}
