// Command batch runs one batch from a file or stdin and writes the ranked result as CSV or XLSX.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/UnknownOlympus/nearby/internal/app"
	"github.com/UnknownOlympus/nearby/internal/config"
	"github.com/UnknownOlympus/nearby/internal/export"
	"github.com/UnknownOlympus/nearby/internal/locator"
	"github.com/UnknownOlympus/nearby/internal/metrics"
	"github.com/UnknownOlympus/nearby/internal/models"
	"github.com/UnknownOlympus/nearby/internal/service"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	input := flag.String("input", "", "file with one address per line (default: stdin)")
	output := flag.String("output", export.FileName, "result file, .csv or .xlsx")
	device := flag.String("device", "", "device position as lng,lat")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *input, *output, *device); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, input, output, device string) error {
	cfg := config.MustLoad()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	text, err := readInput(input)
	if err != nil {
		return err
	}

	req := service.BatchRequest{Text: text}
	if device != "" {
		position, errDevice := parseDevice(device)
		if errDevice != nil {
			return errDevice
		}
		req.Locator = locator.NewStaticLocator(position)
	}

	application, err := app.New(ctx, cfg, logger, metrics.NewMetrics(prometheus.NewRegistry()))
	if err != nil {
		return err
	}
	defer application.Close()

	result, err := application.Batches.Process(ctx, req)
	if err != nil {
		return err
	}

	if err = writeOutput(output, result); err != nil {
		return err
	}

	printSummary(os.Stdout, result, output)
	return nil
}

func readInput(path string) (string, error) {
	if path == "" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading input: %w", err)
	}
	return string(data), nil
}

// parseDevice parses "lng,lat".
func parseDevice(raw string) (models.Coordinates, error) {
	invalid := fmt.Errorf("invalid -device %q, expected lng,lat", raw)

	lngRaw, latRaw, found := strings.Cut(raw, ",")
	if !found {
		return models.Coordinates{}, invalid
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(lngRaw), 64)
	if err != nil || lng < -180 || lng > 180 {
		return models.Coordinates{}, invalid
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latRaw), 64)
	if err != nil || lat < -90 || lat > 90 {
		return models.Coordinates{}, invalid
	}

	return models.Coordinates{Longitude: lng, Latitude: lat}, nil
}

func writeOutput(path string, result *models.BatchResult) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output: %w", err)
	}
	defer file.Close()

	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		err = export.WriteXLSX(file, result.Results)
	} else {
		err = export.WriteCSV(file, result.Results)
	}
	if err != nil {
		return err
	}

	return file.Close()
}

func printSummary(w io.Writer, result *models.BatchResult, output string) {
	fmt.Fprintf(w, "reference: %s (%s)\n", result.Reference, result.ReferenceSource)
	fmt.Fprintf(w, "resolved: %d, failed: %d\n", result.Succeeded(), result.Failed())
	for i, res := range result.Results {
		if !res.Succeeded() {
			break
		}
		fmt.Fprintf(w, "%3d. %s  %.2f km\n", i+1, res.Address, *res.Distance/1000)
	}
	fmt.Fprintf(w, "written to %s\n", output)
}
