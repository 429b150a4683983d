package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"designbridge/internal/bootstrap"
	"designbridge/internal/domain"
	"designbridge/internal/infra"
	"designbridge/internal/orchestrator"
	"designbridge/internal/providers/designapi"
	"designbridge/pkg/zip"
)

// exportctl runs one export request from the command line with a raw access
// token, bypassing the database and the HTTP API.
func main() {
	_ = godotenv.Load()

	var (
		tokenFlag    string
		designFlag   string
		variantsFlag string
		formatFlag   string
		archiveFlag  string
	)
	flag.StringVar(&tokenFlag, "token", "", "access token (falls back to DESIGN_ACCESS_TOKEN)")
	flag.StringVar(&designFlag, "design", "", "design id or design url")
	flag.StringVar(&variantsFlag, "variants", "original", "comma separated variants: original, a preset like 9:16, or WxH")
	flag.StringVar(&formatFlag, "format", "png", "export format")
	flag.StringVar(&archiveFlag, "archive", "", "also download every artifact into this zip file")
	flag.Parse()

	token := strings.TrimSpace(tokenFlag)
	if token == "" {
		token = strings.TrimSpace(os.Getenv("DESIGN_ACCESS_TOKEN"))
	}
	if token == "" {
		fmt.Fprintln(os.Stderr, "access token is required via -token or DESIGN_ACCESS_TOKEN")
		os.Exit(1)
	}

	var variants []domain.Variant
	for _, raw := range strings.Split(variantsFlag, ",") {
		v, err := domain.ParseVariant(raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		variants = append(variants, v)
	}
	req, err := domain.NewExportRequest(designFlag, variants, formatFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	cfg := infra.LoadToolConfig()
	logger := infra.NewLogger(cfg.AppEnv, "exportctl")
	exporter, err := bootstrap.NewExporter(cfg, &logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to configure exporter: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	results := exporter.Orchestrator.RunExportRequest(ctx, token, req)
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(struct {
		Status string `json:"status"`
		orchestrator.PerVariantResults
	}{Status: results.Status(), PerVariantResults: results})

	if archiveFlag != "" {
		if err := writeArchive(ctx, exporter.Client, archiveFlag, req.Format, results); err != nil {
			fmt.Fprintf(os.Stderr, "archive failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "archive written to %s\n", archiveFlag)
	}
	if results.Status() == orchestrator.StatusFailed {
		os.Exit(2)
	}
}

func writeArchive(ctx context.Context, client *designapi.Client, path string, format domain.ExportFormat, results orchestrator.PerVariantResults) error {
	var assets []zip.Asset
	for _, res := range results.Results {
		folder := strings.ReplaceAll(res.Variant, ":", "x")
		for i, location := range res.Artifacts {
			data, _, err := client.Download(ctx, location)
			if err != nil {
				return fmt.Errorf("download %s: %w", location, err)
			}
			assets = append(assets, zip.Asset{
				Filename: fmt.Sprintf("%s/page-%02d.%s", folder, i+1, format.Extension()),
				Data:     data,
			})
		}
	}
	var buf bytes.Buffer
	if err := zip.WriteArchive(&buf, assets, time.Now()); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}
