package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/invoicedesk/invoicedesk/internal/ingestion"
	"github.com/invoicedesk/invoicedesk/internal/models"
	"github.com/invoicedesk/invoicedesk/pkg/utils"
)

func main() {
	serverURL := flag.String("server", "http://localhost:8080", "ingestion server base URL")
	timeout := flag.Duration("timeout", 2*time.Minute, "request timeout")
	pollInterval := flag.Duration("poll", 2*time.Second, "status poll interval")
	wait := flag.Bool("wait", true, "poll batch status until it settles")
	flag.Parse()

	files := flag.Args()
	if len(files) == 0 {
		fmt.Fprintf(os.Stderr, "usage: upload [flags] file...\n")
		flag.PrintDefaults()
		os.Exit(2)
	}
	if len(files) > ingestion.MaxBatchFiles {
		fmt.Fprintf(os.Stderr, "error: maximum %d files allowed per batch, got %d\n",
			ingestion.MaxBatchFiles, len(files))
		os.Exit(2)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      "warn",
		OutputPath: "stderr",
		Format:     "console",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	docs := make([]ingestion.Document, 0, len(files))
	for _, path := range files {
		doc, err := ingestion.LoadDocument(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		docs = append(docs, doc)
	}

	client := ingestion.NewClient(*serverURL, *timeout, logger)
	ctx := context.Background()

	resp, err := client.Upload(ctx, docs, func(percent int) {
		fmt.Fprintf(os.Stderr, "\ruploading... %3d%%", percent)
	})
	fmt.Fprintln(os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: upload failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "batch %s accepted with %d files\n", resp.BatchID, len(resp.Files))

	if !*wait {
		fmt.Println(resp.BatchID)
		return
	}

	batch, err := pollUntilSettled(ctx, client, resp.BatchID, *pollInterval)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	out, err := json.MarshalIndent(batch, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))

	if batch.Status == models.BatchStatusFailed {
		os.Exit(1)
	}
}

// pollUntilSettled polls the batch status until it leaves the
// pending/processing states.
func pollUntilSettled(ctx context.Context, client *ingestion.Client, batchID string, interval time.Duration) (*models.Batch, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		batch, err := client.Status(ctx, batchID)
		if err != nil {
			return nil, fmt.Errorf("status poll failed: %w", err)
		}

		switch batch.Status {
		case models.BatchStatusCompleted, models.BatchStatusFailed:
			return batch, nil
		}

		fmt.Fprintf(os.Stderr, "batch %s: %s\n", batchID, batch.Status)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
