package main

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/askmydocs/internal/core/domain"
)

func (c *cli) newIndexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "index <file>...",
		Short: "Index documents synchronously",
		Long: "Index copies each file into the upload directory, records it and indexes it in the foreground. " +
			"Files are processed in order; a failure is reported and the next file is tried.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := c.load(cmd)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			ok := color.New(color.FgGreen).SprintFunc()
			warn := color.New(color.FgYellow).SprintFunc()
			failed := color.New(color.FgRed).SprintFunc()

			var failures int
			for _, path := range args {
				record, err := a.indexLocalFile(ctx, path)
				if err != nil {
					failures++
					fmt.Fprintf(out, "%s %s: %v\n", failed("FAIL"), path, err)
					continue
				}
				status := ok(string(record.Status))
				if record.Status != domain.IndexStatusIndexed {
					status = warn(string(record.Status))
				}
				fmt.Fprintf(out, "%s %s  id=%s chunks=%d\n", status, record.Filename, record.ID, record.ChunkCount)
			}

			if failures > 0 {
				return fmt.Errorf("%d of %d documents failed to index", failures, len(args))
			}
			return nil
		},
	}
}

// indexLocalFile stores a copy of path as an upload so the caller's file is
// never removed, then indexes it through the orchestrator.
func (a *app) indexLocalFile(ctx context.Context, path string) (*domain.DocumentRecord, error) {
	name := filepath.Base(path)
	if a.extractors.ForFile(name, "") == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedMediaType, name)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	stored, size, err := a.files.Save(ctx, name, f, a.cfg.Server.MaxUploadBytes)
	if err != nil {
		return nil, err
	}

	record := domain.NewDocumentRecord(name, stored, mime.TypeByExtension(filepath.Ext(name)), size)
	if err := a.documents.Save(ctx, record); err != nil {
		_ = a.files.Remove(ctx, stored)
		return nil, err
	}

	result, err := a.orchestrator.IndexFile(ctx, record.ID, stored, name)
	if err != nil {
		// IndexFile keeps the upload for retryable errors; nothing retries here
		if domain.IsRetryable(err) {
			a.orchestrator.Discard(ctx, record.ID, stored, err.Error())
		}
		return nil, err
	}

	record.Apply(result)
	return record, nil
}
