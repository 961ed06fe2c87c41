// Package backup dumps the PostgreSQL database and ships the
// compressed dump to object storage.
package backup

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// Uploader stores a backup object. Satisfied by the S3 store.
type Uploader interface {
	Upload(ctx context.Context, key string, body io.Reader, contentType string) error
}

// Config controls how dumps are produced and where they land.
type Config struct {
	DatabaseURL string
	Bucket      string
	Prefix      string
	Compress    bool
	// PGDumpPath overrides the pg_dump binary location.
	PGDumpPath string
}

// Result describes one completed backup.
type Result struct {
	Bucket string    `json:"bucket"`
	Key    string    `json:"key"`
	Size   int64     `json:"size_bytes"`
	TookMS int64     `json:"took_ms"`
	At     time.Time `json:"at"`
}

// Service runs database backups.
type Service struct {
	cfg      Config
	uploader Uploader
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs a backup Service.
func NewService(cfg Config, uploader Uploader, logger *slog.Logger) *Service {
	if cfg.PGDumpPath == "" {
		cfg.PGDumpPath = "pg_dump"
	}
	return &Service{cfg: cfg, uploader: uploader, logger: logger, now: time.Now}
}

// Run produces one dump and uploads it. The dump is streamed: pg_dump
// stdout flows through gzip straight into the uploader, no temp file.
func (s *Service) Run(ctx context.Context) (Result, error) {
	if s.cfg.DatabaseURL == "" {
		return Result{}, fmt.Errorf("backup: database URL not configured")
	}
	if s.cfg.Bucket == "" {
		return Result{}, fmt.Errorf("backup: bucket not configured")
	}

	start := s.now().UTC()
	key := ObjectKey(s.cfg.Prefix, DumpName(start, s.cfg.Compress))

	pr, pw := io.Pipe()
	counter := &countingWriter{w: pw}

	cmd := exec.CommandContext(ctx, s.cfg.PGDumpPath, "--dbname", s.cfg.DatabaseURL)
	var stderr strings.Builder
	cmd.Stderr = &stderr

	var out io.WriteCloser = nopWriteCloser{counter}
	var gz *gzip.Writer
	if s.cfg.Compress {
		gz = gzip.NewWriter(counter)
		out = gz
	}
	cmd.Stdout = out

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer pw.Close()
		if err := cmd.Run(); err != nil {
			pw.CloseWithError(err)
			return fmt.Errorf("pg_dump: %w: %s", err, strings.TrimSpace(stderr.String()))
		}
		if gz != nil {
			if err := gz.Close(); err != nil {
				pw.CloseWithError(err)
				return err
			}
		}
		return nil
	})
	g.Go(func() error {
		contentType := "application/sql"
		if s.cfg.Compress {
			contentType = "application/gzip"
		}
		if err := s.uploader.Upload(gctx, key, pr, contentType); err != nil {
			pr.CloseWithError(err)
			return fmt.Errorf("upload %s: %w", key, err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	result := Result{
		Bucket: s.cfg.Bucket,
		Key:    key,
		Size:   counter.n,
		TookMS: time.Since(start).Milliseconds(),
		At:     start,
	}
	if s.logger != nil {
		s.logger.Info("database backup uploaded",
			slog.String("key", key),
			slog.Int64("size_bytes", result.Size),
			slog.Int64("took_ms", result.TookMS))
	}
	return result, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }
