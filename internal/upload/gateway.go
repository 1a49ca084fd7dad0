// Package upload sends files picked on a form to an external file host and returns the URL
// the host serves them from.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"formbuilder/internal/config"
	"formbuilder/internal/metrics"
)

var (
	// ErrUploadFailed is returned for any rejected or unreadable upload. The host's response
	// body is not inspected.
	ErrUploadFailed = errors.New("upload failed")
	// ErrInfectedFile is returned when the malware scanner flags a file.
	ErrInfectedFile = errors.New("malicious file detected")
	// ErrTooLarge is returned when a file exceeds the configured byte limit.
	ErrTooLarge = errors.New("file too large")
)

// File is a single picked file.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Gateway stores a file and returns its public URL.
type Gateway interface {
	Upload(ctx context.Context, f File) (string, error)
}

// GatewayFunc adapts a function to Gateway.
type GatewayFunc func(ctx context.Context, f File) (string, error)

func (fn GatewayFunc) Upload(ctx context.Context, f File) (string, error) { return fn(ctx, f) }

// New builds the gateway selected by cfg.Upload.Provider, wrapped with a size check, the
// optional clamd scan and metrics.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var gw Gateway
	switch cfg.Upload.Provider {
	case config.ProviderHosted:
		gw = NewHosted(cfg.Upload.Endpoint, cfg.Upload.Preset, nil)
	case config.ProviderMinIO:
		m, err := NewMinIO(ctx, cfg.MinIO)
		if err != nil {
			return nil, err
		}
		gw = m
	default:
		return nil, fmt.Errorf("unsupported upload provider %q", cfg.Upload.Provider)
	}

	if cfg.Upload.ClamdAddr != "" {
		gw = &Scanning{Next: gw, Scanner: NewClamd(cfg.Upload.ClamdAddr), Logger: logger}
		logger.Info("upload scanning enabled", slog.String("clamd_addr", cfg.Upload.ClamdAddr))
	}
	gw = Limit(gw, cfg.Upload.MaxBytes)
	return Instrument(gw, cfg.Upload.Provider, logger), nil
}

// Limit rejects files whose declared or actual size exceeds maxBytes.
func Limit(next Gateway, maxBytes int64) Gateway {
	if maxBytes <= 0 {
		return next
	}
	return GatewayFunc(func(ctx context.Context, f File) (string, error) {
		if f.Size > maxBytes {
			return "", fmt.Errorf("%w: %d > %d bytes", ErrTooLarge, f.Size, maxBytes)
		}
		f.Body = &limitedReader{r: io.LimitReader(f.Body, maxBytes+1), max: maxBytes}
		return next.Upload(ctx, f)
	})
}

type limitedReader struct {
	r    io.Reader
	max  int64
	read int64
}

func (l *limitedReader) Read(p []byte) (int, error) {
	n, err := l.r.Read(p)
	l.read += int64(n)
	if l.read > l.max {
		return n, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, l.max)
	}
	return n, err
}

// Instrument logs and counts every upload attempt.
func Instrument(next Gateway, provider string, logger *slog.Logger) Gateway {
	return GatewayFunc(func(ctx context.Context, f File) (string, error) {
		start := time.Now()
		url, err := next.Upload(ctx, f)
		elapsed := time.Since(start)

		result := metrics.ResultOK
		switch {
		case errors.Is(err, ErrInfectedFile):
			result = metrics.ResultInfected
		case err != nil:
			result = metrics.ResultFailed
		}
		metrics.ObserveUpload(provider, result, elapsed.Seconds())

		if err != nil {
			logger.Warn("upload failed",
				slog.String("provider", provider),
				slog.String("file_name", f.Name),
				slog.Int64("size", f.Size),
				slog.Any("error", err),
			)
			return "", err
		}
		logger.Info("file uploaded",
			slog.String("provider", provider),
			slog.String("file_name", f.Name),
			slog.Int64("size", f.Size),
			slog.Duration("elapsed", elapsed),
		)
		return url, nil
	})
}
