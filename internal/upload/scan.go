package upload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/dutchcoders/go-clamd"
)

// Scanner inspects a stream for malware. It returns ErrInfectedFile when something is found.
type Scanner interface {
	Scan(r io.Reader) error
}

// Clamd scans through a clamd daemon.
type Clamd struct {
	client *clamd.Clamd
}

// NewClamd accepts addresses like tcp://clamav:3310 or unix:///run/clamd.sock.
func NewClamd(addr string) *Clamd {
	return &Clamd{client: clamd.NewClamd(addr)}
}

func (c *Clamd) Scan(r io.Reader) error {
	abort := make(chan bool)
	defer close(abort)

	results, err := c.client.ScanStream(r, abort)
	if err != nil {
		return fmt.Errorf("scan file: %w", err)
	}
	for result := range results {
		switch result.Status {
		case clamd.RES_OK:
		case clamd.RES_FOUND:
			return fmt.Errorf("%w: %s", ErrInfectedFile, result.Description)
		default:
			return fmt.Errorf("scan file: %s %s", result.Status, result.Description)
		}
	}
	return nil
}

// Scanning runs every file through Scanner before handing it to Next. The body is buffered
// so it can be read twice.
type Scanning struct {
	Next    Gateway
	Scanner Scanner
	Logger  *slog.Logger
}

func (s *Scanning) Upload(ctx context.Context, f File) (string, error) {
	data, err := io.ReadAll(f.Body)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	if err := s.Scanner.Scan(bytes.NewReader(data)); err != nil {
		if s.Logger != nil {
			s.Logger.Warn("upload rejected by scanner",
				slog.String("file_name", f.Name),
				slog.Any("error", err),
			)
		}
		return "", err
	}
	f.Body = bytes.NewReader(data)
	f.Size = int64(len(data))
	return s.Next.Upload(ctx, f)
}
