package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// MaxDownloadBytes caps a downloaded photo
const MaxDownloadBytes = 20 << 20

// FileURLResolver turns a file id into a download URL
type FileURLResolver interface {
	GetFileDirectURL(fileID string) (string, error)
}

// Downloader fetches files users sent to the bot
type Downloader struct {
	files  FileURLResolver
	client *http.Client
}

func NewDownloader(files FileURLResolver) *Downloader {
	return &Downloader{
		files:  files,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// Download returns the file contents
func (d *Downloader) Download(ctx context.Context, fileID string) ([]byte, error) {
	url, err := d.files.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("resolve file %s: %w", fileID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file %s: %w", fileID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file %s: status %d", fileID, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxDownloadBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > MaxDownloadBytes {
		return nil, fmt.Errorf("file %s exceeds %d bytes", fileID, MaxDownloadBytes)
	}
	return data, nil
}
