package media

import (
	"context"
	"fmt"
	"os/exec"
)

// DefaultProxy is the local SOCKS5 endpoint the downloader routes
// through. The source platforms are access-restricted from the
// deployment network, so the proxy is not optional in production.
const DefaultProxy = "socks5://127.0.0.1:10808"

// YtDlpDownloader implements Downloader by shelling out to yt-dlp.
type YtDlpDownloader struct {
	// Proxy is the proxy endpoint passed to yt-dlp. Empty disables
	// proxying (useful in tests only).
	Proxy string
}

// NewYtDlpDownloader creates a downloader routed through the given
// proxy, falling back to DefaultProxy when empty.
func NewYtDlpDownloader(proxy string) *YtDlpDownloader {
	if proxy == "" {
		proxy = DefaultProxy
	}
	return &YtDlpDownloader{Proxy: proxy}
}

// Download fetches url into outPath. The "best" single-file format is
// forced so the result is a plain container the frame extractor can
// read.
func (d *YtDlpDownloader) Download(ctx context.Context, url, outPath string) error {
	args := []string{}
	if d.Proxy != "" {
		args = append(args, "--proxy", d.Proxy)
	}
	args = append(args,
		"-f", "best",
		"-o", outPath,
		url,
	)

	cmd := exec.CommandContext(ctx, "yt-dlp", args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("yt-dlp failed: %w\nOutput: %s", err, string(output))
	}
	return nil
}
