package media

import (
	"context"
	"errors"
	"fmt"
	"os"

	"codeberg.org/arekan/animeshot/internal/telegram"
)

// ErrDownloadFailed means the remote video could not be fetched.
var ErrDownloadFailed = errors.New("video download failed")

// FileTransport is the slice of the chat transport needed to fetch a
// user-uploaded photo. *telegram.Client satisfies it.
type FileTransport interface {
	GetFile(ctx context.Context, fileID string) (*telegram.File, error)
	DownloadFile(ctx context.Context, filePath, destPath string) error
}

// Downloader fetches a remote video into outPath. A nil error with the
// output file present is the only success state.
type Downloader interface {
	Download(ctx context.Context, url, outPath string) error
}

// FrameSource turns a local video file into a single still image.
// *frame.Extractor satisfies it.
type FrameSource interface {
	FirstUsableFrame(ctx context.Context, videoPath string) (string, error)
}

// Acquirer normalizes heterogeneous inputs (uploaded photos, remote
// video URLs) into a single local still-image path. Every intermediate
// file it creates is deleted before returning; the returned image is
// owned by the caller.
type Acquirer struct {
	transport  FileTransport
	downloader Downloader
	frames     FrameSource
}

// NewAcquirer wires an acquirer from its collaborators.
func NewAcquirer(transport FileTransport, downloader Downloader, frames FrameSource) *Acquirer {
	return &Acquirer{
		transport:  transport,
		downloader: downloader,
		frames:     frames,
	}
}

// FromPhoto downloads a transport-hosted photo to a fresh temp file and
// returns its path.
func (a *Acquirer) FromPhoto(ctx context.Context, fileID string) (string, error) {
	f, err := a.transport.GetFile(ctx, fileID)
	if err != nil {
		return "", fmt.Errorf("resolve photo file: %w", err)
	}

	tmp, err := os.CreateTemp("", "photo_*.jpg")
	if err != nil {
		return "", fmt.Errorf("create temp photo file: %w", err)
	}
	imagePath := tmp.Name()
	tmp.Close()

	if err := a.transport.DownloadFile(ctx, f.FilePath, imagePath); err != nil {
		os.Remove(imagePath)
		return "", fmt.Errorf("download photo: %w", err)
	}
	return imagePath, nil
}

// FromVideoURL downloads a remote video and extracts its first usable
// frame. The downloaded video is removed on every exit path; on success
// only the extracted frame remains, owned by the caller.
func (a *Acquirer) FromVideoURL(ctx context.Context, url string) (string, error) {
	videoPath, err := tempVideoPath()
	if err != nil {
		return "", err
	}
	defer os.Remove(videoPath)

	if err := a.downloader.Download(ctx, url, videoPath); err != nil {
		return "", fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	if _, err := os.Stat(videoPath); err != nil {
		return "", ErrDownloadFailed
	}

	framePath, err := a.frames.FirstUsableFrame(ctx, videoPath)
	if err != nil {
		return "", err
	}
	return framePath, nil
}

// tempVideoPath reserves a unique path for the downloader to write to.
// The file itself must not exist yet or yt-dlp treats the download as
// already complete.
func tempVideoPath() (string, error) {
	tmp, err := os.CreateTemp("", "video_*.mp4")
	if err != nil {
		return "", fmt.Errorf("create temp video path: %w", err)
	}
	path := tmp.Name()
	tmp.Close()
	os.Remove(path)
	return path, nil
}
