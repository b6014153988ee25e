package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"codeberg.org/arekan/animeshot/internal/frame"
	"codeberg.org/arekan/animeshot/internal/telegram"
)

type fakeTransport struct {
	getFileErr  error
	downloadErr error
	lastDest    string
}

func (f *fakeTransport) GetFile(ctx context.Context, fileID string) (*telegram.File, error) {
	if f.getFileErr != nil {
		return nil, f.getFileErr
	}
	return &telegram.File{FileID: fileID, FilePath: "photos/" + fileID + ".jpg"}, nil
}

func (f *fakeTransport) DownloadFile(ctx context.Context, filePath, destPath string) error {
	f.lastDest = destPath
	if f.downloadErr != nil {
		return f.downloadErr
	}
	return os.WriteFile(destPath, []byte("image bytes"), 0644)
}

type fakeDownloader struct {
	err       error
	writeFile bool
	lastOut   string
}

func (d *fakeDownloader) Download(ctx context.Context, url, outPath string) error {
	d.lastOut = outPath
	if d.err != nil {
		return d.err
	}
	if d.writeFile {
		return os.WriteFile(outPath, []byte("video bytes"), 0644)
	}
	return nil
}

type fakeFrames struct {
	err        error
	framePath  string
	videoSeen  string
	videoExist bool
}

func (f *fakeFrames) FirstUsableFrame(ctx context.Context, videoPath string) (string, error) {
	f.videoSeen = videoPath
	if _, err := os.Stat(videoPath); err == nil {
		f.videoExist = true
	}
	if f.err != nil {
		return "", f.err
	}
	return f.framePath, nil
}

func TestFromPhoto(t *testing.T) {
	tr := &fakeTransport{}
	a := NewAcquirer(tr, &fakeDownloader{}, &fakeFrames{})

	path, err := a.FromPhoto(context.Background(), "abc")
	if err != nil {
		t.Fatalf("FromPhoto() error: %v", err)
	}
	defer os.Remove(path)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading result: %v", err)
	}
	if string(data) != "image bytes" {
		t.Errorf("unexpected content %q", data)
	}
}

func TestFromPhotoDownloadFailureCleansUp(t *testing.T) {
	tr := &fakeTransport{downloadErr: fmt.Errorf("network down")}
	a := NewAcquirer(tr, &fakeDownloader{}, &fakeFrames{})

	_, err := a.FromPhoto(context.Background(), "abc")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if _, err := os.Stat(tr.lastDest); !os.IsNotExist(err) {
		t.Errorf("temp file %s left behind after failure", tr.lastDest)
	}
}

func TestFromVideoURL(t *testing.T) {
	framePath := t.TempDir() + "/frame.jpg"
	if err := os.WriteFile(framePath, []byte("frame"), 0644); err != nil {
		t.Fatal(err)
	}

	dl := &fakeDownloader{writeFile: true}
	fr := &fakeFrames{framePath: framePath}
	a := NewAcquirer(&fakeTransport{}, dl, fr)

	path, err := a.FromVideoURL(context.Background(), "https://example.com/v")
	if err != nil {
		t.Fatalf("FromVideoURL() error: %v", err)
	}
	if path != framePath {
		t.Errorf("frame path = %s, want %s", path, framePath)
	}
	if !fr.videoExist {
		t.Error("video file was not present during frame extraction")
	}
	if _, err := os.Stat(dl.lastOut); !os.IsNotExist(err) {
		t.Errorf("video temp file %s left behind after success", dl.lastOut)
	}
}

func TestFromVideoURLDownloadError(t *testing.T) {
	dl := &fakeDownloader{err: fmt.Errorf("exit status 1")}
	a := NewAcquirer(&fakeTransport{}, dl, &fakeFrames{})

	_, err := a.FromVideoURL(context.Background(), "https://example.com/v")
	if !errors.Is(err, ErrDownloadFailed) {
		t.Fatalf("error = %v, want ErrDownloadFailed", err)
	}
	if _, err := os.Stat(dl.lastOut); !os.IsNotExist(err) {
		t.Errorf("video temp file %s left behind after failure", dl.lastOut)
	}
}

func TestFromVideoURLMissingOutputFile(t *testing.T) {
	// Downloader exits cleanly but never writes the file.
	dl := &fakeDownloader{writeFile: false}
	a := NewAcquirer(&fakeTransport{}, dl, &fakeFrames{})

	_, err := a.FromVideoURL(context.Background(), "https://example.com/v")
	if !errors.Is(err, ErrDownloadFailed) {
		t.Fatalf("error = %v, want ErrDownloadFailed", err)
	}
}

func TestFromVideoURLFrameFailureCleansUp(t *testing.T) {
	dl := &fakeDownloader{writeFile: true}
	fr := &fakeFrames{err: frame.ErrNoUsableFrame}
	a := NewAcquirer(&fakeTransport{}, dl, fr)

	_, err := a.FromVideoURL(context.Background(), "https://example.com/v")
	if !errors.Is(err, frame.ErrNoUsableFrame) {
		t.Fatalf("error = %v, want ErrNoUsableFrame", err)
	}
	if _, err := os.Stat(dl.lastOut); !os.IsNotExist(err) {
		t.Errorf("video temp file %s left behind after failure", dl.lastOut)
	}
}
