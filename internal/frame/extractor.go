package frame

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"os/exec"
)

const (
	// DefaultMaxAttempts bounds how many leading frames are probed.
	DefaultMaxAttempts = 10

	// defaultLumaThreshold is the noise floor on the 0..255 luma scale.
	// Frames at or below it are treated as black lead-in.
	defaultLumaThreshold = 10.0
)

// ErrNoUsableFrame means the video ended or every probed frame was
// near-black.
var ErrNoUsableFrame = errors.New("no usable frame found")

// Grabber extracts a single frame by index from a video file into an
// image file. It reports an error when the frame does not exist.
type Grabber interface {
	Grab(ctx context.Context, videoPath string, index int, outPath string) error
}

// FFmpegGrabber implements Grabber by shelling out to ffmpeg.
type FFmpegGrabber struct{}

// Grab decodes frame index of videoPath into outPath as JPEG.
func (FFmpegGrabber) Grab(ctx context.Context, videoPath string, index int, outPath string) error {
	args := []string{
		"-i", videoPath,
		"-vf", fmt.Sprintf("select=eq(n\\,%d)", index),
		"-frames:v", "1",
		"-y", outPath,
	}
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg failed: %w\nOutput: %s", err, string(output))
	}
	// ffmpeg exits 0 even when the select filter matches nothing.
	if info, err := os.Stat(outPath); err != nil || info.Size() == 0 {
		return fmt.Errorf("frame %d not produced", index)
	}
	return nil
}

// Extractor finds the first frame of a video that is bright enough to
// be worth searching for.
type Extractor struct {
	grabber       Grabber
	maxAttempts   int
	lumaThreshold float64
}

// NewExtractor creates an extractor using ffmpeg with default limits.
func NewExtractor() *Extractor {
	return &Extractor{
		grabber:       FFmpegGrabber{},
		maxAttempts:   DefaultMaxAttempts,
		lumaThreshold: defaultLumaThreshold,
	}
}

// NewExtractorWithGrabber creates an extractor with an injected grabber,
// used by tests and by callers that need a custom attempt budget.
func NewExtractorWithGrabber(g Grabber, maxAttempts int) *Extractor {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Extractor{
		grabber:       g,
		maxAttempts:   maxAttempts,
		lumaThreshold: defaultLumaThreshold,
	}
}

// FirstUsableFrame probes frames sequentially and returns the path of a
// freshly written temp image holding the first frame whose mean luma
// exceeds the noise floor. The caller owns deletion of the returned
// file. On failure no temp file remains.
func (e *Extractor) FirstUsableFrame(ctx context.Context, videoPath string) (string, error) {
	tmp, err := os.CreateTemp("", "frame_*.jpg")
	if err != nil {
		return "", fmt.Errorf("create temp frame file: %w", err)
	}
	framePath := tmp.Name()
	tmp.Close()

	for i := 0; i < e.maxAttempts; i++ {
		if err := e.grabber.Grab(ctx, videoPath, i, framePath); err != nil {
			// Stream exhausted before a bright frame appeared.
			os.Remove(framePath)
			return "", ErrNoUsableFrame
		}

		luma, err := meanLuma(framePath)
		if err != nil {
			os.Remove(framePath)
			return "", fmt.Errorf("analyze frame %d: %w", i, err)
		}
		if luma > e.lumaThreshold {
			return framePath, nil
		}
	}

	os.Remove(framePath)
	return "", ErrNoUsableFrame
}

// meanLuma computes the average Rec. 601 luma of an image file on the
// 0..255 scale.
func meanLuma(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return 0, fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	pixels := bounds.Dx() * bounds.Dy()
	if pixels == 0 {
		return 0, nil
	}

	var sum float64
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			// 16-bit channels down to 8-bit luma.
			sum += (0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)) / 257.0
		}
	}
	return sum / float64(pixels), nil
}
