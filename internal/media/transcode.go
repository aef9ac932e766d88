package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
)

// ErrEncodingFailed means the external encoder failed or timed out. The
// source file is left intact for manual recovery.
var ErrEncodingFailed = errors.New("media: encoding failed")

const (
	// DefaultTranscodeTimeout bounds one encoder run.
	DefaultTranscodeTimeout = 2 * time.Minute
	// DefaultMaxTranscodes bounds concurrent encoder subprocesses.
	DefaultMaxTranscodes = 4

	// stderrTailLimit caps how much encoder diagnostic output is carried
	// in the error.
	stderrTailLimit = 2048
)

// Transcoder normalizes audio files into the WhatsApp-friendly MP3 profile
// (mono, 44.1kHz, 128kbps, volume 0.9) by invoking ffmpeg as a subprocess.
type Transcoder struct {
	ffmpeg    string
	outputDir string
	timeout   time.Duration
	sem       chan struct{}
}

// TranscoderOpts holds parameters for NewTranscoder.
type TranscoderOpts struct {
	FFmpeg    string // encoder binary, default "ffmpeg"
	OutputDir string // shared public storage directory for outputs
	Timeout   time.Duration
	// MaxConcurrent bounds simultaneous encoder subprocesses.
	MaxConcurrent int
}

// NewTranscoder creates a Transcoder writing outputs into opts.OutputDir.
func NewTranscoder(opts TranscoderOpts) (*Transcoder, error) {
	if opts.OutputDir == "" {
		return nil, fmt.Errorf("media: output dir is required")
	}
	if opts.FFmpeg == "" {
		opts.FFmpeg = "ffmpeg"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTranscodeTimeout
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = DefaultMaxTranscodes
	}
	return &Transcoder{
		ffmpeg:    opts.FFmpeg,
		outputDir: opts.OutputDir,
		timeout:   opts.Timeout,
		sem:       make(chan struct{}, opts.MaxConcurrent),
	}, nil
}

// Transcode encodes sourcePath to a fresh MP3 in the output directory and
// returns the output path. The source file is deleted on success only; on
// any failure it is left in place and the error wraps ErrEncodingFailed
// with the encoder's diagnostic output.
func (t *Transcoder) Transcode(ctx context.Context, sourcePath string) (string, error) {
	select {
	case t.sem <- struct{}{}:
		defer func() { <-t.sem }()
	case <-ctx.Done():
		return "", fmt.Errorf("%w: %v", ErrEncodingFailed, ctx.Err())
	}

	outputPath := filepath.Join(t.outputDir, uuid.NewString()+".mp3")

	runCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, t.ffmpeg,
		"-i", sourcePath,
		"-vn",
		"-c:a", "libmp3lame",
		"-b:a", "128k",
		"-ar", "44100",
		"-ac", "1",
		"-filter:a", "volume=0.9",
		outputPath,
		"-y",
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = 10 * time.Second

	if err := cmd.Run(); err != nil {
		os.Remove(outputPath)
		if runCtx.Err() != nil {
			return "", fmt.Errorf("%w: %s timed out after %s: %s", ErrEncodingFailed, t.ffmpeg, t.timeout, stderrTail(stderr.String()))
		}
		return "", fmt.Errorf("%w: %s: %v: %s", ErrEncodingFailed, t.ffmpeg, err, stderrTail(stderr.String()))
	}

	// A zero exit with no output file still counts as an encoder failure.
	if _, err := os.Stat(outputPath); err != nil {
		return "", fmt.Errorf("%w: %s produced no output: %s", ErrEncodingFailed, t.ffmpeg, stderrTail(stderr.String()))
	}

	// The transcoder owns the source once invoked; remove it now that the
	// derivative exists.
	os.Remove(sourcePath)

	return outputPath, nil
}

// stderrTail returns the trailing portion of the encoder's stderr, where
// ffmpeg puts the actual failure reason.
func stderrTail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > stderrTailLimit {
		s = s[len(s)-stderrTailLimit:]
	}
	return s
}
