package cover

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Extractor downloads the audio track of source into dir and returns the file path.
type Extractor interface {
	Extract(ctx context.Context, source, dir string) (string, error)
}

// YTDLP shells out to yt-dlp.
type YTDLP struct {
	Path string
}

func (y YTDLP) binary() string {
	if y.Path != "" {
		return y.Path
	}
	if p, err := exec.LookPath("yt-dlp"); err == nil {
		return p
	}
	return "/usr/local/bin/yt-dlp"
}

func (y YTDLP) Extract(ctx context.Context, source, dir string) (string, error) {
	args := []string{
		"-x", "--audio-format", "mp3",
		"--no-playlist", "--no-progress",
		"-o", filepath.Join(dir, "audio.%(ext)s"),
		source,
	}
	cmd := exec.CommandContext(ctx, y.binary(), args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("yt-dlp: %w: %s", err, tail(string(out), 300))
	}
	path := filepath.Join(dir, "audio.mp3")
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("yt-dlp produced no audio: %w", err)
	}
	return path, nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
