package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// FFprobe reads stream dimensions with the ffprobe binary at Path.
type FFprobe struct {
	Path string
}

type probeOutput struct {
	Streams []struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	} `json:"streams"`
}

// Geometry probes the first video stream of the file at filePath and
// classifies its aspect ratio.
func (p FFprobe) Geometry(ctx context.Context, filePath string) (Geometry, error) {
	cmd := exec.CommandContext(ctx, p.binary(),
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height",
		"-of", "json",
		filePath,
	)
	var out, errOut bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errOut
	if err := cmd.Run(); err != nil {
		return "", toolError("ffprobe", err, errOut.String())
	}

	width, height, err := parseProbeDimensions(out.Bytes())
	if err != nil {
		return "", fmt.Errorf("failed to parse ffprobe output for %s: %w", filePath, err)
	}
	return Classify(width, height), nil
}

func (p FFprobe) binary() string {
	if p.Path == "" {
		return "ffprobe"
	}
	return p.Path
}

// parseProbeDimensions extracts width and height of the first stream from
// ffprobe JSON output. Missing or non-positive dimensions are an error.
func parseProbeDimensions(data []byte) (int, int, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return 0, 0, errors.New("empty output")
	}
	var probe probeOutput
	if err := json.Unmarshal(data, &probe); err != nil {
		return 0, 0, err
	}
	if len(probe.Streams) == 0 {
		return 0, 0, errors.New("no video stream found")
	}
	stream := probe.Streams[0]
	if stream.Width <= 0 || stream.Height <= 0 {
		return 0, 0, fmt.Errorf("width or height missing (width=%d height=%d)", stream.Width, stream.Height)
	}
	return stream.Width, stream.Height, nil
}

// toolError wraps a failed tool run with its diagnostic output.
func toolError(tool string, err error, stderr string) error {
	stderr = strings.TrimSpace(stderr)
	if stderr == "" {
		return fmt.Errorf("%s failed: %w", tool, err)
	}
	return fmt.Errorf("%s failed: %w: %s", tool, err, stderr)
}
