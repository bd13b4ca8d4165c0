package media

import (
	"bytes"
	"context"
	"os"
	"os/exec"
)

// ProcessedSuffix is appended to the input path to name the remuxed copy.
const ProcessedSuffix = ".processed"

// FFmpeg remuxes files with the ffmpeg binary at Path.
type FFmpeg struct {
	Path string
}

// ProcessForFastStart writes a copy of filePath with the moov atom moved to
// the front of the file so playback can start before the download finishes.
// Streams and metadata are copied, not re-encoded. It returns the path of the
// new file; on failure any partial output is removed.
func (f FFmpeg) ProcessForFastStart(ctx context.Context, filePath string) (string, error) {
	outputPath := filePath + ProcessedSuffix
	cmd := exec.CommandContext(ctx, f.binary(),
		"-i", filePath,
		"-movflags", "faststart",
		"-map_metadata", "0",
		"-codec", "copy",
		"-f", "mp4",
		outputPath,
	)
	var errOut bytes.Buffer
	cmd.Stderr = &errOut
	if err := cmd.Run(); err != nil {
		os.Remove(outputPath)
		return "", toolError("ffmpeg", err, errOut.String())
	}
	return outputPath, nil
}

func (f FFmpeg) binary() string {
	if f.Path == "" {
		return "ffmpeg"
	}
	return f.Path
}
