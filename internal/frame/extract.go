package frame

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/google/uuid"
)

// ExtractRepresentative извлекает один кадр из медиа фрагмента с помощью ffmpeg
func ExtractRepresentative(fragment []byte) ([]byte, error) {
	if len(fragment) == 0 {
		return nil, fmt.Errorf("empty fragment media")
	}

	id := uuid.New().String()
	tempDir := os.TempDir()

	videoPath := filepath.Join(tempDir, fmt.Sprintf("fragment_%s.mkv", id))
	if err := os.WriteFile(videoPath, fragment, 0644); err != nil {
		return nil, fmt.Errorf("failed to write fragment file: %w", err)
	}
	defer os.Remove(videoPath)

	framePath := filepath.Join(tempDir, fmt.Sprintf("frame_%s.jpg", id))
	defer os.Remove(framePath)

	cmd := exec.Command("ffmpeg",
		"-i", videoPath,
		"-frames:v", "1",
		"-q:v", "2", // Качество JPEG
		framePath,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg failed: %w, stderr: %s", err, stderr.String())
	}

	data, err := os.ReadFile(framePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read extracted frame: %w", err)
	}

	return data, nil
}
