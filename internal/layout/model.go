package layout

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"pdf-layout-translator/internal/logger"
)

// ResolveModel returns a path to an uncompressed model file. A path ending
// in ".gz" is extracted once into cacheDir and the extracted copy is reused
// on later calls.
func ResolveModel(modelPath, cacheDir string) (string, error) {
	if modelPath == "" {
		return "", fmt.Errorf("model path is empty")
	}
	if _, err := os.Stat(modelPath); err != nil {
		return "", fmt.Errorf("model not found: %w", err)
	}
	if !strings.HasSuffix(modelPath, ".gz") {
		return modelPath, nil
	}

	if cacheDir == "" {
		cacheDir = filepath.Dir(modelPath)
	}
	modelFile := filepath.Join(cacheDir, strings.TrimSuffix(filepath.Base(modelPath), ".gz"))

	if info, err := os.Stat(modelFile); err == nil && info.Size() > 0 {
		return modelFile, nil
	}

	logger.Info("extracting layout model",
		logger.String("from", modelPath),
		logger.String("to", modelFile))

	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create model directory: %w", err)
	}

	src, err := os.Open(modelPath)
	if err != nil {
		return "", fmt.Errorf("failed to open compressed model: %w", err)
	}
	defer src.Close()

	gz, err := gzip.NewReader(src)
	if err != nil {
		return "", fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gz.Close()

	tmp := modelFile + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("failed to create model file: %w", err)
	}

	n, err := io.Copy(out, gz)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to extract model: %w", err)
	}
	if err := os.Rename(tmp, modelFile); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to move extracted model: %w", err)
	}

	logger.Info("layout model extracted", logger.Int64("bytes", n))
	return modelFile, nil
}
