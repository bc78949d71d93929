package exporter

import (
	"fmt"
	"os"

	"github.com/klauspost/compress/zstd"
)

// writeZstdFile writes the CSV table through a zstd encoder
func writeZstdFile(path string, headers []string, records [][]string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}

	enc, err := zstd.NewWriter(file, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		file.Close()
		return fmt.Errorf("failed to create zstd encoder: %w", err)
	}

	if err := WriteCSV(enc, WriteOptions{Headers: headers, Records: records}); err != nil {
		enc.Close()
		file.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		file.Close()
		return fmt.Errorf("failed to finish zstd stream: %w", err)
	}
	return file.Close()
}

func readZstdFile(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	dec, err := zstd.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	defer dec.Close()

	return ReadCSV(dec)
}
