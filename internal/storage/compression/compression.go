package compression

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
)

// Compressor handles gzip compression of artifact files and cached spectra
type Compressor struct {
	// Threshold in bytes above which compression is applied
	Threshold int
	// Level is a compress/gzip level; 0 selects gzip.DefaultCompression
	Level int
}

// IsCompressed reports whether data starts with the gzip magic number
func IsCompressed(data []byte) bool {
	return len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b
}

// Compress gzips data larger than the threshold and returns smaller payloads unchanged
func (c *Compressor) Compress(data []byte) ([]byte, error) {
	if len(data) <= c.Threshold {
		return data, nil
	}

	level := c.Level
	if level == 0 {
		level = gzip.DefaultCompression
	}

	var buf bytes.Buffer
	writer, err := gzip.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, fmt.Errorf("invalid compression level %d: %w", c.Level, err)
	}

	if _, err := writer.Write(data); err != nil {
		return nil, fmt.Errorf("failed to write compressed data: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close gzip writer: %w", err)
	}

	return buf.Bytes(), nil
}

// Decompress decompresses gzipped data; uncompressed input is returned as is
func (c *Compressor) Decompress(data []byte) ([]byte, error) {
	if !IsCompressed(data) {
		return data, nil
	}

	reader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer reader.Close()

	decompressed, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read decompressed data: %w", err)
	}

	return decompressed, nil
}
