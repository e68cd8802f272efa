// Package ingest decodes batched event files dropped into a spool
// directory: newline-delimited JSON records, optionally gzip- or
// zstd-compressed, each becoming one model.Event for a Matcher to process.
// It is a collaborator of the Matcher, not part of its contract.
package ingest

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/danielsvitols/tornado/internal/model"
	"github.com/danielsvitols/tornado/internal/value"
	"github.com/klauspost/compress/zstd"
)

const (
	defaultMaxFileSize         = 100 * 1024 * 1024
	defaultMaxDecompressedSize = 500 * 1024 * 1024
	defaultMaxDecompressionRate = 100
	maxCompressionDepth         = 2
)

// Decoder reads event batch files with bounds on raw size, decompressed
// size, and compression ratio, so a hostile or corrupt file cannot exhaust
// memory (decompression-bomb protection).
type Decoder struct {
	maxFileSize          int64
	maxDecompressedSize  int64
	maxDecompressionRate int64
}

// NewDecoder returns a Decoder with conservative default limits.
func NewDecoder() *Decoder {
	return &Decoder{
		maxFileSize:          defaultMaxFileSize,
		maxDecompressedSize:  defaultMaxDecompressedSize,
		maxDecompressionRate: defaultMaxDecompressionRate,
	}
}

// WithLimits returns a copy of the Decoder with its limits overridden.
func (d *Decoder) WithLimits(maxFileSize, maxDecompressedSize int64, maxDecompressionRate int64) *Decoder {
	cp := *d
	cp.maxFileSize = maxFileSize
	cp.maxDecompressedSize = maxDecompressedSize
	cp.maxDecompressionRate = maxDecompressionRate
	return &cp
}

// DecodeEvents reads path and returns every decoded model.Event.
func (d *Decoder) DecodeEvents(path string) ([]model.Event, error) {
	return d.DecodeEventsContext(context.Background(), path)
}

// DecodeEventsContext is DecodeEvents with cancellation support.
func (d *Decoder) DecodeEventsContext(ctx context.Context, path string) ([]model.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if path == "" {
		return nil, fmt.Errorf("ingest: empty path")
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("ingest: stat %s: %w", path, err)
	}
	if info.Size() == 0 {
		return nil, fmt.Errorf("ingest: %s is empty", path)
	}
	if info.Size() > d.maxFileSize {
		return nil, fmt.Errorf("ingest: %s exceeds max file size %d", path, d.maxFileSize)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ingest: read %s: %w", path, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := d.decompress(raw, path)
	if err != nil {
		return nil, err
	}

	return decodeJSONLines(data)
}

// decompress peels off at most maxCompressionDepth layers of gzip/zstd,
// guarding both the total decompressed size and the compression ratio
// against a decompression-bomb input.
func (d *Decoder) decompress(data []byte, path string) ([]byte, error) {
	compressedSize := int64(len(data))

	for depth := 0; ; depth++ {
		// The file extension describes only the outermost layer; inner
		// layers are recognized by their magic bytes alone.
		hint := path
		if depth > 0 {
			hint = ""
		}
		kind := detectCompression(data, hint)
		if kind == "" {
			return data, nil
		}
		if depth >= maxCompressionDepth {
			return nil, fmt.Errorf("ingest: exceeded maximum compression depth (%d)", maxCompressionDepth)
		}

		decompressed, err := d.decompressOne(kind, data)
		if err != nil {
			return nil, err
		}

		if compressedSize > 0 {
			rate := int64(len(decompressed)) / compressedSize
			if rate > d.maxDecompressionRate {
				return nil, fmt.Errorf("ingest: decompression rate %d exceeds limit %d (possible decompression bomb)", rate, d.maxDecompressionRate)
			}
		}

		data = decompressed
	}
}

func (d *Decoder) decompressOne(kind string, data []byte) ([]byte, error) {
	var r io.Reader
	switch kind {
	case "gzip":
		gz, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("ingest: gzip: %w", err)
		}
		defer gz.Close()
		r = gz
	case "zstd":
		zr, err := zstd.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("ingest: zstd: %w", err)
		}
		defer zr.Close()
		r = zr
	default:
		return nil, fmt.Errorf("ingest: unknown compression %q", kind)
	}

	limited := io.LimitReader(r, d.maxDecompressedSize+1)
	out, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("ingest: decompressing: %w", err)
	}
	if int64(len(out)) > d.maxDecompressedSize {
		return nil, fmt.Errorf("ingest: decompressed size exceeds limit %d (possible decompression bomb)", d.maxDecompressedSize)
	}
	return out, nil
}

// detectCompression returns "gzip"/"zstd" by magic bytes (falling back to
// file extension), or "" if data looks uncompressed.
func detectCompression(data []byte, path string) string {
	if len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b {
		return "gzip"
	}
	if len(data) >= 4 && data[0] == 0x28 && data[1] == 0xb5 && data[2] == 0x2f && data[3] == 0xfd {
		return "zstd"
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz":
		return "gzip"
	case ".zst":
		return "zstd"
	}
	return ""
}

// wireEvent mirrors the JSON shape a collector writes: one object per line.
type wireEvent struct {
	TraceID   string          `json:"trace_id"`
	Type      string          `json:"type"`
	CreatedMs int64           `json:"created_ms"`
	Payload   json.RawMessage `json:"payload"`
}

func decodeJSONLines(data []byte) ([]model.Event, error) {
	var events []model.Event
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var we wireEvent
		if err := json.Unmarshal(line, &we); err != nil {
			return nil, fmt.Errorf("ingest: line %d: invalid JSON: %w", lineNo, err)
		}

		payload := value.NewMapBuilder().Build()
		if len(we.Payload) > 0 {
			parsed, err := value.FromJSON(we.Payload)
			if err != nil {
				return nil, fmt.Errorf("ingest: line %d: invalid payload: %w", lineNo, err)
			}
			payload = parsed
		}

		events = append(events, model.NewEvent(we.TraceID, we.Type, we.CreatedMs, payload))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("ingest: scanning: %w", err)
	}
	if len(events) == 0 {
		return nil, fmt.Errorf("ingest: no events decoded")
	}

	return events, nil
}
