package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob" // file:// driver
	_ "gocloud.dev/blob/gcsblob"  // GCS driver
	_ "gocloud.dev/blob/memblob"  // mem:// driver
	_ "gocloud.dev/blob/s3blob"   // S3 driver
)

// MirrorConfig configures off-host copies of the run artifacts.
type MirrorConfig struct {
	URL      string // bucket URL: file:///dir, gs://bucket, s3://bucket?region=...
	Prefix   string // key prefix within the bucket
	Compress bool   // zstd-compress the result file
}

// Mirror publishes snapshots of the result file and checkpoint to a bucket.
// Backends are selected by URL scheme through gocloud.dev.
type Mirror struct {
	bucket   *blob.Bucket
	url      string
	prefix   string
	compress bool
}

// OpenMirror opens the configured bucket.
func OpenMirror(ctx context.Context, cfg MirrorConfig) (*Mirror, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("mirror URL required")
	}

	bucket, err := blob.OpenBucket(ctx, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open bucket %s: %w", cfg.URL, err)
	}

	return &Mirror{
		bucket:   bucket,
		url:      cfg.URL,
		prefix:   cfg.Prefix,
		compress: cfg.Compress,
	}, nil
}

// PublishResult lists the keys written by Publish.
type PublishResult struct {
	ResultsKey string
	StateKey   string
	Bytes      int64
}

// Publish uploads the result file and, if non-empty, the checkpoint file.
func (m *Mirror) Publish(ctx context.Context, resultsPath, statePath string) (*PublishResult, error) {
	out := &PublishResult{}

	data, err := os.ReadFile(resultsPath)
	if err != nil {
		return nil, fmt.Errorf("read results %s: %w", resultsPath, err)
	}

	key := m.prefix + filepath.Base(resultsPath)
	contentType := "text/plain; charset=utf-8"
	if m.compress {
		data, err = compress(data)
		if err != nil {
			return nil, err
		}
		key += ".zst"
		contentType = "application/zstd"
	}

	if err := m.bucket.WriteAll(ctx, key, data, &blob.WriterOptions{ContentType: contentType}); err != nil {
		return nil, fmt.Errorf("write %s: %w", key, err)
	}
	out.ResultsKey = key
	out.Bytes += int64(len(data))

	if statePath != "" {
		state, err := os.ReadFile(statePath)
		if err != nil {
			return nil, fmt.Errorf("read checkpoint %s: %w", statePath, err)
		}
		stateKey := m.prefix + filepath.Base(statePath)
		if err := m.bucket.WriteAll(ctx, stateKey, state, &blob.WriterOptions{ContentType: "application/json"}); err != nil {
			return nil, fmt.Errorf("write %s: %w", stateKey, err)
		}
		out.StateKey = stateKey
		out.Bytes += int64(len(state))
	}

	return out, nil
}

// Fetch reads a mirrored object, decompressing .zst keys.
func (m *Mirror) Fetch(ctx context.Context, key string) ([]byte, error) {
	data, err := m.bucket.ReadAll(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	if filepath.Ext(key) == ".zst" {
		return decompress(data)
	}
	return data, nil
}

// URI returns the canonical URI for the given key.
func (m *Mirror) URI(key string) string {
	return fmt.Sprintf("%s/%s", m.url, key)
}

// Close releases the bucket connection.
func (m *Mirror) Close() error {
	if m.bucket != nil {
		return m.bucket.Close()
	}
	return nil
}

func compress(data []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	defer enc.Close()
	return enc.EncodeAll(data, nil), nil
}

func decompress(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	defer dec.Close()

	out, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decompress: %w", err)
	}
	return out, nil
}
