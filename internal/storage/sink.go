package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"designbridge/internal/domain"
)

// Sink hands a produced artifact to its final destination.
type Sink interface {
	// Store persists the artifact at sourceURL under key and returns where it
	// can be fetched from.
	Store(ctx context.Context, sourceURL, key, contentType string) (string, error)
	// Persistent reports whether Store copies bytes or only forwards the URL.
	Persistent() bool
}

// Downloader fetches the bytes behind a transient artifact URL.
type Downloader interface {
	Download(ctx context.Context, url string) ([]byte, string, error)
}

// ObjectWriter stores bytes under a key and returns the resulting location.
type ObjectWriter interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// Passthrough is the sink used when no backend is configured: the source URL
// is returned unchanged and no I/O happens.
type Passthrough struct{}

func (Passthrough) Store(ctx context.Context, sourceURL, _, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return sourceURL, nil
}

func (Passthrough) Persistent() bool { return false }

// ObjectSink downloads each artifact and writes it to an ObjectWriter.
type ObjectSink struct {
	downloader Downloader
	writer     ObjectWriter
}

// NewObjectSink builds a persistent sink.
func NewObjectSink(downloader Downloader, writer ObjectWriter) (*ObjectSink, error) {
	if downloader == nil || writer == nil {
		return nil, errors.New("storage: downloader and writer are required")
	}
	return &ObjectSink{downloader: downloader, writer: writer}, nil
}

func (s *ObjectSink) Persistent() bool { return true }

// Store fails with a domain.SinkError whose Op tells whether the download or
// the write went wrong.
func (s *ObjectSink) Store(ctx context.Context, sourceURL, key, contentType string) (string, error) {
	data, fetchedType, err := s.downloader.Download(ctx, sourceURL)
	if err != nil {
		return "", &domain.SinkError{Op: domain.SinkOpDownload, Key: key, Err: err}
	}
	if contentType == "" {
		contentType = fetchedType
	}
	location, err := s.writer.Put(ctx, key, data, contentType)
	if err != nil {
		return "", &domain.SinkError{Op: domain.SinkOpWrite, Key: key, Err: err}
	}
	return location, nil
}

// Backend names accepted by NewSink.
const (
	BackendNone       = "none"
	BackendFilesystem = "filesystem"
	BackendS3         = "s3"
)

// Config selects and configures the sink backend once at startup.
type Config struct {
	Backend        string
	FilesystemPath string
	PublicBaseURL  string
	S3             S3Config
}

// NewSink returns the sink for cfg.Backend.
func NewSink(cfg Config, downloader Downloader) (Sink, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", BackendNone:
		return Passthrough{}, nil
	case BackendFilesystem:
		store, err := NewFileStore(cfg.FilesystemPath, cfg.PublicBaseURL)
		if err != nil {
			return nil, err
		}
		return NewObjectSink(downloader, store)
	case BackendS3:
		store, err := NewS3Store(cfg.S3)
		if err != nil {
			return nil, err
		}
		return NewObjectSink(downloader, store)
	default:
		return nil, fmt.Errorf("storage: unknown sink backend %q", cfg.Backend)
	}
}

var (
	_ Sink         = Passthrough{}
	_ Sink         = (*ObjectSink)(nil)
	_ ObjectWriter = (*FileStore)(nil)
	_ ObjectWriter = (*S3Store)(nil)
)
