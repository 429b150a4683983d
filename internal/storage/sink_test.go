package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"designbridge/internal/domain"
)

type stubDownloader struct {
	data  []byte
	ctype string
	err   error
	calls int
}

func (d *stubDownloader) Download(ctx context.Context, url string) ([]byte, string, error) {
	d.calls++
	return d.data, d.ctype, d.err
}

type stubWriter struct {
	err         error
	key         string
	contentType string
	data        []byte
}

func (w *stubWriter) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	w.key, w.data, w.contentType = key, data, contentType
	if w.err != nil {
		return "", w.err
	}
	return "https://bucket.example.com/" + key, nil
}

func TestPassthroughReturnsSourceURL(t *testing.T) {
	sink, err := NewSink(Config{Backend: BackendNone}, &stubDownloader{err: errors.New("must not be called")})
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}
	if sink.Persistent() {
		t.Fatal("passthrough must report non-persistent")
	}
	src := "https://export.example.com/a.png?sig=abc"
	got, err := sink.Store(context.Background(), src, "exports/g/g_orig_1.png", "image/png")
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	if got != src {
		t.Fatalf("location = %q, want %q", got, src)
	}
}

func TestObjectSinkStores(t *testing.T) {
	downloader := &stubDownloader{data: []byte("png"), ctype: "image/png"}
	writer := &stubWriter{}
	sink, err := NewObjectSink(downloader, writer)
	if err != nil {
		t.Fatalf("new object sink: %v", err)
	}
	loc, err := sink.Store(context.Background(), "https://export.example.com/a.png", "exports/g/g_orig_1.png", "")
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	if loc != "https://bucket.example.com/exports/g/g_orig_1.png" {
		t.Fatalf("location = %q", loc)
	}
	if writer.contentType != "image/png" {
		t.Fatalf("content type = %q, want fallback to downloaded type", writer.contentType)
	}
	if string(writer.data) != "png" {
		t.Fatalf("data = %q", writer.data)
	}
}

func TestObjectSinkDistinguishesFailures(t *testing.T) {
	sink, _ := NewObjectSink(&stubDownloader{err: &domain.HTTPError{Status: 403}}, &stubWriter{})
	_, err := sink.Store(context.Background(), "https://export.example.com/a.png", "k.png", "image/png")
	if !errors.Is(err, domain.ErrDownloadFailed) || errors.Is(err, domain.ErrWriteFailed) {
		t.Fatalf("expected download failure, got %v", err)
	}

	sink, _ = NewObjectSink(&stubDownloader{data: []byte("x")}, &stubWriter{err: errors.New("disk full")})
	_, err = sink.Store(context.Background(), "https://export.example.com/a.png", "k.png", "image/png")
	if !errors.Is(err, domain.ErrWriteFailed) || errors.Is(err, domain.ErrDownloadFailed) {
		t.Fatalf("expected write failure, got %v", err)
	}
}

func TestFileStorePut(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, "http://localhost:8080/static/")
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	loc, err := store.Put(context.Background(), "/exports/g1/g1_orig_1.png", []byte("data"), "image/png")
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if loc != "http://localhost:8080/static/exports/g1/g1_orig_1.png" {
		t.Fatalf("location = %q", loc)
	}
	raw, err := os.ReadFile(filepath.Join(dir, "exports", "g1", "g1_orig_1.png"))
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(raw) != "data" {
		t.Fatalf("content = %q", raw)
	}
}

func TestSanitizeKey(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "exports/a.png", want: "exports/a.png"},
		{in: "./exports//a.png", want: "exports/a.png"},
		{in: "\\exports\\a.png", want: "exports/a.png"},
		{in: "../etc/passwd", wantErr: true},
		{in: "  ", wantErr: true},
		{in: "..", wantErr: true},
	}
	for _, tt := range tests {
		got, err := sanitizeKey(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("sanitizeKey(%q) = %q, want error", tt.in, got)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Fatalf("sanitizeKey(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}

func TestNewSinkUnknownBackend(t *testing.T) {
	if _, err := NewSink(Config{Backend: "ftp"}, &stubDownloader{}); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}
