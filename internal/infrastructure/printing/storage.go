package printing

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/erp/orderdesk/internal/infrastructure/storage"
	"go.uber.org/zap"
)

// PDFStorage keeps generated documents under their file name
type PDFStorage interface {
	// Store saves a PDF and returns where it was put
	Store(ctx context.Context, name string, data []byte) (*StoreResult, error)
	// Get opens a stored PDF; the caller closes it
	Get(ctx context.Context, name string) (io.ReadCloser, error)
	Delete(ctx context.Context, name string) error
}

// StoreResult contains the result of storing a PDF
type StoreResult struct {
	// Location is the file path or object key
	Location string
	Size     int64
}

// validName rejects names that would leave the storage root
func validName(name string) error {
	if name == "" || name != filepath.Base(name) || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return NewRenderError(ErrCodeStorageFailed, "invalid file name: "+name, nil)
	}
	return nil
}

// FileSystemStorage stores PDFs flat in one directory
type FileSystemStorage struct {
	dir    string
	logger *zap.Logger
}

// NewFileSystemStorage creates the directory if needed
func NewFileSystemStorage(dir string, logger *zap.Logger) (*FileSystemStorage, error) {
	if dir == "" {
		dir = "invoices"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, NewRenderError(ErrCodeStorageFailed, "failed to create storage directory: "+dir, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileSystemStorage{dir: dir, logger: logger}, nil
}

// Store writes <dir>/<name>, replacing an existing file
func (s *FileSystemStorage) Store(ctx context.Context, name string, data []byte) (*StoreResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, NewRenderError(ErrCodeStorageFailed, "operation cancelled", err)
	}
	if err := validName(name); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, NewRenderError(ErrCodeStorageFailed, "PDF data is empty", nil)
	}

	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, NewRenderError(ErrCodeStorageFailed, "failed to write PDF file", err)
	}
	s.logger.Info("PDF stored", zap.String("path", path), zap.Int("size", len(data)))
	return &StoreResult{Location: path, Size: int64(len(data))}, nil
}

// Get opens <dir>/<name>
func (s *FileSystemStorage) Get(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, NewRenderError(ErrCodeStorageFailed, "operation cancelled", err)
	}
	if err := validName(name); err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(s.dir, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, NewRenderError(ErrCodeNotFound, "PDF not found", err)
		}
		return nil, NewRenderError(ErrCodeStorageFailed, "failed to open PDF file", err)
	}
	return f, nil
}

// Delete removes <dir>/<name>; a missing file is not an error
func (s *FileSystemStorage) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return NewRenderError(ErrCodeStorageFailed, "operation cancelled", err)
	}
	if err := validName(name); err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return NewRenderError(ErrCodeStorageFailed, "failed to delete PDF file", err)
	}
	return nil
}

// ObjectStore is the subset of storage.S3ObjectStorage used for PDFs
type ObjectStore interface {
	Upload(ctx context.Context, name string, data []byte, contentType string) error
	Download(ctx context.Context, name string) (io.ReadCloser, error)
	Delete(ctx context.Context, name string) error
	Key(name string) string
}

// ObjectStorage stores PDFs in S3-compatible object storage
type ObjectStorage struct {
	store  ObjectStore
	logger *zap.Logger
}

// NewObjectStorage wraps an object store
func NewObjectStorage(store ObjectStore, logger *zap.Logger) *ObjectStorage {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ObjectStorage{store: store, logger: logger}
}

// Store uploads the PDF under name
func (s *ObjectStorage) Store(ctx context.Context, name string, data []byte) (*StoreResult, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, NewRenderError(ErrCodeStorageFailed, "PDF data is empty", nil)
	}
	if err := s.store.Upload(ctx, name, data, "application/pdf"); err != nil {
		return nil, NewRenderError(ErrCodeStorageFailed, "failed to upload PDF", err)
	}
	key := s.store.Key(name)
	s.logger.Info("PDF stored", zap.String("key", key), zap.Int("size", len(data)))
	return &StoreResult{Location: key, Size: int64(len(data))}, nil
}

// Get downloads the PDF stored under name
func (s *ObjectStorage) Get(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	rc, err := s.store.Download(ctx, name)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, NewRenderError(ErrCodeNotFound, "PDF not found", err)
		}
		return nil, NewRenderError(ErrCodeStorageFailed, "failed to download PDF", err)
	}
	return rc, nil
}

// Delete removes the PDF stored under name
func (s *ObjectStorage) Delete(ctx context.Context, name string) error {
	if err := validName(name); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, name); err != nil {
		return NewRenderError(ErrCodeStorageFailed, "failed to delete PDF", err)
	}
	return nil
}

// MemoryStorage keeps PDFs in memory; used when printing is not persisted
type MemoryStorage struct {
	mu    sync.Mutex
	files map[string][]byte
}

// NewMemoryStorage creates an empty MemoryStorage
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{files: make(map[string][]byte)}
}

// Store implements PDFStorage
func (m *MemoryStorage) Store(ctx context.Context, name string, data []byte) (*StoreResult, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[name] = bytes.Clone(data)
	return &StoreResult{Location: name, Size: int64(len(data))}, nil
}

// Get implements PDFStorage
func (m *MemoryStorage) Get(ctx context.Context, name string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[name]
	if !ok {
		return nil, NewRenderError(ErrCodeNotFound, "PDF not found", nil)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Delete implements PDFStorage
func (m *MemoryStorage) Delete(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, name)
	return nil
}

var (
	_ PDFStorage  = (*FileSystemStorage)(nil)
	_ PDFStorage  = (*ObjectStorage)(nil)
	_ PDFStorage  = (*MemoryStorage)(nil)
	_ ObjectStore = (*storage.S3ObjectStorage)(nil)
)
