package writer

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/JakeFAU/research-digest/internal/digest"
)

// deleter is implemented by mirrors that also apply retention.
type deleter interface {
	Delete(ctx context.Context, name string) (string, error)
}

// MirroredStore copies every successful write to a secondary Mirror and, when
// the mirror supports it, repeats deletes there. Mirror failures are logged
// and never fail the primary operation.
type MirroredStore struct {
	Store
	mirror digest.Mirror
	logger *zap.Logger
}

// WithMirror wraps store. A nil mirror returns store unchanged.
func WithMirror(store Store, mirror digest.Mirror, logger *zap.Logger) Store {
	if mirror == nil {
		return store
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MirroredStore{Store: store, mirror: mirror, logger: logger}
}

// PutObject writes to the primary store, then to the mirror.
func (m *MirroredStore) PutObject(ctx context.Context, name string, contentType string, data io.Reader) (string, error) {
	payload, err := io.ReadAll(data)
	if err != nil {
		return "", fmt.Errorf("read artifact %s: %w", name, err)
	}
	path, err := m.Store.PutObject(ctx, name, contentType, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	uri, err := m.mirror.PutObject(ctx, name, contentType, bytes.NewReader(payload))
	if err != nil {
		m.logger.Warn("artifact mirror failed", zap.String("name", name), zap.Error(err))
		return path, nil
	}
	m.logger.Debug("artifact mirrored", zap.String("name", name), zap.String("uri", uri))
	return path, nil
}

// Delete removes name from the primary store, then from the mirror.
func (m *MirroredStore) Delete(ctx context.Context, name string) (string, error) {
	path, err := m.Store.Delete(ctx, name)
	if err != nil {
		return "", err
	}
	d, ok := m.mirror.(deleter)
	if !ok {
		return path, nil
	}
	if uri, err := d.Delete(ctx, name); err != nil {
		m.logger.Warn("mirror delete failed", zap.String("name", name), zap.Error(err))
	} else {
		m.logger.Debug("mirror copy deleted", zap.String("name", name), zap.String("uri", uri))
	}
	return path, nil
}
