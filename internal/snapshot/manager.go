package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/hyperjump/tsrag/pkg/utils"
)

// DefaultName is the object name used when none is configured.
const DefaultName = "tsrag.snapshot"

// Source produces and consumes snapshot streams. *search.Engine implements it.
type Source interface {
	Snapshot(ctx context.Context, w io.Writer) (int, error)
	Restore(ctx context.Context, r io.Reader) (int, error)
}

type aborter interface {
	Abort() error
}

// Manager saves and loads one named snapshot through a sink.
type Manager struct {
	source Source
	sink   Sink
	name   string
	logger *zap.Logger
}

// NewManager returns a manager for name in sink. An empty name uses DefaultName.
func NewManager(source Source, sink Sink, name string, logger *zap.Logger) *Manager {
	if name == "" {
		name = DefaultName
	}
	return &Manager{source: source, sink: sink, name: name, logger: utils.OrNop(logger)}
}

// Location returns where the snapshot is stored.
func (m *Manager) Location() string {
	return m.sink.Location(m.name)
}

// Save writes a snapshot of the source. A failed write leaves the previous
// snapshot in place.
func (m *Manager) Save(ctx context.Context) (int, error) {
	wc, err := m.sink.Create(ctx, m.name)
	if err != nil {
		return 0, err
	}
	n, err := m.source.Snapshot(ctx, wc)
	if err != nil {
		if a, ok := wc.(aborter); ok {
			_ = a.Abort()
		} else {
			_ = wc.Close()
		}
		return 0, fmt.Errorf("snapshot to %s: %w", m.Location(), err)
	}
	if err := wc.Close(); err != nil {
		return 0, fmt.Errorf("snapshot to %s: %w", m.Location(), err)
	}
	m.logger.Info("snapshot saved", zap.String("location", m.Location()), zap.Int("documents", n))
	return n, nil
}

// Load restores the snapshot into the source. A missing snapshot matches
// os.ErrNotExist.
func (m *Manager) Load(ctx context.Context) (int, error) {
	rc, err := m.sink.Open(ctx, m.name)
	if err != nil {
		return 0, err
	}
	n, err := m.source.Restore(ctx, rc)
	if cerr := rc.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		return n, errors.Join(fmt.Errorf("restore from %s", m.Location()), err)
	}
	m.logger.Info("snapshot restored", zap.String("location", m.Location()), zap.Int("documents", n))
	return n, nil
}
