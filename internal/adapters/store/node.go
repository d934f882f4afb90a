package store

import (
	"context"
	"os"
	"path/filepath"

	"github.com/grindlemire/graft"
	"go.trai.ch/loam/internal/core/ports"
)

// NodeID is the unique identifier for the source store Graft node.
const NodeID graft.ID = "adapter.source_store"

func init() {
	graft.Register(graft.Node[ports.SourceStore]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.SourceStore, error) {
			cacheDir, err := os.UserCacheDir()
			if err != nil {
				cacheDir = os.TempDir()
			}
			return NewStore(filepath.Join(cacheDir, "loam")), nil
		},
	})
}
