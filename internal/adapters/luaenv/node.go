package luaenv

import (
	"context"
	"os"
	"path/filepath"

	"github.com/grindlemire/graft"
	"go.trai.ch/loam/internal/adapters/logger"
	"go.trai.ch/loam/internal/core/ports"
)

// NodeID is the unique identifier for the Lua runtime environment Graft node.
const NodeID graft.ID = "adapter.lua_env"

func init() {
	graft.Register(graft.Node[ports.RuntimeEnv]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{logger.NodeID},
		Run: func(ctx context.Context) (ports.RuntimeEnv, error) {
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			cacheDir, err := os.UserCacheDir()
			if err != nil {
				cacheDir = os.TempDir()
			}
			return New(log, filepath.Join(cacheDir, "loam")), nil
		},
	})
}
