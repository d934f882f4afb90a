package app

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/loam/internal/adapters/config" //nolint:depguard // Wired in app layer
	"go.trai.ch/loam/internal/adapters/logger" //nolint:depguard // Wired in app layer
	"go.trai.ch/loam/internal/adapters/luaenv" //nolint:depguard // Wired in app layer
	"go.trai.ch/loam/internal/adapters/store"  //nolint:depguard // Wired in app layer
	"go.trai.ch/loam/internal/core/ports"
)

const (
	// AppNodeID is the unique identifier for the main App Graft node.
	AppNodeID graft.ID = "app.main"
	// ComponentsNodeID is the unique identifier for the App components Graft node.
	ComponentsNodeID graft.ID = "app.components"
)

func init() {
	// App Node
	graft.Register(graft.Node[*App]{
		ID:        AppNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			config.NodeID,
			store.NodeID,
			luaenv.NodeID,
			logger.NodeID,
		},
		Run: func(ctx context.Context) (*App, error) {
			loader, err := graft.Dep[*config.Loader](ctx)
			if err != nil {
				return nil, err
			}

			sourceStore, err := graft.Dep[ports.SourceStore](ctx)
			if err != nil {
				return nil, err
			}

			runtime, err := graft.Dep[ports.RuntimeEnv](ctx)
			if err != nil {
				return nil, err
			}

			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}

			return New(loader, sourceStore, runtime, log), nil
		},
	})

	// Components Node
	graft.Register(graft.Node[*Components]{
		ID:        ComponentsNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			AppNodeID,
			logger.NodeID,
		},
		Run: runComponentsNode,
	})
}

func runComponentsNode(ctx context.Context) (*Components, error) {
	application, err := graft.Dep[*App](ctx)
	if err != nil {
		return nil, err
	}

	log, err := graft.Dep[ports.Logger](ctx)
	if err != nil {
		return nil, err
	}

	return &Components{
		App:    application,
		Logger: log,
	}, nil
}
