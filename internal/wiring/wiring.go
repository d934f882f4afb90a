// Package wiring registers all Graft nodes for the application.
package wiring

import (
	// Register adapter nodes.
	_ "go.trai.ch/loam/internal/adapters/config"
	_ "go.trai.ch/loam/internal/adapters/logger"
	_ "go.trai.ch/loam/internal/adapters/luaenv"
	_ "go.trai.ch/loam/internal/adapters/store"
	// Register app nodes.
	_ "go.trai.ch/loam/internal/app"
)
