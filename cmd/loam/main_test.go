package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.trai.ch/loam/internal/adapters/config"
	"go.trai.ch/loam/internal/app"
	"go.trai.ch/loam/internal/core/ports/mocks"
	"go.uber.org/mock/gomock"
)

func newTestComponents(t *testing.T) *app.Components {
	t.Helper()
	ctrl := gomock.NewController(t)

	mockLogger := mocks.NewMockLogger(ctrl)
	mockLogger.EXPECT().Error(gomock.Any()).AnyTimes()

	application := app.New(
		config.NewLoader(mockLogger),
		mocks.NewMockSourceStore(ctrl),
		mocks.NewMockRuntimeEnv(ctrl),
		mockLogger,
	)

	return &app.Components{
		App:    application,
		Logger: mockLogger,
	}
}

// TestRun_Success verifies that the run function returns 0 when the command succeeds.
func TestRun_Success(t *testing.T) {
	components := newTestComponents(t)

	provider := func(_ context.Context) (*app.Components, func(), error) {
		return components, func() {}, nil
	}

	stderr := new(bytes.Buffer)
	exitCode := run(context.Background(), []string{"version"}, stderr, provider)
	assert.Equal(t, 0, exitCode)
}

// TestRun_InitializationError verifies that run returns 1 when component initialization fails.
func TestRun_InitializationError(t *testing.T) {
	provider := func(_ context.Context) (*app.Components, func(), error) {
		return nil, nil, errors.New("init failed")
	}

	stderr := new(bytes.Buffer)
	exitCode := run(context.Background(), []string{"version"}, stderr, provider)

	assert.Equal(t, 1, exitCode)
	assert.Contains(t, stderr.String(), "Error: init failed")
}

// TestRun_ExecutionError verifies the exit code when the command execution fails.
func TestRun_ExecutionError(t *testing.T) {
	components := newTestComponents(t)

	provider := func(_ context.Context) (*app.Components, func(), error) {
		return components, func() {}, nil
	}

	// An empty directory has no project file, so install must fail.
	cwd, _ := os.Getwd()
	tmp := t.TempDir()
	_ = os.Chdir(tmp)
	defer func() {
		_ = os.Chdir(cwd)
	}()

	stderr := new(bytes.Buffer)
	exitCode := run(context.Background(), []string{"install"}, stderr, provider)
	assert.Equal(t, app.ExitFailure, exitCode)
}
