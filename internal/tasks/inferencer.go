package tasks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"vividd/pkg/types"
)

// Inferencer is the external generation collaborator. It is synchronous
// from the executor's point of view and may be slow (minutes).
type Inferencer interface {
	Generate(ctx context.Context, kind types.ArtifactKind, params types.TaskParams, artifactPath string) (outputLocation string, err error)
}

// InferencerFunc adapts a function to the Inferencer interface.
type InferencerFunc func(ctx context.Context, kind types.ArtifactKind, params types.TaskParams, artifactPath string) (string, error)

func (f InferencerFunc) Generate(ctx context.Context, kind types.ArtifactKind, params types.TaskParams, artifactPath string) (string, error) {
	return f(ctx, kind, params, artifactPath)
}

// StubInferencer writes a placeholder output file instead of running a
// real pipeline. Used by tests and the daemon's development mode.
type StubInferencer struct {
	OutputDir string
	// Err, when set, makes every generation fail with it.
	Err error
}

func (s *StubInferencer) Generate(ctx context.Context, kind types.ArtifactKind, params types.TaskParams, artifactPath string) (string, error) {
	if s.Err != nil {
		return "", s.Err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.OutputDir, 0o755); err != nil {
		return "", err
	}
	name := fmt.Sprintf("%s_%s.mp4", kind, uuid.NewString())
	out := filepath.Join(s.OutputDir, name)
	if err := os.WriteFile(out, []byte("stub video output\n"), 0o644); err != nil {
		return "", err
	}
	return out, nil
}
