package cache

import (
	"context"
	"os"
	"path/filepath"

	"vividd/pkg/types"
)

// StubFetcher materializes the mandatory file set with placeholder
// contents instead of hitting the network. Used by tests and the daemon's
// development mode.
type StubFetcher struct {
	// Err, when set, makes every fetch fail with it.
	Err error
	// Incomplete drops the last mandatory file to simulate a truncated
	// transfer.
	Incomplete bool
	Files      []string
}

func (s *StubFetcher) Fetch(ctx context.Context, art types.Artifact, destDir string, progress func(int)) error {
	if s.Err != nil {
		return s.Err
	}
	files := s.Files
	if len(files) == 0 {
		files = []string{"config.json", "model_index.json", "tokenizer_config.json"}
	}
	if s.Incomplete {
		files = files[:len(files)-1]
	}
	for i, name := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(destDir, name), []byte("{}\n"), 0o644); err != nil {
			return err
		}
		if progress != nil {
			progress((i + 1) * 99 / len(files))
		}
	}
	return nil
}
