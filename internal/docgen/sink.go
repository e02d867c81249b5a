package docgen

import (
	"os"
	"path/filepath"

	"github.com/mcncl/enphase-api/internal/errors"
)

// Sink receives finished documents. path is relative to the documentation
// root and uses forward slashes.
type Sink interface {
	Write(path string, content []byte) error
}

// FileSink writes documents below Root, creating directories as needed.
type FileSink struct {
	Root string
}

// Write implements Sink.
func (s FileSink) Write(path string, content []byte) error {
	target := filepath.Join(s.Root, filepath.FromSlash(path))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return errors.NewOutputError("failed to create directory for "+path, err)
	}
	if err := os.WriteFile(target, content, 0o644); err != nil {
		return errors.NewOutputError("failed to write "+path, err)
	}
	return nil
}
