// Package kb loads knowledge-base files for persona responders.
package kb

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/haasonsaas/ensemble/internal/chat"
)

// Loader reads knowledge-base files and caches their contents for the
// process lifetime. Knowledge bases are static inputs; a process restart
// picks up edits.
type Loader struct {
	mu     sync.RWMutex
	cache  map[string]string
	logger *slog.Logger
}

// NewLoader creates a Loader.
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		cache:  make(map[string]string),
		logger: logger.With("component", "kb"),
	}
}

// Load returns the contents of the knowledge-base file at path, reading it
// at most once.
func (l *Loader) Load(path string) (string, error) {
	l.mu.RLock()
	content, ok := l.cache[path]
	l.mu.RUnlock()
	if ok {
		return content, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", chat.ErrNotFound(fmt.Sprintf("kb: cannot read %s", path), err)
	}

	l.mu.Lock()
	l.cache[path] = string(data)
	l.mu.Unlock()

	l.logger.Debug("loaded knowledge base", "path", path, "bytes", len(data))
	return string(data), nil
}
