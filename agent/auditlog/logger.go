// Package auditlog is the durable, append-only trail of mutative requests.
// One JSON object per line; each line stands alone, so readers need no
// cross-line state.
package auditlog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	contractx "github.com/alitalabs/alita/agent/contract"
)

// Logger appends action entries to a JSONL file. Every append is flushed to
// disk before it reports success, so a crash immediately after a confirmed
// action still leaves a record. Entries are never rewritten.
type Logger struct {
	mu   sync.Mutex
	file *os.File
	path string
}

var _ contractx.ActionLogger = (*Logger)(nil)

func New(path string) (*Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create audit log dir: %w", err)
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open audit log %s: %w", path, err)
	}
	return &Logger{file: file, path: path}, nil
}

func (l *Logger) Append(entry contractx.ActionLogEntry) error {
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("sync audit log: %w", err)
	}
	return nil
}

func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}
