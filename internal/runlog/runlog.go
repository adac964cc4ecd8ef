// Package runlog provides the append-only plain-text log file that captures
// an agent invocation's raw output. The file is the durable audit trail: it
// exists from the moment the run starts and holds whatever arrived even when
// the run times out mid-stream.
package runlog

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Log is an open per-invocation log file. It implements io.Writer so the
// supervisor can stream into it; writes are flushed to the OS per chunk.
type Log struct {
	mu   sync.Mutex
	file *os.File
	path string
}

// Create opens a fresh log file at path, truncating any previous run's file
// of the same name and creating parent directories as needed.
func Create(path string) (*Log, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	return &Log{file: file, path: path}, nil
}

// Write appends a chunk and syncs it to disk so the log survives a crash of
// the supervising process.
func (l *Log) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	n, err := l.file.Write(p)
	if err != nil {
		return n, err
	}
	if err := l.file.Sync(); err != nil {
		return n, err
	}
	return n, nil
}

// Path returns where the log file lives.
func (l *Log) Path() string {
	return l.path
}

// Close closes the underlying file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		return l.file.Close()
	}
	return nil
}
