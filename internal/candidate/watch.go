package candidate

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/bebsworthy/covergate/internal/debug"
)

// DirSource watches a directory and serves candidates from batch files
// dropped into it. Files already present are processed first, in name
// order. A file is consumed once, on its first successful non-empty
// parse; a file that fails to parse stays pending and is retried on its
// next write event, so partially written drops recover on their own.
type DirSource struct {
	dir       string
	watcher   *fsnotify.Watcher
	out       chan Candidate
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error

	mu   sync.Mutex
	seen map[string]bool
}

// NewDirSource starts watching a directory for candidate batch files.
func NewDirSource(dir string) (*DirSource, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create directory watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	s := &DirSource{
		dir:     dir,
		watcher: watcher,
		out:     make(chan Candidate, 64),
		done:    make(chan struct{}),
		seen:    make(map[string]bool),
	}
	go s.run()
	return s, nil
}

// Next returns the next candidate, blocking until one arrives, the
// context ends, or the source is closed.
func (s *DirSource) Next(ctx context.Context) (*Candidate, error) {
	select {
	case c, ok := <-s.out:
		if !ok {
			return nil, io.EOF
		}
		return &c, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops the watcher. A blocked Next returns io.EOF.
func (s *DirSource) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.closeErr = s.watcher.Close()
	})
	return s.closeErr
}

// run drains watcher events onto the candidate channel.
func (s *DirSource) run() {
	defer close(s.out)

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		debug.Log("Failed to scan candidate directory %s: %v", s.dir, err)
	} else {
		names := make([]string, 0, len(entries))
		for _, entry := range entries {
			if !entry.IsDir() && isBatchFile(entry.Name()) {
				names = append(names, entry.Name())
			}
		}
		sort.Strings(names)
		for _, name := range names {
			if !s.ingest(filepath.Join(s.dir, name)) {
				return
			}
		}
	}

	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !isBatchFile(event.Name) {
				continue
			}
			if !s.ingest(event.Name) {
				return
			}
		case watchErr, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			debug.Log("Candidate watcher error: %v", watchErr)
		case <-s.done:
			return
		}
	}
}

// ingest parses one batch file and queues its candidates. It reports
// false when the source shut down mid-send.
func (s *DirSource) ingest(path string) bool {
	s.mu.Lock()
	consumed := s.seen[path]
	s.mu.Unlock()
	if consumed {
		return true
	}

	candidates, err := DecodeFile(path)
	if err != nil {
		debug.Log("Candidate file %s not parseable yet: %v", path, err)
		return true
	}
	if len(candidates) == 0 {
		return true
	}

	s.mu.Lock()
	s.seen[path] = true
	s.mu.Unlock()
	debug.Log("Loaded %d candidate(s) from %s", len(candidates), path)

	for i := range candidates {
		select {
		case s.out <- candidates[i]:
		case <-s.done:
			return false
		}
	}
	return true
}

// isBatchFile reports whether a file name looks like a candidate batch.
func isBatchFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json", ".yaml", ".yml":
		return true
	}
	return false
}
