package candidate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/bebsworthy/covergate/internal/debug"
)

// ReaderSource streams candidates from a YAML or JSON stream. Documents
// are decoded lazily, one per Next call, so a stdin pipeline delivers
// candidates as its producer writes them.
type ReaderSource struct {
	decoder *yaml.Decoder
	closer  io.Closer
	queue   []Candidate
	name    string
}

// NewReaderSource creates a source over an arbitrary stream. The name
// appears in parse errors.
func NewReaderSource(r io.Reader, name string) *ReaderSource {
	return &ReaderSource{decoder: yaml.NewDecoder(r), name: name}
}

// NewStdinSource creates a source reading candidate documents from
// standard input.
func NewStdinSource() *ReaderSource {
	return NewReaderSource(os.Stdin, "stdin")
}

// NewFileSource opens a candidate batch file. JSON and YAML both parse,
// and a file may hold several documents.
func NewFileSource(path string) (*ReaderSource, error) {
	f, err := os.Open(path) // #nosec G304 -- path comes from config
	if err != nil {
		return nil, fmt.Errorf("failed to open candidate file: %w", err)
	}
	source := NewReaderSource(f, path)
	source.closer = f
	return source, nil
}

// Next returns the next candidate, decoding further documents as needed.
func (s *ReaderSource) Next(ctx context.Context) (*Candidate, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(s.queue) > 0 {
			c := s.queue[0]
			s.queue = s.queue[1:]
			return &c, nil
		}

		var node yaml.Node
		if err := s.decoder.Decode(&node); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("failed to parse candidates from %s: %w", s.name, err)
		}
		candidates, err := decodeDocument(&node)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", s.name, err)
		}
		if len(candidates) == 0 {
			debug.Log("Candidate document in %s carries no tests, skipping", s.name)
			continue
		}
		s.queue = append(s.queue, candidates...)
	}
}

// Close implements Source
func (s *ReaderSource) Close() error {
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}
