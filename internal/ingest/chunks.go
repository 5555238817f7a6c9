package ingest

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
)

// ErrNoChunks is returned when reassembly is attempted with no parts.
var ErrNoChunks = errors.New("ingest: no chunks to reassemble")

// Chunk is one piece of a split store file.
type Chunk struct {
	Name string
	Data []byte
}

// ReassembleChunks concatenates .db-suffixed chunks into a single store file
// at dst and returns the byte count written.
//
// This is the alternate ingestion path: instead of rebuilding tables from
// tabular exports, callers upload a pre-built store file split into parts.
// Parts are ordered by lexical filename comparison, which is how the files
// were named when the store was split. The two paths are mutually exclusive
// for a given upload.
func ReassembleChunks(chunks []Chunk, dst string) (int64, error) {
	if len(chunks) == 0 {
		return 0, ErrNoChunks
	}
	for _, c := range chunks {
		if !strings.HasSuffix(strings.ToLower(c.Name), ".db") {
			return 0, fmt.Errorf("ingest: chunk %q is not a .db part", c.Name)
		}
	}

	ordered := make([]Chunk, len(chunks))
	copy(ordered, chunks)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Name < ordered[j].Name })

	f, err := os.Create(dst)
	if err != nil {
		return 0, fmt.Errorf("ingest: create %s: %w", dst, err)
	}

	var written int64
	for _, c := range ordered {
		n, err := f.Write(c.Data)
		if err != nil {
			_ = f.Close()
			return written, fmt.Errorf("ingest: write chunk %s: %w", c.Name, err)
		}
		written += int64(n)
	}

	if err := f.Close(); err != nil {
		return written, err
	}
	return written, nil
}
