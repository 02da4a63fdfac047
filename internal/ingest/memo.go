package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/dealfacts-cli/internal/model"
)

// maxChunkLen bounds memo chunks so downstream embedding generation
// stays within typical context limits.
const maxChunkLen = 1200

// IngestMemo ingests a free-text document (.txt/.md), splitting it
// into paragraph-aligned chunks for later semantic search.
func (i *Ingestor) IngestMemo(ctx context.Context, dealID, path string, version string) (*Result, error) {
	hash, err := hashFile(path)
	if err != nil {
		return nil, err
	}

	doc, deduped, err := i.documentFor(ctx, model.Document{
		DealID:      dealID,
		Name:        filepath.Base(path),
		Kind:        model.DocKindText,
		Version:     version,
		ContentHash: hash,
	})
	if err != nil {
		return nil, err
	}
	res := &Result{Document: doc, Deduped: deduped}
	if deduped {
		return res, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: read %s", path)
	}

	chunks := ChunkText(string(data))
	n, err := i.store.InsertChunks(ctx, doc.ID, chunks)
	if err != nil {
		return nil, err
	}
	res.Chunks = n
	return res, nil
}

// ChunkText splits text on blank lines and packs paragraphs into
// chunks of at most maxChunkLen runes. A single oversized paragraph
// becomes its own chunk rather than being split mid-sentence.
func ChunkText(text string) []string {
	paragraphs := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n")

	var chunks []string
	var buf strings.Builder
	for _, p := range paragraphs {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if buf.Len() > 0 && buf.Len()+len(p)+2 > maxChunkLen {
			chunks = append(chunks, buf.String())
			buf.Reset()
		}
		if buf.Len() > 0 {
			buf.WriteString("\n\n")
		}
		buf.WriteString(p)
	}
	if buf.Len() > 0 {
		chunks = append(chunks, buf.String())
	}
	return chunks
}
