package scanner

import (
	"context"
	"time"

	"github.com/scanforge/filescand/internal/file"
)

// chunkSize is the maximum size of a single uploaded piece: 16 KiB.
const chunkSize = 16 * 1024

// ChunkWriter splits a large extracted child's bytes into chunkSize
// pieces and uploads each in turn, so a scanner never has to hold one
// enormous Upload call.
func ChunkWriter(ctx context.Context, inv *Invocation, child *file.File, data []byte, deadline time.Time) error {
	for i := 0; i < len(data); i += chunkSize {
		end := i + chunkSize
		if end > len(data) {
			end = len(data)
		}
		if err := inv.Upload(ctx, child, data[i:end], deadline); err != nil {
			return err
		}
	}
	return nil
}
