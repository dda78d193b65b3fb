package diag

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

const (
	saveChunk    = 64 << 10
	syncInterval = 256 << 10
)

// SaveFrame writes one frame to disk for offline analysis and returns the
// path written. The slot index is folded into the name so repeated saves
// of different slots do not clobber each other: base.bin becomes
// base_f0.bin.
func SaveFrame(base string, slot int, data []byte) (string, error) {
	name := mangleName(base, slot)

	f, err := os.Create(name)
	if err != nil {
		return "", errors.Wrapf(err, "create %s", name)
	}

	// Chunked writes with periodic syncs keep slow flash media from
	// stalling one giant flush at close time.
	written := 0
	for written < len(data) {
		end := written + saveChunk
		if end > len(data) {
			end = len(data)
		}
		n, err := f.Write(data[written:end])
		if err != nil {
			f.Close()
			return "", errors.Wrapf(err, "write %s at %d", name, written)
		}
		written += n
		if written%syncInterval == 0 {
			f.Sync()
		}
	}

	if err := f.Sync(); err != nil {
		f.Close()
		return "", errors.Wrapf(err, "sync %s", name)
	}
	if err := f.Close(); err != nil {
		return "", errors.Wrapf(err, "close %s", name)
	}
	return name, nil
}

func mangleName(base string, slot int) string {
	ext := filepath.Ext(base)
	if ext == "" {
		return fmt.Sprintf("%s_f%d.bin", base, slot)
	}
	return fmt.Sprintf("%s_f%d%s", strings.TrimSuffix(base, ext), slot, ext)
}
