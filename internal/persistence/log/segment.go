package log

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/klauspost/compress/zstd"
	"github.com/rotisserie/eris"

	"arenaforge.gg/internal/sim/events"
)

const defaultSegmentBytes = 64 << 20

// segmentWriter appends events as JSON lines to zstd segments named
// audit-<yyyy-mm-dd-hh>-<part>.jsonl.zst. A segment is sealed and synced when
// the hour turns or once maxBytes of uncompressed lines went into it.
type segmentWriter struct {
	dir      string
	maxBytes int64
	now      func() time.Time

	mu      sync.Mutex
	hour    string
	part    int
	written int64
	f       *os.File
	enc     *zstd.Encoder
}

func newSegmentWriter(dir string) *segmentWriter {
	return &segmentWriter{dir: dir, maxBytes: defaultSegmentBytes, now: time.Now}
}

func (w *segmentWriter) Write(e events.Event) error {
	line, err := json.Marshal(e)
	if err != nil {
		return eris.Wrapf(err, "encode %s event", e.Type)
	}
	line = append(line, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()
	hour := w.now().UTC().Format("2006-01-02-15")
	switch {
	case w.enc == nil || hour != w.hour:
		if err := w.sealLocked(); err != nil {
			return err
		}
		if err := w.openLocked(hour, w.lastPart(hour)); err != nil {
			return err
		}
	case w.written >= w.maxBytes:
		if err := w.sealLocked(); err != nil {
			return err
		}
		if err := w.openLocked(hour, w.part+1); err != nil {
			return err
		}
	}
	if _, err := w.enc.Write(line); err != nil {
		return eris.Wrap(err, "write event")
	}
	w.written += int64(len(line))
	return eris.Wrap(w.enc.Flush(), "flush event")
}

func (w *segmentWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sealLocked()
}

// lastPart continues the newest segment already on disk for hour, so a
// restart within the hour appends instead of starting over at part 0.
func (w *segmentWriter) lastPart(hour string) int {
	parts, _ := filepath.Glob(filepath.Join(w.dir, "audit-"+hour+"-*.jsonl.zst"))
	last := 0
	for _, p := range parts {
		digits := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(p), "audit-"+hour+"-"), ".jsonl.zst")
		if n, err := strconv.Atoi(digits); err == nil && n > last {
			last = n
		}
	}
	return last
}

func (w *segmentWriter) openLocked(hour string, part int) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return eris.Wrap(err, "create audit dir")
	}
	path := w.path(hour, part)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return eris.Wrapf(err, "open %s", path)
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return eris.Wrapf(err, "stat %s", path)
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return eris.Wrap(err, "zstd writer")
	}
	w.f, w.enc = f, enc
	w.hour, w.part = hour, part
	// Compressed size stands in for lines written before a restart.
	w.written = st.Size()
	return nil
}

func (w *segmentWriter) sealLocked() error {
	if w.enc == nil {
		return nil
	}
	err := w.enc.Close()
	if serr := w.f.Sync(); err == nil {
		err = serr
	}
	if cerr := w.f.Close(); err == nil {
		err = cerr
	}
	w.enc, w.f = nil, nil
	return eris.Wrapf(err, "seal %s", w.path(w.hour, w.part))
}

func (w *segmentWriter) path(hour string, part int) string {
	return filepath.Join(w.dir, fmt.Sprintf("audit-%s-%03d.jsonl.zst", hour, part))
}
