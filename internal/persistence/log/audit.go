// Package log persists the match lifecycle feed as compressed JSON lines.
package log

import (
	"bufio"
	"os"
	"path/filepath"
	"sort"

	"github.com/goccy/go-json"
	"github.com/klauspost/compress/zstd"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"

	"arenaforge.gg/internal/sim/events"
)

// AuditLogger is an events.Sink writing under <dataDir>/audit.
type AuditLogger struct {
	w   *segmentWriter
	log zerolog.Logger
}

func NewAuditLogger(dataDir string, log zerolog.Logger) *AuditLogger {
	return &AuditLogger{
		w:   newSegmentWriter(filepath.Join(dataDir, "audit")),
		log: log.With().Str("component", "audit").Logger(),
	}
}

func (l *AuditLogger) Emit(e events.Event) {
	if err := l.w.Write(e); err != nil {
		l.log.Error().Err(err).Str("type", string(e.Type)).Msg("audit write failed")
	}
}

func (l *AuditLogger) Close() error { return l.w.Close() }

// ReadAudit decodes every event in the audit files under dataDir, oldest
// file first.
func ReadAudit(dataDir string) ([]events.Event, error) {
	paths, err := filepath.Glob(filepath.Join(dataDir, "audit", "audit-*.jsonl.zst"))
	if err != nil {
		return nil, eris.Wrap(err, "list audit files")
	}
	sort.Strings(paths)

	var out []events.Event
	for _, p := range paths {
		evs, err := readFile(p)
		if err != nil {
			return out, err
		}
		out = append(out, evs...)
	}
	return out, nil
}

func readFile(path string) ([]events.Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "open %s", path)
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, eris.Wrap(err, "zstd reader")
	}
	defer dec.Close()

	var out []events.Event
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		var e events.Event
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return out, eris.Wrapf(err, "decode %s", path)
		}
		out = append(out, e)
	}
	return out, eris.Wrapf(sc.Err(), "scan %s", path)
}
