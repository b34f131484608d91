// Package journal keeps a crash-safe copy of the block snapshots an arena
// has captured, so a server that dies mid-match can still restore the arena
// on the next boot.
package journal

import (
	"bufio"
	"encoding/gob"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/klauspost/compress/zstd"
	"github.com/rotisserie/eris"

	"arenaforge.gg/internal/sim/reset"
)

const (
	Version = 1
	suffix  = ".bin.zst"
)

type Header struct {
	Version int       `json:"version"`
	Arena   string    `json:"arena"`
	Blocks  int       `json:"blocks"`
	Saved   time.Time `json:"saved"`
}

type Entry struct {
	Header Header
	Blocks []reset.BlockSnapshot
}

// Journal is a directory of <arena>.bin.zst files: a JSON header line
// followed by a gob encoded Entry.
type Journal struct {
	dir string
}

func Open(dataDir string) *Journal {
	return &Journal{dir: filepath.Join(dataDir, "journal")}
}

func (j *Journal) Dir() string { return j.dir }

func (j *Journal) Path(arena string) string {
	return filepath.Join(j.dir, arena+suffix)
}

func checkName(arena string) error {
	if arena == "" || strings.ContainsAny(arena, `/\`) || arena == "." || arena == ".." {
		return eris.Errorf("bad arena name %q", arena)
	}
	return nil
}

// Write replaces the arena's journal. The file is renamed into place so a
// crash never leaves a torn journal behind.
func (j *Journal) Write(arena string, blocks []reset.BlockSnapshot) error {
	if err := checkName(arena); err != nil {
		return err
	}
	if err := os.MkdirAll(j.dir, 0o755); err != nil {
		return eris.Wrap(err, "create journal dir")
	}
	tmp, err := os.CreateTemp(j.dir, arena+".*.tmp")
	if err != nil {
		return eris.Wrap(err, "create temp journal")
	}
	defer os.Remove(tmp.Name())

	e := Entry{
		Header: Header{Version: Version, Arena: arena, Blocks: len(blocks), Saved: time.Now().UTC()},
		Blocks: blocks,
	}
	if err := encode(tmp, e); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return eris.Wrap(err, "sync journal")
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrap(err, "close journal")
	}
	return eris.Wrap(os.Rename(tmp.Name(), j.Path(arena)), "install journal")
}

func encode(f *os.File, e Entry) error {
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return eris.Wrap(err, "zstd writer")
	}
	bw := bufio.NewWriterSize(enc, 64*1024)
	hb, _ := json.Marshal(e.Header)
	if _, err := bw.Write(append(hb, '\n')); err != nil {
		_ = enc.Close()
		return eris.Wrap(err, "write header")
	}
	if err := gob.NewEncoder(bw).Encode(&e); err != nil {
		_ = enc.Close()
		return eris.Wrap(err, "gob encode")
	}
	if err := bw.Flush(); err != nil {
		_ = enc.Close()
		return eris.Wrap(err, "flush journal")
	}
	return eris.Wrap(enc.Close(), "finish zstd frame")
}

func (j *Journal) Read(arena string) (Entry, error) {
	var e Entry
	if err := checkName(arena); err != nil {
		return e, err
	}
	f, err := os.Open(j.Path(arena))
	if err != nil {
		return e, eris.Wrapf(err, "open journal for %q", arena)
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return e, eris.Wrap(err, "zstd reader")
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 64*1024)
	// The gob body repeats the header.
	_, _ = br.ReadBytes('\n')
	if err := gob.NewDecoder(br).Decode(&e); err != nil {
		return e, eris.Wrapf(err, "gob decode journal for %q", arena)
	}
	if e.Header.Version != Version {
		return e, eris.Errorf("journal for %q has version %d", arena, e.Header.Version)
	}
	return e, nil
}

// Delete removes the arena's journal; a missing file is not an error.
func (j *Journal) Delete(arena string) error {
	if err := checkName(arena); err != nil {
		return err
	}
	err := os.Remove(j.Path(arena))
	if err != nil && !os.IsNotExist(err) {
		return eris.Wrapf(err, "delete journal for %q", arena)
	}
	return nil
}

// Pending lists arenas with a journal on disk.
func (j *Journal) Pending() ([]string, error) {
	ents, err := os.ReadDir(j.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "list journal dir")
	}
	var out []string
	for _, de := range ents {
		name := de.Name()
		if de.IsDir() || !strings.HasSuffix(name, suffix) {
			continue
		}
		out = append(out, strings.TrimSuffix(name, suffix))
	}
	sort.Strings(out)
	return out, nil
}
