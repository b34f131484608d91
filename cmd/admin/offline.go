package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	persistlog "arenaforge.gg/internal/persistence/log"
	"arenaforge.gg/internal/persistence/journal"
	"arenaforge.gg/internal/sim/events"
)

type eventFilter struct {
	arena string
	typ   string
	match string
}

func (f eventFilter) keep(e events.Event) bool {
	if f.arena != "" && !strings.EqualFold(f.arena, e.Arena) {
		return false
	}
	if f.typ != "" && string(e.Type) != f.typ {
		return false
	}
	if f.match != "" && !strings.HasPrefix(e.Match, f.match) {
		return false
	}
	return true
}

func printEvents(w io.Writer, evs []events.Event, f eventFilter) int {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	n := 0
	for _, e := range evs {
		if !f.keep(e) {
			continue
		}
		detail := e.State
		if e.Player != "" {
			detail = strings.TrimSpace(detail + " player=" + e.Player)
		}
		if e.Team != "" {
			detail = strings.TrimSpace(detail + " team=" + e.Team)
		}
		for _, k := range []string{"from", "killer", "blocks", "items", "took_ms"} {
			if v, ok := e.Data[k]; ok {
				detail = strings.TrimSpace(fmt.Sprintf("%s %s=%v", detail, k, v))
			}
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", e.Tick, e.Time.Format(time.RFC3339), e.Type, e.Arena, short(e.Match), detail)
		n++
	}
	_ = tw.Flush()
	return n
}

func short(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func auditCmd(args []string) {
	fs := flag.NewFlagSet("audit", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	var f eventFilter
	fs.StringVar(&f.arena, "arena", "", "only this arena")
	fs.StringVar(&f.typ, "type", "", "only this event type (e.g. arena.reset)")
	fs.StringVar(&f.match, "match", "", "only match ids with this prefix")
	_ = fs.Parse(args)

	evs, err := persistlog.ReadAudit(*dataDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read audit:", err)
		os.Exit(1)
	}
	n := printEvents(os.Stdout, evs, f)
	fmt.Fprintf(os.Stderr, "%d of %d events\n", n, len(evs))
}

func journalCmd(args []string) {
	fs := flag.NewFlagSet("journal", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	_ = fs.Parse(args)

	j := journal.Open(*dataDir)
	names, err := j.Pending()
	if err != nil {
		fmt.Fprintln(os.Stderr, "list journal:", err)
		os.Exit(1)
	}
	if len(names) == 0 {
		fmt.Println("no pending journals")
		return
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ARENA\tBLOCKS\tSAVED")
	for _, name := range names {
		e, err := j.Read(name)
		if err != nil {
			fmt.Fprintf(tw, "%s\t-\t%v\n", name, err)
			continue
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\n", name, len(e.Blocks), e.Header.Saved.Format(time.RFC3339))
	}
	_ = tw.Flush()
	fmt.Println("pending journals are restored the next time the server starts")
}
