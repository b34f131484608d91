package main

import (
	"fmt"
	"os"
)

const usage = `usage: admin <command> [flags]

server commands (talk to a running server):
  matches   list live matches
  remove    remove a match and reset its arena (-id)
  arenas    list arenas
  top       show the points leaderboard (-n)

offline commands (read the data directory):
  audit     print lifecycle events (-arena, -type, -match)
  journal   list arenas with an unfinished reset journal`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	args := os.Args[2:]
	switch os.Args[1] {
	case "matches":
		getCmd("matches", "/admin/v1/matches", args)
	case "arenas":
		getCmd("arenas", "/admin/v1/arenas", args)
	case "top":
		topCmd(args)
	case "remove":
		removeCmd(args)
	case "audit":
		auditCmd(args)
	case "journal":
		journalCmd(args)
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
}
