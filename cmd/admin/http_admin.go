package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

func baseURLFlag(fs *flag.FlagSet) *string {
	return fs.String("url", "http://127.0.0.1:8090", "server base url")
}

func endpoint(base, path string) string {
	return strings.TrimRight(strings.TrimSpace(base), "/") + path
}

func do(method, u string) {
	req, err := http.NewRequest(method, u, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		os.Exit(1)
	}
	cl := &http.Client{Timeout: 10 * time.Second}
	resp, err := cl.Do(req)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	fmt.Println(strings.TrimSpace(string(b)))
	if resp.StatusCode/100 != 2 {
		os.Exit(1)
	}
}

func getCmd(name, path string, args []string) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	baseURL := baseURLFlag(fs)
	_ = fs.Parse(args)
	do(http.MethodGet, endpoint(*baseURL, path))
}

func topCmd(args []string) {
	fs := flag.NewFlagSet("top", flag.ExitOnError)
	baseURL := baseURLFlag(fs)
	n := fs.Int("n", 10, "number of players")
	_ = fs.Parse(args)
	do(http.MethodGet, endpoint(*baseURL, "/admin/v1/leaderboard?n="+strconv.Itoa(*n)))
}

func removeCmd(args []string) {
	fs := flag.NewFlagSet("remove", flag.ExitOnError)
	baseURL := baseURLFlag(fs)
	id := fs.String("id", "", "match id")
	_ = fs.Parse(args)
	if strings.TrimSpace(*id) == "" {
		fmt.Fprintln(os.Stderr, "missing -id")
		os.Exit(2)
	}
	do(http.MethodPost, endpoint(*baseURL, "/admin/v1/matches/"+url.PathEscape(*id)+"/remove"))
}
