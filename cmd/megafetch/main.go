package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/Witriol/megafetch/internal/config"
	"github.com/Witriol/megafetch/internal/db"
	"github.com/Witriol/megafetch/internal/fetch"
	"github.com/Witriol/megafetch/internal/history"
	"github.com/Witriol/megafetch/internal/megaapi"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) < 1 {
		usage()
		return 2
	}
	cfg := config.Load()
	log := newLogger(cfg.LogLevel, os.Stderr)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = log.WithContext(ctx)

	var err error
	switch args[0] {
	case "--version", "version":
		fmt.Println(versionString())
		return 0
	case "get":
		err = cmdGet(ctx, cfg, args[1:])
	case "info":
		err = cmdInfo(ctx, cfg, args[1:])
	case "cat":
		err = cmdCat(ctx, cfg, args[1:])
	case "history":
		err = cmdHistory(ctx, cfg, args[1:])
	case "help", "-h", "--help":
		usage()
		return 0
	default:
		usage()
		return 2
	}
	if err == nil {
		return 0
	}
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	var ue usageError
	if errors.As(err, &ue) {
		fmt.Fprintln(os.Stderr, "error:", ue.msg)
		fmt.Fprintln(os.Stderr, "usage:", ue.usage)
		return 2
	}
	fmt.Fprintln(os.Stderr, "error:", fetch.Diagnosis(err))
	fmt.Fprintf(os.Stderr, "  code: %s\n  detail: %v\n", fetch.ErrorCode(err), err)
	return 1
}

func usage() {
	fmt.Println("megafetch - download and decrypt public Mega.nz file links")
	fmt.Println("")
	fmt.Println("Usage:")
	fmt.Println("  megafetch get <link> [--out dir] [--name file] [--force] [--gcs-bucket b] [--gcs-prefix p]")
	fmt.Println("  megafetch info <link>")
	fmt.Println("  megafetch cat <link>")
	fmt.Println("  megafetch history [--limit 20]")
	fmt.Println("  megafetch history clear")
	fmt.Println("  megafetch version")
	fmt.Println("")
	fmt.Println("Env:")
	fmt.Println("  MEGAFETCH_API=" + megaapi.DefaultAPIURL)
	fmt.Println("  MEGAFETCH_TIMEOUT=120")
	fmt.Println("  MEGAFETCH_STATE_DIR, MEGAFETCH_DB (off disables history), MEGAFETCH_OUT_DIR")
	fmt.Println("  MEGAFETCH_GCS_BUCKET, MEGAFETCH_GCS_PREFIX, MEGAFETCH_GCS_CREDENTIALS")
	fmt.Println("  MEGAFETCH_LOG_LEVEL=info")
}

type usageError struct {
	msg   string
	usage string
}

func (e usageError) Error() string {
	return e.msg
}

// newHTTPClient bounds connection setup and response headers only; content
// bodies may take as long as they need.
func newHTTPClient(timeout time.Duration) *http.Client {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.ResponseHeaderTimeout = timeout
	tr.TLSHandshakeTimeout = timeout
	return &http.Client{Transport: tr}
}

// newFetcher wires the API client and, unless disabled, the history store.
// The returned close func is always safe to call.
func newFetcher(ctx context.Context, cfg config.Config, apiURL string) (*fetch.Fetcher, func()) {
	f := &fetch.Fetcher{API: megaapi.NewClient(apiURL, newHTTPClient(cfg.Timeout))}
	if cfg.DBPath == "" {
		return f, func() {}
	}
	conn, err := db.Open(cfg.DBPath)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("path", cfg.DBPath).Msg("History disabled")
		return f, func() {}
	}
	f.History = history.NewStore(conn)
	return f, func() { _ = conn.Close() }
}
