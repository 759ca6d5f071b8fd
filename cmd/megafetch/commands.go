package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/Witriol/megafetch/internal/config"
	"github.com/Witriol/megafetch/internal/db"
	"github.com/Witriol/megafetch/internal/fetch"
	"github.com/Witriol/megafetch/internal/history"
	"github.com/Witriol/megafetch/internal/mega"
	"github.com/Witriol/megafetch/internal/megaapi"
	"github.com/Witriol/megafetch/internal/sink"
)

const (
	getUsage     = "megafetch get <link> [--out dir] [--name file] [--force] [--gcs-bucket b] [--gcs-prefix p]"
	infoUsage    = "megafetch info <link>"
	catUsage     = "megafetch cat <link>"
	historyUsage = "megafetch history [--limit 20] | megafetch history clear"
)

// parseInterspersed lets flags appear before or after positional args. Parse
// failures other than -h come back as usage errors.
func parseInterspersed(fs *flag.FlagSet, args []string, usage string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			if errors.Is(err, flag.ErrHelp) {
				return nil, err
			}
			return nil, usageError{msg: err.Error(), usage: usage}
		}
		args = fs.Args()
		if len(args) == 0 {
			return positional, nil
		}
		positional = append(positional, args[0])
		args = args[1:]
	}
}

func singleLink(positional []string, usage string) (string, error) {
	if len(positional) != 1 {
		return "", usageError{msg: "expected exactly one link", usage: usage}
	}
	link := strings.TrimSpace(positional[0])
	if !mega.CanHandle(link) {
		return "", usageError{msg: "not a mega.nz link: " + link, usage: usage}
	}
	return link, nil
}

func cmdGet(ctx context.Context, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("get", flag.ContinueOnError)
	out := fs.String("out", cfg.OutDir, "output directory")
	name := fs.String("name", "", "override the decrypted file name")
	force := fs.Bool("force", false, "overwrite an existing file")
	bucket := fs.String("gcs-bucket", cfg.GCSBucket, "upload to this GCS bucket instead of a directory")
	prefix := fs.String("gcs-prefix", cfg.GCSPrefix, "object name prefix inside the bucket")
	api := fs.String("api", cfg.APIURL, "Mega API endpoint")
	positional, err := parseInterspersed(fs, args, getUsage)
	if err != nil {
		return err
	}
	link, err := singleLink(positional, getUsage)
	if err != nil {
		return err
	}

	f, closeHistory := newFetcher(ctx, cfg, *api)
	defer closeHistory()

	var dst fetch.Sink
	if *bucket != "" {
		gcs, err := sink.NewGCSSink(ctx, *bucket, *prefix, cfg.GCSCredentials)
		if err != nil {
			return err
		}
		defer gcs.Close()
		dst = gcs
	} else {
		dst = &sink.DirSink{Dir: *out, Overwrite: *force}
	}
	if isTerminal(os.Stderr) {
		dst = &progressSink{next: dst, w: os.Stderr}
	}

	res, err := f.Download(ctx, link, dst, *name)
	if err != nil {
		return err
	}
	fmt.Printf("saved %s (%s) to %s\n", res.Name, humanize.IBytes(uint64(res.Size)), res.Location)
	return nil
}

func cmdInfo(ctx context.Context, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("info", flag.ContinueOnError)
	api := fs.String("api", cfg.APIURL, "Mega API endpoint")
	positional, err := parseInterspersed(fs, args, infoUsage)
	if err != nil {
		return err
	}
	link, err := singleLink(positional, infoUsage)
	if err != nil {
		return err
	}
	f := &fetch.Fetcher{API: megaapi.NewClient(*api, newHTTPClient(cfg.Timeout))}
	target, err := f.Resolve(ctx, link)
	if err != nil {
		return err
	}
	printTarget(os.Stdout, target)
	return nil
}

func cmdCat(ctx context.Context, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("cat", flag.ContinueOnError)
	api := fs.String("api", cfg.APIURL, "Mega API endpoint")
	positional, err := parseInterspersed(fs, args, catUsage)
	if err != nil {
		return err
	}
	link, err := singleLink(positional, catUsage)
	if err != nil {
		return err
	}
	f, closeHistory := newFetcher(ctx, cfg, *api)
	defer closeHistory()

	// Fetch verifies the MAC before anything reaches stdout.
	res, err := f.Fetch(ctx, link)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(res.Data)
	return err
}

func cmdHistory(ctx context.Context, cfg config.Config, args []string) error {
	if cfg.DBPath == "" {
		return usageError{msg: "history is disabled (MEGAFETCH_DB=off)", usage: historyUsage}
	}
	clearAll := len(args) > 0 && args[0] == "clear"
	if clearAll {
		args = args[1:]
	}
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "entries to show, 0 for all")
	positional, err := parseInterspersed(fs, args, historyUsage)
	if err != nil {
		return err
	}
	if len(positional) > 0 {
		return usageError{msg: "unexpected argument: " + positional[0], usage: historyUsage}
	}

	conn, err := db.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer conn.Close()
	store := history.NewStore(conn)

	if clearAll {
		if err := store.Clear(ctx); err != nil {
			return err
		}
		fmt.Println("history cleared")
		return nil
	}
	entries, err := store.List(ctx, *limit)
	if err != nil {
		return err
	}
	printHistory(os.Stdout, entries, time.Now())
	return nil
}

// progressSink reports bytes written on a terminal.
type progressSink struct {
	next fetch.Sink
	w    io.Writer
}

func (p *progressSink) Write(ctx context.Context, name string, r io.Reader) (string, error) {
	pr := &progressReader{r: r, w: p.w, name: name, started: time.Now()}
	loc, err := p.next.Write(ctx, name, pr)
	pr.finish()
	return loc, err
}

type progressReader struct {
	r       io.Reader
	w       io.Writer
	name    string
	done    int64
	started time.Time
	last    time.Time
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.done += int64(n)
	if now := time.Now(); now.Sub(p.last) >= 250*time.Millisecond {
		p.last = now
		fmt.Fprintf(p.w, "\r%s  %s  %s", p.name, humanize.IBytes(uint64(p.done)), formatRate(p.done, now.Sub(p.started)))
	}
	return n, err
}

func (p *progressReader) finish() {
	if !p.last.IsZero() {
		fmt.Fprintln(p.w)
	}
}
