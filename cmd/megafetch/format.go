package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/Witriol/megafetch/internal/fetch"
	"github.com/Witriol/megafetch/internal/history"
)

func printTarget(w io.Writer, t *fetch.Target) {
	fmt.Fprintf(w, "name: %s\n", t.Name)
	fmt.Fprintf(w, "size: %s (%d bytes)\n", humanize.IBytes(uint64(t.Size)), t.Size)
	fmt.Fprintf(w, "file_id: %s\n", t.Link.FileID)
	fmt.Fprintf(w, "link: %s\n", t.Link.Redacted())
	if t.Fingerprint != "" {
		fmt.Fprintf(w, "fingerprint: %s\n", t.Fingerprint)
	}
}

func printHistory(w io.Writer, entries []history.Entry, now time.Time) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No fetches.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tSIZE\tWHEN\tNAME/LINK\tLOCATION")
	for _, e := range entries {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			e.ID, e.Status, formatSize(e), formatWhen(e.CreatedAt, now), displayName(e), dash(e.Location.String))
		if e.ErrorCode.Valid && e.ErrorCode.String != "" {
			fmt.Fprintf(tw, " \t \t \t \t  error: %s (%s)\t \n", e.ErrorCode.String, e.Error.String)
		}
	}
	_ = tw.Flush()
}

func displayName(e history.Entry) string {
	if e.Filename.Valid && e.Filename.String != "" {
		return e.Filename.String
	}
	return shortLink(e.Link)
}

func shortLink(u string) string {
	if len(u) > 64 {
		return u[:61] + "..."
	}
	return u
}

func formatSize(e history.Entry) string {
	if !e.SizeBytes.Valid {
		return "-"
	}
	return humanize.IBytes(uint64(e.SizeBytes.Int64))
}

func formatWhen(ts string, now time.Time) string {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return ts
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

func formatRate(done int64, elapsed time.Duration) string {
	if elapsed <= 0 || done <= 0 {
		return "-"
	}
	perSec := float64(done) / elapsed.Seconds()
	return humanize.IBytes(uint64(perSec)) + "/s"
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
