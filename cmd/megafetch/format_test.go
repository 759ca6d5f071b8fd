package main

import (
	"bytes"
	"database/sql"
	"flag"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Witriol/megafetch/internal/fetch"
	"github.com/Witriol/megafetch/internal/history"
	"github.com/Witriol/megafetch/internal/mega"
)

func TestPrintHistory(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	entries := []history.Entry{
		{
			ID:        2,
			Link:      "https://mega.nz/file/BBBBBBBB#***",
			Status:    history.StatusFailed,
			ErrorCode: sql.NullString{String: "quota_exceeded", Valid: true},
			Error:     sql.NullString{String: "mega_network_error: quota_exceeded", Valid: true},
			CreatedAt: now.Add(-2 * time.Hour).Format(time.RFC3339),
		},
		{
			ID:        1,
			Link:      "https://mega.nz/file/AAAAAAAA#***",
			Filename:  sql.NullString{String: "photo.jpg", Valid: true},
			SizeBytes: sql.NullInt64{Int64: 3 * 1024 * 1024, Valid: true},
			Status:    history.StatusCompleted,
			Location:  sql.NullString{String: "/data/photo.jpg", Valid: true},
			CreatedAt: now.Add(-3 * 24 * time.Hour).Format(time.RFC3339),
		},
	}
	var buf bytes.Buffer
	printHistory(&buf, entries, now)
	out := buf.String()

	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "photo.jpg")
	assert.Contains(t, out, "3.0 MiB")
	assert.Contains(t, out, "/data/photo.jpg")
	assert.Contains(t, out, "2 hours ago")
	assert.Contains(t, out, "3 days ago")
	assert.Contains(t, out, "https://mega.nz/file/BBBBBBBB#***")
	assert.Contains(t, out, "error: quota_exceeded")
}

func TestPrintHistoryEmpty(t *testing.T) {
	var buf bytes.Buffer
	printHistory(&buf, nil, time.Now())
	assert.Equal(t, "No fetches.\n", buf.String())
}

func TestPrintTarget(t *testing.T) {
	link, err := mega.ParseLink("https://mega.nz/file/nyIECKrQ#c3tzkRH1OtQ-cxvOc26B9TkwXy9MNdRpciaOjq-0B6o")
	require.NoError(t, err)
	var buf bytes.Buffer
	printTarget(&buf, &fetch.Target{Link: link, Name: "a.txt", Size: 2048})
	out := buf.String()
	assert.Contains(t, out, "name: a.txt")
	assert.Contains(t, out, "size: 2.0 KiB (2048 bytes)")
	assert.Contains(t, out, "file_id: nyIECKrQ")
	assert.Contains(t, out, "https://mega.nz/file/nyIECKrQ#***")
	assert.NotContains(t, out, "c3tzkRH1")
	assert.NotContains(t, out, "fingerprint")
}

func TestFormatRate(t *testing.T) {
	assert.Equal(t, "-", formatRate(0, time.Second))
	assert.Equal(t, "-", formatRate(10, 0))
	assert.Equal(t, "1.0 MiB/s", formatRate(2*1024*1024, 2*time.Second))
}

func TestParseInterspersed(t *testing.T) {
	fs := flag.NewFlagSet("get", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	out := fs.String("out", ".", "")
	force := fs.Bool("force", false, "")

	positional, err := parseInterspersed(fs, []string{"https://mega.nz/file/x#y", "--out", "/data", "--force"}, getUsage)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://mega.nz/file/x#y"}, positional)
	assert.Equal(t, "/data", *out)
	assert.True(t, *force)

	_, err = parseInterspersed(fs, []string{"--bogus"}, getUsage)
	var ue usageError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, getUsage, ue.usage)

	_, err = parseInterspersed(fs, []string{"-h"}, getUsage)
	assert.ErrorIs(t, err, flag.ErrHelp)
}

func TestSingleLink(t *testing.T) {
	_, err := singleLink(nil, getUsage)
	var ue usageError
	require.ErrorAs(t, err, &ue)

	_, err = singleLink([]string{"https://example.com/file"}, getUsage)
	require.ErrorAs(t, err, &ue)

	link, err := singleLink([]string{" https://mega.nz/file/nyIECKrQ#k "}, getUsage)
	require.NoError(t, err)
	assert.Equal(t, "https://mega.nz/file/nyIECKrQ#k", link)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, parseLevel("DEBUG"))
	assert.Equal(t, zerolog.WarnLevel, parseLevel(" warn "))
	assert.Equal(t, zerolog.InfoLevel, parseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, parseLevel("loud"))
}
