// Package fetch runs the full pipeline for one share link: parse, derive
// keys, resolve metadata, decrypt the name and then the content.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/Witriol/megafetch/internal/mega"
	"github.com/Witriol/megafetch/internal/megaapi"
)

// ErrSizeMismatch means the content body length disagrees with the metadata.
var ErrSizeMismatch = fmt.Errorf("%w: size_mismatch", megaapi.ErrNetwork)

// API is the network collaborator.
type API interface {
	RequestDownloadURL(ctx context.Context, fileID string) (*megaapi.FileMetadata, error)
	FetchBytes(ctx context.Context, url string) ([]byte, error)
	Open(ctx context.Context, url string) (io.ReadCloser, error)
}

// Recorder keeps a trail of fetches. It is optional.
type Recorder interface {
	Begin(ctx context.Context, link, fileID string) (int64, error)
	Resolved(ctx context.Context, id int64, filename string, size int64) error
	Complete(ctx context.Context, id int64, location string) error
	Fail(ctx context.Context, id int64, code, msg string) error
}

// Sink receives decrypted content. A read error from r must leave no output.
type Sink interface {
	Write(ctx context.Context, name string, r io.Reader) (string, error)
}

type Fetcher struct {
	API     API
	History Recorder
}

// Target is a resolved link: everything needed to fetch and decrypt content.
type Target struct {
	Link        mega.ShareLink
	Name        string
	Fingerprint string
	Size        int64
	DownloadURL string

	ctr mega.CTRConfig
}

type Result struct {
	Target
	Data     []byte
	Location string
}

// Resolve parses the link and decrypts the file name without touching content.
func (f *Fetcher) Resolve(ctx context.Context, rawLink string) (*Target, error) {
	link, err := mega.ParseLink(rawLink)
	if err != nil {
		return nil, err
	}
	return f.resolve(ctx, link)
}

func (f *Fetcher) resolve(ctx context.Context, link mega.ShareLink) (*Target, error) {
	ctr, cbc, err := mega.DeriveKeys(link.KeyFragment)
	if err != nil {
		return nil, err
	}
	md, err := f.API.RequestDownloadURL(ctx, link.FileID)
	if err != nil {
		return nil, err
	}
	attrs, err := mega.DecryptAttributes(md.EncryptedAttributes, cbc)
	if err != nil {
		return nil, err
	}
	zerolog.Ctx(ctx).Debug().
		Str("link", link.Redacted()).
		Str("name", attrs.Name).
		Int64("size", md.SizeBytes).
		Msg("Resolved share link")
	return &Target{
		Link:        link,
		Name:        attrs.Name,
		Fingerprint: attrs.Fingerprint,
		Size:        md.SizeBytes,
		DownloadURL: md.DownloadURL,
		ctr:         ctr,
	}, nil
}

// Fetch downloads and decrypts the whole file in memory.
func (f *Fetcher) Fetch(ctx context.Context, rawLink string) (*Result, error) {
	var res *Result
	err := f.track(ctx, rawLink, func(ctx context.Context, id int64, link mega.ShareLink) (string, error) {
		target, err := f.resolve(ctx, link)
		if err != nil {
			return "", err
		}
		f.resolved(ctx, id, target)
		ciphertext, err := f.API.FetchBytes(ctx, target.DownloadURL)
		if err != nil {
			return "", err
		}
		if int64(len(ciphertext)) != target.Size {
			return "", fmt.Errorf("%w: got %d bytes, want %d", ErrSizeMismatch, len(ciphertext), target.Size)
		}
		plain, err := mega.DecryptContent(ciphertext, target.ctr)
		if err != nil {
			return "", err
		}
		if err := mega.VerifyContent(plain, target.ctr); err != nil {
			return "", err
		}
		res = &Result{Target: *target, Data: plain, Location: "memory"}
		return res.Location, nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Download streams the decrypted file into dst. name overrides the decrypted
// file name when non-empty.
func (f *Fetcher) Download(ctx context.Context, rawLink string, dst Sink, name string) (*Result, error) {
	var res *Result
	err := f.track(ctx, rawLink, func(ctx context.Context, id int64, link mega.ShareLink) (string, error) {
		target, err := f.resolve(ctx, link)
		if err != nil {
			return "", err
		}
		f.resolved(ctx, id, target)
		body, err := f.API.Open(ctx, target.DownloadURL)
		if err != nil {
			return "", err
		}
		defer body.Close()

		plain, err := mega.NewContentReader(&sizeCheckReader{r: body, want: target.Size}, target.ctr)
		if err != nil {
			return "", err
		}
		outName := name
		if outName == "" {
			outName = target.Name
		}
		location, err := dst.Write(ctx, outName, plain)
		if err != nil {
			return "", err
		}
		res = &Result{Target: *target, Location: location}
		return location, nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

type stepFunc func(ctx context.Context, id int64, link mega.ShareLink) (location string, err error)

// track parses the link, opens a history entry and closes it with the
// outcome of fn.
func (f *Fetcher) track(ctx context.Context, rawLink string, fn stepFunc) error {
	link, err := mega.ParseLink(rawLink)
	if err != nil {
		return err
	}
	log := zerolog.Ctx(ctx).With().Str("link", link.Redacted()).Logger()
	ctx = log.WithContext(ctx)

	var id int64
	if f.History != nil {
		if id, err = f.History.Begin(ctx, link.Redacted(), link.FileID); err != nil {
			log.Warn().Err(err).Msg("Failed to record fetch start")
		}
	}

	started := time.Now()
	location, err := fn(ctx, id, link)
	if err != nil {
		code := ErrorCode(err)
		log.Debug().Err(err).Str("code", code).Msg("Fetch failed")
		if f.History != nil && id != 0 {
			if recErr := f.History.Fail(ctx, id, code, err.Error()); recErr != nil {
				log.Warn().Err(recErr).Msg("Failed to record fetch failure")
			}
		}
		return err
	}
	log.Info().
		Str("location", location).
		Dur("elapsed", time.Since(started)).
		Msg("Fetch completed")
	if f.History != nil && id != 0 {
		if recErr := f.History.Complete(ctx, id, location); recErr != nil {
			log.Warn().Err(recErr).Msg("Failed to record fetch completion")
		}
	}
	return nil
}

func (f *Fetcher) resolved(ctx context.Context, id int64, target *Target) {
	if f.History == nil || id == 0 {
		return
	}
	if err := f.History.Resolved(ctx, id, target.Name, target.Size); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("Failed to record resolved metadata")
	}
}

// sizeCheckReader turns a short or long body into ErrSizeMismatch at EOF.
type sizeCheckReader struct {
	r    io.Reader
	want int64
	got  int64
}

func (s *sizeCheckReader) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	s.got += int64(n)
	if errors.Is(err, io.EOF) && s.got != s.want {
		return n, fmt.Errorf("%w: got %d bytes, want %d", ErrSizeMismatch, s.got, s.want)
	}
	return n, err
}
