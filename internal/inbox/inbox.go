// Package inbox uploads documents dropped into a watched directory.
//
// A file may come with a YAML sidecar named after it (scan.pdf.yaml) that
// sets the tenant, owner, links and tags of the upload. Uploaded files move
// to processed/, rejected ones to failed/ along with a .error note.
// Infrastructure failures leave the file in place for the next scan.
package inbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/starford/paperasse/internal/apperr"
	"github.com/starford/paperasse/internal/docservice"
	"github.com/starford/paperasse/internal/models"
	"github.com/starford/paperasse/internal/storage"
)

const (
	ProcessedDir  = "processed"
	FailedDir     = "failed"
	SidecarSuffix = ".yaml"
)

// Uploader stores documents.
type Uploader interface {
	Upload(ctx context.Context, in docservice.UploadInput) (*docservice.UploadResult, error)
}

// Sidecar is the optional metadata file accompanying a dropped document.
type Sidecar struct {
	TenantID string           `yaml:"tenant_id"`
	OwnerID  string           `yaml:"owner_id"`
	Links    []models.LinkRef `yaml:"links"`
	Tags     []string         `yaml:"tags"`
	Global   bool             `yaml:"global"`
}

// Options configures an Inbox.
type Options struct {
	// Root is the watched directory.
	Root string
	// TenantID is used when no sidecar names a tenant.
	TenantID string
	// Debounce is the quiet time after the last write before a file is
	// uploaded. Default: 500ms.
	Debounce time.Duration
	// Rescan is the interval of the full directory scan. Default: 1m.
	Rescan time.Duration
	Logger *slog.Logger
}

// Inbox uploads files found under its root.
type Inbox struct {
	fs       *storage.FS
	uploader Uploader
	opts     Options
	now      func() time.Time
}

// New creates an inbox rooted at opts.Root, creating the directory layout.
func New(uploader Uploader, opts Options) (*Inbox, error) {
	if opts.Debounce <= 0 {
		opts.Debounce = 500 * time.Millisecond
	}
	if opts.Rescan <= 0 {
		opts.Rescan = time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	fs, err := storage.NewFS(opts.Root, "")
	if err != nil {
		return nil, fmt.Errorf("inbox: %w", err)
	}
	for _, dir := range []string{ProcessedDir, FailedDir} {
		if err := os.MkdirAll(path.Join(fs.Root(), dir), 0o755); err != nil {
			return nil, fmt.Errorf("inbox: %w", err)
		}
	}
	return &Inbox{fs: fs, uploader: uploader, opts: opts, now: time.Now}, nil
}

// Outcome of processing one dropped file.
type Outcome string

const (
	OutcomeUploaded  Outcome = "uploaded"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeFailed    Outcome = "failed"
	OutcomeSkipped   Outcome = "skipped"
)

// Scan processes every document currently in the root.
func (in *Inbox) Scan(ctx context.Context) error {
	files, err := in.fs.List("")
	if err != nil {
		return fmt.Errorf("inbox: scan: %w", err)
	}
	for _, f := range files {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if isSidecar(f.Path) {
			continue
		}
		if _, err := in.Process(ctx, f.Path); err != nil {
			in.opts.Logger.Warn("inbox: processing deferred",
				slog.String("file", f.Path),
				slog.String("error", err.Error()))
		}
	}
	return nil
}

// Process uploads one file of the root. Rejected input is moved to failed/
// and reported as OutcomeFailed without error; an error means the file was
// left in place.
func (in *Inbox) Process(ctx context.Context, name string) (Outcome, error) {
	log := in.opts.Logger.With(slog.String("file", name))

	data, err := in.fs.Read(name)
	if errors.Is(err, apperr.ErrNotFound) {
		return OutcomeSkipped, nil
	}
	if err != nil {
		return "", err
	}

	meta, err := in.sidecar(name)
	if err != nil {
		return in.fail(name, err), nil
	}

	res, err := in.uploader.Upload(ctx, docservice.UploadInput{
		TenantID: meta.TenantID,
		OwnerID:  meta.OwnerID,
		Filename: name,
		Data:     data,
		Links:    meta.Links,
		Tags:     meta.Tags,
		Global:   meta.Global,
	})
	if err != nil {
		if errors.Is(err, apperr.ErrInvalidInput) || errors.Is(err, apperr.ErrNotFound) {
			return in.fail(name, err), nil
		}
		return "", err
	}

	outcome := OutcomeUploaded
	if res.AlreadyExists {
		outcome = OutcomeDuplicate
	}
	in.archive(name, ProcessedDir)
	log.Info("inbox: file processed",
		slog.String("outcome", string(outcome)),
		slog.String("document_id", res.Document.ID),
		slog.String("tenant_id", res.Document.TenantID))
	return outcome, nil
}

func (in *Inbox) sidecar(name string) (Sidecar, error) {
	meta := Sidecar{TenantID: in.opts.TenantID}
	raw, err := in.fs.Read(name + SidecarSuffix)
	if errors.Is(err, apperr.ErrNotFound) {
		return meta, nil
	}
	if err != nil {
		return meta, err
	}
	if err := yaml.Unmarshal(raw, &meta); err != nil {
		return meta, fmt.Errorf("sidecar: %v: %w", err, apperr.ErrInvalidInput)
	}
	if meta.TenantID == "" {
		meta.TenantID = in.opts.TenantID
	}
	return meta, nil
}

func (in *Inbox) fail(name string, cause error) Outcome {
	in.opts.Logger.Warn("inbox: file rejected", slog.String("file", name), slog.String("error", cause.Error()))
	target := in.archive(name, FailedDir)
	if target != "" {
		if err := in.fs.Write(target+".error", []byte(cause.Error()+"\n")); err != nil {
			in.opts.Logger.Warn("inbox: write error note failed", slog.String("file", target), slog.String("error", err.Error()))
		}
	}
	return OutcomeFailed
}

// archive moves a file and its sidecar under dir with a timestamp prefix and
// returns the new path of the file.
func (in *Inbox) archive(name, dir string) string {
	target := path.Join(dir, in.now().UTC().Format("20060102T150405.000")+"-"+name)
	if err := in.fs.Move(name, target); err != nil {
		in.opts.Logger.Error("inbox: move failed", slog.String("file", name), slog.String("error", err.Error()))
		return ""
	}
	if err := in.fs.Move(name+SidecarSuffix, target+SidecarSuffix); err != nil && !errors.Is(err, os.ErrNotExist) {
		in.opts.Logger.Warn("inbox: sidecar move failed", slog.String("file", name), slog.String("error", err.Error()))
	}
	return target
}

func isSidecar(name string) bool {
	return strings.HasSuffix(name, SidecarSuffix)
}
