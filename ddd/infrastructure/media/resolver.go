// Package media resolves submitted media references to local files.
package media

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"lingo-service/ddd/domain/fault"
	"lingo-service/ddd/domain/gateway"
	"lingo-service/ddd/infrastructure/executor"
	"lingo-service/pkg/config"
	"lingo-service/pkg/logger"
)

// ErrUnsupportedRef is returned by Validate for references the resolver cannot serve.
var ErrUnsupportedRef = errors.New("unsupported media reference")

const objectScheme = "s3"

// Resolver supports three kinds of references:
//   - local file paths with an allowed extension
//   - s3://bucket/key objects read through the storage gateway
//   - http(s) video page URLs downloaded with yt-dlp
type Resolver struct {
	cfg     config.ExtractionConfig
	storage gateway.StorageGateway
	runner  executor.CommandRunner
	allowed map[string]bool
}

// NewResolver storage may be nil when object storage is disabled.
func NewResolver(cfg config.ExtractionConfig, storage gateway.StorageGateway, runner executor.CommandRunner) *Resolver {
	if runner == nil {
		runner = executor.NewExecRunner()
	}
	allowed := make(map[string]bool, len(cfg.AllowedExtensions))
	for _, ext := range cfg.AllowedExtensions {
		allowed[strings.ToLower(strings.TrimPrefix(ext, "."))] = true
	}
	return &Resolver{cfg: cfg, storage: storage, runner: runner, allowed: allowed}
}

type refKind int

const (
	refLocal refKind = iota
	refObject
	refRemote
)

func classify(ref string) (refKind, *url.URL) {
	u, err := url.Parse(ref)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		// 单字母 scheme 视为 Windows 盘符
		return refLocal, nil
	}
	switch strings.ToLower(u.Scheme) {
	case objectScheme:
		return refObject, u
	case "http", "https":
		return refRemote, u
	case "file":
		return refLocal, u
	}
	return -1, u
}

// Validate checks the reference shape and, for local and object refs, existence.
func (r *Resolver) Validate(ctx context.Context, ref string) error {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return fmt.Errorf("%w: empty reference", ErrUnsupportedRef)
	}
	kind, u := classify(ref)
	switch kind {
	case refLocal:
		path := localPath(ref, u)
		if err := r.checkExtension(path); err != nil {
			return err
		}
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("%w: %s is not readable", ErrUnsupportedRef, path)
		}
		if info.IsDir() {
			return fmt.Errorf("%w: %s is a directory", ErrUnsupportedRef, path)
		}
		return nil
	case refObject:
		if r.storage == nil {
			return fmt.Errorf("%w: object storage is not enabled", ErrUnsupportedRef)
		}
		bucket, key := objectLocation(u, r.storage.DefaultBucket())
		if key == "" {
			return fmt.Errorf("%w: missing object key", ErrUnsupportedRef)
		}
		if err := r.checkExtension(key); err != nil {
			return err
		}
		if _, err := r.storage.StatObject(ctx, bucket, key); err != nil {
			return fmt.Errorf("%w: %v", ErrUnsupportedRef, err)
		}
		return nil
	case refRemote:
		if u.Host == "" {
			return fmt.Errorf("%w: url without host", ErrUnsupportedRef)
		}
		return nil
	}
	return fmt.Errorf("%w: scheme %q", ErrUnsupportedRef, u.Scheme)
}

// Fetch returns a local path for ref, downloading into dir when needed.
func (r *Resolver) Fetch(ctx context.Context, ref, dir string) (string, error) {
	ref = strings.TrimSpace(ref)
	kind, u := classify(ref)
	switch kind {
	case refLocal:
		path := localPath(ref, u)
		if err := r.checkExtension(path); err != nil {
			return "", unsupported(err)
		}
		if _, err := os.Stat(path); err != nil {
			return "", unsupported(err)
		}
		return path, nil
	case refObject:
		if r.storage == nil {
			return "", unsupported(errors.New("object storage is not enabled"))
		}
		bucket, key := objectLocation(u, r.storage.DefaultBucket())
		if err := r.checkExtension(key); err != nil {
			return "", unsupported(err)
		}
		dst := filepath.Join(dir, "source"+strings.ToLower(filepath.Ext(key)))
		if err := r.storage.DownloadObject(ctx, bucket, key, dst); err != nil {
			return "", unsupported(err)
		}
		return dst, nil
	case refRemote:
		return r.fetchRemote(ctx, ref, dir)
	}
	return "", unsupported(fmt.Errorf("scheme %q", u.Scheme))
}

func (r *Resolver) fetchRemote(ctx context.Context, ref, dir string) (string, error) {
	out, err := r.runner.Run(ctx, r.cfg.YtDlpPath, "--no-playlist", "--skip-download", "--print", "duration", ref)
	if err != nil {
		return "", unsupported(fmt.Errorf("probe remote media: %w", err))
	}
	if d := parseDuration(out.Stdout); r.cfg.RemoteMaxDuration > 0 && d > r.cfg.RemoteMaxDuration {
		return "", &fault.ExtractionError{
			Kind:    fault.KindUnsupportedFormat,
			Message: fmt.Sprintf("remote media is %s long, limit is %s", d.Round(time.Second), r.cfg.RemoteMaxDuration),
		}
	}

	template := filepath.Join(dir, "source.%(ext)s")
	if _, err := r.runner.Run(ctx, r.cfg.YtDlpPath,
		"--no-playlist",
		"--no-progress",
		"-f", "bestaudio/best",
		"-o", template,
		ref,
	); err != nil {
		return "", unsupported(fmt.Errorf("download remote media: %w", err))
	}

	matches, _ := filepath.Glob(filepath.Join(dir, "source.*"))
	for _, m := range matches {
		if !strings.HasSuffix(m, ".part") {
			logger.Infof("Remote media downloaded ref=%s path=%s", ref, m)
			return m, nil
		}
	}
	return "", unsupported(errors.New("yt-dlp produced no file"))
}

// ProbeDuration reads the media length without downloading it: ffprobe for local files,
// yt-dlp metadata for remote URLs. Object references are not probed.
func (r *Resolver) ProbeDuration(ctx context.Context, ref string) (time.Duration, error) {
	ref = strings.TrimSpace(ref)
	kind, u := classify(ref)
	var (
		out executor.Output
		err error
	)
	switch kind {
	case refLocal:
		out, err = r.runner.Run(ctx, r.cfg.FFprobePath,
			"-v", "error",
			"-show_entries", "format=duration",
			"-of", "default=noprint_wrappers=1:nokey=1",
			localPath(ref, u),
		)
	case refRemote:
		out, err = r.runner.Run(ctx, r.cfg.YtDlpPath, "--no-playlist", "--skip-download", "--print", "duration", ref)
	default:
		return 0, fmt.Errorf("%w: duration probe supports local files and remote urls only", ErrUnsupportedRef)
	}
	if err != nil {
		return 0, fmt.Errorf("probe duration: %w", err)
	}
	d := parseDuration(out.Stdout)
	if d <= 0 {
		return 0, errors.New("media duration is unknown")
	}
	return d, nil
}

func (r *Resolver) checkExtension(name string) error {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	if ext == "" || !r.allowed[ext] {
		return fmt.Errorf("%w: extension %q is not allowed", ErrUnsupportedRef, ext)
	}
	return nil
}

func localPath(ref string, u *url.URL) string {
	if u != nil && u.Scheme == "file" {
		return u.Path
	}
	return ref
}

// objectLocation reads s3://bucket/key; s3:///key uses the default bucket.
func objectLocation(u *url.URL, defaultBucket string) (string, string) {
	bucket := u.Host
	if bucket == "" {
		bucket = defaultBucket
	}
	return bucket, strings.TrimPrefix(u.Path, "/")
}

func parseDuration(out []byte) time.Duration {
	line := strings.TrimSpace(string(out))
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	sec, err := strconv.ParseFloat(line, 64)
	if err != nil || sec <= 0 {
		return 0
	}
	return time.Duration(sec * float64(time.Second))
}

func unsupported(err error) error {
	var ee *fault.ExtractionError
	if errors.As(err, &ee) {
		return err
	}
	return &fault.ExtractionError{Kind: fault.KindUnsupportedFormat, Message: "cannot resolve media reference", Err: err}
}
