// Copyright 2026 The Stagehand Authors
// SPDX-License-Identifier: Apache-2.0

// Package archive retrieves the upstream source archive over HTTP and
// extracts it into the install tree.
//
// The upstream endpoint serves a gzip-compressed tarball of the
// application repository's default branch, so every entry is prefixed
// with a single top-level folder ("repo-main/..."). Extraction strips
// that one leading path segment; the folder itself is never
// materialized in the destination.
package archive

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/gzip"
)

// FetchError reports a failed archive retrieval: a non-success HTTP
// status, a network failure, or a stream error during extraction.
type FetchError struct {
	// URL is the archive URL that was requested.
	URL string

	// Status is the HTTP status line when the server answered with a
	// non-success code, empty otherwise.
	Status string

	// Err is the underlying transport or stream error, nil when the
	// failure was an HTTP status.
	Err error
}

func (e *FetchError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("fetch %s: server answered %s", e.URL, e.Status)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Fetcher downloads and extracts source archives. The zero value is
// usable; both fields have working defaults.
type Fetcher struct {
	// Client is used for the HTTP request. Defaults to
	// http.DefaultClient.
	Client *http.Client

	// Logger is used for structured logging. Defaults to
	// slog.Default().
	Logger *slog.Logger
}

func (f *Fetcher) client() *http.Client {
	if f.Client != nil {
		return f.Client
	}
	return http.DefaultClient
}

func (f *Fetcher) logger() *slog.Logger {
	if f.Logger != nil {
		return f.Logger
	}
	return slog.Default()
}

// Fetch issues a GET for url and streams the response body through a
// gzip+tar pipeline rooted at destDir, stripping one leading path
// segment from every entry. destDir and missing parents are created
// first. The pipeline is fully drained before Fetch returns: a nil
// error means extraction is complete, never still in flight.
//
// There is no retry. Any failure — status, network, stream, or
// filesystem — is surfaced to the caller as is, and the destination may
// be left partially populated.
func (f *Fetcher) Fetch(ctx context.Context, url, destDir string) error {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &FetchError{URL: url, Err: err}
	}

	response, err := f.client().Do(request)
	if err != nil {
		return &FetchError{URL: url, Err: err}
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return &FetchError{URL: url, Status: response.Status}
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("create destination %s: %w", destDir, err)
	}

	counter := &countingReader{reader: response.Body}
	if err := extract(counter, destDir); err != nil {
		var fetchErr *FetchError
		if errors.As(err, &fetchErr) {
			fetchErr.URL = url
			return fetchErr
		}
		return err
	}

	f.logger().Info("archive extracted",
		"url", url,
		"dest", destDir,
		"downloaded", humanize.Bytes(uint64(counter.total)))
	return nil
}

// extract decompresses and untars the stream into destDir. Stream
// errors (truncated gzip, corrupt tar) come back as *FetchError with
// the URL left for the caller to fill in; filesystem errors come back
// plain.
func extract(stream io.Reader, destDir string) error {
	gzipReader, err := gzip.NewReader(stream)
	if err != nil {
		return &FetchError{Err: fmt.Errorf("gzip: %w", err)}
	}
	defer gzipReader.Close()

	tarReader := tar.NewReader(gzipReader)
	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return &FetchError{Err: fmt.Errorf("tar: %w", err)}
		}

		name, ok := stripLeading(header.Name)
		if !ok {
			// The top-level folder entry itself, or metadata entries
			// like pax_global_header.
			continue
		}

		target, err := securePath(destDir, name)
		if err != nil {
			return err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, header.FileInfo().Mode().Perm()); err != nil {
				return fmt.Errorf("create directory %s: %w", target, err)
			}

		case tar.TypeReg:
			if _, err := secureParent(destDir, target); err != nil {
				return err
			}
			if err := writeFile(target, tarReader, header.FileInfo().Mode().Perm()); err != nil {
				return err
			}

		case tar.TypeSymlink:
			realParent, err := secureParent(destDir, target)
			if err != nil {
				return err
			}
			if err := checkSymlinkTarget(destDir, realParent, header); err != nil {
				return err
			}
			if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("replace %s: %w", target, err)
			}
			if err := os.Symlink(header.Linkname, target); err != nil {
				return fmt.Errorf("create symlink %s: %w", target, err)
			}

		default:
			// Hard links, devices, FIFOs: source archives of a web
			// application have no business containing these.
			return fmt.Errorf("archive entry %s: unsupported type %d", header.Name, header.Typeflag)
		}
	}
}

// stripLeading removes the first path segment from a tar entry name.
// The second return is false when nothing remains after stripping. The
// name is deliberately not cleaned first: cleaning "top/../../x" would
// fold the traversal into the first segment and hide it from the
// escape check in securePath.
func stripLeading(name string) (string, bool) {
	name = strings.TrimPrefix(name, "./")
	_, rest, found := strings.Cut(name, "/")
	if !found || rest == "" {
		return "", false
	}
	return rest, true
}

// checkSymlinkTarget rejects symlink entries whose target lands outside
// destDir: absolute targets, and relative targets that climb out of the
// destination when resolved from the symlink's containing directory.
// Without the relative check, a hostile archive could plant
// "evil -> ../.." and then write a regular file through "evil/", past
// securePath's lexical check on the unresolved name. The target is
// resolved from the real parent directory (symlinked components already
// expanded by secureParent), so chaining through an earlier in-tree
// symlink does not change where the climb starts.
func checkSymlinkTarget(destDir, realParent string, header *tar.Header) error {
	if strings.HasPrefix(header.Linkname, "/") {
		return fmt.Errorf("archive entry %s: absolute symlink target %q rejected", header.Name, header.Linkname)
	}
	resolved := filepath.Join(realParent, filepath.FromSlash(header.Linkname))
	root, err := filepath.EvalSymlinks(filepath.Clean(destDir))
	if err != nil {
		return fmt.Errorf("resolve destination %s: %w", destDir, err)
	}
	if resolved != root && !strings.HasPrefix(resolved, root+string(os.PathSeparator)) {
		return fmt.Errorf("archive entry %s: symlink target %q escapes destination directory", header.Name, header.Linkname)
	}
	return nil
}

// securePath joins name onto destDir and rejects entries that would
// escape it (".." traversal in hostile archives).
func securePath(destDir, name string) (string, error) {
	target := filepath.Join(destDir, filepath.FromSlash(name))
	if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) {
		return "", fmt.Errorf("archive entry %q escapes destination directory", name)
	}
	return target, nil
}

// secureParent creates target's parent directory and verifies that its
// real path, with symlinked components resolved, is still inside
// destDir. securePath's lexical check cannot see a previously
// extracted symlink sitting on the path. Returns the resolved parent.
func secureParent(destDir, target string) (string, error) {
	parent := filepath.Dir(target)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return "", fmt.Errorf("create directory for %s: %w", target, err)
	}
	realParent, err := filepath.EvalSymlinks(parent)
	if err != nil {
		return "", fmt.Errorf("resolve directory for %s: %w", target, err)
	}
	// destDir itself may sit under a symlink (on some systems the temp
	// directory does), so compare real path against real path.
	realRoot, err := filepath.EvalSymlinks(filepath.Clean(destDir))
	if err != nil {
		return "", fmt.Errorf("resolve destination %s: %w", destDir, err)
	}
	if realParent != realRoot && !strings.HasPrefix(realParent, realRoot+string(os.PathSeparator)) {
		return "", fmt.Errorf("archive entry at %s resolves outside the destination directory", target)
	}
	return realParent, nil
}

func writeFile(target string, content io.Reader, mode os.FileMode) error {
	file, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("create %s: %w", target, err)
	}
	if _, err := io.Copy(file, content); err != nil {
		file.Close()
		return &FetchError{Err: fmt.Errorf("stream %s: %w", target, err)}
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close %s: %w", target, err)
	}
	return nil
}

// countingReader counts bytes as they stream through, for the
// downloaded-size log line.
type countingReader struct {
	reader io.Reader
	total  int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.reader.Read(p)
	c.total += int64(n)
	return n, err
}
