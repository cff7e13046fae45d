// Package probe determines an origin's content length and whether it
// serves byte-range requests, driving the engine's fork between the
// multi-chunk and single-stream download paths.
package probe

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/url"
	"regexp"
	"strings"

	"github.com/tanq16/rangepull/internal/httpclient"
	"github.com/tanq16/rangepull/internal/rangeutil"
)

// Capability describes what an origin can serve for a given URL.
type Capability struct {
	ContentLength   int64 // -1 if unknown
	SupportsRanges  bool
	FinalURL        string
	ContentType     string
	SuggestedName   string
}

// ErrProbeFailed wraps a HEAD request that failed at the network level
// or returned a status >= 400, distinct from a merely unsupportive
// origin.
type ErrProbeFailed struct {
	Cause error
}

func (e *ErrProbeFailed) Error() string { return fmt.Sprintf("probe failed: %v", e.Cause) }
func (e *ErrProbeFailed) Unwrap() error { return e.Cause }

var filenameSanitizer = regexp.MustCompile(`[^a-zA-Z0-9_\-. ]+`)

// Probe performs the HEAD-then-range-test sequence described by the
// engine's capability contract.
func Probe(ctx context.Context, client *httpclient.Client, rawURL string) (*Capability, error) {
	log := rangeutil.GetLogger("probe")

	head, err := client.Head(ctx, rawURL)
	if err != nil {
		return nil, &ErrProbeFailed{Cause: err}
	}
	if head.StatusCode >= 400 {
		return nil, &ErrProbeFailed{Cause: fmt.Errorf("HEAD returned status %d", head.StatusCode)}
	}

	result := &Capability{
		ContentLength: -1,
		FinalURL:      head.FinalURL,
		ContentType:   head.ContentType,
	}
	if head.ContentLength > 0 {
		result.ContentLength = head.ContentLength
	}
	result.SuggestedName = nameFromHead(head)

	if result.ContentLength <= 0 {
		log.Debug().Str("url", rawURL).Msg("origin did not report a usable content length; falling back")
		return result, nil
	}

	// Range test: a small ranged GET must come back 206 for the origin
	// to be treated as range-capable.
	rangeSupported, err := testRangeSupport(ctx, client, result.FinalURL)
	if err != nil {
		log.Debug().Err(err).Msg("range probe request failed; treating as unsupported")
		return result, nil
	}
	result.SupportsRanges = rangeSupported
	return result, nil
}

func testRangeSupport(ctx context.Context, client *httpclient.Client, rawURL string) (bool, error) {
	var status int
	discard := discardSink{}
	outcome, err := client.Get(ctx, rawURL, "bytes=0-1023", discard, func(int64) bool { return true })
	if outcome != nil {
		status = outcome.StatusCode
	}
	if err != nil {
		var httpErr *httpclient.HTTPStatusError
		if errors.As(err, &httpErr) {
			return false, nil
		}
		return false, err
	}
	return status == 206, nil
}

type discardSink struct{}

func (discardSink) Write(p []byte) (int, error) { return len(p), nil }

// SuggestFilename performs a lightweight HEAD-only lookup to name an
// output file before a transfer starts, preferring the origin's
// Content-Disposition filename over the URL's path basename. It does
// not perform the range-support test that Probe does.
func SuggestFilename(ctx context.Context, client *httpclient.Client, rawURL string) (string, error) {
	head, err := client.Head(ctx, rawURL)
	if err != nil {
		return "", &ErrProbeFailed{Cause: err}
	}
	if head.StatusCode >= 400 {
		return "", &ErrProbeFailed{Cause: fmt.Errorf("HEAD returned status %d", head.StatusCode)}
	}
	return nameFromHead(head), nil
}

func nameFromHead(head *httpclient.Response) string {
	if name := FilenameFromContentDisposition(head.ContentDisposition); name != "" {
		return name
	}
	return suggestFilename(head.FinalURL)
}

func suggestFilename(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	parts := strings.Split(parsed.Path, "/")
	name := parts[len(parts)-1]
	if name == "" {
		return ""
	}
	return filenameSanitizer.ReplaceAllString(name, "_")
}

// FilenameFromContentDisposition extracts a filename hint from a
// Content-Disposition header value, if present.
func FilenameFromContentDisposition(contentDisposition string) string {
	if contentDisposition == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(contentDisposition)
	if err != nil {
		return ""
	}
	if fn, ok := params["filename"]; ok && fn != "" {
		return filenameSanitizer.ReplaceAllString(fn, "_")
	}
	if fn, ok := params["filename*"]; ok && strings.HasPrefix(fn, "UTF-8''") {
		if unescaped, err := url.PathUnescape(strings.TrimPrefix(fn, "UTF-8''")); err == nil {
			return filenameSanitizer.ReplaceAllString(unescaped, "_")
		}
	}
	return ""
}

// LooksLikeMarkup reports whether a Content-Type indicates the
// response is HTML/text rather than binary content — a hint (grounded
// in the original C++ tool's sniffing of error pages returned in place
// of the requested file) that the origin may have served an error page.
func LooksLikeMarkup(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "text/plain")
}
