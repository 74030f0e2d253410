package pixiv

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"pixie/internal/errkind"
)

// ErrTruncated marks a download whose body ended before the declared length.
var ErrTruncated = errors.New("truncated response")

// StreamTo fetches a media URL and copies the body into sink, returning the
// number of bytes written. A declared Content-Length larger than what was
// actually received is reported as ErrTruncated so callers can retry instead
// of keeping a partial file.
func (c *Client) StreamTo(ctx context.Context, rawURL string, sink io.Writer) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, errkind.Wrap(errkind.ErrDownload, "pixiv", "download", "bad url", err)
	}
	req.Header.Set("Referer", downloadReferer)
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, errkind.Wrap(errkind.ErrDownload, "pixiv", "download", "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, errkind.Wrap(errkind.ErrDownload, "pixiv", "download",
			fmt.Sprintf("unexpected status %d for %s", resp.StatusCode, rawURL), nil)
	}

	written, err := io.Copy(sink, resp.Body)
	if err != nil {
		return written, errkind.Wrap(errkind.ErrDownload, "pixiv", "download", "copy failed", err)
	}
	if resp.ContentLength > 0 && written < resp.ContentLength {
		return written, errkind.Wrap(errkind.ErrDownload, "pixiv", "download",
			fmt.Sprintf("got %d of %d bytes", written, resp.ContentLength), ErrTruncated)
	}
	return written, nil
}
