package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Fetcher retrieves the raw bytes behind a URL. referer may be empty.
type Fetcher interface {
	Fetch(ctx context.Context, url, referer string) ([]byte, error)
}

// FetchError is a failed retrieval. Status is 0 for transport failures
// and the HTTP status code otherwise.
type FetchError struct {
	URL    string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: HTTP %d", e.URL, e.Status)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

const (
	retryAttempts = 3
	retryBackoff  = 500 * time.Millisecond
)

// Fetch issues a GET and returns the body. Server errors are retried a
// few times with linear backoff; 4xx responses are not.
func (c *Client) Fetch(ctx context.Context, url, referer string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	if referer != "" {
		req.Header.Set("Referer", referer)
	}

	resp, err := doWithRetry(ctx, c.hc, req)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &FetchError{URL: url, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	return body, nil
}

func doWithRetry(ctx context.Context, c *http.Client, req *http.Request) (*http.Response, error) {
	var resp *http.Response
	var err error

	for i := 1; i <= retryAttempts; i++ {
		resp, err = c.Do(req)
		if err == nil && resp.StatusCode < 500 {
			return resp, nil
		}
		if i == retryAttempts {
			break
		}
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryBackoff * time.Duration(i)):
		}
	}

	if err != nil {
		return nil, err
	}
	// Last attempt still failed with a server error; hand the response
	// back so the caller reports the status.
	return resp, nil
}
