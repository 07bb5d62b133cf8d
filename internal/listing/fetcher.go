// Package listing fetches job postings from the remote listing endpoint.
package listing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/pachmu/job_finder_bot/internal/jobs"
)

// ErrUnexpectedResponseShape is returned when the body is neither a JSON
// array of postings nor an object with a "jobs" array.
var ErrUnexpectedResponseShape = errors.New("unexpected response shape")

// NetworkError is a failed request or a non-success HTTP status.
type NetworkError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("request to %s failed: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("request to %s returned status %d", e.URL, e.StatusCode)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

type page struct {
	Jobs *[]hit `json:"jobs"`
}

type hit struct {
	Title   string `json:"title"`
	Company string `json:"company"`
	Salary  text   `json:"salary"`
}

// text decodes a JSON string or number into its textual form.
type text string

func (t *text) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*t = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*t = text(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*t = text(n.String())
	return nil
}

// Fetcher requests the listing endpoint.
type Fetcher struct {
	url    string
	client *http.Client
	newID  func() string
}

// NewFetcher returns Fetcher for url. A zero timeout means no timeout.
func NewFetcher(url string, timeout time.Duration) *Fetcher {
	tr := &http.Transport{
		MaxIdleConns:    10,
		IdleConnTimeout: 5 * time.Second,
	}
	return &Fetcher{
		url: url,
		client: &http.Client{
			Transport: tr,
			Timeout:   timeout,
		},
		newID: func() string { return uuid.NewString() },
	}
}

// Fetch requests the listing and assigns a fresh id to every posting.
func (f *Fetcher) Fetch(ctx context.Context) ([]jobs.Posting, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &NetworkError{URL: f.url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &NetworkError{URL: f.url, StatusCode: resp.StatusCode}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{URL: f.url, StatusCode: resp.StatusCode, Err: err}
	}

	hits, err := decode(body)
	if err != nil {
		return nil, err
	}
	postings := make([]jobs.Posting, 0, len(hits))
	for _, h := range hits {
		postings = append(postings, jobs.Posting{
			ID:      f.newID(),
			Title:   h.Title,
			Company: h.Company,
			Salary:  string(h.Salary),
		})
	}
	logrus.WithFields(logrus.Fields{
		"url":   f.url,
		"count": len(postings),
	}).Info("Listing fetched")
	return postings, nil
}

// decode accepts either [...] or {"jobs": [...]}.
func decode(body []byte) ([]hit, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, errors.Wrap(ErrUnexpectedResponseShape, "empty body")
	}
	switch body[0] {
	case '[':
		var hits []hit
		if err := json.Unmarshal(body, &hits); err != nil {
			return nil, errors.Wrapf(ErrUnexpectedResponseShape, "decode array: %v", err)
		}
		return hits, nil
	case '{':
		var pg page
		if err := json.Unmarshal(body, &pg); err != nil {
			return nil, errors.Wrapf(ErrUnexpectedResponseShape, "decode object: %v", err)
		}
		if pg.Jobs == nil {
			return nil, errors.Wrap(ErrUnexpectedResponseShape, "object has no jobs array")
		}
		return *pg.Jobs, nil
	}
	return nil, errors.Wrap(ErrUnexpectedResponseShape, "body is not a JSON array or object")
}
