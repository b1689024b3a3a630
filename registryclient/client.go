// Package registryclient is a typed HTTP/JSON client over the wire
// protocol in §6: known_* diff calls, create_* batch uploads, and
// send_blob. Grounded on the teacher's cmd/server (stdlib net/http +
// encoding/json JSON-API conventions); retries are enriched from
// cenkalti/backoff, a dependency the teacher itself doesn't carry but
// which a sibling pack repo (AKJUS-bsc-erigon) uses for this exact
// purpose.
package registryclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"brioche/brioerr"
	"brioche/fanout"
	"brioche/hashid"
	"brioche/recipe"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("brioche/registryclient")

// BakePair is the (input recipe hash, output artifact hash) pair used
// by known_bakes and create_bake.
type BakePair struct {
	Input  hashid.RecipeHash   `json:"input"`
	Output hashid.ArtifactHash `json:"output"`
}

// Client talks to a single Brioche registry endpoint.
type Client struct {
	http    *http.Client
	baseURL string
	log     *zap.Logger

	maxElapsed time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying *http.Client (e.g. for
// custom transports or test doubles).
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithLogger overrides the client's logger; the default is a no-op.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithMaxElapsed bounds the total time a single call may spend retrying.
func WithMaxElapsed(d time.Duration) Option {
	return func(c *Client) { c.maxElapsed = d }
}

// New builds a Client talking to baseURL (e.g. "https://registry.example/v0").
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		http:       http.DefaultClient,
		baseURL:    baseURL,
		log:        zap.NewNop(),
		maxElapsed: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// KnownBakes returns the subset of pairs the registry already knows.
func (c *Client) KnownBakes(ctx context.Context, pairs []BakePair) ([]BakePair, error) {
	var out []BakePair
	err := c.postJSON(ctx, "known-bakes", pairs, &out)
	return out, err
}

// KnownBlobs returns the subset of hashes the registry already has. To
// work around the large-set timeouts spec.md §9 notes, the request is
// chunked into batches of 1,024 hashes and the chunks are issued
// concurrently, bounded the same way every other fan-out in this
// module is (fanout.DefaultLimit).
func (c *Client) KnownBlobs(ctx context.Context, hashes []hashid.BlobHash) ([]hashid.BlobHash, error) {
	const chunkSize = 1024

	var chunks [][]hashid.BlobHash
	for start := 0; start < len(hashes); start += chunkSize {
		end := start + chunkSize
		if end > len(hashes) {
			end = len(hashes)
		}
		chunks = append(chunks, hashes[start:end])
	}

	var mu sync.Mutex
	known := make(map[hashid.BlobHash]struct{}, len(hashes))

	err := fanout.BoundedEach(ctx, fanout.DefaultLimit, chunks, func(ctx context.Context, chunk []hashid.BlobHash) error {
		var chunkKnown []hashid.BlobHash
		if err := c.postJSON(ctx, "known-blobs", chunk, &chunkKnown); err != nil {
			return err
		}
		mu.Lock()
		for _, h := range chunkKnown {
			known[h] = struct{}{}
		}
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]hashid.BlobHash, 0, len(known))
	for h := range known {
		out = append(out, h)
	}
	return out, nil
}

// KnownRecipes returns the subset of hashes the registry already has.
func (c *Client) KnownRecipes(ctx context.Context, hashes []hashid.RecipeHash) ([]hashid.RecipeHash, error) {
	var out []hashid.RecipeHash
	err := c.postJSON(ctx, "known-recipes", hashes, &out)
	return out, err
}

// KnownProjects returns the subset of hashes the registry already has.
func (c *Client) KnownProjects(ctx context.Context, hashes []hashid.ProjectHash) ([]hashid.ProjectHash, error) {
	var out []hashid.ProjectHash
	err := c.postJSON(ctx, "known-projects", hashes, &out)
	return out, err
}

// CreateBake records a single bake edge. Idempotent.
func (c *Client) CreateBake(ctx context.Context, input hashid.RecipeHash, output hashid.ArtifactHash) error {
	return c.postJSON(ctx, "bakes", BakePair{Input: input, Output: output}, nil)
}

// SendBlob uploads a blob's bytes under its hash. Idempotent; the body
// is buffered fully in memory before the call so a retry can replay it,
// per the open-question decision in DESIGN.md.
func (c *Client) SendBlob(ctx context.Context, h hashid.BlobHash, data []byte) error {
	ctx, span := tracer.Start(ctx, "registryclient.SendBlob", trace.WithAttributes(attribute.String("blob_hash", h.String())))
	defer span.End()

	return c.retry(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+"/blobs/"+h.String(), bytes.NewReader(data))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("registryclient: build send_blob request: %w", err))
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("registryclient: send_blob %s: %w: %w", h, brioerr.ErrNetworkTransient, err)
		}
		defer resp.Body.Close()
		return classifyStatus(resp, fmt.Sprintf("send_blob %s", h))
	})
}

// CreateRecipes uploads a batch of recipes in a single call.
func (c *Client) CreateRecipes(ctx context.Context, recipes []recipe.Recipe) error {
	return c.postJSON(ctx, "recipes", recipes, nil)
}

// CreateProjects uploads a batch of project definitions, keyed by hash,
// in a single call. canonical holds each project's raw canonical bytes,
// since project internals are out of this module's scope.
func (c *Client) CreateProjects(ctx context.Context, canonical map[hashid.ProjectHash][]byte) error {
	encoded := make(map[string]string, len(canonical))
	for h, b := range canonical {
		encoded[h.String()] = string(b)
	}
	return c.postJSON(ctx, "projects", encoded, nil)
}

func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	ctx, span := tracer.Start(ctx, "registryclient."+path)
	defer span.End()

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("registryclient: marshal %s request: %w", path, err)
	}

	var respBody []byte
	err = c.retry(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+path, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("registryclient: build %s request: %w", path, err))
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("registryclient: %s: %w: %w", path, brioerr.ErrNetworkTransient, err)
		}
		defer resp.Body.Close()

		if err := classifyStatus(resp, path); err != nil {
			return err
		}

		respBody, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("registryclient: read %s response: %w: %w", path, brioerr.ErrNetworkTransient, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("registryclient: unmarshal %s response: %w", path, err)
	}
	return nil
}

// classifyStatus turns an HTTP response into nil, a permanent error
// (4xx other than 429), or a plain error (everything retryable).
func classifyStatus(resp *http.Response, op string) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return brioerr.Wrap(brioerr.ErrNetworkTransient, "registryclient: %s returned %d", op, resp.StatusCode)
	case resp.StatusCode >= 400:
		return backoff.Permanent(brioerr.Wrap(brioerr.ErrNetworkFatal, "registryclient: %s returned %d", op, resp.StatusCode))
	default:
		return backoff.Permanent(brioerr.Wrap(brioerr.ErrProtocolViolation, "registryclient: %s returned unexpected status %d", op, resp.StatusCode))
	}
}

// retry wraps fn with exponential backoff and jitter, bounded by
// c.maxElapsed, per §7. A backoff.Permanent error is returned
// immediately without retrying.
func (c *Client) retry(ctx context.Context, fn func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = c.maxElapsed
	attempt := 0

	return backoff.Retry(func() error {
		attempt++
		err := fn()
		if err != nil {
			c.log.Debug("registryclient: call failed", zap.Int("attempt", attempt), zap.Error(err))
		}
		return err
	}, backoff.WithContext(bo, ctx))
}
