package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/otahak/herald/internal/config"
	"github.com/otahak/herald/internal/errors"
	"github.com/otahak/herald/internal/logger"
	"go.uber.org/zap"
)

// listIDPattern matches the id in both Army Forge share URL shapes:
// .../share?id=XXXX and .../listbuilder/share/XXXX.
var listIDPattern = regexp.MustCompile(`(?:id=|share/)([a-zA-Z0-9_-]+)`)

// ExtractListID pulls the list id out of a share URL, or passes a raw id
// through untouched.
func ExtractListID(raw string) (string, error) {
	if raw == "" {
		return "", errors.New(errors.ErrInvalidParam, "army list url is empty")
	}
	if !isHTTPURL(raw) {
		return raw, nil
	}
	if m := listIDPattern.FindStringSubmatch(raw); m != nil {
		return m[1], nil
	}
	return "", errors.Newf(errors.ErrInvalidParam, "could not extract a list id from %q", raw)
}

func isHTTPURL(raw string) bool {
	return len(raw) > 4 && raw[:4] == "http"
}

// Client fetches shared army lists from the Army Forge API.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	maxRetries    int
	retryInterval time.Duration
	log           *zap.Logger
}

// NewClient builds a client from config.
func NewClient(cfg *config.ImportConfig) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		httpClient:    &http.Client{Timeout: timeout},
		baseURL:       cfg.BaseURL,
		maxRetries:    cfg.MaxRetries,
		retryInterval: cfg.RetryInterval,
		log:           logger.GetModuleLogger("importer"),
	}
}

// FetchList retrieves a shared list by id. Upstream 5xx and transport
// failures are retried; a 404 is not.
func (c *Client) FetchList(ctx context.Context, listID string) (*ArmyForgeList, error) {
	endpoint := fmt.Sprintf("%s/tts?id=%s", c.baseURL, url.QueryEscape(listID))

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 && c.retryInterval > 0 {
			select {
			case <-time.After(c.retryInterval):
			case <-ctx.Done():
				return nil, errors.Wrap(ctx.Err(), errors.ErrImportTimeout)
			}
		}

		list, retryable, err := c.fetchOnce(ctx, listID, endpoint)
		if err == nil {
			return list, nil
		}
		lastErr = err
		if !retryable {
			return nil, err
		}
	}
	return nil, lastErr
}

func (c *Client) fetchOnce(ctx context.Context, listID, endpoint string) (*ArmyForgeList, bool, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, false, errors.Wrap(err, errors.ErrImportUpstream)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.LogImportRequest(listID, 0, time.Since(start), err)
		if ctx.Err() != nil {
			return nil, false, errors.Wrap(err, errors.ErrImportTimeout)
		}
		return nil, true, errors.Wrap(err, errors.ErrImportUpstream)
	}
	defer resp.Body.Close()

	logger.LogImportRequest(listID, resp.StatusCode, time.Since(start), nil)

	switch {
	case resp.StatusCode == http.StatusOK:
		// fallthrough to decode

	case resp.StatusCode == http.StatusNotFound:
		return nil, false, errors.Newf(errors.ErrNotFound, "army list %q not found", listID)

	case resp.StatusCode >= 500:
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, true, errors.Newf(errors.ErrImportUpstream,
			"upstream returned %d; the list may be expired, try re-sharing it", resp.StatusCode)

	default:
		return nil, false, errors.Newf(errors.ErrImportUpstream, "upstream returned %d", resp.StatusCode)
	}

	var list ArmyForgeList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, false, errors.Wrap(err, errors.ErrImportBadList)
	}
	if len(list.Units) == 0 {
		return nil, false, errors.Newf(errors.ErrImportBadList, "list %q has no units", listID)
	}

	c.log.Info("army list fetched",
		zap.String("list_id", listID),
		zap.Int("units", len(list.Units)),
	)
	return &list, false, nil
}
