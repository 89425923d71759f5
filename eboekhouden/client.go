package eboekhouden

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/eboekhouden_migration/utils"
)

type restClient struct {
	baseURL string
	token   string
	http    *http.Client
	limiter <-chan time.Time

	sessionToken string
}

func newRestClient(apiToken string) (*restClient, error) {
	baseURL := strings.TrimSpace(os.Getenv("EBOEKHOUDEN_API_BASE_URL"))
	if baseURL == "" {
		baseURL = "https://api.e-boekhouden.nl"
	}
	if strings.TrimSpace(apiToken) == "" {
		return nil, errors.New("e-boekhouden api token is empty")
	}
	rateLimitPerMin := int64(60)
	if v := strings.TrimSpace(os.Getenv("EBOEKHOUDEN_RATE_LIMIT_PER_MIN")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			rateLimitPerMin = n
		}
	}
	interval := time.Minute / time.Duration(rateLimitPerMin)

	return &restClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   apiToken,
		http:    &http.Client{Timeout: 30 * time.Second},
		limiter: time.Tick(interval),
	}, nil
}

// createSession exchanges the long-lived API token for a short-lived session
// token. Sessions are created lazily and renewed on 401.
func (c *restClient) createSession(ctx context.Context) error {
	payload, err := json.Marshal(map[string]string{
		"accessToken": c.token,
		"source":      "migration",
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/session", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", utils.ErrorUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: session create %d: %s",
			utils.ErrorUpstreamUnavailable, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return err
	}
	if parsed.Token == "" {
		return fmt.Errorf("%w: session create returned empty token", utils.ErrorUpstreamUnavailable)
	}
	c.sessionToken = parsed.Token
	return nil
}

func (c *restClient) getJSON(ctx context.Context, path string, params url.Values, out interface{}) error {
	if c.sessionToken == "" {
		if err := c.createSession(ctx); err != nil {
			return err
		}
	}

	<-c.limiter
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint = endpoint + "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", c.sessionToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", utils.ErrorUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode == http.StatusUnauthorized {
		// Session expired; renew once and retry.
		if err := c.createSession(ctx); err != nil {
			return err
		}
		return c.getJSONNoRenew(ctx, endpoint, out)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: api error %d: %s",
			utils.ErrorUpstreamUnavailable, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return json.Unmarshal(body, out)
}

func (c *restClient) getJSONNoRenew(ctx context.Context, endpoint string, out interface{}) error {
	<-c.limiter
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", c.sessionToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", utils.ErrorUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: api error %d: %s",
			utils.ErrorUpstreamUnavailable, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return json.Unmarshal(body, out)
}
