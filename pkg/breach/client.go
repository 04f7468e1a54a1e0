package breach

import (
	"bufio"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// DefaultEndpoint is the public k-anonymity range API.
const DefaultEndpoint = "https://api.pwnedpasswords.com/range"

const prefixLength = 5

// Client queries a breach-intelligence range service using the k-anonymity
// hash-prefix protocol: only the first five characters of the SHA-1 hash
// ever leave the process. The full password, and even its full hash, never
// cross the boundary.
type Client struct {
	endpoint   string
	httpClient *http.Client
	userAgent  string
}

// Option configures a Client.
type Option func(*Client)

// WithEndpoint points the client at a different range API, typically an
// httptest server in tests or a caching proxy in production.
func WithEndpoint(endpoint string) Option {
	return func(c *Client) {
		c.endpoint = strings.TrimRight(endpoint, "/")
	}
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a breach range client with a bounded request timeout.
func NewClient(opts ...Option) *Client {
	c := &Client{
		endpoint:  DefaultEndpoint,
		userAgent: "simple-cred",
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// CheckPassword reports how many times the password appears in the breach
// corpus. A non-nil error means the check could not complete; callers decide
// whether to fail open (this engine does).
func (c *Client) CheckPassword(ctx context.Context, password string) (int, error) {
	sum := sha1.Sum([]byte(password))
	hash := strings.ToUpper(hex.EncodeToString(sum[:]))
	prefix, suffix := hash[:prefixLength], hash[prefixLength:]

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/"+prefix, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to build range request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("range lookup failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("range lookup returned status %d", resp.StatusCode)
	}

	// The response is a newline-delimited list of SUFFIX:COUNT pairs for
	// every known hash sharing the prefix; membership is tested locally.
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		remainder, countStr, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		if strings.EqualFold(remainder, suffix) {
			count, err := strconv.Atoi(strings.TrimSpace(countStr))
			if err != nil {
				return 1, nil
			}
			return count, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("failed to read range response: %w", err)
	}

	return 0, nil
}

// IsCompromised reports whether the password is known-compromised. The error
// carries the failure for logging; a failed check still reports false so the
// flow degrades open instead of blocking the user.
func (c *Client) IsCompromised(ctx context.Context, password string) (bool, error) {
	count, err := c.CheckPassword(ctx, password)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
