package client

import (
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/zfogg/feedsync/pkg/bus"
	"github.com/zfogg/feedsync/pkg/config"
	"github.com/zfogg/feedsync/pkg/logger"
)

const userAgent = "feedsync/0.1.0"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	mu           sync.Mutex
	httpClient   *resty.Client
	authToken    string
	logoutFired  bool
	unauthorized bus.Bus[struct{}]
)

// Init initializes the HTTP client from config
func Init() {
	Configure(config.GetString("api.base_url"), config.GetSeconds("api.timeout"))
}

// Configure (re)builds the HTTP client for baseURL. The current token, if
// any, is carried over.
func Configure(baseURL string, timeout time.Duration) {
	c := resty.New()
	c.SetBaseURL(baseURL)
	if timeout > 0 {
		c.SetTimeout(timeout)
	}
	c.SetHeader("User-Agent", userAgent)
	c.SetJSONMarshaler(json.Marshal)
	c.SetJSONUnmarshaler(json.Unmarshal)

	c.OnBeforeRequest(func(c *resty.Client, req *resty.Request) error {
		logger.Debug("HTTP Request", "method", req.Method, "url", req.URL)
		return nil
	})

	c.OnAfterResponse(func(c *resty.Client, resp *resty.Response) error {
		logger.Debug("HTTP Response", "status", resp.StatusCode(), "url", resp.Request.URL, "took", resp.Time())
		if resp.StatusCode() == 401 && !isAuthRoute(resp.Request.URL) {
			handleUnauthorized()
		}
		return nil
	})

	mu.Lock()
	if authToken != "" {
		c.SetAuthToken(authToken)
	}
	httpClient = c
	mu.Unlock()
}

// GetClient returns the HTTP client
func GetClient() *resty.Client {
	mu.Lock()
	c := httpClient
	mu.Unlock()
	if c == nil {
		Init()
		mu.Lock()
		c = httpClient
		mu.Unlock()
	}
	return c
}

// SetAuthToken sets the bearer token and rearms the logout signal
func SetAuthToken(token string) {
	c := GetClient()
	mu.Lock()
	defer mu.Unlock()
	authToken = token
	logoutFired = false
	c.SetAuthToken(token)
}

// ClearAuthToken drops the bearer token
func ClearAuthToken() {
	c := GetClient()
	mu.Lock()
	defer mu.Unlock()
	authToken = ""
	c.SetAuthToken("")
}

// HasAuthToken reports whether a token is currently held
func HasAuthToken() bool {
	mu.Lock()
	defer mu.Unlock()
	return authToken != ""
}

// OnUnauthorized registers fn to run when a request outside /auth/ is
// rejected with 401 while a token is held. It fires once per token.
func OnUnauthorized(fn func()) func() {
	return unauthorized.Subscribe(func(struct{}) { fn() })
}

func handleUnauthorized() {
	mu.Lock()
	if authToken == "" || logoutFired {
		mu.Unlock()
		return
	}
	logoutFired = true
	authToken = ""
	if httpClient != nil {
		httpClient.SetAuthToken("")
	}
	mu.Unlock()

	logger.Warn("Session rejected by server, logging out")
	unauthorized.Publish(struct{}{})
}

func isAuthRoute(url string) bool {
	return strings.Contains(url, "/auth/")
}
