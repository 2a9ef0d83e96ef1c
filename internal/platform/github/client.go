// Package github provides authenticated GitHub API clients.
package github

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/bradleyfalzon/ghinstallation/v2"
	gogithub "github.com/google/go-github/v68/github"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const publicServer = "https://github.com"

// TokenFunc yields a credential for git-over-HTTPS operations. App
// installation tokens are short-lived, so callers must not cache the result.
type TokenFunc func(ctx context.Context) (string, error)

// Client couples the REST API surface with a credential source for raw git
// pushes, which bypass the REST API entirely.
type Client struct {
	API   *gogithub.Client
	Token TokenFunc
}

// NewAppClient creates a client authenticated as a GitHub App installation.
// The ghinstallation transport handles JWT generation and token refresh.
func NewAppClient(serverURL string, appID, installationID int64, privateKeyPEM string) (*Client, error) {
	transport, err := ghinstallation.New(otelhttp.NewTransport(http.DefaultTransport), appID, installationID, []byte(privateKeyPEM))
	if err != nil {
		return nil, fmt.Errorf("creating github installation transport: %w", err)
	}
	if enterprise(serverURL) {
		transport.BaseURL = apiBase(serverURL)
	}

	api, err := newAPI(serverURL, &http.Client{Transport: transport})
	if err != nil {
		return nil, err
	}
	return &Client{API: api, Token: transport.Token}, nil
}

// NewTokenClient creates a client authenticated with a static token, normally
// the Actions-provided GITHUB_TOKEN.
func NewTokenClient(serverURL, token string) (*Client, error) {
	api, err := newAPI(serverURL, &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)})
	if err != nil {
		return nil, err
	}
	return &Client{
		API:   api.WithAuthToken(token),
		Token: func(context.Context) (string, error) { return token, nil },
	}, nil
}

// NewAnonymousClient creates an unauthenticated client. Pushes are not
// possible; reads work against public repositories only.
func NewAnonymousClient(serverURL string) (*Client, error) {
	api, err := newAPI(serverURL, &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)})
	if err != nil {
		return nil, err
	}
	return &Client{
		API:   api,
		Token: func(context.Context) (string, error) { return "", nil },
	}, nil
}

func newAPI(serverURL string, httpClient *http.Client) (*gogithub.Client, error) {
	client := gogithub.NewClient(httpClient)
	if !enterprise(serverURL) {
		return client, nil
	}
	client, err := client.WithEnterpriseURLs(serverURL, serverURL)
	if err != nil {
		return nil, fmt.Errorf("configuring enterprise server %q: %w", serverURL, err)
	}
	return client, nil
}

func enterprise(serverURL string) bool {
	return serverURL != "" && strings.TrimSuffix(serverURL, "/") != publicServer
}

func apiBase(serverURL string) string {
	return strings.TrimSuffix(serverURL, "/") + "/api/v3"
}
