// Package chartindex looks up chart releases in Helm repository indexes.
package chartindex

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"gopkg.in/yaml.v3"

	"github.com/nathantilsley/chart-pin/internal/pin/domain"
	"github.com/nathantilsley/chart-pin/internal/platform/retry"
)

const cacheSize = 16

// shortHash extracts the commit hash embedded at the end of an upstream
// version string, either a bare hex run or the g-prefixed form git describe
// emits.
var shortHash = regexp.MustCompile(`(?:^|[.+~_-])g?([0-9a-f]{7,40})$`)

// Adapter implements ports.ChartIndexPort over HTTPS. Parsed indexes are
// cached per repository for the lifetime of the run.
type Adapter struct {
	baseURL  string
	client   *http.Client
	retryCfg retry.Config
	cache    *lru.Cache[string, *chartIndex]
}

// New creates a new chart index adapter rooted at baseURL.
func New(baseURL string, retryCfg retry.Config) (*Adapter, error) {
	cache, err := lru.New[string, *chartIndex](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating index cache: %w", err)
	}
	return &Adapter{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   30 * time.Second,
		},
		retryCfg: retryCfg,
		cache:    cache,
	}, nil
}

// Lookup finds the first entry of chart in chartRepo's index whose upstream
// app version starts with versionPrefix and extracts its short commit hash.
// The short hash is empty when neither version field embeds one.
func (a *Adapter) Lookup(ctx context.Context, chartRepo, chart, versionPrefix string) (domain.IndexEntry, error) {
	repoURL := a.baseURL + "/" + chartRepo
	index, err := a.index(ctx, repoURL)
	if err != nil {
		return domain.IndexEntry{}, err
	}

	entries := index.Entries[chart]
	if len(entries) == 0 {
		return domain.IndexEntry{}, fmt.Errorf("%w: chart %q has no entries in %s",
			domain.ErrIndexEntryNotFound, chart, repoURL)
	}
	for _, e := range entries {
		if !strings.HasPrefix(e.AppVersion, versionPrefix) {
			continue
		}
		entry := domain.IndexEntry{
			ChartVersion: e.Version,
			AppVersion:   e.AppVersion,
			RepoURL:      repoURL,
		}
		if m := shortHash.FindStringSubmatch(e.AppVersion); m != nil {
			entry.ShortSHA = m[1]
		} else if m := shortHash.FindStringSubmatch(e.Version); m != nil {
			entry.ShortSHA = m[1]
		}
		return entry, nil
	}
	return domain.IndexEntry{}, fmt.Errorf("%w: no %q entry matches app version %s*",
		domain.ErrIndexEntryNotFound, chart, versionPrefix)
}

func (a *Adapter) index(ctx context.Context, repoURL string) (*chartIndex, error) {
	if hit, ok := a.cache.Get(repoURL); ok {
		return hit, nil
	}

	indexURL := repoURL + "/index.yaml"
	var index chartIndex
	err := retry.Do(ctx, a.retryCfg, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, indexURL, nil)
		if err != nil {
			return retry.Permanent(fmt.Errorf("building index request: %w", err))
		}
		resp, err := a.client.Do(req)
		if err != nil {
			return fmt.Errorf("fetching %s: %w", indexURL, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			return retry.Permanent(fmt.Errorf("fetching %s: status %d", indexURL, resp.StatusCode))
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("fetching %s: status %d", indexURL, resp.StatusCode)
		}
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("reading %s: %w", indexURL, err)
		}
		index = chartIndex{}
		if err := yaml.Unmarshal(body, &index); err != nil {
			return retry.Permanent(fmt.Errorf("parsing %s: %w", indexURL, err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	a.cache.Add(repoURL, &index)
	return &index, nil
}

// chartIndex mirrors the subset of Helm's repository index format the lookup
// needs.
type chartIndex struct {
	APIVersion string                  `yaml:"apiVersion"`
	Entries    map[string][]chartEntry `yaml:"entries"`
}

type chartEntry struct {
	Name       string `yaml:"name"`
	Version    string `yaml:"version"`
	AppVersion string `yaml:"appVersion"`
}
