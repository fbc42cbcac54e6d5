// Package github fetches pull request diffs from the GitHub API.
//
// Fetch failures are deliberately non-fatal: GetPRDiff returns nil and the
// caller proceeds without diff context, so analysis still runs for private
// repositories or when the API is rate limited.
package github

import (
	"context"
	"fmt"
	"strings"
	"time"

	gh "github.com/google/go-github/v57/github"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/pullsense/pullsense/internal/cache"
	"github.com/pullsense/pullsense/pkg/logger"
)

const (
	// maxDiffFiles caps how many changed files are included in a diff.
	maxDiffFiles = 10

	// diffCacheTTL is how long a fetched diff stays in the cache.
	diffCacheTTL = time.Hour

	// binaryPatchPlaceholder replaces patches GitHub does not render.
	binaryPatchPlaceholder = "Binary file or too large"
)

// FileDiff describes one changed file in a pull request.
type FileDiff struct {
	Filename  string `json:"filename"`
	Status    string `json:"status"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
	Changes   int    `json:"changes"`
	Patch     string `json:"patch"`
}

// DiffResult is the fetched pull request metadata plus its file diffs.
type DiffResult struct {
	Title        string     `json:"title"`
	Body         string     `json:"body"`
	State        string     `json:"state"`
	Additions    int        `json:"additions"`
	Deletions    int        `json:"deletions"`
	ChangedFiles int        `json:"changed_files"`
	Mergeable    bool       `json:"mergeable"`
	Files        []FileDiff `json:"files"`
}

// RateLimitInfo reports the core API rate limit status.
type RateLimitInfo struct {
	Limit     int    `json:"limit"`
	Remaining int    `json:"remaining"`
	Reset     string `json:"reset"`
}

// Service wraps the GitHub API client with a read-through diff cache.
type Service struct {
	client *gh.Client
	cache  cache.Cache
}

// New creates a Service. With an empty token the client is anonymous and
// subject to the unauthenticated rate limit, which is fine for public repos.
func New(token string, c cache.Cache) *Service {
	var client *gh.Client
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		client = gh.NewClient(oauth2.NewClient(context.Background(), ts))
		logger.Info("github client initialized with token")
	} else {
		client = gh.NewClient(nil)
		logger.Warn("github client initialized without token, rate limited")
	}
	if c == nil {
		c = cache.NewNoop()
	}
	return &Service{client: client, cache: c}
}

// NewWithClient wires a prebuilt API client, used by tests.
func NewWithClient(client *gh.Client, c cache.Cache) *Service {
	if c == nil {
		c = cache.NewNoop()
	}
	return &Service{client: client, cache: c}
}

// DiffCacheKey returns the cache key for a repository's pull request diff.
func DiffCacheKey(repoFullName string, prNumber int) string {
	return fmt.Sprintf("github_diff:%s:%d", repoFullName, prNumber)
}

// GetPRDiff fetches PR details and per-file patches. It returns nil on any
// error so callers can continue without diff context.
func (s *Service) GetPRDiff(ctx context.Context, repoFullName string, prNumber int) *DiffResult {
	key := DiffCacheKey(repoFullName, prNumber)

	var cached DiffResult
	if s.cache.Get(ctx, key, &cached) {
		logger.Debug("using cached diff",
			zap.String("repo", repoFullName),
			zap.Int("pr_number", prNumber))
		return &cached
	}

	owner, repo, err := splitRepoFullName(repoFullName)
	if err != nil {
		logger.Warn("invalid repository name", zap.String("repo", repoFullName))
		return nil
	}

	pr, _, err := s.client.PullRequests.Get(ctx, owner, repo, prNumber)
	if err != nil {
		logger.Warn("failed to fetch pull request",
			zap.String("repo", repoFullName),
			zap.Int("pr_number", prNumber),
			zap.Error(err))
		return nil
	}

	files, _, err := s.client.PullRequests.ListFiles(ctx, owner, repo, prNumber, &gh.ListOptions{
		PerPage: maxDiffFiles,
	})
	if err != nil {
		logger.Warn("failed to list pull request files",
			zap.String("repo", repoFullName),
			zap.Int("pr_number", prNumber),
			zap.Error(err))
		return nil
	}

	result := &DiffResult{
		Title:        pr.GetTitle(),
		Body:         pr.GetBody(),
		State:        pr.GetState(),
		Additions:    pr.GetAdditions(),
		Deletions:    pr.GetDeletions(),
		ChangedFiles: pr.GetChangedFiles(),
		Mergeable:    pr.GetMergeable(),
		Files:        make([]FileDiff, 0, len(files)),
	}

	for i, f := range files {
		if i >= maxDiffFiles {
			break
		}
		patch := f.GetPatch()
		if patch == "" {
			patch = binaryPatchPlaceholder
		}
		result.Files = append(result.Files, FileDiff{
			Filename:  f.GetFilename(),
			Status:    f.GetStatus(),
			Additions: f.GetAdditions(),
			Deletions: f.GetDeletions(),
			Changes:   f.GetChanges(),
			Patch:     patch,
		})
	}

	s.cache.Set(ctx, key, result, diffCacheTTL)

	return result
}

// RateLimit reports the remaining core API quota.
func (s *Service) RateLimit(ctx context.Context) (*RateLimitInfo, error) {
	limits, _, err := s.client.RateLimit.Get(ctx)
	if err != nil {
		return nil, err
	}
	core := limits.GetCore()
	return &RateLimitInfo{
		Limit:     core.Limit,
		Remaining: core.Remaining,
		Reset:     core.Reset.Format(time.RFC3339),
	}, nil
}

func splitRepoFullName(fullName string) (owner, repo string, err error) {
	parts := strings.SplitN(fullName, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("repository name %q is not owner/repo", fullName)
	}
	return parts[0], parts[1], nil
}
