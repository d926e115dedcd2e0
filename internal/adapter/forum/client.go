// Package forum reads the member directory and member profiles of the
// velomobile forum (a XenForo board). Parsed pages are kept in the cache store
// so that a rerun within two weeks does not scrape the board again.
package forum

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/couchcryptid/member-locator/internal/domain"
	"github.com/couchcryptid/member-locator/internal/observability"
	"github.com/couchcryptid/member-locator/internal/store"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the forum host.
const DefaultBaseURL = "https://www.velomobilforum.de"

// CacheTTL is how long scraped pages and profiles are kept.
const CacheTTL = 14*24*time.Hour - time.Hour

const (
	loginPath   = "/forum/index.php?login/login"
	homePath    = "/forum/index.php"
	membersPath = "/forum/index.php?members/list/"

	browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"
)

// ErrLoginFailed is returned when the board still offers the login form after
// credentials were posted.
var ErrLoginFailed = errors.New("forum login failed, check the credentials")

// Cache is the part of the cache store the forum client needs.
type Cache interface {
	Get(key store.Key, dst any) (bool, error)
	Set(key store.Key, value any, ttl time.Duration) error
}

// Options configures a Client.
type Options struct {
	BaseURL  string
	Username string
	Password string
	Timeout  time.Duration
	// RequestsPerSecond paces page fetches; zero means unpaced.
	RequestsPerSecond float64
}

// Client is a logged-in session against the forum.
type Client struct {
	opts    Options
	http    *resty.Client
	limiter *rate.Limiter
	cache   Cache
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewClient creates a forum client with its own cookie jar.
func NewClient(opts Options, cache Cache, metrics *observability.Metrics, logger *slog.Logger) (*Client, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse forum url: %w", err)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	client := resty.New().
		SetBaseURL(opts.BaseURL).
		SetCookieJar(jar).
		SetHeader("User-Agent", browserUserAgent).
		SetRedirectPolicy(resty.DomainCheckRedirectPolicy(base.Hostname()))
	if opts.Timeout > 0 {
		client.SetTimeout(opts.Timeout)
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}

	return &Client{
		opts:    opts,
		http:    client,
		limiter: rate.NewLimiter(limit, 1),
		cache:   cache,
		metrics: metrics,
		logger:  logger,
	}, nil
}

// Members logs in and returns every directory member with profile details.
func (c *Client) Members(ctx context.Context) ([]domain.Member, error) {
	if err := c.Login(ctx); err != nil {
		return nil, err
	}
	members, err := c.Directory(ctx)
	if err != nil {
		return nil, err
	}
	for i := range members {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c.logger.Debug("fetching member details",
			"name", members[i].Name,
			"index", i+1,
			"total", len(members),
		)
		members[i] = c.Details(ctx, members[i])
	}
	return members, nil
}

// Login posts the credentials together with the form token of the login page.
func (c *Client) Login(ctx context.Context) error {
	doc, err := c.fetch(ctx, "login", loginPath)
	if err != nil {
		return fmt.Errorf("fetch login form: %w", err)
	}
	token := doc.Find("input[name=_xfToken]").AttrOr("value", "")
	if token == "" {
		return errors.New("forum login form has no _xfToken")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	res, err := c.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"login":       c.opts.Username,
			"password":    c.opts.Password,
			"remember":    "1",
			"_xfRedirect": c.opts.BaseURL + homePath,
			"_xfToken":    token,
		}).
		Post(loginPath)
	if err != nil {
		c.metrics.ForumRequests.WithLabelValues("login", "error").Inc()
		return fmt.Errorf("post login: %w", err)
	}
	if res.IsError() {
		c.metrics.ForumRequests.WithLabelValues("login", "error").Inc()
		return fmt.Errorf("post login: status %d", res.StatusCode())
	}
	if strings.Contains(res.String(), "Log in") {
		c.metrics.ForumRequests.WithLabelValues("login", "error").Inc()
		return ErrLoginFailed
	}
	c.metrics.ForumRequests.WithLabelValues("login", "success").Inc()
	c.logger.Info("logged in to forum", "user", c.opts.Username)
	return nil
}

// Directory returns the member directory in page order, one entry per uid.
// A page that cannot be fetched is logged and skipped.
func (c *Client) Directory(ctx context.Context) ([]domain.Member, error) {
	dictKey := store.NewKey(store.NamespaceMembersDict)
	var members []domain.Member
	if hit, err := c.cache.Get(dictKey, &members); err != nil {
		c.logger.Warn("member directory cache read failed", "error", err)
	} else if hit {
		c.metrics.ForumRequests.WithLabelValues("directory", "cached").Inc()
		c.logger.Info("member directory loaded from cache", "members", len(members))
		return members, nil
	}

	pages := 1
	if doc, err := c.fetch(ctx, "directory", membersPath); err != nil {
		c.logger.Warn("could not determine directory page count", "error", err)
	} else {
		pages = PageCount(doc)
	}
	c.logger.Info("reading member directory", "pages", pages)

	seen := make(map[string]int)
	for page := 1; page <= pages; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pageMembers, err := c.directoryPage(ctx, page)
		if err != nil {
			c.logger.Warn("directory page failed", "page", page, "error", err)
			continue
		}
		for _, m := range pageMembers {
			if i, ok := seen[m.UID]; ok {
				members[i] = m
				continue
			}
			seen[m.UID] = len(members)
			members = append(members, m)
		}
	}

	if err := c.cache.Set(dictKey, members, CacheTTL); err != nil {
		c.logger.Warn("member directory cache write failed", "error", err)
	}
	return members, nil
}

func (c *Client) directoryPage(ctx context.Context, page int) ([]domain.Member, error) {
	key := store.NewKey(store.NamespaceMemberPage, strconv.Itoa(page))
	var members []domain.Member
	if hit, err := c.cache.Get(key, &members); err == nil && hit {
		c.metrics.ForumRequests.WithLabelValues("directory", "cached").Inc()
		return members, nil
	}

	doc, err := c.fetch(ctx, "directory", membersPath+"&page="+strconv.Itoa(page))
	if err != nil {
		return nil, err
	}
	members = ParseDirectory(doc)
	if err := c.cache.Set(key, members, CacheTTL); err != nil {
		c.logger.Warn("directory page cache write failed", "page", page, "error", err)
	}
	return members, nil
}

// Details adds the vehicle fields of the member's profile page. On failure the
// member is returned unchanged and nothing is cached.
func (c *Client) Details(ctx context.Context, m domain.Member) domain.Member {
	key := store.NewKey(store.NamespaceUserDetails, m.UID)
	var cached domain.Member
	if hit, err := c.cache.Get(key, &cached); err == nil && hit {
		c.metrics.ForumRequests.WithLabelValues("profile", "cached").Inc()
		return cached
	}

	doc, err := c.fetch(ctx, "profile", m.Href+"about")
	if err != nil {
		c.logger.Warn("fetch member details failed", "uid", m.UID, "href", m.Href, "error", err)
		return m
	}
	m = ParseDetails(doc, m)
	if err := c.cache.Set(key, m, CacheTTL); err != nil {
		c.logger.Warn("member details cache write failed", "uid", m.UID, "error", err)
	}
	return m
}

// fetch GETs a forum page and parses it.
func (c *Client) fetch(ctx context.Context, kind, path string) (*goquery.Document, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	res, err := c.http.R().SetContext(ctx).Get(path)
	if err != nil {
		c.metrics.ForumRequests.WithLabelValues(kind, "error").Inc()
		return nil, fmt.Errorf("get %s: %w", path, err)
	}
	if res.IsError() {
		c.metrics.ForumRequests.WithLabelValues(kind, "error").Inc()
		return nil, fmt.Errorf("get %s: status %d", path, res.StatusCode())
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body()))
	if err != nil {
		c.metrics.ForumRequests.WithLabelValues(kind, "error").Inc()
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	c.metrics.ForumRequests.WithLabelValues(kind, "success").Inc()
	return doc, nil
}
