// Package ncbi submits protein searches to the NCBI BLAST URL API and streams
// the hits of the XML report.
package ncbi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"curiesuite/internal/config"
	"curiesuite/internal/errors"
	"curiesuite/internal/poll"
	"curiesuite/internal/remote"
	"curiesuite/ports"

	"github.com/rs/zerolog"
)

var (
	ridPattern    = regexp.MustCompile(`RID\s*=\s*(\S+)`)
	rtoePattern   = regexp.MustCompile(`RTOE\s*=\s*(\d+)`)
	statusPattern = regexp.MustCompile(`Status=(\w+)`)
	hitsPattern   = regexp.MustCompile(`ThereAreHits=yes`)
)

// Client talks to one BLAST URL API endpoint
type Client struct {
	cfg  config.NCBIConfig
	http *remote.Client
	log  zerolog.Logger
}

var _ ports.SearchClient = (*Client)(nil)

// NewClient creates a BLAST client. httpClient may be nil.
func NewClient(cfg config.NCBIConfig, httpClient *http.Client, log zerolog.Logger) *Client {
	return &Client{
		cfg: cfg,
		http: remote.New(httpClient, remote.Options{
			Service:   "ncbi",
			UserAgent: cfg.Tool,
			Timeout:   cfg.HTTPTimeout,
			RateLimit: cfg.RequestsPerMinute,
		}, log),
		log: log.With().Str("component", "ncbi").Logger(),
	}
}

// submission is what a Put request hands back
type submission struct {
	RID  string
	RTOE time.Duration
}

// Search submits query, waits for the search to finish and opens the XML
// report. Options left empty fall back to the configured program and
// database.
func (c *Client) Search(ctx context.Context, query string, opts ports.SearchOptions) (ports.HitStream, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.InvalidInput("query sequence is empty")
	}
	if opts.Program == "" {
		opts.Program = c.cfg.Program
	}
	if opts.Database == "" {
		opts.Database = c.cfg.Database
	}

	sub, err := c.submit(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	log := c.log.With().Str("rid", sub.RID).Logger()
	log.Info().Dur("estimate", sub.RTOE).Str("program", opts.Program).Str("database", opts.Database).Msg("blast search submitted")

	hasHits, err := c.wait(ctx, sub, log)
	if err != nil {
		return nil, err
	}
	if !hasHits {
		log.Info().Msg("blast search finished without hits")
		return emptyStream{}, nil
	}

	q := c.params("Get")
	q.Set("RID", sub.RID)
	q.Set("FORMAT_TYPE", "XML")
	resp, err := c.http.Do(ctx, remote.Get(c.cfg.BaseURL+"?"+q.Encode()))
	if err != nil {
		return nil, errors.Wrap(err, "fetch blast report")
	}
	return newReportStream(resp.Body), nil
}

func (c *Client) submit(ctx context.Context, query string, opts ports.SearchOptions) (submission, error) {
	form := c.params("Put")
	form.Set("PROGRAM", opts.Program)
	form.Set("DATABASE", opts.Database)
	form.Set("QUERY", query)
	if opts.HitlistSize > 0 {
		n := strconv.Itoa(opts.HitlistSize)
		form.Set("HITLIST_SIZE", n)
		form.Set("DESCRIPTIONS", n)
		form.Set("ALIGNMENTS", n)
	}

	body, err := c.http.Text(ctx, remote.PostForm(c.cfg.BaseURL, form))
	if err != nil {
		return submission{}, errors.Wrap(err, "submit blast search")
	}
	m := ridPattern.FindStringSubmatch(body)
	if m == nil {
		return submission{}, errors.ExternalServiceError("ncbi", fmt.Errorf("no RID in submission response"))
	}
	sub := submission{RID: m[1]}
	if m := rtoePattern.FindStringSubmatch(body); m != nil {
		secs, _ := strconv.Atoi(m[1])
		sub.RTOE = time.Duration(secs) * time.Second
	}
	return sub, nil
}

// wait polls SearchInfo until the search is READY and reports whether hits
// were found
func (c *Client) wait(ctx context.Context, sub submission, log zerolog.Logger) (bool, error) {
	q := c.params("Get")
	q.Set("RID", sub.RID)
	q.Set("FORMAT_OBJECT", "SearchInfo")
	statusURL := c.cfg.BaseURL + "?" + q.Encode()

	policy := poll.Fixed(c.cfg.PollInterval, c.cfg.Timeout, c.cfg.MaxPolls)
	policy.InitialDelay = sub.RTOE
	if c.cfg.Timeout > 0 && policy.InitialDelay > c.cfg.Timeout/2 {
		policy.InitialDelay = c.cfg.Timeout / 2
	}
	policy.OnWait = func(attempt int, next time.Duration) {
		log.Debug().Int("attempt", attempt).Dur("next", next).Msg("blast search still running")
	}

	hasHits := false
	err := poll.Until(ctx, policy, func(ctx context.Context) (bool, error) {
		body, err := c.http.Text(ctx, remote.Get(statusURL))
		if err != nil {
			return false, err
		}
		m := statusPattern.FindStringSubmatch(body)
		if m == nil {
			return false, errors.ExternalServiceError("ncbi", fmt.Errorf("no status in SearchInfo response"))
		}
		switch m[1] {
		case "WAITING":
			return false, nil
		case "READY":
			hasHits = hitsPattern.MatchString(body)
			return true, nil
		case "FAILED":
			return false, errors.ExternalServiceError("ncbi", fmt.Errorf("search %s failed", sub.RID))
		case "UNKNOWN":
			return false, errors.ExternalServiceError("ncbi", fmt.Errorf("search %s expired or is unknown", sub.RID))
		default:
			return false, errors.ExternalServiceError("ncbi", fmt.Errorf("unexpected status %q for search %s", m[1], sub.RID))
		}
	})
	if err != nil {
		return false, errors.Wrapf(err, "wait for blast search %s", sub.RID)
	}
	return hasHits, nil
}

func (c *Client) params(cmd string) url.Values {
	v := url.Values{}
	v.Set("CMD", cmd)
	if c.cfg.Tool != "" {
		v.Set("TOOL", c.cfg.Tool)
	}
	if c.cfg.Email != "" {
		v.Set("EMAIL", c.cfg.Email)
	}
	return v
}
