// Package ebi runs multiple sequence alignments through the EBI Job
// Dispatcher REST services (Clustal Omega and MUSCLE share one protocol).
package ebi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"curiesuite/internal/config"
	"curiesuite/internal/errors"
	"curiesuite/internal/poll"
	"curiesuite/internal/remote"
	"curiesuite/ports"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

// Job Dispatcher tool identifiers
const (
	ToolClustalOmega = "clustalo"
	ToolMuscle       = "muscle"
)

var toolNames = map[string]string{
	ToolClustalOmega: "Clustal Omega",
	ToolMuscle:       "MUSCLE",
}

// ResultType describes one downloadable output of a finished job
type ResultType struct {
	Identifier string
	Label      string
	MediaType  string
	FileSuffix string
}

// Client submits jobs to one Job Dispatcher tool
type Client struct {
	tool string
	cfg  config.EBIConfig
	http *remote.Client
	log  zerolog.Logger
}

var _ ports.Aligner = (*Client)(nil)

// NewClient creates a client for tool. httpClient may be nil.
func NewClient(tool string, cfg config.EBIConfig, httpClient *http.Client, log zerolog.Logger) (*Client, error) {
	if _, ok := toolNames[tool]; !ok {
		return nil, errors.InvalidInputf("unknown alignment tool %q", tool)
	}
	return &Client{
		tool: tool,
		cfg:  cfg,
		http: remote.New(httpClient, remote.Options{Service: "ebi-" + tool, Timeout: cfg.HTTPTimeout}, log),
		log:  log.With().Str("component", "ebi").Str("tool", tool).Logger(),
	}, nil
}

// Name is the display name of the tool
func (c *Client) Name() string { return c.tool }

// Label is the tool's display name
func (c *Client) Label() string { return toolNames[c.tool] }

// Align submits the FASTA text, polls until the job finishes and returns the
// alignment exactly as the service produced it
func (c *Client) Align(ctx context.Context, fasta string, title string) (string, error) {
	if strings.TrimSpace(fasta) == "" {
		return "", errors.InvalidInput("nothing to align")
	}
	jobID, err := c.Submit(ctx, fasta, title)
	if err != nil {
		return "", err
	}
	log := c.log.With().Str("job", jobID).Logger()
	log.Info().Msg("alignment job submitted")

	if err := c.Wait(ctx, jobID); err != nil {
		return "", err
	}

	resultType := c.cfg.ResultType
	if types, err := c.ResultTypes(ctx, jobID); err != nil {
		log.Warn().Err(err).Msg("could not list result types, using configured type")
	} else if picked := pickResultType(types, resultType); picked != "" && picked != resultType {
		log.Info().Str("configured", resultType).Str("using", picked).Msg("configured result type not offered")
		resultType = picked
	}

	out, err := c.http.Text(ctx, remote.Get(c.endpoint("result", jobID, resultType)))
	if err != nil {
		return "", errors.Wrapf(err, "fetch %s result %s", c.Label(), jobID)
	}
	log.Info().Int("bytes", len(out)).Str("type", resultType).Msg("alignment fetched")
	return out, nil
}

// Submit starts a job and returns its id
func (c *Client) Submit(ctx context.Context, fasta string, title string) (string, error) {
	if title == "" {
		title = "Alignment"
	}
	form := url.Values{}
	form.Set("email", c.cfg.Email)
	form.Set("sequence", fasta)
	form.Set("title", title)

	body, err := c.http.Text(ctx, remote.PostForm(c.endpoint("run"), form))
	if err != nil {
		return "", errors.Wrapf(err, "submit %s job", c.Label())
	}
	jobID := strings.TrimSpace(body)
	if jobID == "" || strings.ContainsAny(jobID, " \n<") {
		return "", errors.ExternalServiceError("ebi", fmt.Errorf("unexpected job id response %q", truncate(jobID, 80)))
	}
	return jobID, nil
}

// Wait polls the job status until FINISHED. ERROR, FAILURE and NOT_FOUND end
// polling with an error.
func (c *Client) Wait(ctx context.Context, jobID string) error {
	policy := poll.Fixed(c.cfg.PollInterval, c.cfg.Timeout, c.cfg.MaxPolls)
	policy.OnWait = func(attempt int, next time.Duration) {
		c.log.Debug().Str("job", jobID).Int("attempt", attempt).Dur("next", next).Msg("alignment job running")
	}
	err := poll.Until(ctx, policy, func(ctx context.Context) (bool, error) {
		body, err := c.http.Text(ctx, remote.Get(c.endpoint("status", jobID)))
		if err != nil {
			return false, err
		}
		switch status := strings.TrimSpace(body); status {
		case "FINISHED":
			return true, nil
		case "RUNNING", "QUEUED", "PENDING":
			return false, nil
		case "ERROR", "FAILURE", "NOT_FOUND":
			return false, errors.ExternalServiceError("ebi", fmt.Errorf("%s job %s ended with status %s", c.Label(), jobID, status))
		default:
			return false, errors.ExternalServiceError("ebi", fmt.Errorf("%s job %s returned unknown status %q", c.Label(), jobID, truncate(status, 80)))
		}
	})
	return errors.Wrapf(err, "wait for %s job %s", c.Label(), jobID)
}

// ResultTypes lists the outputs a finished job offers
func (c *Client) ResultTypes(ctx context.Context, jobID string) ([]ResultType, error) {
	build := func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("resulttypes", jobID), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return req, nil
	}
	body, err := c.http.Text(ctx, build)
	if err != nil {
		return nil, err
	}
	if !gjson.Valid(body) {
		return nil, errors.ExternalServiceError("ebi", fmt.Errorf("result types response is not JSON"))
	}
	var types []ResultType
	gjson.Get(body, "types").ForEach(func(_, t gjson.Result) bool {
		types = append(types, ResultType{
			Identifier: t.Get("identifier").String(),
			Label:      t.Get("label").String(),
			MediaType:  t.Get("mediaType").String(),
			FileSuffix: t.Get("fileSuffix").String(),
		})
		return true
	})
	return types, nil
}

func (c *Client) endpoint(parts ...string) string {
	escaped := make([]string, 0, len(parts)+2)
	escaped = append(escaped, strings.TrimRight(c.cfg.BaseURL, "/"), c.tool)
	for _, p := range parts {
		escaped = append(escaped, url.PathEscape(p))
	}
	return strings.Join(escaped, "/")
}

// pickResultType returns want when offered, else the first aligned output
func pickResultType(types []ResultType, want string) string {
	if len(types) == 0 {
		return ""
	}
	for _, t := range types {
		if t.Identifier == want {
			return want
		}
	}
	for _, t := range types {
		if strings.HasPrefix(t.Identifier, "aln-") {
			return t.Identifier
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
