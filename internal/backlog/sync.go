package backlog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

const apiBase = "https://api.github.com"

// Syncer mirrors backlog items to GitHub issues. Sync is idempotent: items
// are matched to issues by the "[BL-<id>]" title prefix.
type Syncer struct {
	client *resty.Client
	owner  string
	repo   string
	logger zerolog.Logger
}

func NewSyncer(owner, repo, token string, logger zerolog.Logger) (*Syncer, error) {
	if owner == "" || repo == "" || token == "" {
		return nil, fmt.Errorf("github owner, repo and token are required")
	}
	client := resty.New().
		SetBaseURL(apiBase).
		SetAuthToken(token).
		SetHeader("Accept", "application/vnd.github+json").
		SetTimeout(30 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(2 * time.Second)
	return &Syncer{client: client, owner: owner, repo: repo, logger: logger}, nil
}

type issue struct {
	Number int      `json:"number"`
	Title  string   `json:"title"`
	Body   string   `json:"body"`
	State  string   `json:"state"`
	Labels []string `json:"-"`

	RawLabels []struct {
		Name string `json:"name"`
	} `json:"labels,omitempty"`
}

type issuePayload struct {
	Title  string   `json:"title"`
	Body   string   `json:"body"`
	Labels []string `json:"labels"`
	State  string   `json:"state,omitempty"`
}

// Sync pushes the backlog state to GitHub: creates missing issues, updates
// drifted ones and closes or reopens to match the CSV status.
func (s *Syncer) Sync(ctx context.Context, items []Item) error {
	existing, err := s.listIssues(ctx)
	if err != nil {
		return err
	}

	byPrefix := make(map[string]issue, len(existing))
	for _, is := range existing {
		if strings.HasPrefix(is.Title, "[BL-") {
			if end := strings.Index(is.Title, "]"); end > 0 {
				byPrefix[is.Title[:end+1]] = is
			}
		}
	}

	for _, item := range items {
		found, ok := byPrefix[item.titlePrefix()]
		if !ok {
			if err := s.createIssue(ctx, item); err != nil {
				return err
			}
			continue
		}
		if err := s.updateIssue(ctx, found, item); err != nil {
			return err
		}
	}
	return nil
}

func (s *Syncer) issuesPath() string {
	return fmt.Sprintf("/repos/%s/%s/issues", s.owner, s.repo)
}

func (s *Syncer) listIssues(ctx context.Context) ([]issue, error) {
	var all []issue
	for page := 1; ; page++ {
		var batch []issue
		resp, err := s.client.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"state":    "all",
				"per_page": "100",
				"page":     fmt.Sprint(page),
			}).
			SetResult(&batch).
			Get(s.issuesPath())
		if err != nil {
			return nil, fmt.Errorf("list issues: %w", err)
		}
		if resp.IsError() {
			return nil, fmt.Errorf("list issues: %s: %s", resp.Status(), resp.String())
		}
		for i := range batch {
			for _, l := range batch[i].RawLabels {
				batch[i].Labels = append(batch[i].Labels, l.Name)
			}
		}
		all = append(all, batch...)
		if len(batch) < 100 {
			return all, nil
		}
	}
}

func (s *Syncer) createIssue(ctx context.Context, item Item) error {
	payload := issuePayload{Title: item.IssueTitle(), Body: item.Body, Labels: item.Labels}
	var created issue
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(payload).
		SetResult(&created).
		Post(s.issuesPath())
	if err != nil {
		return fmt.Errorf("create issue %s: %w", item.ID, err)
	}
	if resp.IsError() {
		return fmt.Errorf("create issue %s: %s: %s", item.ID, resp.Status(), resp.String())
	}
	s.logger.Info().Str("item", item.ID).Int("issue", created.Number).Msg("issue created")

	// A freshly created issue that the backlog already marks closed gets
	// closed in a second call, the create endpoint has no state field.
	if item.Status == "closed" {
		created.State = "open"
		return s.updateIssue(ctx, created, item)
	}
	return nil
}

func (s *Syncer) updateIssue(ctx context.Context, existing issue, item Item) error {
	wantTitle := item.IssueTitle()
	if existing.Title == wantTitle &&
		existing.Body == item.Body &&
		existing.State == item.Status &&
		sameLabels(existing.Labels, item.Labels) {
		return nil
	}

	payload := issuePayload{Title: wantTitle, Body: item.Body, Labels: item.Labels, State: item.Status}
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(payload).
		Patch(fmt.Sprintf("%s/%d", s.issuesPath(), existing.Number))
	if err != nil {
		return fmt.Errorf("update issue %s: %w", item.ID, err)
	}
	if resp.IsError() {
		return fmt.Errorf("update issue %s: %s: %s", item.ID, resp.Status(), resp.String())
	}
	s.logger.Info().Str("item", item.ID).Int("issue", existing.Number).Str("state", item.Status).Msg("issue updated")
	return nil
}

func sameLabels(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]bool, len(a))
	for _, l := range a {
		set[l] = true
	}
	for _, l := range b {
		if !set[l] {
			return false
		}
	}
	return true
}
