// Package social resolves token-linked accounts on the social platform's web
// API and collects their timelines.
package social

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ErrUserUnavailable is returned when the platform has no resolvable account
// for a handle: suspended, renamed or never existed.
var ErrUserUnavailable = errors.New("social: user unavailable")

// createdAtLayout is the platform's legacy timestamp format.
const createdAtLayout = "Mon Jan 02 15:04:05 -0700 2006"

// Credential is one authenticated browser session. Requests rotate over the
// pool at random to spread rate limits.
type Credential struct {
	Cookie    string
	Bearer    string
	CSRFToken string
}

// Config holds social API client configuration.
type Config struct {
	// UserURL is the user-by-screen-name endpoint.
	UserURL string

	// TimelineURL is the user-tweets endpoint.
	TimelineURL string

	// UserFeatures and TweetFeatures are the opaque feature-flag blobs the
	// endpoints require, passed through verbatim.
	UserFeatures  string
	TweetFeatures string

	// Credentials is the session pool.
	Credentials []Credential

	// Timeout is the per-request deadline.
	Timeout time.Duration
}

// DefaultConfig returns a Config with production defaults.
func DefaultConfig() Config {
	return Config{
		Timeout: 20 * time.Second,
	}
}

// Client queries the social platform's web API.
type Client struct {
	cfg  Config
	http *http.Client
}

// New returns a Client.
func New(cfg Config) (*Client, error) {
	if cfg.UserURL == "" || cfg.TimelineURL == "" {
		return nil, fmt.Errorf("social api urls are required")
	}
	if len(cfg.Credentials) == 0 {
		return nil, fmt.Errorf("at least one social credential is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Profile is a resolved account.
type Profile struct {
	UserID      int64
	Username    string
	Description string
	CreatedAt   *time.Time
}

// TimelineTweet is one parsed timeline entry.
type TimelineTweet struct {
	TweetID       string
	FullText      string
	FavoriteCount int64
	ViewCount     int64
	QuoteCount    int64
	ReplyCount    int64
	RetweetCount  int64
	PostedAt      time.Time
	UserName      string
	Mentions      map[string]string
}

func (c *Client) get(ctx context.Context, endpoint string, variables map[string]interface{}, features string) (json.RawMessage, error) {
	vars, err := json.Marshal(variables)
	if err != nil {
		return nil, fmt.Errorf("encoding variables: %w", err)
	}

	params := url.Values{}
	params.Set("variables", string(vars))
	if features != "" {
		params.Set("features", features)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	cred := c.cfg.Credentials[rand.Intn(len(c.cfg.Credentials))]
	req.Header.Set("Cookie", cred.Cookie)
	req.Header.Set("Authorization", "Bearer "+cred.Bearer)
	req.Header.Set("x-csrf-token", cred.CSRFToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("social request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("social api returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	return body, nil
}

// UserProfile resolves a handle to a profile. ErrUserUnavailable means the
// platform answered but the account cannot be reached; any other error is a
// transport problem and says nothing about the account.
func (c *Client) UserProfile(ctx context.Context, screenName string) (*Profile, error) {
	body, err := c.get(ctx, c.cfg.UserURL, map[string]interface{}{
		"screen_name": screenName,
	}, c.cfg.UserFeatures)
	if err != nil {
		return nil, err
	}

	var decoded struct {
		Data struct {
			User struct {
				Result struct {
					Message string `json:"message"`
					RestID  string `json:"rest_id"`
					Legacy  struct {
						CreatedAt   string `json:"created_at"`
						Description string `json:"description"`
					} `json:"legacy"`
				} `json:"result"`
			} `json:"user"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("decoding user response: %w", err)
	}

	result := decoded.Data.User.Result
	if result.RestID == "" || result.Message != "" {
		return nil, ErrUserUnavailable
	}

	userID, err := strconv.ParseInt(result.RestID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing user id %q: %w", result.RestID, err)
	}

	p := &Profile{
		UserID:      userID,
		Username:    screenName,
		Description: result.Legacy.Description,
	}
	if t, err := time.Parse(createdAtLayout, result.Legacy.CreatedAt); err == nil {
		utc := t.UTC()
		p.CreatedAt = &utc
	}
	return p, nil
}

// TimelinePage fetches one page of a user's timeline. An empty cursor means
// the first page. The returned cursor points at the next page; it is taken
// from the trailing cursor entry of the response.
func (c *Client) TimelinePage(ctx context.Context, userID int64, count int, cursor string) ([]TimelineTweet, string, error) {
	variables := map[string]interface{}{
		"userId":                                 strconv.FormatInt(userID, 10),
		"count":                                  count,
		"includePromotedContent":                 true,
		"withQuickPromoteEligibilityTweetFields": true,
		"withVoice":                              true,
		"withV2Timeline":                         true,
	}
	if cursor != "" {
		variables["cursor"] = cursor
	}

	body, err := c.get(ctx, c.cfg.TimelineURL, variables, c.cfg.TweetFeatures)
	if err != nil {
		return nil, "", err
	}
	return parseTimeline(body)
}

type timelineEntry struct {
	EntryID string `json:"entryId"`
	Content struct {
		Value       string          `json:"value"`
		ItemContent json.RawMessage `json:"itemContent"`
		Items       []struct {
			Item struct {
				ItemContent json.RawMessage `json:"itemContent"`
			} `json:"item"`
		} `json:"items"`
	} `json:"content"`
}

func parseTimeline(body []byte) ([]TimelineTweet, string, error) {
	var decoded struct {
		Data struct {
			User struct {
				Result struct {
					TimelineV2 struct {
						Timeline struct {
							Instructions []struct {
								Entries []timelineEntry `json:"entries"`
							} `json:"instructions"`
						} `json:"timeline"`
					} `json:"timeline_v2"`
				} `json:"result"`
			} `json:"user"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, "", fmt.Errorf("decoding timeline response: %w", err)
	}

	instructions := decoded.Data.User.Result.TimelineV2.Timeline.Instructions
	if len(instructions) == 0 {
		return nil, "", nil
	}
	entries := instructions[len(instructions)-1].Entries
	if len(entries) == 0 {
		return nil, "", nil
	}

	var tweets []TimelineTweet
	for _, entry := range entries {
		switch {
		case strings.Contains(entry.EntryID, "who-to-follow"):
			continue
		case strings.Contains(entry.EntryID, "profile-conversation"):
			if len(entry.Content.Items) == 0 {
				continue
			}
			if t := parseTweetItem(entry.EntryID, entry.Content.Items[0].Item.ItemContent); t != nil {
				tweets = append(tweets, *t)
			}
		case strings.Contains(entry.EntryID, "tweet"):
			if t := parseTweetItem(entry.EntryID, entry.Content.ItemContent); t != nil {
				tweets = append(tweets, *t)
			}
		}
	}

	// The last entry carries the pagination cursor.
	return tweets, entries[len(entries)-1].Content.Value, nil
}

func parseTweetItem(entryID string, itemContent json.RawMessage) *TimelineTweet {
	if len(itemContent) == 0 {
		return nil
	}
	var item struct {
		TweetResults struct {
			Result struct {
				Legacy *struct {
					FullText      string `json:"full_text"`
					FavoriteCount int64  `json:"favorite_count"`
					QuoteCount    int64  `json:"quote_count"`
					ReplyCount    int64  `json:"reply_count"`
					RetweetCount  int64  `json:"retweet_count"`
					CreatedAt     string `json:"created_at"`
					Entities      struct {
						UserMentions []struct {
							ScreenName string `json:"screen_name"`
							Name       string `json:"name"`
						} `json:"user_mentions"`
					} `json:"entities"`
				} `json:"legacy"`
				Views struct {
					Count string `json:"count"`
				} `json:"views"`
				Core *struct {
					UserResults struct {
						Result struct {
							Legacy struct {
								Name string `json:"name"`
							} `json:"legacy"`
						} `json:"result"`
					} `json:"user_results"`
				} `json:"core"`
			} `json:"result"`
		} `json:"tweet_results"`
	}
	if err := json.Unmarshal(itemContent, &item); err != nil {
		return nil
	}

	result := item.TweetResults.Result
	if result.Legacy == nil || result.Core == nil {
		return nil
	}

	postedAt, err := time.Parse(createdAtLayout, result.Legacy.CreatedAt)
	if err != nil {
		return nil
	}

	mentions := make(map[string]string, len(result.Legacy.Entities.UserMentions))
	for _, m := range result.Legacy.Entities.UserMentions {
		mentions[m.ScreenName] = m.Name
	}

	views, _ := strconv.ParseInt(result.Views.Count, 10, 64)

	return &TimelineTweet{
		TweetID:       entryID,
		FullText:      result.Legacy.FullText,
		FavoriteCount: result.Legacy.FavoriteCount,
		ViewCount:     views,
		QuoteCount:    result.Legacy.QuoteCount,
		ReplyCount:    result.Legacy.ReplyCount,
		RetweetCount:  result.Legacy.RetweetCount,
		PostedAt:      postedAt.UTC(),
		UserName:      result.Core.UserResults.Result.Legacy.Name,
		Mentions:      mentions,
	}
}
