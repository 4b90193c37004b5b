package social

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"github.com/cmdrvl/tokenscout/pkg/store"
)

// MinPlatformUserID filters out accounts with implausibly small platform
// IDs, which show up when a handle resolves to a legacy or placeholder
// account rather than a real one.
const MinPlatformUserID = int64(1000000000000000000)

// Repository is the slice of the store the collector needs.
type Repository interface {
	NewTwitterUsernames(ctx context.Context) ([]string, error)
	InsertTwitterUser(ctx context.Context, u *store.TwitterUser) error
	MarkUserUnavailable(ctx context.Context, username string) error
	AvailableUsernames(ctx context.Context) ([]string, error)
	CollectibleUsers(ctx context.Context, minUserID int64) ([]store.TwitterUser, error)
	InsertTweets(ctx context.Context, tweets []store.Tweet) (int64, error)
}

// CollectorConfig holds collector tuning.
type CollectorConfig struct {
	// PacingDelay is the pause between per-user API calls within a sweep.
	PacingDelay time.Duration

	// LatestCount is the page size for the recent-tweets sweep.
	LatestCount int

	// BackfillMax caps how deep the one-time history backfill goes.
	BackfillMax int

	// Workers bounds the concurrent timeline fetches.
	Workers int
}

// DefaultCollectorConfig returns a CollectorConfig with production defaults.
func DefaultCollectorConfig() CollectorConfig {
	return CollectorConfig{
		PacingDelay: 5 * time.Second,
		LatestCount: 30,
		BackfillMax: 600,
		Workers:     4,
	}
}

// Collector runs the social sweeps: resolving newly referenced handles,
// re-checking liveness of resolved accounts and pulling timelines.
type Collector struct {
	repo   Repository
	client *Client
	cfg    CollectorConfig
	log    zerolog.Logger
}

// NewCollector returns a Collector.
func NewCollector(repo Repository, client *Client, cfg CollectorConfig, logger zerolog.Logger) *Collector {
	def := DefaultCollectorConfig()
	if cfg.PacingDelay == 0 {
		cfg.PacingDelay = def.PacingDelay
	}
	if cfg.LatestCount == 0 {
		cfg.LatestCount = def.LatestCount
	}
	if cfg.BackfillMax == 0 {
		cfg.BackfillMax = def.BackfillMax
	}
	if cfg.Workers == 0 {
		cfg.Workers = def.Workers
	}
	return &Collector{
		repo:   repo,
		client: client,
		cfg:    cfg,
		log:    logger.With().Str("component", "social-collector").Logger(),
	}
}

// Discover resolves handles referenced by tokens that have no account row
// yet. Both outcomes are recorded: a resolved profile and a dead handle. A
// transport failure records nothing, leaving the handle for the next sweep.
func (c *Collector) Discover(ctx context.Context) error {
	names, err := c.repo.NewTwitterUsernames(ctx)
	if err != nil {
		return err
	}
	c.log.Info().Int("handles", len(names)).Msg("account discovery sweep")

	for _, name := range names {
		profile, err := c.client.UserProfile(ctx, name)
		switch {
		case errors.Is(err, ErrUserUnavailable):
			row := &store.TwitterUser{
				Username:     name,
				Availability: store.AvailabilityUnavailable,
			}
			if err := c.repo.InsertTwitterUser(ctx, row); err != nil {
				c.log.Warn().Err(err).Str("handle", name).Msg("user insert failed")
			}
		case err != nil:
			c.log.Warn().Err(err).Str("handle", name).Msg("user resolution failed")
		default:
			row := &store.TwitterUser{
				Username:         name,
				UserID:           &profile.UserID,
				Description:      &profile.Description,
				ProfileCreatedAt: profile.CreatedAt,
				Availability:     store.AvailabilityAvailable,
			}
			if err := c.repo.InsertTwitterUser(ctx, row); err != nil {
				c.log.Warn().Err(err).Str("handle", name).Msg("user insert failed")
			}
		}
		if err := c.pace(ctx); err != nil {
			return err
		}
	}
	return nil
}

// CheckAvailability re-probes every available account and demotes dead ones.
// The demotion is one-way: an account that later reappears stays
// unavailable.
func (c *Collector) CheckAvailability(ctx context.Context) error {
	names, err := c.repo.AvailableUsernames(ctx)
	if err != nil {
		return err
	}
	c.log.Info().Int("accounts", len(names)).Msg("availability sweep")

	for _, name := range names {
		_, err := c.client.UserProfile(ctx, name)
		if errors.Is(err, ErrUserUnavailable) {
			if err := c.repo.MarkUserUnavailable(ctx, name); err != nil {
				c.log.Warn().Err(err).Str("handle", name).Msg("demotion failed")
			} else {
				c.log.Info().Str("handle", name).Msg("account went unavailable")
			}
		} else if err != nil {
			c.log.Warn().Err(err).Str("handle", name).Msg("availability check failed")
		}
		if err := c.pace(ctx); err != nil {
			return err
		}
	}
	return nil
}

// FetchLatest pulls one recent page per collectible account, fanning the
// fetches out over a bounded pool. Duplicate tweet IDs across cycles are
// absorbed by the store.
func (c *Collector) FetchLatest(ctx context.Context) error {
	users, err := c.repo.CollectibleUsers(ctx, MinPlatformUserID)
	if err != nil {
		return err
	}
	c.log.Info().Int("accounts", len(users)).Msg("timeline sweep")

	pool := pond.NewPool(c.cfg.Workers, pond.WithContext(ctx))
	for _, user := range users {
		u := user
		pool.Submit(func() {
			c.fetchUserPage(ctx, u)
		})
	}
	pool.StopAndWait()
	return ctx.Err()
}

func (c *Collector) fetchUserPage(ctx context.Context, user store.TwitterUser) {
	if user.UserID == nil {
		return
	}
	tweets, _, err := c.client.TimelinePage(ctx, *user.UserID, c.cfg.LatestCount, "")
	if err != nil {
		c.log.Warn().Err(err).Str("handle", user.Username).Msg("timeline fetch failed")
		return
	}
	inserted, err := c.repo.InsertTweets(ctx, toStoreTweets(*user.UserID, tweets))
	if err != nil {
		c.log.Warn().Err(err).Str("handle", user.Username).Msg("tweet insert failed")
		return
	}
	c.log.Debug().Str("handle", user.Username).Int64("new", inserted).Msg("timeline stored")
}

// Backfill walks an account's timeline as deep as the API allows, up to
// BackfillMax tweets. Pagination stops early when a page comes back nearly
// empty, which is how the API signals the end of the reachable history.
// Long pauses every few pages keep the session pool under the rate limits.
func (c *Collector) Backfill(ctx context.Context, user store.TwitterUser) error {
	if user.UserID == nil {
		return nil
	}

	tweets, cursor, err := c.client.TimelinePage(ctx, *user.UserID, 30, "")
	if err != nil {
		return err
	}
	total := len(tweets)
	if _, err := c.repo.InsertTweets(ctx, toStoreTweets(*user.UserID, tweets)); err != nil {
		return err
	}

	pages := (c.cfg.BackfillMax + 19) / 20
	for page := 1; page < pages; page++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		pageTweets, next, err := c.client.TimelinePage(ctx, *user.UserID, 30, cursor)
		if err != nil {
			return err
		}
		// A page with fewer than 5 entries is the cursor-only tail.
		if len(pageTweets) < 5 {
			break
		}
		cursor = next
		total += len(pageTweets)
		if _, err := c.repo.InsertTweets(ctx, toStoreTweets(*user.UserID, pageTweets)); err != nil {
			return err
		}

		if page%10 == 0 {
			if err := sleepCtx(ctx, time.Minute); err != nil {
				return err
			}
		} else if page%5 == 0 {
			if err := sleepCtx(ctx, 5*time.Second); err != nil {
				return err
			}
		}
	}

	c.log.Info().Str("handle", user.Username).Int("tweets", total).Msg("backfill complete")
	return nil
}

func (c *Collector) pace(ctx context.Context) error {
	return sleepCtx(ctx, c.cfg.PacingDelay)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func toStoreTweets(userID int64, tweets []TimelineTweet) []store.Tweet {
	out := make([]store.Tweet, 0, len(tweets))
	for _, t := range tweets {
		mentions, _ := json.Marshal(t.Mentions)
		out = append(out, store.Tweet{
			TweetID:       t.TweetID,
			UserID:        userID,
			FullText:      t.FullText,
			FavoriteCount: t.FavoriteCount,
			ViewCount:     t.ViewCount,
			QuoteCount:    t.QuoteCount,
			ReplyCount:    t.ReplyCount,
			RetweetCount:  t.RetweetCount,
			PostedAt:      t.PostedAt,
			UserName:      t.UserName,
			Mentions:      datatypes.JSON(mentions),
		})
	}
	return out
}
