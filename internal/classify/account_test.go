package classify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/cmdrvl/tokenscout/pkg/store"
)

func accountI64Ptr(v int64) *int64 { return &v }

type fakeAccountRepo struct {
	accounts []store.TwitterUser
	tweets   map[int64][]store.Tweet
	verdicts map[string]store.Verdict
}

func (f *fakeAccountRepo) FindUnverifiedAccounts(ctx context.Context) ([]store.TwitterUser, error) {
	return f.accounts, nil
}

func (f *fakeAccountRepo) TweetsByUser(ctx context.Context, userID int64) ([]store.Tweet, error) {
	return f.tweets[userID], nil
}

func (f *fakeAccountRepo) SetTwitterVerdictByUser(ctx context.Context, username string, v store.Verdict) error {
	if f.verdicts == nil {
		f.verdicts = map[string]store.Verdict{}
	}
	f.verdicts[username] = v
	return nil
}

func TestAccountClassifierEmptyHistoryIsScam(t *testing.T) {
	repo := &fakeAccountRepo{
		accounts: []store.TwitterUser{
			{Username: "silent_launch", UserID: accountI64Ptr(2000000000000000001)},
			{Username: "never_resolved"},
		},
	}
	provider := &fakeProvider{}

	c := NewAccountClassifier(repo, provider, zerolog.Nop())
	require.NoError(t, c.Run(context.Background()))

	// Neither account has history; both are scams without a model call.
	require.Zero(t, provider.calls)
	require.Equal(t, store.VerdictScam, repo.verdicts["silent_launch"])
	require.Equal(t, store.VerdictScam, repo.verdicts["never_resolved"])
}

func TestAccountClassifierWithHistory(t *testing.T) {
	userID := int64(2000000000000000002)
	repo := &fakeAccountRepo{
		accounts: []store.TwitterUser{
			{Username: "gamechain", UserID: accountI64Ptr(userID)},
		},
		tweets: map[int64][]store.Tweet{
			userID: {
				{TweetID: "1", UserID: userID, FullText: "Partnered with a studio!", PostedAt: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)},
				{TweetID: "2", UserID: userID, FullText: "Audit complete.", PostedAt: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)},
			},
		},
	}
	provider := &fakeProvider{
		completions: []string{
			"```json\n" + `{"token_name":"gamechain","is_scam":0,"confidence":0.9,"reasoning":"consistent history"}` + "\n```",
		},
	}

	c := NewAccountClassifier(repo, provider, zerolog.Nop())
	require.NoError(t, c.Run(context.Background()))

	require.Equal(t, 1, provider.calls)
	require.Equal(t, store.VerdictNotScam, repo.verdicts["gamechain"])
	require.Contains(t, provider.prompts[0], "gamechain")
	require.Contains(t, provider.prompts[0], "Audit complete.")
}

func TestAccountClassifierScamVerdict(t *testing.T) {
	userID := int64(2000000000000000003)
	repo := &fakeAccountRepo{
		accounts: []store.TwitterUser{
			{Username: "muskmoon", UserID: accountI64Ptr(userID)},
		},
		tweets: map[int64][]store.Tweet{
			userID: {
				{TweetID: "1", UserID: userID, FullText: "TO THE MOON!", PostedAt: time.Now()},
			},
		},
	}
	provider := &fakeProvider{
		completions: []string{`{"token_name":"muskmoon","is_scam":1,"confidence":0.95,"reasoning":"pure hype"}`},
	}

	c := NewAccountClassifier(repo, provider, zerolog.Nop())
	require.NoError(t, c.Run(context.Background()))
	require.Equal(t, store.VerdictScam, repo.verdicts["muskmoon"])
}

func TestAccountClassifierUnparseableWritesNothing(t *testing.T) {
	userID := int64(2000000000000000004)
	repo := &fakeAccountRepo{
		accounts: []store.TwitterUser{
			{Username: "retry_me", UserID: accountI64Ptr(userID)},
		},
		tweets: map[int64][]store.Tweet{
			userID: {{TweetID: "1", UserID: userID, FullText: "gm", PostedAt: time.Now()}},
		},
	}
	provider := &fakeProvider{completions: []string{"no json here"}}

	c := NewAccountClassifier(repo, provider, zerolog.Nop())
	require.NoError(t, c.Run(context.Background()))
	require.Empty(t, repo.verdicts)
}

func TestHistoryDigest(t *testing.T) {
	userID := int64(2000000000000000005)
	tweets := []store.Tweet{
		{TweetID: "1", UserID: userID, FullText: "morning post", PostedAt: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)},
		{TweetID: "2", UserID: userID, FullText: "evening post", PostedAt: time.Date(2026, 3, 10, 21, 0, 0, 0, time.UTC)},
		{TweetID: "3", UserID: userID, FullText: "next day", PostedAt: time.Date(2026, 3, 11, 12, 0, 0, 0, time.UTC)},
	}

	digest := historyDigest(tweets)

	var decoded map[string]string
	require.NoError(t, json.Unmarshal([]byte(digest), &decoded))
	require.Len(t, decoded, 2)
	// Tweets arrive oldest first, so the later post wins the day key.
	require.Equal(t, "evening post", decoded["2026-03-10"])
	require.Equal(t, "next day", decoded["2026-03-11"])
}
