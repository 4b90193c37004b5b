package store

import (
	"context"

	"gorm.io/gorm/clause"

	"github.com/cmdrvl/tokenscout/pkg/store"
)

// InsertTwitterUser records the outcome of a resolution attempt, positive or
// negative. The insert is ignored if the username already exists, so a row
// that reached the terminal unavailable state is never resurrected.
func (s *Store) InsertTwitterUser(ctx context.Context, u *store.TwitterUser) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(u).Error
}

// GetTwitterUser returns the record for a username, or nil if never resolved.
func (s *Store) GetTwitterUser(ctx context.Context, username string) (*store.TwitterUser, error) {
	var u store.TwitterUser
	res := s.db.WithContext(ctx).Limit(1).Find(&u, "username = ?", username)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return &u, nil
}

// MarkUserUnavailable moves an account to the terminal unavailable state.
// There is deliberately no inverse operation.
func (s *Store) MarkUserUnavailable(ctx context.Context, username string) error {
	return s.db.WithContext(ctx).
		Model(&store.TwitterUser{}).
		Where("username = ?", username).
		Update("availability", store.AvailabilityUnavailable).Error
}

// AvailableUsernames returns all usernames currently in the available state,
// for the periodic liveness sweep.
func (s *Store) AvailableUsernames(ctx context.Context) ([]string, error) {
	var names []string
	err := s.db.WithContext(ctx).
		Model(&store.TwitterUser{}).
		Select("username").
		Where("availability = ?", store.AvailabilityAvailable).
		Scan(&names).Error
	return names, err
}

// CollectibleUsers returns accounts eligible for tweet collection: available,
// referenced by at least one token, and with a platform ID above the sanity
// threshold that filters out synthetic IDs.
func (s *Store) CollectibleUsers(ctx context.Context, minUserID int64) ([]store.TwitterUser, error) {
	var out []store.TwitterUser
	err := s.db.WithContext(ctx).
		Table("twitter_users").
		Select("DISTINCT twitter_users.*").
		Joins("JOIN tokens ON tokens.twitter_user = twitter_users.username").
		Where("twitter_users.availability = ?", store.AvailabilityAvailable).
		Where("twitter_users.user_id > ?", minUserID).
		Scan(&out).Error
	return out, err
}

// FindUnverifiedAccounts returns available accounts referenced by a token
// that still lacks a twitter verdict.
func (s *Store) FindUnverifiedAccounts(ctx context.Context) ([]store.TwitterUser, error) {
	var out []store.TwitterUser
	err := s.db.WithContext(ctx).
		Table("twitter_users").
		Select("DISTINCT twitter_users.*").
		Joins("JOIN tokens ON tokens.twitter_user = twitter_users.username").
		Where("twitter_users.availability = ?", store.AvailabilityAvailable).
		Where("tokens.twitter_verdict IS NULL").
		Scan(&out).Error
	return out, err
}

// InsertTweets appends tweets, silently skipping IDs already stored.
// Re-fetching the same recent window across cycles is the normal case.
//
// Returns:
//   - int64: number of rows actually inserted
//   - error: nil on success
func (s *Store) InsertTweets(ctx context.Context, tweets []store.Tweet) (int64, error) {
	if len(tweets) == 0 {
		return 0, nil
	}
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&tweets)
	return res.RowsAffected, res.Error
}

// TweetsByUser returns all stored tweets for a platform user ID, oldest
// first, for the account classifier's history digest.
func (s *Store) TweetsByUser(ctx context.Context, userID int64) ([]store.Tweet, error) {
	var out []store.Tweet
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("posted_at ASC").
		Find(&out).Error
	return out, err
}

// InsertOwnerTxs appends owner transaction history rows, skipping hashes
// already recorded.
func (s *Store) InsertOwnerTxs(ctx context.Context, txs []store.OwnerTx) (int64, error) {
	if len(txs) == 0 {
		return 0, nil
	}
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&txs)
	return res.RowsAffected, res.Error
}
