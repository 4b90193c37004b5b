// Package store defines the persisted record types shared by all collectors.
//
// A NULL column is the only "not yet processed" sentinel: collectors discover
// work by selecting rows whose target field is still NULL and remove rows from
// their queue by filling that field. Non-null fields are never reset to NULL.
package store

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Verdict is a binary scam classification written by a classifier.
type Verdict int16

const (
	VerdictNotScam Verdict = 0
	VerdictScam    Verdict = 1
)

// Availability is the resolution state of a social account.
// Unavailable is terminal: a liveness re-check never moves an account back.
type Availability string

const (
	AvailabilityUnknown     Availability = "unknown"
	AvailabilityAvailable   Availability = "available"
	AvailabilityUnavailable Availability = "unavailable"
)

// Token is an ERC20 token discovered on chain, enriched incrementally by
// every collector. Created once by the chain monitor, never deleted.
type Token struct {
	ContractAddress string `gorm:"primaryKey;type:varchar(42)"`
	PairAddress     *string `gorm:"type:varchar(42)"`
	Owner           *string `gorm:"type:varchar(42)"`
	Creator         *string `gorm:"type:varchar(42)"`
	Name            string  `gorm:"not null"`
	Symbol          string  `gorm:"not null"`
	TotalSupply     string  `gorm:"type:numeric(78)"` // uint256 max is 78 digits
	Decimals        uint8
	CreatedBlock    uint64 `gorm:"index"`

	// Social links: fill-if-null only, shared between the audit fetcher and
	// the link extractor.
	TwitterURL  *string
	TwitterUser *string `gorm:"index"`
	WebsiteURL  *string
	TelegramURL *string

	// Audit signals: always overwritten with the latest external audit.
	IsOpenSource       *bool
	IsHoneypot         *bool
	IsMintable         *bool
	IsProxy            *bool
	SlippageModifiable *bool
	IsBlacklisted      *bool
	IsRenounced        *bool
	IsPotentialScam    *bool
	TransferPausable   *bool
	MinBuyTax          *float64
	MaxBuyTax          *float64
	MinSellTax         *float64
	MaxSellTax         *float64
	Warnings           *string

	CreationTime *time.Time
	FirstSwapAt  *time.Time
	Locks        datatypes.JSON

	// Verdict sentinels: NULL until the matching classifier has run.
	ContractVerdict *Verdict `gorm:"type:smallint"`
	TwitterVerdict  *Verdict `gorm:"type:smallint"`

	FetchedAt time.Time
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// TableName returns the table name for Token.
func (Token) TableName() string {
	return "tokens"
}

// BeforeCreate sets the fetch timestamp if not already set.
func (t *Token) BeforeCreate(tx *gorm.DB) error {
	if t.FetchedAt.IsZero() {
		t.FetchedAt = time.Now().UTC()
	}
	return nil
}

// Contract holds a token's verified source payload and compiler settings as
// returned by the block explorer. Written only by the source fetcher; every
// successful fetch replaces the whole row.
type Contract struct {
	ContractAddress  string `gorm:"primaryKey;type:varchar(42)"`
	SourceCode       string `gorm:"type:text"`
	CompilerVersion  string
	OptimizationUsed string
	Runs             string
	EVMVersion       string
	Library          string
	LicenseType      string
	Proxy            string
	Implementation   string `gorm:"type:varchar(42)"`
	SwarmSource      string
	FetchedAt        time.Time
}

// TableName returns the table name for Contract.
func (Contract) TableName() string {
	return "contracts"
}

// TwitterUser is a social account referenced by at least one token. A row is
// created on the first resolution attempt, including negative resolutions.
type TwitterUser struct {
	Username         string `gorm:"primaryKey;type:varchar(64)"`
	UserID           *int64 `gorm:"index"`
	Description      *string
	ProfileCreatedAt *time.Time
	Availability     Availability `gorm:"type:varchar(16);not null;default:unknown"`
	CreatedAt        time.Time    `gorm:"autoCreateTime"`
	UpdatedAt        time.Time    `gorm:"autoUpdateTime"`
}

// TableName returns the table name for TwitterUser.
func (TwitterUser) TableName() string {
	return "twitter_users"
}

// Tweet is a single post collected from an account's timeline. Append-only;
// a tweet ID is inserted at most once.
type Tweet struct {
	TweetID       string `gorm:"primaryKey;type:varchar(64)"`
	UserID        int64  `gorm:"index;not null"`
	FullText      string `gorm:"type:text"`
	FavoriteCount int64
	ViewCount     int64
	QuoteCount    int64
	ReplyCount    int64
	RetweetCount  int64
	PostedAt      time.Time `gorm:"index"`
	UserName      string
	Mentions      datatypes.JSON
	CreatedAt     time.Time `gorm:"autoCreateTime"`
}

// TableName returns the table name for Tweet.
func (Tweet) TableName() string {
	return "tweets"
}

// OwnerTx is one transaction from a token owner's history as reported by the
// block explorer. Append-only; primary key is the transaction hash.
type OwnerTx struct {
	Hash              string `gorm:"primaryKey;type:varchar(66)"`
	Owner             string `gorm:"index;type:varchar(42);not null"`
	BlockNumber       uint64 `gorm:"index"`
	BlockHash         string `gorm:"type:varchar(66)"`
	Timestamp         time.Time
	Nonce             uint64
	TxIndex           uint
	From              string `gorm:"type:varchar(42)"`
	To                string `gorm:"type:varchar(42)"`
	Value             string `gorm:"type:numeric(78)"`
	Gas               uint64
	GasPrice          string `gorm:"type:numeric(78)"`
	GasUsed           uint64
	CumulativeGasUsed uint64
	Input             string `gorm:"type:text"`
	MethodID          string `gorm:"type:varchar(10)"`
	FunctionName      string
	ContractAddress   string `gorm:"type:varchar(42)"`
	Confirmations     uint64
	Failed            bool
}

// TableName returns the table name for OwnerTx.
func (OwnerTx) TableName() string {
	return "owner_txs"
}
