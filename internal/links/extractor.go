// Package links mines social and project URLs out of verified contract
// source. Deployers habitually leave their Twitter, Telegram and website
// links in the source header comment.
package links

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	dbstore "github.com/cmdrvl/tokenscout/internal/store"
	"github.com/cmdrvl/tokenscout/pkg/store"
)

var (
	twitterRe  = regexp.MustCompile(`https?://(?:x\.com|twitter\.com)/[^\s/\\]+`)
	telegramRe = regexp.MustCompile(`https?://t\.me/[^\s\\]+`)
	anyURLRe   = regexp.MustCompile(`https?://[^\s\\]+`)
	handleRe   = regexp.MustCompile(`^https://(?:x\.com|twitter\.com)/([a-zA-Z0-9_]+)$`)
)

// denylist holds handles that appear in token source as decoration, not as
// the project's own account. Matching is by substring, so e.g. a handle
// containing "dogecoin" is dropped too.
var denylist = []string{
	"VitalikButerin",
	"elonmusk",
	"cz_binance",
	"cb_doge",
	"WhiteHouse",
	"kanyewest",
	"dogecoin",
	"DEXToolsApp",
}

// Repository is the slice of the store the extractor needs.
type Repository interface {
	FindContractsWithSource(ctx context.Context) ([]store.Contract, error)
	FillTokenLinks(ctx context.Context, address string, links dbstore.Links) error
}

// Extractor sweeps stored contract source for social links and fills the
// matching token columns that are still empty.
type Extractor struct {
	repo Repository
	log  zerolog.Logger
}

// NewExtractor returns an Extractor.
func NewExtractor(repo Repository, logger zerolog.Logger) *Extractor {
	return &Extractor{
		repo: repo,
		log:  logger.With().Str("component", "link-extractor").Logger(),
	}
}

// Run performs one extraction sweep. Filling only NULL columns makes the
// sweep idempotent, so re-scanning every contract each cycle is harmless.
func (e *Extractor) Run(ctx context.Context) error {
	contracts, err := e.repo.FindContractsWithSource(ctx)
	if err != nil {
		return err
	}
	e.log.Info().Int("contracts", len(contracts)).Msg("link extraction sweep")

	for _, c := range contracts {
		if err := ctx.Err(); err != nil {
			return err
		}
		links := Extract(UnwrapSource(c.SourceCode))
		if err := e.repo.FillTokenLinks(ctx, c.ContractAddress, links); err != nil {
			e.log.Warn().Err(err).Str("contract", c.ContractAddress).Msg("link update failed")
		}
	}
	return nil
}

// UnwrapSource handles standard-JSON verified source, where the actual code
// sits under sources.<path>.content. Plain source passes through unchanged.
func UnwrapSource(raw string) string {
	trimmed := strings.TrimSpace(raw)
	// The explorer wraps standard-JSON payloads in an extra brace pair.
	if strings.HasPrefix(trimmed, "{{") && strings.HasSuffix(trimmed, "}}") {
		trimmed = trimmed[1 : len(trimmed)-1]
	}
	if !strings.HasPrefix(trimmed, "{") {
		return raw
	}
	var payload struct {
		Sources map[string]struct {
			Content string `json:"content"`
		} `json:"sources"`
	}
	if err := json.Unmarshal([]byte(trimmed), &payload); err != nil || len(payload.Sources) == 0 {
		return raw
	}
	var b strings.Builder
	for _, s := range payload.Sources {
		b.WriteString(s.Content)
		b.WriteByte('\n')
	}
	return b.String()
}

// Extract pulls twitter, telegram and website links out of source text.
// The website is the first URL that is neither the twitter nor the telegram
// match. Denylisted twitter handles are dropped entirely.
func Extract(source string) dbstore.Links {
	var links dbstore.Links

	twitter := cleanURL(twitterRe.FindString(source))
	telegram := cleanURL(telegramRe.FindString(source))

	if twitter != "" && !denied(twitter) {
		links.TwitterURL = &twitter
		if m := handleRe.FindStringSubmatch(twitter); m != nil {
			handle := m[1]
			links.TwitterHandle = &handle
		}
	}
	if telegram != "" {
		links.TelegramURL = &telegram
	}

	for _, raw := range anyURLRe.FindAllString(source, -1) {
		u := cleanURL(raw)
		if u == "" || u == twitter || u == telegram {
			continue
		}
		links.WebsiteURL = &u
		break
	}
	return links
}

// cleanURL strips trailing escape characters and truncates at the first
// fragment or bracket, which in source text mark the end of the link.
func cleanURL(url string) string {
	url = strings.TrimSpace(url)
	url = strings.TrimRight(url, "\\\r\n")
	if i := strings.IndexAny(url, "#[]()"); i >= 0 {
		url = url[:i]
	}
	return url
}

func denied(url string) bool {
	for _, handle := range denylist {
		if strings.Contains(url, handle) {
			return true
		}
	}
	return false
}
