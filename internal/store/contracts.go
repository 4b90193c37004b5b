package store

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cmdrvl/tokenscout/pkg/store"
)

// UpsertContract inserts or fully replaces a contract record. The source
// fetcher overwrites the whole row on every successful fetch so the record
// always reflects the latest explorer response.
func (s *Store) UpsertContract(ctx context.Context, c *store.Contract) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "contract_address"}},
			UpdateAll: true,
		}).
		Create(c).Error
}

// GetContract returns the contract record for an address, or nil if absent.
func (s *Store) GetContract(ctx context.Context, address string) (*store.Contract, error) {
	var c store.Contract
	err := s.db.WithContext(ctx).First(&c, "contract_address = ?", address).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// FindContractsMissingSource returns addresses whose contract row exists but
// whose source came back empty. These are retried by the slow sweep; the
// explorer may simply not have indexed the contract yet.
func (s *Store) FindContractsMissingSource(ctx context.Context) ([]string, error) {
	var addrs []string
	err := s.db.WithContext(ctx).
		Model(&store.Contract{}).
		Select("contract_address").
		Where("source_code = ''").
		Scan(&addrs).Error
	return addrs, err
}

// FindContractsWithSource returns contract records whose source payload is
// present, for the link extractor and contract classifier.
func (s *Store) FindContractsWithSource(ctx context.Context) ([]store.Contract, error) {
	var out []store.Contract
	err := s.db.WithContext(ctx).
		Where("source_code <> ''").
		Find(&out).Error
	return out, err
}

// FindUnverifiedContracts returns contracts with source whose token has no
// contract verdict yet. Writing the verdict removes the row from this set.
func (s *Store) FindUnverifiedContracts(ctx context.Context) ([]store.Contract, error) {
	var out []store.Contract
	err := s.db.WithContext(ctx).
		Table("contracts").
		Select("contracts.*").
		Joins("JOIN tokens ON tokens.contract_address = contracts.contract_address").
		Where("contracts.source_code <> ''").
		Where("tokens.contract_verdict IS NULL").
		Scan(&out).Error
	return out, err
}
