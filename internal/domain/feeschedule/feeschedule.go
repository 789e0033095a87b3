// Package feeschedule maps (tier, fee type) pairs to the amount owed and
// whether the fee is mandatory for activation.
//
// A Schedule is built once at startup from a Table and validated there, so
// lookups never fail on an inconsistent table. A Schedule is immutable and
// safe for concurrent use.
package feeschedule

import (
	"errors"
	"fmt"

	"github.com/dalemusser/memberhub/internal/domain/models"
)

// Entry is one line of the schedule. Amount is in minor currency units.
type Entry struct {
	Amount    int64
	Mandatory bool
}

// Table is the raw schedule: tier -> fee type -> entry. A fee type missing
// from a tier's map is not offered to that tier.
type Table map[models.Tier]map[models.FeeType]Entry

// DefaultCurrency is used when no currency is configured.
const DefaultCurrency = "INR"

// DefaultTable returns the standard schedule.
func DefaultTable() Table {
	return Table{
		models.TierCore: {
			models.FeeRegistration:       {Amount: 2_500_000, Mandatory: true},
			models.FeeAnnual:             {Amount: 1_000_000, Mandatory: true},
			models.FeeCommunityLaunching: {Amount: 500_000},
			models.FeeMeeting:            {Amount: 200_000},
		},
		models.TierFlagship: {
			models.FeeRegistration: {Amount: 1_000_000, Mandatory: true},
			models.FeeAnnual:       {Amount: 500_000, Mandatory: true},
			models.FeeMeeting:      {Amount: 100_000},
		},
		models.TierIndustria: {
			models.FeeRegistration: {Amount: 500_000, Mandatory: true},
			models.FeeAnnual:       {Amount: 250_000, Mandatory: true},
			models.FeeMeeting:      {Amount: 100_000},
		},
		models.TierDigital: {
			models.FeeRegistration: {Amount: 0, Mandatory: true},
		},
	}
}

// Schedule is a validated fee table.
type Schedule struct {
	currency string
	table    Table
}

var (
	errNoCurrency = errors.New("fee schedule: currency is required")
)

// New validates t and returns a Schedule holding a private copy of it.
//
// Every known tier must be present, every fee type must be known, amounts
// must not be negative, and the registration fee must be offered and
// mandatory for every tier.
func New(currency string, t Table) (*Schedule, error) {
	if currency == "" {
		return nil, errNoCurrency
	}
	cp := make(Table, len(t))
	for tier, fees := range t {
		if !tier.Valid() {
			return nil, fmt.Errorf("fee schedule: unknown tier %q", tier)
		}
		row := make(map[models.FeeType]Entry, len(fees))
		for ft, e := range fees {
			if !ft.Valid() {
				return nil, fmt.Errorf("fee schedule: tier %s: unknown fee type %q", tier, ft)
			}
			if e.Amount < 0 {
				return nil, fmt.Errorf("fee schedule: tier %s: %s amount is negative", tier, ft)
			}
			row[ft] = e
		}
		cp[tier] = row
	}
	for _, tier := range models.Tiers() {
		row, ok := cp[tier]
		if !ok {
			return nil, fmt.Errorf("fee schedule: tier %s has no fees", tier)
		}
		reg, ok := row[models.FeeRegistration]
		if !ok || !reg.Mandatory {
			return nil, fmt.Errorf("fee schedule: tier %s must have a mandatory registration fee", tier)
		}
	}
	return &Schedule{currency: currency, table: cp}, nil
}

// MustNew is New for package-level and startup use. It panics on an invalid table.
func MustNew(currency string, t Table) *Schedule {
	s, err := New(currency, t)
	if err != nil {
		panic(err)
	}
	return s
}

// Default returns the standard schedule priced in currency.
func Default(currency string) *Schedule {
	if currency == "" {
		currency = DefaultCurrency
	}
	return MustNew(currency, DefaultTable())
}

// Currency returns the ISO currency code all amounts are expressed in.
func (s *Schedule) Currency() string { return s.currency }

// Amount returns the amount owed for feeType under tier. ok is false when
// the tier does not offer that fee.
func (s *Schedule) Amount(tier models.Tier, feeType models.FeeType) (amount int64, ok bool) {
	e, ok := s.table[tier][feeType]
	return e.Amount, ok
}

// IsMandatory reports whether feeType must be completed before a user of
// tier can be active.
func (s *Schedule) IsMandatory(tier models.Tier, feeType models.FeeType) bool {
	return s.table[tier][feeType].Mandatory
}

// Offers reports whether tier has feeType in its catalogue.
func (s *Schedule) Offers(tier models.Tier, feeType models.FeeType) bool {
	_, ok := s.table[tier][feeType]
	return ok
}

// Catalogue lists the fee types offered to tier in canonical order.
func (s *Schedule) Catalogue(tier models.Tier) []models.FeeType {
	var out []models.FeeType
	for _, ft := range models.FeeTypes() {
		if _, ok := s.table[tier][ft]; ok {
			out = append(out, ft)
		}
	}
	return out
}

// MandatoryFeeTypes lists the fee types that gate activation for tier.
func (s *Schedule) MandatoryFeeTypes(tier models.Tier) []models.FeeType {
	var out []models.FeeType
	for _, ft := range models.FeeTypes() {
		if e, ok := s.table[tier][ft]; ok && e.Mandatory {
			out = append(out, ft)
		}
	}
	return out
}

// RenewalFeeType is the fee reopened when a membership period ends: the
// annual fee, or the registration fee for tiers without one.
func (s *Schedule) RenewalFeeType(tier models.Tier) models.FeeType {
	if s.Offers(tier, models.FeeAnnual) {
		return models.FeeAnnual
	}
	return models.FeeRegistration
}
