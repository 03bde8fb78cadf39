package trail

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// CopyDelimiter separates the series id from the copy sequence inside a copy
// id. Series ids are generated decimal strings, but the check stays in place
// so a corrupted or externally supplied id can never produce an ambiguous
// copy id.
const CopyDelimiter = ":"

// BaseUnit is the smallest denomination multiplier for one whole unit of the
// native currency.
var BaseUnit = new(big.Int).Exp(big.NewInt(10), big.NewInt(24), nil)

// MaxPrice is the unit-price ceiling for a series. Prices at or above it are
// rejected at creation to keep the fee math well inside 128-bit range.
var MaxPrice = new(big.Int).Mul(big.NewInt(1_000_000_000), BaseUnit)

// Resource describes one media asset attached to a series.
type Resource struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Media       string `json:"media"`
	Extra       string `json:"extra"`
	Reference   string `json:"reference"`
}

// SeriesMetadata is the creator-supplied display and validity information for
// a series. StartsAt and ExpiresAt are unix milliseconds; zero means unset.
type SeriesMetadata struct {
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	TicketsAmount uint64     `json:"ticketsAmount"`
	Media         string     `json:"media"`
	Data          string     `json:"data"`
	Resources     []Resource `json:"resources"`
	StartsAt      uint64     `json:"startsAt"`
	ExpiresAt     uint64     `json:"expiresAt"`
	Reference     string     `json:"reference"`
}

// SeriesSupply tracks the issuance counters for a series. Circulating never
// exceeds Total.
type SeriesSupply struct {
	Total       uint64 `json:"total"`
	Circulating uint64 `json:"circulating"`
}

// Series is a creator-defined collectible template with a fixed maximum
// supply. The platform fee is computed once at creation and frozen; later
// changes to the global fee parameters only affect new series.
type Series struct {
	ID         string         `json:"id"`
	Creator    string         `json:"creator"`
	IssuedAt   uint64         `json:"issuedAt"`
	Metadata   SeriesMetadata `json:"metadata"`
	Supply     SeriesSupply   `json:"supply"`
	Price      *big.Int       `json:"price"`
	Fee        *big.Int       `json:"fee"`
	RoyaltyBps uint64         `json:"royaltyBps"`
	IsMintable bool           `json:"isMintable"`
}

// Clone returns a deep copy of the series.
func (s *Series) Clone() *Series {
	if s == nil {
		return nil
	}
	clone := *s
	if s.Price != nil {
		clone.Price = new(big.Int).Set(s.Price)
	} else {
		clone.Price = big.NewInt(0)
	}
	if s.Fee != nil {
		clone.Fee = new(big.Int).Set(s.Fee)
	} else {
		clone.Fee = big.NewInt(0)
	}
	if len(s.Metadata.Resources) > 0 {
		clone.Metadata.Resources = append([]Resource(nil), s.Metadata.Resources...)
	}
	return &clone
}

// CopySnapshot is the denormalized display snapshot frozen into a copy at
// mint time. It can go stale if the series metadata changes afterwards; that
// is accepted behaviour, display does not require a live series read.
type CopySnapshot struct {
	Title    string `json:"title"`
	Media    string `json:"media"`
	IssuedAt uint64 `json:"issuedAt"`
}

// Copy is one individually numbered unit minted from a series.
type Copy struct {
	ID       string       `json:"id"`
	Owner    string       `json:"owner"`
	SeriesID string       `json:"seriesId"`
	Snapshot CopySnapshot `json:"snapshot"`
}

// Clone returns a deep copy of the copy record.
func (c *Copy) Clone() *Copy {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// Params holds the global ledger configuration persisted alongside the
// catalog: contract owner, treasury address and the fee schedule applied to
// newly created series.
type Params struct {
	Owner      string   `json:"owner"`
	Treasury   string   `json:"treasury"`
	FeePercent uint64   `json:"feePercent"`
	MinimumFee *big.Int `json:"minimumFee"`
}

// Clone returns a deep copy of the params.
func (p *Params) Clone() *Params {
	if p == nil {
		return nil
	}
	clone := *p
	if p.MinimumFee != nil {
		clone.MinimumFee = new(big.Int).Set(p.MinimumFee)
	} else {
		clone.MinimumFee = big.NewInt(0)
	}
	return &clone
}

// SeriesView is the composed response returned from series creation and
// lookups.
type SeriesView struct {
	TokenID string  `json:"tokenId"`
	OwnerID string  `json:"ownerId"`
	Series  *Series `json:"series"`
}

// CopyView composes a copy with its series for read endpoints.
type CopyView struct {
	TokenID  string       `json:"tokenId"`
	OwnerID  string       `json:"ownerId"`
	Series   *Series      `json:"series"`
	Snapshot CopySnapshot `json:"snapshot"`
}

// CreateSeriesInput carries the caller-supplied fields for series creation.
// Creator may name another account; that override is restricted to the
// contract owner.
type CreateSeriesInput struct {
	Creator    string
	Metadata   SeriesMetadata
	Price      *big.Int
	RoyaltyBps uint64
}

// FormatCopyID composes the copy identifier for the given series and 1-based
// mint sequence.
func FormatCopyID(seriesID string, sequence uint64) string {
	return seriesID + CopyDelimiter + strconv.FormatUint(sequence, 10)
}

// ParseCopyID splits a copy id into its series id and sequence components.
func ParseCopyID(id string) (string, uint64, error) {
	idx := strings.LastIndex(id, CopyDelimiter)
	if idx <= 0 || idx == len(id)-1 {
		return "", 0, fmt.Errorf("%w: malformed copy id %q", ErrInvalidArgument, id)
	}
	seriesID := id[:idx]
	if strings.Contains(seriesID, CopyDelimiter) {
		return "", 0, ErrReservedDelimiter
	}
	sequence, err := strconv.ParseUint(id[idx+1:], 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("%w: malformed copy sequence in %q", ErrInvalidArgument, id)
	}
	return seriesID, sequence, nil
}

// ValidateIDComponent rejects empty ids and ids containing the reserved copy
// delimiter.
func ValidateIDComponent(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: identifier required", ErrInvalidArgument)
	}
	if strings.Contains(id, CopyDelimiter) {
		return ErrReservedDelimiter
	}
	return nil
}
