package trail

import (
	"errors"
	"fmt"
)

// Error classes surfaced by the engine. Every failure wraps exactly one of
// these, so callers classify with errors.Is and never inspect messages.
var (
	ErrNotFound            = errors.New("trail engine: not found")
	ErrInvalidArgument     = errors.New("trail engine: invalid argument")
	ErrUnauthorized        = errors.New("trail engine: unauthorized")
	ErrNotMintable         = errors.New("trail engine: not mintable")
	ErrInsufficientPayment = errors.New("trail engine: insufficient payment")
	ErrConflict            = errors.New("trail engine: state conflict")
)

var (
	errNilState     = errors.New("trail engine: state not configured")
	errParamsNotSet = errors.New("trail engine: ledger params not initialised")

	ErrSeriesNotFound = fmt.Errorf("%w: series does not exist", ErrNotFound)
	ErrCopyNotFound   = fmt.Errorf("%w: trail copy does not exist", ErrNotFound)

	ErrNoTickets         = fmt.Errorf("%w: at least one ticket is required per series", ErrInvalidArgument)
	ErrNoResources       = fmt.Errorf("%w: at least one resource is required per series", ErrInvalidArgument)
	ErrPriceTooHigh      = fmt.Errorf("%w: price exceeds the unit ceiling", ErrInvalidArgument)
	ErrInvalidWindow     = fmt.Errorf("%w: expiry must be later than the start date", ErrInvalidArgument)
	ErrSelfTransfer      = fmt.Errorf("%w: sender and receiver are the same account", ErrInvalidArgument)
	ErrExcessPayment     = fmt.Errorf("%w: attached payment exceeds the sale price", ErrInvalidArgument)
	ErrEmptyAccount      = fmt.Errorf("%w: account id required", ErrInvalidArgument)
	ErrReservedDelimiter = fmt.Errorf("%w: identifier contains the reserved delimiter", ErrInvalidArgument)

	ErrNotCreator       = fmt.Errorf("%w: only the series creator can mint directly", ErrUnauthorized)
	ErrNotOwner         = fmt.Errorf("%w: caller does not own the trail copy", ErrUnauthorized)
	ErrNotContractOwner = fmt.Errorf("%w: caller is not the contract owner", ErrUnauthorized)
	ErrNotSubAdmin      = fmt.Errorf("%w: caller is not the configured sub-admin", ErrUnauthorized)
	ErrNotToggler       = fmt.Errorf("%w: only the series creator or the sub-admin can toggle minting", ErrUnauthorized)

	ErrMintingDisabled = fmt.Errorf("%w: series minting disabled", ErrNotMintable)
	ErrSupplyExhausted = fmt.Errorf("%w: no more minting allowed", ErrNotMintable)
	ErrOutsideWindow   = fmt.Errorf("%w: series outside its validity window", ErrNotMintable)

	ErrDuplicateSeries = fmt.Errorf("%w: duplicate series id", ErrConflict)
	ErrDuplicateCopy   = fmt.Errorf("%w: trail copy already exists", ErrConflict)
)
