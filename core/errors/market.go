package errors

import (
	stderrors "errors"
	"fmt"

	"github.com/holiman/uint256"
)

// Kind groups marketplace failures so transports can map them to status codes.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindAuthorization
	KindValidation
	KindConflict
	KindNotFound
	KindFunds
	KindStateGate
)

func (k Kind) String() string {
	switch k {
	case KindAuthorization:
		return "authorization"
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindFunds:
		return "funds"
	case KindStateGate:
		return "state_gate"
	default:
		return "unknown"
	}
}

var (
	ErrUnauthorized         = stderrors.New("market: unauthorized")
	ErrInvalidListingPrice  = stderrors.New("market: invalid listing price")
	ErrTokenAlreadyListed   = stderrors.New("market: token already listed")
	ErrTokenIDNotFound      = stderrors.New("market: token id not found")
	ErrNoListedTokens       = stderrors.New("market: no tokens listed for sale")
	ErrNoOngoingPrimarySale = stderrors.New("market: no active primary sale")
	ErrNoFundsPresent       = stderrors.New("market: no relevant funds present in transaction")
	ErrMultipleFunds        = stderrors.New("market: multiple funds present")
	ErrWrongFund            = stderrors.New("market: wrong fund in transaction")
	ErrTicketLocked         = stderrors.New("market: token locked")
	ErrTicketRedeemed       = stderrors.New("market: token redeemed")
	ErrClaimed              = stderrors.New("token: token_id already claimed")
	ErrFundsNotAccepted     = stderrors.New("market: operation does not accept funds")

	// ErrInvalidPrimarySaleParam matches every InvalidPrimarySaleParamError via errors.Is.
	ErrInvalidPrimarySaleParam = stderrors.New("market: invalid primary sale parameter")
	// ErrInsufficientFunds matches every InsufficientFundsError via errors.Is.
	ErrInsufficientFunds = stderrors.New("market: insufficient funds")
)

// Field names reported by InvalidPrimarySaleParamError.
const (
	FieldStartTime = "start time"
	FieldEndTime   = "end time"
	FieldOverlap   = "overlap"
	FieldPrice     = "price"
)

// InsufficientFundsError reports an attached amount below the required price.
type InsufficientFundsError struct {
	Fund     *uint256.Int
	Required *uint256.Int
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("market: funds of %s below seat price of %s", decimal(e.Fund), decimal(e.Required))
}

// Is allows errors.Is(err, ErrInsufficientFunds).
func (e *InsufficientFundsError) Is(target error) bool { return target == ErrInsufficientFunds }

// InsufficientFunds constructs an InsufficientFundsError with copied amounts.
func InsufficientFunds(fund, required *uint256.Int) error {
	return &InsufficientFundsError{Fund: cloneAmount(fund), Required: cloneAmount(required)}
}

// InvalidPrimarySaleParamError names the offending sale parameter.
type InvalidPrimarySaleParamError struct {
	Field string
}

func (e *InvalidPrimarySaleParamError) Error() string {
	return fmt.Sprintf("market: invalid primary sale parameter %s", e.Field)
}

// Is allows errors.Is(err, ErrInvalidPrimarySaleParam).
func (e *InvalidPrimarySaleParamError) Is(target error) bool {
	return target == ErrInvalidPrimarySaleParam
}

// InvalidPrimarySaleParam constructs an InvalidPrimarySaleParamError.
func InvalidPrimarySaleParam(field string) error {
	return &InvalidPrimarySaleParamError{Field: field}
}

// TokenModuleError wraps a failure raised by the token ledger during minting.
type TokenModuleError struct {
	Err error
}

func (e *TokenModuleError) Error() string {
	return fmt.Sprintf("market: token module error: %v", e.Err)
}

func (e *TokenModuleError) Unwrap() error { return e.Err }

// KindOf classifies err. Unrecognised errors, including storage failures,
// report KindUnknown.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var saleParam *InvalidPrimarySaleParamError
	if stderrors.As(err, &saleParam) {
		if saleParam.Field == FieldOverlap {
			return KindConflict
		}
		return KindValidation
	}
	switch {
	case stderrors.Is(err, ErrUnauthorized):
		return KindAuthorization
	case stderrors.Is(err, ErrInvalidListingPrice):
		return KindValidation
	case stderrors.Is(err, ErrTokenAlreadyListed), stderrors.Is(err, ErrClaimed):
		return KindConflict
	case stderrors.Is(err, ErrTokenIDNotFound), stderrors.Is(err, ErrNoListedTokens), stderrors.Is(err, ErrNoOngoingPrimarySale):
		return KindNotFound
	case stderrors.Is(err, ErrNoFundsPresent), stderrors.Is(err, ErrMultipleFunds), stderrors.Is(err, ErrWrongFund), stderrors.Is(err, ErrInsufficientFunds), stderrors.Is(err, ErrFundsNotAccepted):
		return KindFunds
	case stderrors.Is(err, ErrTicketLocked), stderrors.Is(err, ErrTicketRedeemed):
		return KindStateGate
	default:
		return KindUnknown
	}
}

func decimal(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}

func cloneAmount(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return new(uint256.Int).Set(v)
}
