package domain

import (
	"errors"
	"strconv"
)

// RetriableError defines an interface for errors that can be retried
type RetriableError interface {
	error
	IsRetriable() bool
}

// IsRetriable checks if an error is retriable
func IsRetriable(err error) bool {
	var re RetriableError
	if errors.As(err, &re) {
		return re.IsRetriable()
	}
	return false
}

// ErrorKind groups pool errors by how a caller should react to them.
type ErrorKind uint8

const (
	// KindAuthorization: caller lacks the role or ownership. Never retried.
	KindAuthorization ErrorKind = iota + 1
	// KindTemporal: valid call made too early or too late.
	KindTemporal
	// KindStateMachine: illegal transition from the current state.
	KindStateMachine
	// KindGuardRail: request violates a protective bound; adjust and retry.
	KindGuardRail
	// KindAccounting: nothing to do.
	KindAccounting
)

func (k ErrorKind) String() string {
	switch k {
	case KindAuthorization:
		return "authorization"
	case KindTemporal:
		return "temporal"
	case KindStateMachine:
		return "state-machine"
	case KindGuardRail:
		return "guard-rail"
	case KindAccounting:
		return "accounting"
	default:
		return "unknown"
	}
}

// PoolError is a rejected pool call. At carries a unix time for temporal
// errors (e.g. the earliest resolve time) and is zero otherwise.
type PoolError struct {
	Kind ErrorKind
	Code string
	At   int64
}

func (e *PoolError) Error() string {
	if e.At != 0 {
		return e.Code + "(" + strconv.FormatInt(e.At, 10) + ")"
	}
	return e.Code
}

// IsRetriable reports whether the same call can succeed later or with
// adjusted parameters.
func (e *PoolError) IsRetriable() bool {
	return e.Kind == KindTemporal || e.Kind == KindGuardRail
}

// Is matches any PoolError with the same code, so errors.Is works against
// the sentinels below regardless of At.
func (e *PoolError) Is(target error) bool {
	var t *PoolError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// With returns a copy of the sentinel carrying a timestamp.
func (e *PoolError) With(at int64) *PoolError {
	return &PoolError{Kind: e.Kind, Code: e.Code, At: at}
}

func newPoolError(kind ErrorKind, code string) *PoolError {
	return &PoolError{Kind: kind, Code: code}
}

// KindOf returns the kind of a pool error, or 0 if err is not one.
func KindOf(err error) ErrorKind {
	var pe *PoolError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return 0
}

// Authorization
var (
	ErrOnlyOracle        = newPoolError(KindAuthorization, "OnlyOracle")
	ErrOnlyMaintainer    = newPoolError(KindAuthorization, "OnlyMaintainer")
	ErrOnlyOwner         = newPoolError(KindAuthorization, "OnlyOwner")
	ErrOnlyBetOwner      = newPoolError(KindAuthorization, "OnlyBetOwner")
	ErrLiquidityNotOwned = newPoolError(KindAuthorization, "LiquidityNotOwned")
	ErrNonTransferable   = newPoolError(KindAuthorization, "NonTransferable")
)

// Temporal
var (
	ErrConditionStarted    = newPoolError(KindTemporal, "ConditionStarted")
	ErrConditionNotStarted = newPoolError(KindTemporal, "ConditionNotStarted")
	ErrResolveTooEarly     = newPoolError(KindTemporal, "ResolveTooEarly")
	ErrResolveTooLate      = newPoolError(KindTemporal, "ResolveTooLate")
	ErrWithdrawalTimeout   = newPoolError(KindTemporal, "WithdrawalTimeout")
	ErrBetExpired          = newPoolError(KindTemporal, "BetExpired")
	ErrClaimTimeout        = newPoolError(KindTemporal, "ClaimTimeout")
	ErrBetNotExpired       = newPoolError(KindTemporal, "BetNotExpired")
)

// State machine
var (
	ErrConditionAlreadyResolved = newPoolError(KindStateMachine, "ConditionAlreadyResolved")
	ErrConditionAlreadyCreated  = newPoolError(KindStateMachine, "ConditionAlreadyCreated")
	ErrConditionNotExists       = newPoolError(KindStateMachine, "ConditionNotExists")
	ErrBetNotExists             = newPoolError(KindStateMachine, "BetNotExists")
	ErrCantChangeFlag           = newPoolError(KindStateMachine, "CantChangeFlag")
	ErrWrongOutcome             = newPoolError(KindStateMachine, "WrongOutcome")
	ErrSameOutcomes             = newPoolError(KindStateMachine, "SameOutcomes")
	ErrIncorrectTimestamp       = newPoolError(KindStateMachine, "IncorrectTimestamp")
	ErrBetNotAllowed            = newPoolError(KindStateMachine, "BetNotAllowed")
	ErrWrongDataFormat          = newPoolError(KindStateMachine, "WrongDataFormat")
	ErrTokenNotExists           = newPoolError(KindStateMachine, "TokenNotExists")
	ErrAlreadyResolved          = newPoolError(KindStateMachine, "AlreadyResolved")
)

// Economic guard rails
var (
	ErrSmallOdds                   = newPoolError(KindGuardRail, "SmallOdds")
	ErrBigDifference               = newPoolError(KindGuardRail, "BigDifference")
	ErrSmallBet                    = newPoolError(KindGuardRail, "SmallBet")
	ErrNotEnoughLiquidity          = newPoolError(KindGuardRail, "NotEnoughLiquidity")
	ErrAmountLocked                = newPoolError(KindGuardRail, "AmountLocked")
	ErrInsufficientContractBalance = newPoolError(KindGuardRail, "InsufficientContractBalance")
	ErrInsufficientFunds           = newPoolError(KindGuardRail, "InsufficientFunds")
	ErrAmountNotSufficient         = newPoolError(KindGuardRail, "AmountNotSufficient")
	ErrZeroOdds                    = newPoolError(KindGuardRail, "ZeroOdds")
	ErrWrongFraction               = newPoolError(KindGuardRail, "WrongFraction")
	ErrWrongParameter              = newPoolError(KindGuardRail, "WrongParameter")
)

// Accounting
var (
	ErrNoWinNoPrize   = newPoolError(KindAccounting, "NoWinNoPrize")
	ErrNoLiquidity    = newPoolError(KindAccounting, "NoLiquidity")
	ErrNoFreeLeaf     = newPoolError(KindAccounting, "NoFreeLeaf")
	ErrNoDaoReward    = newPoolError(KindAccounting, "NoDaoReward")
	ErrNoOracleReward = newPoolError(KindAccounting, "NoOracleReward")
)

// ConfigError represents a configuration error (never retriable)
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return "config error [" + e.Field + "]: " + e.Err.Error()
}

func (e *ConfigError) IsRetriable() bool {
	return false
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

var (
	// ErrConfigNotFound is returned when configuration file is missing
	ErrConfigNotFound = errors.New("configuration not found")

	// ErrUnknownCommand is returned when a journaled command name has no decoder.
	ErrUnknownCommand = errors.New("unknown command")

	// ErrFreeBetDisabled is returned by free bet commands on a pool without a manager.
	ErrFreeBetDisabled = errors.New("free bets are not enabled")
)
