package mempoolmodel

import "fmt"

// ErrorKind identifies why a bundle failed admission.
type ErrorKind int

// Error kinds returned from admission, grouped by whether the failure is
// permanent (never retry) or retryable (resubmit on next peak).
const (
	// Permanent errors.
	ErrInvalidSpendBundle ErrorKind = iota
	ErrCoinAmountNegative
	ErrCoinAmountExceedsMaximum
	ErrDuplicateOutput
	ErrDoubleSpend
	ErrMintingCoin
	ErrReserveFeeConditionFailed
	ErrBlockCostExceedsMax
	ErrInvalidFeeLowFee
	ErrInvalidBlockFeeAmount
	ErrAssertMyBirthHeightFailed
	ErrAssertMyBirthSecondsFailed
	ErrAssertHeightAbsoluteFailedPast
	ErrAssertSecondsAbsoluteFailedPast
	ErrAssertSecondsRelativeFailed

	// Retryable errors.
	ErrUnknownUnspent
	ErrMempoolConflict
	ErrAssertHeightRelativeFailed
	ErrAssertHeightAbsoluteFailedFuture

	// ErrAssertSecondsAbsoluteFailedFuture mirrors
	// ErrAssertHeightAbsoluteFailedFuture: the bundle's minimum-timestamp
	// assertion has not yet been reached by the peak, but will be as wall
	// time advances, so the caller should retry on a later peak.
	ErrAssertSecondsAbsoluteFailedFuture

	// ErrDuplicateBundle is returned when the exact same bundle id is
	// already resident; treated as a successful no-op by callers, not
	// surfaced as a failure from Store.Add.
	ErrDuplicateBundle
)

var errorKindNames = map[ErrorKind]string{
	ErrInvalidSpendBundle:                "INVALID_SPEND_BUNDLE",
	ErrCoinAmountNegative:                "COIN_AMOUNT_NEGATIVE",
	ErrCoinAmountExceedsMaximum:          "COIN_AMOUNT_EXCEEDS_MAXIMUM",
	ErrDuplicateOutput:                   "DUPLICATE_OUTPUT",
	ErrDoubleSpend:                       "DOUBLE_SPEND",
	ErrMintingCoin:                       "MINTING_COIN",
	ErrReserveFeeConditionFailed:         "RESERVE_FEE_CONDITION_FAILED",
	ErrBlockCostExceedsMax:               "BLOCK_COST_EXCEEDS_MAX",
	ErrInvalidFeeLowFee:                  "INVALID_FEE_LOW_FEE",
	ErrInvalidBlockFeeAmount:             "INVALID_BLOCK_FEE_AMOUNT",
	ErrAssertMyBirthHeightFailed:         "ASSERT_MY_BIRTH_HEIGHT_FAILED",
	ErrAssertMyBirthSecondsFailed:        "ASSERT_MY_BIRTH_SECONDS_FAILED",
	ErrAssertHeightAbsoluteFailedPast:    "ASSERT_HEIGHT_ABSOLUTE_FAILED",
	ErrAssertSecondsAbsoluteFailedPast:   "ASSERT_SECONDS_ABSOLUTE_FAILED",
	ErrAssertSecondsRelativeFailed:       "ASSERT_SECONDS_RELATIVE_FAILED",
	ErrUnknownUnspent:                    "UNKNOWN_UNSPENT",
	ErrMempoolConflict:                   "MEMPOOL_CONFLICT",
	ErrAssertHeightRelativeFailed:        "ASSERT_HEIGHT_RELATIVE_FAILED",
	ErrAssertHeightAbsoluteFailedFuture:  "ASSERT_HEIGHT_ABSOLUTE_FAILED",
	ErrAssertSecondsAbsoluteFailedFuture: "ASSERT_SECONDS_ABSOLUTE_FAILED",
	ErrDuplicateBundle:                   "DUPLICATE_BUNDLE",
}

func (k ErrorKind) String() string {
	if name, ok := errorKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// retryableKinds are the error kinds a caller may recover from: the caller
// should re-submit the bundle after the next peak transition.
var retryableKinds = map[ErrorKind]bool{
	ErrUnknownUnspent:                    true,
	ErrMempoolConflict:                   true,
	ErrAssertHeightRelativeFailed:        true,
	ErrAssertHeightAbsoluteFailedFuture:  true,
	ErrAssertSecondsAbsoluteFailedFuture: true,
}

// Retryable returns whether a bundle rejected with this error kind should be
// retried by the caller on the next peak transition.
func (k ErrorKind) Retryable() bool {
	return retryableKinds[k]
}

// RuleError reports why a bundle was rejected, carrying a typed error kind
// alongside a human-readable message.
type RuleError struct {
	Kind    ErrorKind
	Message string
}

func (e *RuleError) Error() string {
	if e.Message == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// NewRuleError constructs a RuleError for the given kind.
func NewRuleError(kind ErrorKind, message string) *RuleError {
	return &RuleError{Kind: kind, Message: message}
}

// Status is the outcome of an admission attempt.
type Status int

const (
	// StatusSuccess means the bundle was admitted to the mempool.
	StatusSuccess Status = iota
	// StatusPending means the bundle was not admitted but may be retried
	// on the next peak transition.
	StatusPending
	// StatusFailed means the bundle was rejected permanently.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "SUCCESS"
	case StatusPending:
		return "PENDING"
	case StatusFailed:
		return "FAILED"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// RemoveReason identifies why a resident bundle was removed.
type RemoveReason int

const (
	// RemoveReasonConflict: replaced via RBF.
	RemoveReasonConflict RemoveReason = iota
	// RemoveReasonBlockInclusion: one of its spent coins appeared in a
	// newly connected block.
	RemoveReasonBlockInclusion
	// RemoveReasonPoolFull: evicted to make room under max_size_in_cost.
	RemoveReasonPoolFull
	// RemoveReasonExpired: evicted by near-expiry pruning or new_peak.
	RemoveReasonExpired
)

func (r RemoveReason) String() string {
	switch r {
	case RemoveReasonConflict:
		return "CONFLICT"
	case RemoveReasonBlockInclusion:
		return "BLOCK_INCLUSION"
	case RemoveReasonPoolFull:
		return "POOL_FULL"
	case RemoveReasonExpired:
		return "EXPIRED"
	default:
		return fmt.Sprintf("RemoveReason(%d)", int(r))
	}
}

// ErrInvariantViolation is panicked when a post-insertion invariant check
// fails; a fatal, non-recoverable condition.
type ErrInvariantViolation struct {
	Reason string
}

func (e *ErrInvariantViolation) Error() string {
	return "mempool invariant violation: " + e.Reason
}
