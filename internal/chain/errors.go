package chain

import "strings"

// FailureKind classifies a failed settlement submission. The coordinator
// branches on the kind: reconcile, defer, fall through to the off-chain
// path, or leave the wager for the next cycle.
type FailureKind int

const (
	// FailureUnknown is any error not recognized below. The wager is left
	// untouched and retried next cycle.
	FailureUnknown FailureKind = iota

	// FailureAlreadySettled means the contract aborted because the bet is
	// already settled. Not an error: local state is reconciled from the
	// ledger and processing stops.
	FailureAlreadySettled

	// FailureInsufficientTreasury means the treasury cannot cover the
	// payout. The wager commits to won and the payout is deferred.
	FailureInsufficientTreasury

	// FailureLegacyObject means the bet was created under the deprecated
	// owned-object model and the contract can never settle it. The wager
	// is routed to the off-chain path instead of retrying forever.
	FailureLegacyObject
)

func (k FailureKind) String() string {
	switch k {
	case FailureAlreadySettled:
		return "already_settled"
	case FailureInsufficientTreasury:
		return "insufficient_treasury"
	case FailureLegacyObject:
		return "legacy_object"
	default:
		return "unknown"
	}
}

// Contract abort codes surfaced in gateway error strings.
const (
	abortAlreadySettled       = "MoveAbort(2)"
	abortInsufficientTreasury = "MoveAbort(5)"
)

var legacyObjectMarkers = []string{
	"InvalidObjectOwner",
	"IncorrectUserSignature",
	"is owned by account",
	"not shared",
}

// Classify maps a gateway/contract error string to a FailureKind.
func Classify(errMsg string) FailureKind {
	switch {
	case errMsg == "":
		return FailureUnknown
	case strings.Contains(errMsg, abortAlreadySettled),
		strings.Contains(errMsg, "already settled"),
		strings.Contains(errMsg, "EBetAlreadySettled"):
		return FailureAlreadySettled
	case strings.Contains(errMsg, abortInsufficientTreasury),
		strings.Contains(errMsg, "insufficient treasury"),
		strings.Contains(errMsg, "EInsufficientTreasury"):
		return FailureInsufficientTreasury
	}
	for _, marker := range legacyObjectMarkers {
		if strings.Contains(errMsg, marker) {
			return FailureLegacyObject
		}
	}
	return FailureUnknown
}
