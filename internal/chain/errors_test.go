package chain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		msg  string
		want FailureKind
	}{
		{"empty", "", FailureUnknown},
		{"abort already settled", "transaction failed: MoveAbort(2) in settle_bet", FailureAlreadySettled},
		{"text already settled", "bet already settled on ledger", FailureAlreadySettled},
		{"named abort", "err: EBetAlreadySettled", FailureAlreadySettled},
		{"abort insufficient", "MoveAbort(5): treasury drained", FailureInsufficientTreasury},
		{"text insufficient", "insufficient treasury for payout", FailureInsufficientTreasury},
		{"legacy owner", "InvalidObjectOwner: object 0xabc is owned", FailureLegacyObject},
		{"legacy signature", "IncorrectUserSignature for shared object", FailureLegacyObject},
		{"legacy owned-by", "object 0xabc is owned by account 0xdef", FailureLegacyObject},
		{"gas error stays unknown", "unable to pay gas", FailureUnknown},
		{"timeout stays unknown", "context deadline exceeded", FailureUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.msg))
		})
	}
}

func TestFailureKindString(t *testing.T) {
	assert.Equal(t, "unknown", FailureUnknown.String())
	assert.Equal(t, "already_settled", FailureAlreadySettled.String())
	assert.Equal(t, "insufficient_treasury", FailureInsufficientTreasury.String())
	assert.Equal(t, "legacy_object", FailureLegacyObject.String())
	assert.Equal(t, "unknown", FailureKind(99).String())
}
