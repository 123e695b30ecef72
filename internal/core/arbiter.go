package core

// Final task statuses with fixed meaning. Any other non-zero status is
// re-surfaced from the tool and keeps whatever meaning the tool defines.
const (
	// StatusSuccess is the final status of a verified-complete batch.
	StatusSuccess = 0

	// StatusIncomplete is synthesized when the tool reported success but the
	// output layout is incomplete.
	StatusIncomplete = 1
)

// Arbitrate combines the verifier's verdict with the tool's raw exit status
// into the task's final exit status.
//
// Rules, in order:
//  1. Complete verdict: final status is StatusSuccess, whatever the tool
//     reported. Observed artifacts outrank the self-reported status.
//  2. Incomplete verdict with a non-zero raw status: the raw status is
//     re-surfaced unchanged, preserving the tool's own diagnostic codes.
//  3. Incomplete verdict with raw status 0: StatusIncomplete is synthesized,
//     so an incomplete batch can never report success upstream.
func Arbitrate(verdict VerificationVerdict, rawExit int) int {
	if verdict.Complete {
		return StatusSuccess
	}
	if rawExit != 0 {
		return rawExit
	}
	return StatusIncomplete
}
