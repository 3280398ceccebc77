package auction

import "time"

// Phase is the auction state machine. It is derived from the clock and
// the settlement flag, never stored.
type Phase int

const (
	PhasePlacementAndCancellation Phase = iota
	PhasePlacement
	PhaseSolutionSubmission
	PhaseFinished
)

func (p Phase) String() string {
	switch p {
	case PhasePlacementAndCancellation:
		return "placement_and_cancellation"
	case PhasePlacement:
		return "placement"
	case PhaseSolutionSubmission:
		return "solution_submission"
	case PhaseFinished:
		return "finished"
	default:
		return "unknown"
	}
}

func (a *Auction) Phase(now time.Time) Phase {
	switch {
	case a.settled:
		return PhaseFinished
	case now.Before(a.OrderCancellationEndDate):
		return PhasePlacementAndCancellation
	case now.Before(a.EndDate):
		return PhasePlacement
	default:
		return PhaseSolutionSubmission
	}
}

// SecondsRemainingInPlacement is zero once the placement window closed.
func (a *Auction) SecondsRemainingInPlacement(now time.Time) int64 {
	if !now.Before(a.EndDate) {
		return 0
	}
	return int64(a.EndDate.Sub(now) / time.Second)
}

func (a *Auction) canPlace(now time.Time) bool {
	return !a.settled && now.Before(a.EndDate)
}

func (a *Auction) canCancel(now time.Time) bool {
	return !a.settled && now.Before(a.OrderCancellationEndDate)
}

func (a *Auction) closed(now time.Time) bool {
	return !now.Before(a.EndDate)
}
