package decide

import (
	"encoding/json"
	"time"
)

// VotingState tags where a voting sits in its lifecycle. The state only
// ever moves forward, one step per successful transition.
type VotingState string

const (
	StateDraft     VotingState = "draft"     // created, no key yet
	StateKeyed     VotingState = "keyed"     // public key provisioned
	StateTallied   VotingState = "tallied"   // ballots shuffled and decrypted
	StateProcessed VotingState = "processed" // tally post-processed
)

// Voting is the aggregate root of the tally pipeline. Tally and Postproc
// are opaque values owned by the mix/decrypt and post-processing services
// respectively; this package stores them verbatim and only ever inspects
// Tally when counting votes.
type Voting struct {
	ID          int64
	Name        string
	Desc        string
	Question    *Question
	StartDate   *time.Time
	EndDate     *time.Time
	PubKey      *Key
	Authorities []Authority
	State       VotingState
	Tally       json.RawMessage
	Postproc    json.RawMessage
}

// CountVotes counts how many entries of the raw tally equal number. A tally
// that is not a flat sequence of integers (for example a list of ciphertext
// pairs) counts as zero votes for every option.
func (v *Voting) CountVotes(number uint) int {
	var seq []int64
	if err := json.Unmarshal(v.Tally, &seq); err != nil {
		return 0
	}
	votes := 0
	for _, n := range seq {
		if n >= 0 && uint(n) == number {
			votes++
		}
	}
	return votes
}

func (v *Voting) String() string {
	return v.Name
}

// OptionResult is one per-option line of the raw result handed to the
// post-processing service.
type OptionResult struct {
	Option string `json:"option"`
	Number uint   `json:"number"`
	Votes  int    `json:"votes"`
}
