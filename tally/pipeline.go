package tally

import (
	"encoding/json"

	"github.com/phayes/errors"

	"github.com/pedroswe/decide/decide"
)

// RunTally drives the two-stage mix against the voting's first authority:
// shuffle, then decrypt of the shuffled list, in that order. Any stage
// failure aborts the run with ErrPipelineProtocol and nothing is
// persisted. Neither stage is retried here: re-running a shuffle or
// decrypt against a live mix can double-transform the ballot set.
func (o *Orchestrator) RunTally(v *decide.Voting, ballots []decide.CipherPair) (json.RawMessage, error) {
	if len(v.Authorities) == 0 {
		return nil, errors.Appendf(ErrPipelineProtocol, "tally: voting %d has no authorities", v.ID)
	}

	mixnet := o.dial(v.Authorities[0].URL)

	shuffled, err := mixnet.Shuffle(v.ID, ballots)
	if err != nil {
		return nil, errors.Wrap(err, ErrPipelineProtocol)
	}
	// A mix must return exactly as many ballots as it was handed.
	if len(shuffled) != len(ballots) {
		return nil, errors.Appendf(ErrPipelineProtocol, "tally: shuffle returned %d ballots, sent %d", len(shuffled), len(ballots))
	}

	raw, err := mixnet.Decrypt(v.ID, shuffled)
	if err != nil {
		return nil, errors.Wrap(err, ErrPipelineProtocol)
	}

	return raw, nil
}
