// Package tally sequences the closing of a voting: key provisioning,
// ballot collection, the two-stage mix (shuffle then decrypt) and
// post-processing of the decrypted result. All cryptography happens in
// external services; this package only orders the calls and persists the
// outcome, whole-or-nothing.
package tally

import (
	"encoding/json"
	"sync"

	"github.com/phayes/errors"

	"github.com/pedroswe/decide/decide"
)

var (
	ErrProvisioning     = errors.New("tally: Unable to provision voting key")
	ErrCollection       = errors.New("tally: Unable to collect ballots")
	ErrAggregation      = errors.New("tally: Unable to post-process tally")
	ErrPipelineProtocol = errors.New("tally: mix/decrypt stage failed")
	ErrPersist          = errors.New("tally: Unable to persist voting state")
	ErrNotKeyed         = errors.New("tally: voting has no public key")
)

// retryAttempts bounds the idempotent remote calls: key generation and
// ballot collection. Shuffle and decrypt are never retried.
const retryAttempts = 3

// processIdentity asks the post-processing service to reshape the counts
// without transforming them.
const processIdentity = "IDENTITY"

// Mixnet is the slice of a mixnet authority the orchestrator needs.
type Mixnet interface {
	GenerateKey(votingID int64, auths []decide.Authority) (*decide.Key, error)
	Shuffle(votingID int64, msgs []decide.CipherPair) ([]decide.CipherPair, error)
	Decrypt(votingID int64, msgs []decide.CipherPair) (json.RawMessage, error)
}

// MixnetDialer returns a Mixnet client for an authority's base URL. The
// mixnet endpoint is not fixed per deployment: each voting is served by
// its own first attached authority.
type MixnetDialer func(baseurl string) Mixnet

// BallotStore serves the anonymized encrypted ballots of a voting.
type BallotStore interface {
	GetVotes(votingID int64, token string) ([]decide.CipherPair, error)
}

// PostProc converts raw per-option counts into the final result.
type PostProc interface {
	Process(typ string, options []decide.OptionResult) (json.RawMessage, error)
}

// Store persists the fields of a voting that the pipeline produces. Each
// write also advances the voting's lifecycle state.
type Store interface {
	SavePubKey(votingID int64, key *decide.Key) error
	SaveTally(votingID int64, tally json.RawMessage) error
	SavePostproc(votingID int64, postproc json.RawMessage) error
}

// Orchestrator drives votings through their lifecycle. A failure leaves
// the voting in its last successfully reached state so the failed
// transition can simply be retried.
type Orchestrator struct {
	store   Store
	ballots BallotStore
	post    PostProc
	dial    MixnetDialer

	mu   sync.Mutex
	runs map[int64]*sync.Mutex
}

// New creates an Orchestrator over the given collaborators.
func New(store Store, ballots BallotStore, post PostProc, dial MixnetDialer) *Orchestrator {
	return &Orchestrator{
		store:   store,
		ballots: ballots,
		post:    post,
		dial:    dial,
		runs:    make(map[int64]*sync.Mutex),
	}
}

// votingLock returns the mutex serializing runs for one voting.
func (o *Orchestrator) votingLock(votingID int64) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	mu, ok := o.runs[votingID]
	if !ok {
		mu = &sync.Mutex{}
		o.runs[votingID] = mu
	}
	return mu
}

// ProvisionKey lazily attaches a public key to the voting. It is a no-op,
// not an error, when the voting already has a key or has no authorities.
// The first attached authority runs the ceremony; the key is persisted
// before it is attached, and an existing key is never overwritten.
// Provisioning for one voting is serialized, so concurrent calls cannot
// run the ceremony twice.
func (o *Orchestrator) ProvisionKey(v *decide.Voting) error {
	mu := o.votingLock(v.ID)
	mu.Lock()
	defer mu.Unlock()

	if v.PubKey != nil || len(v.Authorities) == 0 {
		return nil
	}

	mixnet := o.dial(v.Authorities[0].URL)

	var key *decide.Key
	var err error
	for attempt := 0; attempt < retryAttempts; attempt++ {
		key, err = mixnet.GenerateKey(v.ID, v.Authorities)
		if err == nil {
			break
		}
	}
	if err != nil {
		return errors.Wrap(err, ErrProvisioning)
	}

	if err := o.store.SavePubKey(v.ID, key); err != nil {
		return errors.Wrap(err, ErrProvisioning)
	}

	v.PubKey = key
	v.State = decide.StateKeyed
	return nil
}

// CollectBallots fetches the voting's ballots from the ballot store,
// retrying transient failures. The fetch is a pure read, so retrying is
// safe.
func (o *Orchestrator) CollectBallots(v *decide.Voting, token string) ([]decide.CipherPair, error) {
	var votes []decide.CipherPair
	var err error
	for attempt := 0; attempt < retryAttempts; attempt++ {
		votes, err = o.ballots.GetVotes(v.ID, token)
		if err == nil {
			return votes, nil
		}
	}
	return nil, errors.Wrap(err, ErrCollection)
}

// Aggregate maps the voting's raw tally onto its question's options,
// counting occurrences of each option number, and submits the counts to
// the post-processing service. The service's reply overwrites any prior
// postproc value; on failure the tally stays put and postproc is left
// unchanged.
func (o *Orchestrator) Aggregate(v *decide.Voting) error {
	options := make([]decide.OptionResult, 0, len(v.Question.Options))
	for _, opt := range v.Question.Options {
		options = append(options, decide.OptionResult{
			Option: opt.Option,
			Number: opt.Number,
			Votes:  v.CountVotes(opt.Number),
		})
	}

	result, err := o.post.Process(processIdentity, options)
	if err != nil {
		return errors.Wrap(err, ErrAggregation)
	}

	if err := o.store.SavePostproc(v.ID, result); err != nil {
		return errors.Wrap(err, ErrAggregation)
	}

	v.Postproc = result
	v.State = decide.StateProcessed
	return nil
}

// Tally closes a voting: collect ballots, run the mix, persist the raw
// tally, then post-process it. At most one run per voting at a time; a
// voting must be keyed before it can be tallied.
func (o *Orchestrator) Tally(v *decide.Voting, token string) error {
	mu := o.votingLock(v.ID)
	mu.Lock()
	defer mu.Unlock()

	if v.PubKey == nil {
		return ErrNotKeyed
	}

	votes, err := o.CollectBallots(v, token)
	if err != nil {
		return err
	}

	raw, err := o.RunTally(v, votes)
	if err != nil {
		return err
	}

	if err := o.store.SaveTally(v.ID, raw); err != nil {
		return errors.Wrap(err, ErrPersist)
	}
	v.Tally = raw
	v.State = decide.StateTallied

	return o.Aggregate(v)
}
