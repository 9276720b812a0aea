package tally

import (
	"encoding/json"
	"math/big"
	"reflect"
	"sync"
	"testing"

	"github.com/phayes/errors"

	"github.com/pedroswe/decide/decide"
)

func pair(a, b int64) decide.CipherPair {
	return decide.CipherPair{A: big.NewInt(a), B: big.NewInt(b)}
}

type fakeMixnet struct {
	key         *decide.Key
	keyErr      error
	keyCalls    int
	gotAuths    []decide.Authority
	entered     chan struct{} // signalled when a key ceremony starts
	gate        chan struct{} // when set, the ceremony blocks until closed
	shuffled    []decide.CipherPair
	shuffleErr  error
	decrypted   json.RawMessage
	decryptErr  error
	decryptHits int
}

func (m *fakeMixnet) GenerateKey(votingID int64, auths []decide.Authority) (*decide.Key, error) {
	m.keyCalls++
	m.gotAuths = auths
	if m.entered != nil {
		m.entered <- struct{}{}
	}
	if m.gate != nil {
		<-m.gate
	}
	return m.key, m.keyErr
}

func (m *fakeMixnet) Shuffle(votingID int64, msgs []decide.CipherPair) ([]decide.CipherPair, error) {
	if m.shuffleErr != nil {
		return nil, m.shuffleErr
	}
	if m.shuffled != nil {
		return m.shuffled, nil
	}
	return msgs, nil
}

func (m *fakeMixnet) Decrypt(votingID int64, msgs []decide.CipherPair) (json.RawMessage, error) {
	m.decryptHits++
	return m.decrypted, m.decryptErr
}

type fakeBallots struct {
	votes    []decide.CipherPair
	failures int // fail this many calls before succeeding
	calls    int
}

func (b *fakeBallots) GetVotes(votingID int64, token string) ([]decide.CipherPair, error) {
	b.calls++
	if b.calls <= b.failures {
		return nil, errors.New("store unreachable")
	}
	return b.votes, nil
}

type fakePost struct {
	resp    json.RawMessage
	err     error
	gotType string
	gotOpts []decide.OptionResult
}

func (p *fakePost) Process(typ string, options []decide.OptionResult) (json.RawMessage, error) {
	p.gotType = typ
	p.gotOpts = options
	return p.resp, p.err
}

type fakeStore struct {
	key      *decide.Key
	tally    json.RawMessage
	postproc json.RawMessage
}

func (s *fakeStore) SavePubKey(votingID int64, key *decide.Key) error {
	s.key = key
	return nil
}

func (s *fakeStore) SaveTally(votingID int64, tally json.RawMessage) error {
	s.tally = tally
	return nil
}

func (s *fakeStore) SavePostproc(votingID int64, postproc json.RawMessage) error {
	s.postproc = postproc
	return nil
}

func newVoting(auths int) *decide.Voting {
	v := &decide.Voting{
		ID:       7,
		Name:     "test voting",
		Question: &decide.Question{Desc: "q"},
		State:    decide.StateDraft,
	}
	for i := 0; i < auths; i++ {
		v.Authorities = append(v.Authorities, decide.Authority{
			ID: int64(i + 1), Name: "auth", URL: "http://auth",
		})
	}
	return v
}

func newOrchestrator(mixnet *fakeMixnet, ballots *fakeBallots, post *fakePost, store *fakeStore) *Orchestrator {
	return New(store, ballots, post, func(baseurl string) Mixnet { return mixnet })
}

func TestProvisionKey(t *testing.T) {
	mixnet := &fakeMixnet{key: &decide.Key{P: big.NewInt(11), G: big.NewInt(2), Y: big.NewInt(5)}}
	store := &fakeStore{}
	o := newOrchestrator(mixnet, &fakeBallots{}, &fakePost{}, store)

	v := newVoting(2)
	if err := o.ProvisionKey(v); err != nil {
		t.Fatal(err)
	}

	if v.PubKey == nil || store.key == nil {
		t.Fatal("key was not set and persisted")
	}
	if v.State != decide.StateKeyed {
		t.Errorf("got state %s, want keyed", v.State)
	}
	// The full authority set travels with the request.
	if len(mixnet.gotAuths) != 2 {
		t.Errorf("request carried %d authorities, want 2", len(mixnet.gotAuths))
	}

	// Provisioning again is a no-op: no remote call, key unchanged.
	key := v.PubKey
	if err := o.ProvisionKey(v); err != nil {
		t.Fatal(err)
	}
	if mixnet.keyCalls != 1 {
		t.Errorf("got %d key-generation calls, want 1", mixnet.keyCalls)
	}
	if v.PubKey != key {
		t.Errorf("key was overwritten")
	}
}

// Two concurrent provisioning calls for one voting run the ceremony once:
// the second caller waits on the voting's lock and then sees the key.
func TestProvisionKeySerialized(t *testing.T) {
	mixnet := &fakeMixnet{
		key:     &decide.Key{P: big.NewInt(11), G: big.NewInt(2), Y: big.NewInt(5)},
		entered: make(chan struct{}, 2),
		gate:    make(chan struct{}),
	}
	o := newOrchestrator(mixnet, &fakeBallots{}, &fakePost{}, &fakeStore{})

	v := newVoting(1)
	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- o.ProvisionKey(v)
		}()
	}

	// Wait for one caller to reach the ceremony, then let it finish.
	<-mixnet.entered
	close(mixnet.gate)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatal(err)
		}
	}
	if mixnet.keyCalls != 1 {
		t.Errorf("got %d key-generation calls, want 1", mixnet.keyCalls)
	}
	if v.PubKey == nil {
		t.Errorf("key was not set")
	}
}

func TestProvisionKeyNoAuthorities(t *testing.T) {
	mixnet := &fakeMixnet{}
	o := newOrchestrator(mixnet, &fakeBallots{}, &fakePost{}, &fakeStore{})

	v := newVoting(0)
	if err := o.ProvisionKey(v); err != nil {
		t.Fatal("no-authority provisioning must be a no-op, got ", err)
	}
	if mixnet.keyCalls != 0 {
		t.Errorf("got %d key-generation calls, want 0", mixnet.keyCalls)
	}
	if v.PubKey != nil || v.State != decide.StateDraft {
		t.Errorf("voting was modified")
	}
}

func TestProvisionKeyRemoteFailure(t *testing.T) {
	mixnet := &fakeMixnet{keyErr: errors.New("ceremony failed")}
	store := &fakeStore{}
	o := newOrchestrator(mixnet, &fakeBallots{}, &fakePost{}, store)

	v := newVoting(1)
	if err := o.ProvisionKey(v); err == nil {
		t.Fatal("remote failure did not surface")
	}

	// Key generation is retried, then the voting is left unmodified.
	if mixnet.keyCalls != retryAttempts {
		t.Errorf("got %d key-generation calls, want %d", mixnet.keyCalls, retryAttempts)
	}
	if v.PubKey != nil || store.key != nil || v.State != decide.StateDraft {
		t.Errorf("failed provisioning left partial state")
	}
}

func TestCollectBallotsRetries(t *testing.T) {
	ballots := &fakeBallots{votes: []decide.CipherPair{pair(1, 2)}, failures: 2}
	o := newOrchestrator(&fakeMixnet{}, ballots, &fakePost{}, &fakeStore{})

	votes, err := o.CollectBallots(newVoting(1), "token")
	if err != nil {
		t.Fatal(err)
	}
	if len(votes) != 1 {
		t.Errorf("got %d votes, want 1", len(votes))
	}
	if ballots.calls != 3 {
		t.Errorf("got %d fetch attempts, want 3", ballots.calls)
	}
}

func TestCollectBallotsExhaustsRetries(t *testing.T) {
	ballots := &fakeBallots{failures: retryAttempts}
	o := newOrchestrator(&fakeMixnet{}, ballots, &fakePost{}, &fakeStore{})

	if _, err := o.CollectBallots(newVoting(1), ""); err == nil {
		t.Fatal("exhausted retries did not surface")
	}
	if ballots.calls != retryAttempts {
		t.Errorf("got %d fetch attempts, want %d", ballots.calls, retryAttempts)
	}
}

func TestTallyAbortsOnShuffleFailure(t *testing.T) {
	mixnet := &fakeMixnet{shuffleErr: errors.New("mix unavailable"), decrypted: json.RawMessage(`[2]`)}
	store := &fakeStore{}
	o := newOrchestrator(mixnet, &fakeBallots{votes: []decide.CipherPair{pair(1, 2)}}, &fakePost{}, store)

	v := newVoting(1)
	v.PubKey = &decide.Key{P: big.NewInt(11), G: big.NewInt(2), Y: big.NewInt(5)}
	v.State = decide.StateKeyed

	if err := o.Tally(v, ""); err == nil {
		t.Fatal("shuffle failure did not abort the pipeline")
	}

	// FailFast: decrypt never runs and no tally is persisted.
	if mixnet.decryptHits != 0 {
		t.Errorf("decrypt ran after a failed shuffle")
	}
	if v.Tally != nil || store.tally != nil {
		t.Errorf("tally was persisted after a failed shuffle")
	}
	if v.State != decide.StateKeyed {
		t.Errorf("got state %s, want keyed", v.State)
	}
}

func TestTallyAbortsOnCardinalityMismatch(t *testing.T) {
	// The mix returns one ballot fewer than it was handed.
	mixnet := &fakeMixnet{shuffled: []decide.CipherPair{pair(1, 2)}, decrypted: json.RawMessage(`[2]`)}
	store := &fakeStore{}
	o := newOrchestrator(mixnet, &fakeBallots{votes: []decide.CipherPair{pair(1, 2), pair(3, 4)}}, &fakePost{}, store)

	v := newVoting(1)
	v.PubKey = &decide.Key{P: big.NewInt(11), G: big.NewInt(2), Y: big.NewInt(5)}
	v.State = decide.StateKeyed

	if err := o.Tally(v, ""); err == nil {
		t.Fatal("cardinality mismatch did not abort the pipeline")
	}
	if store.tally != nil {
		t.Errorf("tally was persisted after a cardinality mismatch")
	}
}

func TestTallyRequiresKey(t *testing.T) {
	o := newOrchestrator(&fakeMixnet{}, &fakeBallots{}, &fakePost{}, &fakeStore{})

	if err := o.Tally(newVoting(1), ""); err != ErrNotKeyed {
		t.Fatalf("got %v, want ErrNotKeyed", err)
	}
}

func TestAggregateCounts(t *testing.T) {
	post := &fakePost{resp: json.RawMessage(`{"ok": true}`)}
	store := &fakeStore{}
	o := newOrchestrator(&fakeMixnet{}, &fakeBallots{}, post, store)

	v := newVoting(1)
	v.Question.AddOption("A", 2)
	v.Question.AddOption("B", 3)
	v.Tally = json.RawMessage(`[2, 3, 2, 2]`)
	v.State = decide.StateTallied

	if err := o.Aggregate(v); err != nil {
		t.Fatal(err)
	}

	want := []decide.OptionResult{
		{Option: "A", Number: 2, Votes: 3},
		{Option: "B", Number: 3, Votes: 1},
	}
	if !reflect.DeepEqual(post.gotOpts, want) {
		t.Errorf("got options %v, want %v", post.gotOpts, want)
	}
	if post.gotType != "IDENTITY" {
		t.Errorf("got directive %q, want IDENTITY", post.gotType)
	}
	if string(v.Postproc) != `{"ok": true}` || string(store.postproc) != `{"ok": true}` {
		t.Errorf("postproc result was not stored verbatim")
	}
	if v.State != decide.StateProcessed {
		t.Errorf("got state %s, want processed", v.State)
	}
}

func TestAggregateOpaqueTally(t *testing.T) {
	post := &fakePost{resp: json.RawMessage(`[]`)}
	o := newOrchestrator(&fakeMixnet{}, &fakeBallots{}, post, &fakeStore{})

	v := newVoting(1)
	v.Question.AddOption("A", 2)
	v.Tally = json.RawMessage(`[[1, 2], [3, 4]]`)

	if err := o.Aggregate(v); err != nil {
		t.Fatal(err)
	}
	// A non-countable tally defaults to zero votes, not an error.
	if post.gotOpts[0].Votes != 0 {
		t.Errorf("got %d votes, want 0", post.gotOpts[0].Votes)
	}
}

func TestAggregateFailureKeepsTally(t *testing.T) {
	post := &fakePost{err: errors.New("postproc down")}
	store := &fakeStore{}
	o := newOrchestrator(&fakeMixnet{}, &fakeBallots{}, post, store)

	v := newVoting(1)
	v.Question.AddOption("A", 2)
	v.Tally = json.RawMessage(`[2]`)
	v.State = decide.StateTallied

	if err := o.Aggregate(v); err == nil {
		t.Fatal("post-processing failure did not surface")
	}
	if string(v.Tally) != `[2]` {
		t.Errorf("tally was modified by a failed aggregation")
	}
	if v.Postproc != nil || store.postproc != nil {
		t.Errorf("postproc was written by a failed aggregation")
	}
	if v.State != decide.StateTallied {
		t.Errorf("got state %s, want tallied", v.State)
	}
}

// Full lifecycle: provision a key, collect three ballots, mix, decrypt and
// post-process.
func TestTallyEndToEnd(t *testing.T) {
	votes := []decide.CipherPair{pair(1, 2), pair(3, 4), pair(5, 6)}
	mixnet := &fakeMixnet{
		key:       &decide.Key{P: big.NewInt(11), G: big.NewInt(2), Y: big.NewInt(5)},
		shuffled:  []decide.CipherPair{pair(5, 6), pair(1, 2), pair(3, 4)},
		decrypted: json.RawMessage(`[2, 2, 5]`),
	}
	post := &fakePost{resp: json.RawMessage(`[{"option": "A", "votes": 2}, {"option": "B", "votes": 1}]`)}
	store := &fakeStore{}
	o := newOrchestrator(mixnet, &fakeBallots{votes: votes}, post, store)

	v := newVoting(1)
	v.Question.AddOption("A", 2)
	v.Question.AddOption("B", 5)

	if err := o.ProvisionKey(v); err != nil {
		t.Fatal(err)
	}
	if err := o.Tally(v, "token"); err != nil {
		t.Fatal(err)
	}

	if string(store.tally) != `[2, 2, 5]` {
		t.Errorf("got persisted tally %s", store.tally)
	}
	want := []decide.OptionResult{
		{Option: "A", Number: 2, Votes: 2},
		{Option: "B", Number: 5, Votes: 1},
	}
	if !reflect.DeepEqual(post.gotOpts, want) {
		t.Errorf("got options %v, want %v", post.gotOpts, want)
	}
	if v.State != decide.StateProcessed {
		t.Errorf("got state %s, want processed", v.State)
	}
}
