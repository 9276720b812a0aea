package ballotstore

import (
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/phayes/errors"

	"github.com/pedroswe/decide/decide"
)

var (
	ErrGetVotes = errors.New("ballotstore: Unable to GET votes")
)

// DefaultTimeout bounds every call to the ballot store.
const DefaultTimeout = 30 * time.Second

// Client provides access to the ballot store REST service, which holds the
// anonymized encrypted ballots cast for each voting.
type Client struct {
	BaseURL    string
	HTTPClient http.Client
}

// NewClient creates a new Client for the ballot store at baseurl.
func NewClient(baseurl string) *Client {
	return &Client{BaseURL: baseurl, HTTPClient: http.Client{Timeout: DefaultTimeout}}
}

type storedVote struct {
	A *big.Int `json:"a"`
	B *big.Int `json:"b"`
}

// GetVotes fetches all ballots stored for a voting, in the store's wire
// order. The order carries no local meaning but is preserved as received.
// Zero ballots is a valid result. The token authenticates the caller
// against the store.
func (c *Client) GetVotes(votingID int64, token string) ([]decide.CipherPair, error) {
	query := url.Values{}
	query.Set("voting_id", strconv.FormatInt(votingID, 10))

	req, err := http.NewRequest("GET", c.BaseURL+"?"+query.Encode(), nil)
	if err != nil {
		return nil, errors.Wrap(err, ErrGetVotes)
	}
	req.Header.Set("Authorization", "Token "+token)

	// Do the request
	resp, err := c.HTTPClient.Do(req)
	defer ResponseDrainAndClose(resp)
	if err != nil {
		return nil, errors.Wrap(err, ErrGetVotes)
	}

	// Handle errors
	if resp.StatusCode != 200 {
		details, _ := io.ReadAll(resp.Body)
		return nil, errors.Appendf(ErrGetVotes, "ballotstore: %s - %s", resp.Status, details)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, ErrGetVotes)
	}

	var stored []storedVote
	if err := json.Unmarshal(body, &stored); err != nil {
		return nil, errors.Wrap(err, ErrGetVotes)
	}

	votes := make([]decide.CipherPair, len(stored))
	for i, v := range stored {
		votes[i] = decide.CipherPair{A: v.A, B: v.B}
	}

	return votes, nil
}

// ResponseDrainAndClose drains a response of it's body and closes it
// It should be used in a defer statement when doing an HTTP request
func ResponseDrainAndClose(resp *http.Response) {
	if resp != nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}
}
