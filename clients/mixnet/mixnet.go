package mixnet

import (
	"bytes"
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/phayes/errors"

	"github.com/pedroswe/decide/decide"
)

var (
	ErrGenerateKey = errors.New("mixnet: Unable to generate voting key")
	ErrShuffle     = errors.New("mixnet: Unable to shuffle ballots")
	ErrDecrypt     = errors.New("mixnet: Unable to decrypt ballots")
)

// DefaultTimeout bounds every call to a mixnet authority.
const DefaultTimeout = 30 * time.Second

// Client provides access to one mixnet authority's REST service. The
// authority runs distributed key generation, shuffling and threshold
// decryption together with its peers; this client only ever talks to the
// one authority at BaseURL and lets it coordinate the rest.
type Client struct {
	BaseURL    string
	HTTPClient http.Client

	// KeyBits, when non-zero, is forwarded with key-generation requests.
	// All authorities of a voting must agree on it.
	KeyBits int
}

// NewClient creates a new Client for the mixnet authority at baseurl.
func NewClient(baseurl string) *Client {
	return &Client{BaseURL: baseurl, HTTPClient: http.Client{Timeout: DefaultTimeout}}
}

type wireAuthority struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type keyRequest struct {
	Voting  int64           `json:"voting"`
	Auths   []wireAuthority `json:"auths"`
	KeyBits int             `json:"keybits,omitempty"`
}

type keyResponse struct {
	P *big.Int `json:"p"`
	G *big.Int `json:"g"`
	Y *big.Int `json:"y"`
}

type shuffleRequest struct {
	Msgs []decide.CipherPair `json:"msgs"`
}

// GenerateKey asks the authority to run the key-generation ceremony for a
// voting, passing along the full authority set so the ceremony can be
// coordinated remotely. It returns the resulting public key parameters.
func (c *Client) GenerateKey(votingID int64, auths []decide.Authority) (*decide.Key, error) {
	wireAuths := make([]wireAuthority, len(auths))
	for i, a := range auths {
		wireAuths[i] = wireAuthority{Name: a.Name, URL: a.URL}
	}

	body, err := c.postJSON("/", keyRequest{Voting: votingID, Auths: wireAuths, KeyBits: c.KeyBits}, ErrGenerateKey)
	if err != nil {
		return nil, err
	}

	var key keyResponse
	if err := json.Unmarshal(body, &key); err != nil {
		return nil, errors.Wrap(err, ErrGenerateKey)
	}
	if key.P == nil || key.G == nil || key.Y == nil {
		return nil, errors.Appendf(ErrGenerateKey, "mixnet: incomplete key in response")
	}

	return &decide.Key{P: key.P, G: key.G, Y: key.Y}, nil
}

// Shuffle sends the ballot list through the authority's mix. The reply is
// the re-randomized, re-ordered list.
func (c *Client) Shuffle(votingID int64, msgs []decide.CipherPair) ([]decide.CipherPair, error) {
	body, err := c.postJSON("/shuffle/"+strconv.FormatInt(votingID, 10)+"/", shuffleRequest{Msgs: msgs}, ErrShuffle)
	if err != nil {
		return nil, err
	}

	var shuffled []decide.CipherPair
	if err := json.Unmarshal(body, &shuffled); err != nil {
		return nil, errors.Wrap(err, ErrShuffle)
	}

	return shuffled, nil
}

// Decrypt sends the shuffled ballots for threshold decryption. The shape of
// the decrypted tally is the authority's business; it is returned verbatim.
func (c *Client) Decrypt(votingID int64, msgs []decide.CipherPair) (json.RawMessage, error) {
	body, err := c.postJSON("/decrypt/"+strconv.FormatInt(votingID, 10)+"/", shuffleRequest{Msgs: msgs}, ErrDecrypt)
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, errors.Appendf(ErrDecrypt, "mixnet: response is not valid JSON")
	}
	return json.RawMessage(body), nil
}

func (c *Client) postJSON(entryPoint string, payload interface{}, baseErr error) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, baseErr)
	}

	req, err := http.NewRequest("POST", c.BaseURL+entryPoint, bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, baseErr)
	}
	req.Header.Set("Content-Type", "application/json")

	// Do the request
	resp, err := c.HTTPClient.Do(req)
	defer ResponseDrainAndClose(resp)
	if err != nil {
		return nil, errors.Wrap(err, baseErr)
	}

	// Handle errors
	if resp.StatusCode != 200 {
		details, _ := io.ReadAll(resp.Body)
		return nil, errors.Appendf(baseErr, "mixnet: %s - %s", resp.Status, details)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, baseErr)
	}

	return body, nil
}

// ResponseDrainAndClose drains a response of it's body and closes it
// It should be used in a defer statement when doing an HTTP request
func ResponseDrainAndClose(resp *http.Response) {
	if resp != nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}
}
