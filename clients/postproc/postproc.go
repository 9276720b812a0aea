package postproc

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/phayes/errors"

	"github.com/pedroswe/decide/decide"
)

var (
	ErrProcess = errors.New("postproc: Unable to POST tally for post-processing")
)

// DefaultTimeout bounds every call to the post-processing service.
const DefaultTimeout = 30 * time.Second

// Client provides access to the post-processing REST service, which turns
// raw per-option counts into a presentation-ready result.
type Client struct {
	BaseURL    string
	HTTPClient http.Client
}

// NewClient creates a new Client for the post-processing service at baseurl.
func NewClient(baseurl string) *Client {
	return &Client{BaseURL: baseurl, HTTPClient: http.Client{Timeout: DefaultTimeout}}
}

type processRequest struct {
	Type    string                `json:"type"`
	Options []decide.OptionResult `json:"options"`
}

// Process submits the per-option counts under the given processing
// directive and returns the service's result verbatim.
func (c *Client) Process(typ string, options []decide.OptionResult) (json.RawMessage, error) {
	data, err := json.Marshal(processRequest{Type: typ, Options: options})
	if err != nil {
		return nil, errors.Wrap(err, ErrProcess)
	}

	req, err := http.NewRequest("POST", c.BaseURL, bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, ErrProcess)
	}
	req.Header.Set("Content-Type", "application/json")

	// Do the request
	resp, err := c.HTTPClient.Do(req)
	defer ResponseDrainAndClose(resp)
	if err != nil {
		return nil, errors.Wrap(err, ErrProcess)
	}

	// Handle errors
	if resp.StatusCode != 200 {
		details, _ := io.ReadAll(resp.Body)
		return nil, errors.Appendf(ErrProcess, "postproc: %s - %s", resp.Status, details)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, ErrProcess)
	}
	if !json.Valid(body) {
		return nil, errors.Appendf(ErrProcess, "postproc: response is not valid JSON")
	}

	return json.RawMessage(body), nil
}

// ResponseDrainAndClose drains a response of it's body and closes it
// It should be used in a defer statement when doing an HTTP request
func ResponseDrainAndClose(resp *http.Response) {
	if resp != nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}
}
