package decide

import (
	"encoding/json"
	"math/big"

	"github.com/phayes/errors"
)

var (
	ErrInvalidCipherPair = errors.New("decide: a ballot must be a pair of ciphertext components")
)

// CipherPair is one anonymized encrypted ballot: the two ciphertext
// components of an ElGamal-style encryption. On the wire it is the
// two-element array [a, b]. The components are arbitrary-precision
// integers.
type CipherPair struct {
	A *big.Int
	B *big.Int
}

// MarshalJSON encodes the pair as [a, b].
func (p CipherPair) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]*big.Int{p.A, p.B})
}

// UnmarshalJSON decodes [a, b], rejecting anything that is not exactly a
// two-element array of integers.
func (p *CipherPair) UnmarshalJSON(data []byte) error {
	var parts []*big.Int
	if err := json.Unmarshal(data, &parts); err != nil {
		return errors.Wrap(err, ErrInvalidCipherPair)
	}
	if len(parts) != 2 {
		return errors.Appendf(ErrInvalidCipherPair, "decide: got %d components", len(parts))
	}
	p.A, p.B = parts[0], parts[1]
	return nil
}
