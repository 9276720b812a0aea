package decide

import "math/big"

// Key holds the public key parameters of a voting (classic discrete-log
// p/g/y components). A key is produced once by the authorities' distributed
// key-generation ceremony and never mutated; it belongs to at most one
// voting.
type Key struct {
	ID int64
	P  *big.Int
	G  *big.Int
	Y  *big.Int
}

// Authority is a party holding partial key material and participating in
// the shuffle/decrypt ceremonies. Votings and authorities are many-to-many.
type Authority struct {
	ID   int64
	Name string
	URL  string
}
