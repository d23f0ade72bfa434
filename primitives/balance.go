package primitives

import (
	"github.com/holiman/uint256"
)

// Balance is an amount of tokens. Balances can exceed 64 bits so they are
// stored as a 256-bit unsigned integer.
type Balance uint256.Int

// NewBalance creates a balance from a uint64.
func NewBalance(v uint64) Balance {
	var out uint256.Int
	out.SetUint64(v)
	return Balance(out)
}

func (b Balance) int() *uint256.Int {
	x := uint256.Int(b)
	return &x
}

// Add returns b + o.
func (b Balance) Add(o Balance) Balance {
	var out uint256.Int
	out.Add(b.int(), o.int())
	return Balance(out)
}

// DivMod returns the quotient and remainder of b / n. n must be non-zero.
func (b Balance) DivMod(n uint64) (Balance, uint64) {
	d := uint256.NewInt(n)
	var q, r uint256.Int
	q.Div(b.int(), d)
	r.Mod(b.int(), d)
	return Balance(q), r.Uint64()
}

// Cmp compares b and o and returns -1, 0 or 1.
func (b Balance) Cmp(o Balance) int {
	return b.int().Cmp(o.int())
}

// IsZero reports whether the balance is zero.
func (b Balance) IsZero() bool {
	return b.int().IsZero()
}

// Uint64 returns the low 64 bits of the balance.
func (b Balance) Uint64() uint64 {
	return b.int().Uint64()
}

// Bytes32 returns the big endian bytes of the balance.
func (b Balance) Bytes32() [32]byte {
	return b.int().Bytes32()
}

// String returns the decimal representation of the balance.
func (b Balance) String() string {
	return b.int().ToBig().String()
}
