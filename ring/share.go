//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package ring

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Components holds the three additive components of a secret. The
// components sum to the represented value; this invariant must hold
// after every local or protocol operation.
type Components [NumParties]uint64

// Split splits the value into components using the two argument
// randomizers: components 1 and 2 are r1 and r2, component 0 absorbs
// the value.
func (r Ring) Split(v, r1, r2 uint64) Components {
	return Components{
		r.Sub(r.Sub(v, r1), r2),
		r1 & r.mask,
		r2 & r.mask,
	}
}

// Reconstruct sums the components in the ring.
func (r Ring) Reconstruct(c Components) uint64 {
	return r.Add(r.Add(c[0], c[1]), c[2])
}

// Holding projects the components to the replicated share of the
// argument party: the pair (a_party, a_{party+1}).
func (c Components) Holding(party int) (Share, error) {
	if party < 0 || party >= NumParties {
		return Share{}, errors.Newf("invalid party %d: expected [0...%d[",
			party, NumParties)
	}
	return Share{
		A: c[party],
		B: c[(party+1)%NumParties],
	}, nil
}

// Share is one party's replicated share: the two additive components
// assigned to the party by the fixed layout. Shares are write-once
// values; gates produce new shares instead of mutating inputs.
type Share struct {
	A uint64
	B uint64
}

func (s Share) String() string {
	return fmt.Sprintf("(%d,%d)", s.A, s.B)
}

// AddShares computes a share of x+y locally.
func (r Ring) AddShares(x, y Share) Share {
	return Share{
		A: r.Add(x.A, y.A),
		B: r.Add(x.B, y.B),
	}
}

// SubShares computes a share of x-y locally.
func (r Ring) SubShares(x, y Share) Share {
	return Share{
		A: r.Sub(x.A, y.A),
		B: r.Sub(x.B, y.B),
	}
}

// NegShare computes a share of -x locally.
func (r Ring) NegShare(x Share) Share {
	return Share{
		A: r.Neg(x.A),
		B: r.Neg(x.B),
	}
}

// AddConst computes a share of x+c for a public constant c. The
// constant is folded into component 0, held by parties 0 and 2.
func (r Ring) AddConst(x Share, c uint64, party int) Share {
	switch party {
	case 0:
		x.A = r.Add(x.A, c)
	case 2:
		x.B = r.Add(x.B, c)
	}
	return x
}

// MulLocal computes this party's additive component of x*y from its
// two share components plus the zero-share randomizer alpha. The
// result is one component of the product; the replicated pair is
// completed by the multiplication round's exchange.
func (r Ring) MulLocal(x, y Share, alpha uint64) uint64 {
	z := r.Mul(x.A, y.A)
	z = r.Add(z, r.Mul(x.A, y.B))
	z = r.Add(z, r.Mul(x.B, y.A))
	return r.Add(z, alpha)
}
