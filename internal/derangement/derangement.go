// Package derangement assigns every participant a recipient other than
// themselves using Sattolo's shuffle, which always yields one single cycle.
package derangement

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// ErrTooFew is returned for fewer than two participants.
var ErrTooFew = errors.New("derangement needs at least two participants")

// Source yields uniformly distributed integers in [0, n).
type Source interface {
	IntN(n int) (int, error)
}

// CryptoSource draws from crypto/rand.
type CryptoSource struct{}

// IntN returns a uniform value in [0, n).
func (CryptoSource) IntN(n int) (int, error) {
	if n <= 0 {
		return 0, fmt.Errorf("invalid bound %d", n)
	}
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, err
	}
	return int(v.Int64()), nil
}

// Generate returns a shuffled copy of ids such that pairing ids[i] with the
// result[i] has no fixed point and forms a single cycle.
func Generate(ids []string, src Source) ([]string, error) {
	if len(ids) < 2 {
		return nil, ErrTooFew
	}
	if src == nil {
		src = CryptoSource{}
	}

	out := make([]string, len(ids))
	copy(out, ids)
	for i := len(out) - 1; i > 0; i-- {
		// j in [0, i-1]; never i
		j, err := src.IntN(i)
		if err != nil {
			return nil, fmt.Errorf("random source: %w", err)
		}
		if j < 0 || j >= i {
			return nil, fmt.Errorf("random source returned %d outside [0,%d)", j, i)
		}
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// Pairs zips givers with recipients index by index.
func Pairs(ids, shuffled []string) map[string]string {
	pairs := make(map[string]string, len(ids))
	for i, giver := range ids {
		if i < len(shuffled) {
			pairs[giver] = shuffled[i]
		}
	}
	return pairs
}

// ValidationError lists every broken property of a giver -> recipient mapping.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid assignment: " + strings.Join(e.Problems, "; ")
}

// Validate checks there are no self matches, no repeated recipients and
// exactly one entry per participant.
func Validate(ids []string, pairs map[string]string) error {
	var problems []string

	if len(pairs) != len(ids) {
		problems = append(problems, fmt.Sprintf("mapping has %d entries for %d participants", len(pairs), len(ids)))
	}

	seen := make(map[string]string, len(pairs))
	for _, giver := range ids {
		recipient, ok := pairs[giver]
		if !ok {
			problems = append(problems, fmt.Sprintf("%s has no recipient", giver))
			continue
		}
		if recipient == giver {
			problems = append(problems, fmt.Sprintf("%s is assigned to themselves", giver))
		}
		if other, dup := seen[recipient]; dup {
			problems = append(problems, fmt.Sprintf("%s is the recipient of both %s and %s", recipient, other, giver))
		}
		seen[recipient] = giver
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// Assign runs Generate, Pairs and Validate in sequence.
func Assign(ids []string, src Source) (map[string]string, error) {
	shuffled, err := Generate(ids, src)
	if err != nil {
		return nil, err
	}
	pairs := Pairs(ids, shuffled)
	if err := Validate(ids, pairs); err != nil {
		return nil, err
	}
	return pairs, nil
}
