package scenario

import (
	"fmt"

	"github.com/iti/rngstream"
)

// MaxSeed is the largest scenario seed. The six components of a stream seed
// are seed, seed+1, ..., seed+5, and they must stay below the modulus of the
// second generator component.
const MaxSeed = 4294944443 - 6

// Streams hands out the random streams of one scenario. The k-th stream
// starts at the k-th substream of the scenario seed, so the numbers that an
// application draws do not depend on the streams created by other runners.
type Streams struct {
	seed []uint64
	next int
}

// NewStreams creates the stream source of a scenario. A seed of 0 selects the
// default seed of rngstream.
func NewStreams(seed uint64) (*Streams, error) {
	if seed > MaxSeed {
		return nil, fmt.Errorf("seed %d is larger than %d", seed, MaxSeed)
	}

	s := &Streams{seed: make([]uint64, 6)}
	for i := range s.seed {
		if seed == 0 {
			s.seed[i] = 12345
		} else {
			s.seed[i] = seed + uint64(i)
		}
	}

	return s, nil
}

// New creates the next stream.
func (s *Streams) New(name string) *rngstream.RngStream {
	g := rngstream.New(name)
	if !g.SetSeed(s.seed) {
		panic(fmt.Sprintf("invalid stream seed %v", s.seed))
	}

	for i := 0; i < s.next; i++ {
		g.ResetNextSubstream()
	}
	s.next++

	return g
}
