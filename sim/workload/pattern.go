package workload

import "math/rand"

// Pattern is the mutable generation state of one source: when it fires
// next and where it is in its kind sequence.
type Pattern struct {
	spec    SourceCadence
	sampler ArrivalSampler

	nextAt    int64
	seqIndex  int
	emissions int // firing instants so far
	generated int // packets so far
	done      bool
}

// NewPattern creates the initial state for a validated cadence.
func NewPattern(spec SourceCadence) *Pattern {
	p := &Pattern{spec: spec, sampler: NewArrivalSampler(spec.Arrival, spec.IntervalMs)}
	p.Reset()
	return p
}

// Spec returns the cadence the pattern follows.
func (p *Pattern) Spec() SourceCadence { return p.spec }

// NextAt returns the time (ms) of the next emission.
func (p *Pattern) NextAt() int64 { return p.nextAt }

// Done reports whether the pattern has stopped emitting.
func (p *Pattern) Done() bool { return p.done }

// Generated returns the number of packet kinds emitted so far.
func (p *Pattern) Generated() int { return p.generated }

// Reset rewinds the pattern to its initial state.
func (p *Pattern) Reset() {
	p.nextAt = p.spec.StartMs
	p.seqIndex = 0
	p.emissions = 0
	p.generated = 0
	p.done = false
}

// Due returns the packet kinds of every emission scheduled at or before
// now, in emission order, and advances the pattern past them.
func (p *Pattern) Due(now int64, rng *rand.Rand) []string {
	var kinds []string
	for !p.done && p.nextAt <= now {
		if p.spec.StopMs > 0 && p.nextAt >= p.spec.StopMs {
			p.done = true
			break
		}
		p.emissions++
		for i := 0; i < p.burstSize(); i++ {
			if p.spec.Count > 0 && p.generated >= p.spec.Count {
				p.done = true
				break
			}
			kinds = append(kinds, p.spec.Sequence[p.seqIndex%len(p.spec.Sequence)])
			p.seqIndex++
			p.generated++
		}
		if p.spec.Count > 0 && p.generated >= p.spec.Count {
			p.done = true
		}
		p.nextAt += p.sampler.SampleIAT(rng)
	}
	return kinds
}

// burstSize is the size of the largest burst whose period divides the
// current emission number; 1 when none applies.
func (p *Pattern) burstSize() int {
	size := 1
	for _, b := range p.spec.Bursts {
		if p.emissions%b.Every == 0 && b.Size > size {
			size = b.Size
		}
	}
	return size
}
