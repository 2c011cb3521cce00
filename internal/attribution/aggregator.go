package attribution

import "sync"

// Domain is one of the four fixed knowledge domains the orchestrator
// attributes responses to.
type Domain string

const (
	DomainMind  Domain = "mind"  // intellectual / technical
	DomainBody  Domain = "body"  // physical / telemetry
	DomainHeart Domain = "heart" // emotional / personal
	DomainSoul  Domain = "soul"  // ethical / governance
)

// Domains lists the fixed domains in tie-break priority order: soul wins any
// tie against mind/body/heart, mind wins over body/heart, body over heart.
func Domains() []Domain {
	return []Domain{DomainSoul, DomainMind, DomainBody, DomainHeart}
}

// Vector is the per-message contribution of each domain, conventionally
// normalized so the components sum to ~100.
type Vector struct {
	Mind  float64 `json:"mind"`
	Body  float64 `json:"body"`
	Heart float64 `json:"heart"`
	Soul  float64 `json:"soul"`
}

// Average is the per-component mean over all recorded vectors.
type Average struct {
	Mind  float64 `json:"mind"`
	Body  float64 `json:"body"`
	Heart float64 `json:"heart"`
	Soul  float64 `json:"soul"`
	Count int     `json:"count"`
}

// Drift labels which domain(s) dominate the running session average.
type Drift string

const (
	DriftBalanced  Drift = "balanced"
	DriftTechnical Drift = "technical"
	DriftReactive  Drift = "reactive"
	DriftPersonal  Drift = "personal"
	DriftEthical   Drift = "ethical"
)

// Aggregator keeps one attribution vector per message id plus the
// knowledge-base ingestion counters. Derived values (average, drift) are
// recomputed from the full map on every read; there is no incremental
// accumulator to drift or go stale after an overwrite.
type Aggregator struct {
	mu         sync.RWMutex
	vectors    map[string]Vector
	ingestions map[Domain]uint64
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		vectors:    make(map[string]Vector),
		ingestions: make(map[Domain]uint64),
	}
}

// Record inserts or overwrites the vector for messageID.
func (a *Aggregator) Record(messageID string, v Vector) {
	if messageID == "" {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.vectors[messageID] = v
}

// SessionAverage returns nil when nothing has been recorded.
func (a *Aggregator) SessionAverage() *Average {
	a.mu.RLock()
	defer a.mu.RUnlock()

	n := len(a.vectors)
	if n == 0 {
		return nil
	}
	var sum Vector
	for _, v := range a.vectors {
		sum.Mind += v.Mind
		sum.Body += v.Body
		sum.Heart += v.Heart
		sum.Soul += v.Soul
	}
	f := float64(n)
	return &Average{
		Mind:  sum.Mind / f,
		Body:  sum.Body / f,
		Heart: sum.Heart / f,
		Soul:  sum.Soul / f,
		Count: n,
	}
}

// DominantDomain returns the domain with the maximum component, ties broken
// by the fixed priority order soul > mind > body > heart.
func DominantDomain(v Vector) Domain {
	best := DomainSoul
	bestVal := v.Soul
	for _, d := range []Domain{DomainMind, DomainBody, DomainHeart} {
		val := componentOf(v, d)
		if val > bestVal {
			best = d
			bestVal = val
		}
	}
	return best
}

func componentOf(v Vector, d Domain) float64 {
	switch d {
	case DomainMind:
		return v.Mind
	case DomainBody:
		return v.Body
	case DomainHeart:
		return v.Heart
	default:
		return v.Soul
	}
}

// Drift classifies the current session average. The numeric constants and
// the rule order are business policy, not tunables: mind/body are compared
// against each other, heart/soul are absolute thresholds checked only after
// the mind/body rules fail.
func (a *Aggregator) Drift() *Drift {
	avg := a.SessionAverage()
	if avg == nil {
		return nil
	}
	d := classify(*avg)
	return &d
}

func classify(avg Average) Drift {
	max := avg.Mind
	for _, v := range []float64{avg.Body, avg.Heart, avg.Soul} {
		if v > max {
			max = v
		}
	}
	switch {
	case max < 30:
		return DriftBalanced
	case avg.Mind > 40 && avg.Mind > avg.Body+10:
		return DriftTechnical
	case avg.Body > 40 && avg.Body > avg.Mind+10:
		return DriftReactive
	case avg.Heart > 40:
		return DriftPersonal
	case avg.Soul > 40:
		return DriftEthical
	default:
		return DriftBalanced
	}
}

// Reset clears the attribution map. Ingestion counters survive: they count
// completed knowledge-base ingestions, not session activity.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.vectors = make(map[string]Vector)
}

// RecordIngestion bumps the counter for one completed knowledge-base
// ingestion in the given domain.
func (a *Aggregator) RecordIngestion(d Domain) {
	switch d {
	case DomainMind, DomainBody, DomainHeart, DomainSoul:
	default:
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ingestions[d]++
}

// IngestionCounts returns a copy of the per-domain ingestion counters.
func (a *Aggregator) IngestionCounts() map[Domain]uint64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make(map[Domain]uint64, len(a.ingestions))
	for d, n := range a.ingestions {
		out[d] = n
	}
	return out
}
