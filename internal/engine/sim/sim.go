// Package sim positions topic bubbles inside a bounded region with a
// continuous force simulation: popularity reads as size and centrality,
// motion stays organic without ever going chaotic.
package sim

import (
	"math"
	"math/rand"
	"time"

	"flowstate/internal/domain"
)

// Config holds every tuning constant of the simulation, fixed at
// construction so runs are reproducible under a seed.
type Config struct {
	MaxBubbles int
	Width      float64
	Height     float64

	MinRadius float64
	MaxRadius float64
	SqrtScale bool // square-root size curve, used by the 3D-styled renderer

	CenterPull    float64
	CenterEpsilon float64

	OrbitStrength float64
	OrbitMinDist  float64

	DriftStrength float64

	AttractStrength float64
	AttractCutoff   float64

	CollisionPadding  float64
	CollisionStrength float64
	SoftnessExponent  float64

	MaxSpeed float64
	Damping  float64

	WallMargin float64
	WallBounce float64

	SpawnDistMin float64
	SpawnDistMax float64
	SpawnSpeed   float64

	Seed int64 // 0 seeds from the clock
}

// DefaultConfig returns the production tuning
func DefaultConfig() Config {
	return Config{
		MaxBubbles:        24,
		Width:             1000,
		Height:            600,
		MinRadius:         24,
		MaxRadius:         80,
		CenterPull:        18,
		CenterEpsilon:     1,
		OrbitStrength:     12,
		OrbitMinDist:      40,
		DriftStrength:     30,
		AttractStrength:   10,
		AttractCutoff:     260,
		CollisionPadding:  6,
		CollisionStrength: 40,
		SoftnessExponent:  1.5,
		MaxSpeed:          160,
		Damping:           0.92,
		WallMargin:        8,
		WallBounce:        0.35,
		SpawnDistMin:      60,
		SpawnDistMax:      180,
		SpawnSpeed:        20,
	}
}

// bubble is the ephemeral physics state for one visible topic
type bubble struct {
	symbol string
	x, y   float64
	vx, vy float64
	radius float64
	mass   float64 // mirrors the topic count
}

// Simulator owns physics state for the visible top-N topics. Bubbles are
// created when a topic enters the visible set and destroyed the moment it
// leaves; there is no fade-out at this layer. Not safe for concurrent use.
type Simulator struct {
	cfg     Config
	rng     *rand.Rand
	bubbles map[string]*bubble
	order   []string // insertion order, keeps integration deterministic
	maxMass float64
}

// New creates a simulator with the given tuning
func New(cfg Config) *Simulator {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Simulator{
		cfg:     cfg,
		rng:     rand.New(rand.NewSource(seed)),
		bubbles: make(map[string]*bubble),
	}
}

// Sync reconciles physics state with the ranked visible set: spawns
// newcomers near the center, refreshes radius and mass from rank, and tears
// down state for topics that fell out of the ranking.
func (s *Simulator) Sync(ranked []domain.TopicSummary) {
	if len(ranked) > s.cfg.MaxBubbles {
		ranked = ranked[:s.cfg.MaxBubbles]
	}

	visible := make(map[string]bool, len(ranked))
	maxCount := 0
	for _, t := range ranked {
		visible[t.Symbol] = true
		if t.Count > maxCount {
			maxCount = t.Count
		}
	}

	// Teardown first so departing bubbles free room for newcomers
	kept := s.order[:0]
	for _, symbol := range s.order {
		if visible[symbol] {
			kept = append(kept, symbol)
		} else {
			delete(s.bubbles, symbol)
		}
	}
	s.order = kept

	s.maxMass = float64(maxCount)

	for _, t := range ranked {
		b, ok := s.bubbles[t.Symbol]
		if !ok {
			b = s.spawn(t.Symbol)
			s.bubbles[t.Symbol] = b
			s.order = append(s.order, t.Symbol)
		}
		b.mass = float64(t.Count)
		b.radius = s.radiusFor(t.Count, maxCount)
	}
}

// Step advances the simulation by dt seconds
func (s *Simulator) Step(dt float64) {
	if len(s.bubbles) == 0 || dt <= 0 {
		return
	}
	// A stalled animation clock must not explode the integration
	if dt > 0.1 {
		dt = 0.1
	}

	cx := s.cfg.Width / 2
	cy := s.cfg.Height / 2

	for _, symbol := range s.order {
		b := s.bubbles[symbol]
		pop := s.popularity(b)

		dx := cx - b.x
		dy := cy - b.y
		dist := math.Hypot(dx, dy)

		// Center pull, stronger for popular bubbles
		if dist > s.cfg.CenterEpsilon {
			f := s.cfg.CenterPull * pop / dist
			b.vx += dx * f * dt
			b.vy += dy * f * dt
		}

		// Tangential orbit, stronger toward the rim
		if dist > s.cfg.OrbitMinDist {
			f := s.cfg.OrbitStrength * (1 - pop) / dist
			b.vx += -dy * f * dt
			b.vy += dx * f * dt
		}

		// Random drift keeps every bubble alive
		drift := s.cfg.DriftStrength * (1 - 0.7*pop)
		b.vx += (s.rng.Float64()*2 - 1) * drift * dt
		b.vy += (s.rng.Float64()*2 - 1) * drift * dt
	}

	s.applyPairForces(dt)

	for _, symbol := range s.order {
		b := s.bubbles[symbol]

		// Clamp speed before damping so force spikes cannot accumulate
		speed := math.Hypot(b.vx, b.vy)
		if speed > s.cfg.MaxSpeed {
			scale := s.cfg.MaxSpeed / speed
			b.vx *= scale
			b.vy *= scale
		}

		b.vx *= s.cfg.Damping
		b.vy *= s.cfg.Damping

		b.x += b.vx * dt
		b.y += b.vy * dt

		s.containInBounds(b)
	}
}

// Snapshot returns read-only positions for the renderer
func (s *Simulator) Snapshot() []domain.BubbleSnapshot {
	out := make([]domain.BubbleSnapshot, 0, len(s.order))
	for _, symbol := range s.order {
		b := s.bubbles[symbol]
		out = append(out, domain.BubbleSnapshot{Symbol: symbol, X: b.x, Y: b.y, Radius: b.radius})
	}
	return out
}

// Has reports whether a topic currently holds physics state
func (s *Simulator) Has(symbol string) bool {
	_, ok := s.bubbles[symbol]
	return ok
}

// Len reports the number of visible bubbles
func (s *Simulator) Len() int {
	return len(s.bubbles)
}

// Reset tears down all physics state; restarting from empty is always safe
func (s *Simulator) Reset() {
	s.bubbles = make(map[string]*bubble)
	s.order = nil
	s.maxMass = 0
}

// applyPairForces runs the O(n²) mass-attraction and soft-collision passes.
// With n capped at 24 the quadratic cost is cheaper than a spatial index.
func (s *Simulator) applyPairForces(dt float64) {
	for i := 0; i < len(s.order); i++ {
		bi := s.bubbles[s.order[i]]
		for j := i + 1; j < len(s.order); j++ {
			bj := s.bubbles[s.order[j]]

			dx := bj.x - bi.x
			dy := bj.y - bi.y
			dist := math.Hypot(dx, dy)
			if dist < 1e-6 {
				// Coincident centers get a deterministic nudge apart
				bi.x -= 0.5
				bj.x += 0.5
				dx = 1
				dist = 1
			}
			ux := dx / dist
			uy := dy / dist

			// Heavier bubbles gather lighter ones within the cutoff
			if s.maxMass > 0 && dist < s.cfg.AttractCutoff && bi.mass != bj.mass {
				f := s.cfg.AttractStrength * math.Abs(bj.mass-bi.mass) / s.maxMass
				if bj.mass > bi.mass {
					bi.vx += ux * f * dt
					bi.vy += uy * f * dt
				} else {
					bj.vx -= ux * f * dt
					bj.vy -= uy * f * dt
				}
			}

			// Soft collision: gradual overlap resolution, no snapping
			minDist := bi.radius + bj.radius + s.cfg.CollisionPadding
			if dist < minDist {
				overlap := minDist - dist
				f := s.cfg.CollisionStrength * math.Pow(overlap, s.cfg.SoftnessExponent) * dt / minDist
				bi.vx -= ux * f
				bi.vy -= uy * f
				bj.vx += ux * f
				bj.vy += uy * f
			}
		}
	}
}

// containInBounds clamps a bubble to the region and reflects the offending
// velocity component with strong attenuation (inelastic bounce)
func (s *Simulator) containInBounds(b *bubble) {
	lo := b.radius + s.cfg.WallMargin

	if b.x < lo {
		b.x = lo
		b.vx = math.Abs(b.vx) * s.cfg.WallBounce
	} else if hi := s.cfg.Width - lo; b.x > hi {
		b.x = hi
		b.vx = -math.Abs(b.vx) * s.cfg.WallBounce
	}

	if b.y < lo {
		b.y = lo
		b.vy = math.Abs(b.vy) * s.cfg.WallBounce
	} else if hi := s.cfg.Height - lo; b.y > hi {
		b.y = hi
		b.vy = -math.Abs(b.vy) * s.cfg.WallBounce
	}
}

// radiusFor maps rank-relative popularity onto the configured size band;
// the top topic always sets the size ceiling
func (s *Simulator) radiusFor(count, maxCount int) float64 {
	if maxCount <= 0 {
		return s.cfg.MinRadius
	}
	pop := float64(count) / float64(maxCount)
	if s.cfg.SqrtScale {
		pop = math.Sqrt(pop)
	}
	return s.cfg.MinRadius + pop*(s.cfg.MaxRadius-s.cfg.MinRadius)
}

func (s *Simulator) popularity(b *bubble) float64 {
	if s.maxMass <= 0 {
		return 0
	}
	return b.mass / s.maxMass
}

// spawn places a new bubble at a pseudo-random polar offset from the center
func (s *Simulator) spawn(symbol string) *bubble {
	theta := s.rng.Float64() * 2 * math.Pi
	d := s.cfg.SpawnDistMin + s.rng.Float64()*(s.cfg.SpawnDistMax-s.cfg.SpawnDistMin)

	return &bubble{
		symbol: symbol,
		x:      s.cfg.Width/2 + math.Cos(theta)*d,
		y:      s.cfg.Height/2 + math.Sin(theta)*d,
		vx:     (s.rng.Float64()*2 - 1) * s.cfg.SpawnSpeed,
		vy:     (s.rng.Float64()*2 - 1) * s.cfg.SpawnSpeed,
	}
}
