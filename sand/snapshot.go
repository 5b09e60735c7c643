package sand

// A Snapshot is a read-only view of a pool for presentation layers. It
// is safe to take at any frequency and never mutates the pool.
type Snapshot struct {
	Current        int     `json:"current"`
	Capacity       int     `json:"capacity"`
	Progress       float64 `json:"progress"`
	TimeToNextUnit float64 `json:"time_to_next_unit"`
	Paused         bool    `json:"paused"`
}

// Snapshot captures the pool's visible state: whole units, capacity,
// fractional progress toward the next unit, estimated seconds until that
// unit arrives, and whether regeneration is paused.
func (p *Pool) Snapshot() Snapshot {
	return Snapshot{
		Current:        p.current,
		Capacity:       p.capacity,
		Progress:       p.carry,
		TimeToNextUnit: p.TimeToNextUnit(),
		Paused:         p.clock.IsPaused(),
	}
}
