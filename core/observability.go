package core

// PoolStats represents runtime observability state for a worker pool.
type PoolStats struct {
	Name     string
	Workers  int
	Priority Priority
	Queued   int
	Active   int
	Delayed  int
	Running  bool
}
