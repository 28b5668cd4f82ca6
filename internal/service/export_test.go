package service

// HoldRetention marks a prune run as in flight until the returned func is called.
func HoldRetention(r *Retention) func() {
	if !r.begin() {
		panic("retention already running")
	}
	return r.end
}
