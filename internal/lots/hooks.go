package lots

import "time"

// Hooks receives operational events from the lots services.
type Hooks interface {
	ObserveOperation(name, status string, dur time.Duration)
	IncConflict(name string)
	GroupRecomputed(members int, dur time.Duration)
	GroupPruned()
	LotsCreated(source string, n int)
	OverlapCheckFailed()
}

type noopHooks struct{}

func (noopHooks) ObserveOperation(string, string, time.Duration) {}
func (noopHooks) IncConflict(string)                             {}
func (noopHooks) GroupRecomputed(int, time.Duration)             {}
func (noopHooks) GroupPruned()                                   {}
func (noopHooks) LotsCreated(string, int)                        {}
func (noopHooks) OverlapCheckFailed()                            {}
