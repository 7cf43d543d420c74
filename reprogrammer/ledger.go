package reprogrammer

// ledger counts, per flow-table name, the SetEntry operations issued
// by the reprogrammer and the CREATED or REJECTED events that settled
// them. The flow table answers every set exactly once and in order, so
// the n-th settling event for a name answers the n-th set.
type ledger struct {
	issued  map[string]uint64
	settled map[string]uint64
}

func newLedger() *ledger {
	return &ledger{
		issued:  make(map[string]uint64),
		settled: make(map[string]uint64),
	}
}

// next returns the ordinal the next set issued for name will receive.
func (l *ledger) next(name string) uint64 {
	return l.issued[name] + 1
}

// issue records a successful set for name.
func (l *ledger) issue(name string) {
	l.issued[name]++
}

// unissue reverses issue for a set the flow table refused.
func (l *ledger) unissue(name string) {
	if l.issued[name] > 0 {
		l.issued[name]--
	}
}

// settle records a terminal event for name and returns the ordinal of
// the set it answers. Events beyond what was issued belong to another
// writer and return zero.
func (l *ledger) settle(name string) uint64 {
	if l.settled[name] >= l.issued[name] {
		return 0
	}
	l.settled[name]++
	return l.settled[name]
}

// outstanding returns the number of sets for name still unanswered.
func (l *ledger) outstanding(name string) uint64 {
	return l.issued[name] - l.settled[name]
}

// forget drops the counters for name once nothing is outstanding.
// Ordinals restart from one afterwards.
func (l *ledger) forget(name string) {
	if l.outstanding(name) == 0 {
		delete(l.issued, name)
		delete(l.settled, name)
	}
}
