package metrics

// MultiSink fans events out to several sinks. The first error wins but every
// sink is still invoked.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink combines the given sinks.
func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

func (m *MultiSink) RecordAssignment(ev AssignmentEvent) error {
	var first error
	for _, s := range m.sinks {
		if err := s.RecordAssignment(ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m *MultiSink) RecordConflictCheck(ev ConflictCheckEvent) error {
	var first error
	for _, s := range m.sinks {
		if r, ok := s.(ConflictRecorder); ok {
			if err := r.RecordConflictCheck(ev); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}

func (m *MultiSink) RecordPoll(ev PollEvent) error {
	var first error
	for _, s := range m.sinks {
		if r, ok := s.(PollRecorder); ok {
			if err := r.RecordPoll(ev); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}
