package jump

// Simulated is a Jumper for hosted builds and tests: it records the
// last target handed to it instead of actually transferring control,
// so tests can assert on what the loader was about to jump to.
type Simulated struct {
	last32 *Target32
	last64 *Target64
}

func (s *Simulated) Jump32(t Target32) { s.last32 = &t }
func (s *Simulated) Jump64(t Target64) { s.last64 = &t }

// Last32 returns the most recent Target32 handed to Jump32, or
// ok=false if none has been.
func (s *Simulated) Last32() (Target32, bool) {
	if s.last32 == nil {
		return Target32{}, false
	}
	return *s.last32, true
}

// Last64 returns the most recent Target64 handed to Jump64, or
// ok=false if none has been.
func (s *Simulated) Last64() (Target64, bool) {
	if s.last64 == nil {
		return Target64{}, false
	}
	return *s.last64, true
}
