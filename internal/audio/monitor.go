package audio

import "time"

// Signal is the monitor's verdict after folding in one observation.
type Signal int

const (
	Continue Signal = iota
	StopSilence
	StopMaxDuration
)

func (s Signal) String() string {
	switch s {
	case StopSilence:
		return "stop-silence"
	case StopMaxDuration:
		return "stop-max-duration"
	default:
		return "continue"
	}
}

// Sample is one noise-level reading from the capture layer. Higher levels
// are louder.
type Sample struct {
	LevelDB float64
	At      time.Time
}

// MonitorConfig bounds one recording session.
type MonitorConfig struct {
	NoiseThresholdDB float64
	SilenceLimit     time.Duration
	MaxDuration      time.Duration // 0 = unlimited
	StartedAt        time.Time
}

// Monitor decides when a recording session should stop. It is pure state:
// no I/O and no clock of its own. The capture loop feeds it level readings
// via Observe and wall-clock progress via Tick. Stop signals are one-shot;
// once tripped the monitor reports Continue for the rest of the session.
type Monitor struct {
	cfg MonitorConfig

	silence      time.Duration
	lastSampleAt time.Time
	inSilence    bool
	tripped      bool
}

func NewMonitor(cfg MonitorConfig) *Monitor {
	return &Monitor{cfg: cfg, lastSampleAt: cfg.StartedAt}
}

// Observe folds one level reading into the silence state. Levels at or
// above the noise threshold count as speech and reset the silence window;
// levels below it extend the window begun by the first quiet reading.
func (m *Monitor) Observe(s Sample) Signal {
	if m.tripped {
		return Continue
	}
	if sig := m.checkCap(s.At); sig != Continue {
		return sig
	}

	if s.LevelDB >= m.cfg.NoiseThresholdDB {
		m.silence = 0
		m.inSilence = false
		m.lastSampleAt = s.At
		return Continue
	}

	if m.inSilence {
		if d := s.At.Sub(m.lastSampleAt); d > 0 {
			m.silence += d
			m.lastSampleAt = s.At
		}
	} else {
		m.inSilence = true
		m.silence = 0
		m.lastSampleAt = s.At
	}

	return m.checkSilence()
}

// Tick advances the silence clock between samples so the stop fires at the
// limit even when no further level events arrive.
func (m *Monitor) Tick(now time.Time) Signal {
	if m.tripped {
		return Continue
	}
	if sig := m.checkCap(now); sig != Continue {
		return sig
	}
	if !m.inSilence {
		return Continue
	}
	if d := now.Sub(m.lastSampleAt); d > 0 {
		m.silence += d
		m.lastSampleAt = now
	}
	return m.checkSilence()
}

func (m *Monitor) checkSilence() Signal {
	if m.silence >= m.cfg.SilenceLimit {
		m.tripped = true
		return StopSilence
	}
	return Continue
}

// The duration cap beats everything, including continued speech.
func (m *Monitor) checkCap(now time.Time) Signal {
	if m.cfg.MaxDuration <= 0 {
		return Continue
	}
	if now.Sub(m.cfg.StartedAt) >= m.cfg.MaxDuration {
		m.tripped = true
		return StopMaxDuration
	}
	return Continue
}
