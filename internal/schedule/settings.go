package schedule

import "time"

// Settings carries the per-clinic scheduling policy. Zero values fall back
// to the defaults below via Normalize.
type Settings struct {
	Window          WorkingWindow
	SlotGranularity int // minutes between generated slot starts
	BufferMinutes   int // minimum gap between same-resource appointments
	SearchRadius    int // days each side scanned for alternatives
	MaxAlternatives int
	ExpansionCap    int
}

func DefaultSettings() Settings {
	return Settings{
		Window: WorkingWindow{
			Open:           NewTimeOfDay(7, 0),
			Close:          NewTimeOfDay(19, 0),
			ClosedWeekdays: map[time.Weekday]bool{time.Sunday: true},
		},
		SlotGranularity: 30,
		BufferMinutes:   0,
		SearchRadius:    7,
		MaxAlternatives: 3,
		ExpansionCap:    DefaultExpansionCap,
	}
}

func (s Settings) Normalize() Settings {
	def := DefaultSettings()
	if s.Window.Open == 0 && s.Window.Close == 0 {
		s.Window = def.Window
	}
	if s.Window.ClosedWeekdays == nil {
		s.Window.ClosedWeekdays = map[time.Weekday]bool{}
	}
	if s.SlotGranularity <= 0 {
		s.SlotGranularity = def.SlotGranularity
	}
	if s.SearchRadius <= 0 {
		s.SearchRadius = def.SearchRadius
	}
	if s.MaxAlternatives <= 0 {
		s.MaxAlternatives = def.MaxAlternatives
	}
	if s.ExpansionCap <= 0 {
		s.ExpansionCap = def.ExpansionCap
	}
	return s
}
