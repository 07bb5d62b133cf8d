// Package theme holds the light/dark presentation mode.
package theme

import "sync"

// Theme is a presentation mode.
type Theme int

const (
	Light Theme = iota
	Dark
)

func (t Theme) String() string {
	if t == Dark {
		return "dark"
	}
	return "light"
}

// Toggle returns the other theme.
func (t Theme) Toggle() Theme {
	if t == Dark {
		return Light
	}
	return Dark
}

// Palette is the set of markers a theme renders messages with.
type Palette struct {
	Header  string
	Bullet  string
	Company string
	Salary  string
	// Switch labels the toggle button, naming the theme it switches to.
	Switch string
}

var palettes = map[Theme]Palette{
	Light: {Header: "☀️", Bullet: "▫️", Company: "🏢", Salary: "💵", Switch: "Dark Mode"},
	Dark:  {Header: "🌙", Bullet: "▪️", Company: "🏬", Salary: "💰", Switch: "Light Mode"},
}

// Palette returns the markers for t.
func (t Theme) Palette() Palette {
	return palettes[t]
}

// Switch holds the process-wide theme. The zero value is Light.
type Switch struct {
	mu    sync.RWMutex
	theme Theme
}

// Current returns the active theme.
func (s *Switch) Current() Theme {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.theme
}

// Toggle flips the active theme and returns the new one.
func (s *Switch) Toggle() Theme {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.theme = s.theme.Toggle()
	return s.theme
}
