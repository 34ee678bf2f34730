package ux

import "github.com/charmbracelet/lipgloss"

// Styles contains lipgloss styles for text output
type Styles struct {
	Title   lipgloss.Style
	Label   lipgloss.Style
	Value   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Muted   lipgloss.Style
}

// DefaultStyles returns the default lipgloss styles
func DefaultStyles() *Styles {
	return &Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("63")), // Purple
		Label: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")), // Gray
		Value: lipgloss.NewStyle().
			Foreground(lipgloss.Color("7")),
		Success: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("46")), // Green
		Warning: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("214")), // Orange
		Error: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196")), // Red
		Muted: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")),
	}
}

// Render applies pick(s) to text, or returns text unchanged when s is nil.
func (s *Styles) Render(pick func(*Styles) lipgloss.Style, text string) string {
	if s == nil {
		return text
	}
	return pick(s).Render(text)
}

// Style selectors for Render.
func TitleStyle(s *Styles) lipgloss.Style   { return s.Title }
func LabelStyle(s *Styles) lipgloss.Style   { return s.Label }
func ValueStyle(s *Styles) lipgloss.Style   { return s.Value }
func SuccessStyle(s *Styles) lipgloss.Style { return s.Success }
func WarningStyle(s *Styles) lipgloss.Style { return s.Warning }
func ErrorStyle(s *Styles) lipgloss.Style   { return s.Error }
func MutedStyle(s *Styles) lipgloss.Style   { return s.Muted }

// Field renders "label: value" with the label styled.
func (s *Styles) Field(label, value string) string {
	return s.Render(LabelStyle, label+":") + " " + s.Render(ValueStyle, value)
}
