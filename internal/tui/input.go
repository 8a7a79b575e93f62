package tui

// InputModel is an immutable single-line text input.
type InputModel struct {
	value       []rune
	placeholder string
}

// NewInputModel creates an empty input showing placeholder.
func NewInputModel(placeholder string) InputModel {
	return InputModel{placeholder: placeholder}
}

// Insert returns a new model with runes appended.
func (m InputModel) Insert(runes []rune) InputModel {
	next := make([]rune, 0, len(m.value)+len(runes))
	next = append(next, m.value...)
	m.value = append(next, runes...)
	return m
}

// Backspace returns a new model with the last rune removed.
func (m InputModel) Backspace() InputModel {
	if len(m.value) > 0 {
		m.value = m.value[:len(m.value)-1]
	}
	return m
}

// Reset returns an empty input with the same placeholder.
func (m InputModel) Reset() InputModel {
	m.value = nil
	return m
}

// Value returns the typed text.
func (m InputModel) Value() string {
	return string(m.value)
}

// View renders the input. The cursor is only drawn when enabled.
func (m InputModel) View(enabled bool) string {
	if len(m.value) == 0 && !enabled {
		return "> " + dimStyle.Render(m.placeholder)
	}
	if len(m.value) == 0 {
		return "> " + dimStyle.Render(m.placeholder) + "█"
	}
	if !enabled {
		return "> " + dimStyle.Render(string(m.value))
	}
	return "> " + string(m.value) + "█"
}
