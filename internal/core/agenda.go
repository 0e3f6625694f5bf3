package core

// EventType names a change to an owner's agenda, pushed to subscribers.
type EventType string

const (
	EventAgendaAdded    EventType = "agenda.added"
	EventAgendaUpdated  EventType = "agenda.updated"
	EventAgendaRemoved  EventType = "agenda.removed"
	EventAgendaImported EventType = "agenda.imported"
	EventAgendaReplaced EventType = "agenda.replaced"
)

// Known agenda categories. The set is open; any label is accepted.
const (
	CategoryMeeting  = "Reunião"
	CategoryVisit    = "Visita"
	CategoryInternal = "Interno"
	CategoryUrgent   = "Urgente"
	CategoryPersonal = "Pessoal"
	CategoryOther    = "Outro"
)

// Categories returns the known category labels in display order.
func Categories() []string {
	return []string{CategoryMeeting, CategoryVisit, CategoryInternal, CategoryUrgent, CategoryPersonal, CategoryOther}
}

// DefaultDurationMinutes applies when an item has a time but no duration.
const DefaultDurationMinutes = 60

// AgendaItem is a single entry of a personal agenda. JSON names match the
// format the web client keeps in local storage, so its exports import as is.
type AgendaItem struct {
	ID        string `json:"id"`
	Title     string `json:"titulo"`
	Date      string `json:"data"`           // YYYY-MM-DD
	Time      string `json:"hora,omitempty"` // HH:mm
	Notes     string `json:"notas,omitempty"`
	CreatedAt string `json:"criadoEm"` // RFC 3339, kept verbatim
	Completed bool   `json:"concluido,omitempty"`
	Duration  *int   `json:"duracao,omitempty"` // minutes
	Category  string `json:"categoria,omitempty"`
}

// DurationMinutes returns the item's duration, applying the default when unset.
func (a AgendaItem) DurationMinutes() int {
	if a.Duration == nil {
		return DefaultDurationMinutes
	}
	return *a.Duration
}

// ClockOrMidnight returns the item's time, or "00:00" when it has none.
func (a AgendaItem) ClockOrMidnight() string {
	if a.Time == "" {
		return "00:00"
	}
	return a.Time
}

// SortKey orders items by date then time. Both parts are zero padded, so
// plain string comparison gives chronological order.
func (a AgendaItem) SortKey() string {
	return a.Date + " " + a.ClockOrMidnight()
}
