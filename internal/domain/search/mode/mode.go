package mode

// Mode is the search strategy.
type Mode string

// Search mode constants.
const (
	// Vector runs an Atlas $vectorSearch over an embedding path.
	Vector Mode = "vector"
	// Text runs a $text query over the collection's text index.
	Text Mode = "text"
	// Hybrid runs both and fuses the rankings.
	Hybrid Mode = "hybrid"
)

// IsValid checks if the mode is one of the supported values.
func (m Mode) IsValid() bool {
	return m == Vector || m == Text || m == Hybrid
}

// NeedsText reports whether the mode runs a $text query.
func (m Mode) NeedsText() bool { return m == Text || m == Hybrid }

// NeedsVector reports whether the mode runs a $vectorSearch.
func (m Mode) NeedsVector() bool { return m == Vector || m == Hybrid }
