package reqstate

// State names a position in the request lifecycle of spec.md §4.E.
type State int

const (
	Begin State = iota
	FirstLine
	Headers
	Content
	Ready
	Running
	Complete
)

func (s State) String() string {
	switch s {
	case Begin:
		return "BEGIN"
	case FirstLine:
		return "FIRST_LINE"
	case Headers:
		return "HEADERS"
	case Content:
		return "CONTENT"
	case Ready:
		return "READY"
	case Running:
		return "RUNNING"
	case Complete:
		return "COMPLETE"
	default:
		return "UNKNOWN"
	}
}
