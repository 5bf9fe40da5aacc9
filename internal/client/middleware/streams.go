package middleware

// Event stream routes. They stay open and flush per event, so the compressor
// and the request logger skip them.
const (
	EventsPath   = "/v1/events"
	EventsWSPath = EventsPath + "/ws"
)

var streamPaths = []string{EventsPath, EventsWSPath}
