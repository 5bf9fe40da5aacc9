package events

const (
	TopicQueueChanged        = "queue.changed"
	TopicSyncCompleted       = "sync.completed"
	TopicImportProgress      = "import.progress"
	TopicImportCompleted     = "import.completed"
	TopicConnectivityChanged = "connectivity.changed"
)

// QueueChanged is published whenever the number of pending mutations may have changed.
type QueueChanged struct {
	Count int `json:"count"`
}

// SyncCompleted summarises one drain of the outbox.
type SyncCompleted struct {
	SuccessCount int `json:"successCount"`
	FailureCount int `json:"failureCount"`
}

// ConnectivityChanged is published when the probe observes a transition.
type ConnectivityChanged struct {
	Online bool `json:"online"`
}

// Discard is a Publisher that drops everything.
var Discard Publisher = discard{}

type discard struct{}

func (discard) Publish(string, any) {}
