package services

// Broadcaster pushes game events to whatever transport is listening; the
// websocket hub implements it in deployment and tests plug a no-op.
type Broadcaster interface {
	Publish(accountID int64, event string, payload any)
}

type NopBroadcaster struct{}

func (NopBroadcaster) Publish(int64, string, any) {}
