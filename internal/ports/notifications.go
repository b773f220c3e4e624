package ports

import "time"

// Notification is one event on the notification surface.
type Notification struct {
	ID      string
	Topic   string
	Sender  string
	Payload any
	SentAt  time.Time
}

// Publisher broadcasts notifications system-wide. Publish never blocks and
// gives no delivery guarantee.
type Publisher interface {
	Publish(topic, sender string, payload any)
}

// Subscriber registers interest in topics. The returned cancel function
// removes the subscription.
type Subscriber interface {
	Subscribe(handler func(Notification), topics ...string) (cancel func())
}

// Bus is both sides of the notification surface.
type Bus interface {
	Publisher
	Subscriber
}

// Well-known notification topics.
const (
	// TopicModuleError carries a ModuleError when a fetch fails and the
	// failure is not suppressed.
	TopicModuleError = "MODULE_ERROR"
	// TopicNewsFeed carries the full news item list after a reload.
	TopicNewsFeed = "NEWS_FEED"
	// TopicNewsFeedUpdate carries only the items that were not seen before.
	TopicNewsFeedUpdate = "NEWS_FEED_UPDATE"
	// TopicCurrentWeatherType carries the current condition type, e.g. "rain".
	TopicCurrentWeatherType = "CURRENTWEATHER_TYPE"
	// TopicShowAlert carries an Alert to be displayed by notification modules.
	TopicShowAlert = "SHOW_ALERT"
)

// ModuleError is the payload of TopicModuleError.
type ModuleError struct {
	ModuleID string
	Kind     string
	Message  string
	Failures int
}

// Alert is the payload of TopicShowAlert.
type Alert struct {
	Title   string
	Message string
}
