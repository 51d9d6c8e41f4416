package domain

import (
	"errors"
	"strings"
)

const (
	TopicWorld    = "World"
	TopicSports   = "Sports"
	TopicBusiness = "Business"
	TopicSciTech  = "Sci/Tech"
)

// TopicLabels is the fixed label set the topic classifier can produce, in
// canonical spelling.
var TopicLabels = []string{TopicWorld, TopicSports, TopicBusiness, TopicSciTech}

// ErrInvalidTopic is returned when a topicset name does not match any label.
var ErrInvalidTopic = errors.New("invalid topic")

// CanonicalTopic maps a user-supplied topic name to its canonical label,
// matching case-insensitively.
func CanonicalTopic(name string) (string, bool) {
	candidate := strings.ToLower(strings.TrimSpace(name))
	for _, label := range TopicLabels {
		if strings.ToLower(label) == candidate {
			return label, true
		}
	}
	return "", false
}

// ModerationAction is what the engine does with an off-topic message.
type ModerationAction int

const (
	ActionAllow ModerationAction = iota
	ActionWarnOnly
	ActionWarnAndDelete
)

func (a ModerationAction) String() string {
	switch a {
	case ActionWarnOnly:
		return "warn"
	case ActionWarnAndDelete:
		return "warn+delete"
	default:
		return "allow"
	}
}

// Decision is the transient outcome of evaluating one message against the
// channel's allowed topic. It drives side effects and is then discarded.
type Decision struct {
	Predicted  string
	Confidence float64 // 0..1
	Allowed    string
	Action     ModerationAction
}

// Decide applies the confidence-gated moderation policy. A threshold of 0
// deletes every mismatch: the gate is disabled, which is the documented
// default.
func Decide(predicted string, confidence float64, allowed string, threshold float64) Decision {
	d := Decision{Predicted: predicted, Confidence: confidence, Allowed: allowed}
	switch {
	case predicted == allowed:
		d.Action = ActionAllow
	case confidence < threshold:
		d.Action = ActionWarnOnly
	default:
		d.Action = ActionWarnAndDelete
	}
	return d
}
