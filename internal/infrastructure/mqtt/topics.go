package mqtt

import (
	"fmt"
	"strings"
)

// Topic prefixes for the rulewalk topic tree.
const (
	TopicPrefixCore   = "graylogic/core"
	TopicPrefixSystem = "graylogic/system"
)

// Topics builds rulewalk MQTT topics.
//
//	topics := mqtt.Topics{}
//	topics.RuleRun("night-mode")            // graylogic/core/rule/night-mode/run
//	topics.WalkEvent("3f2a...", "disable")  // graylogic/core/rulewalk/3f2a.../disable
type Topics struct{}

// RuleRun is where a run request for one rule is published.
func (Topics) RuleRun(ruleUID string) string {
	return fmt.Sprintf("%s/rule/%s/run", TopicPrefixCore, ruleUID)
}

// WalkEvent is where the outcome of one walk step is published.
func (Topics) WalkEvent(walkID, step string) string {
	return fmt.Sprintf("%s/rulewalk/%s/%s", TopicPrefixCore, walkID, step)
}

// WalkEvents matches every step event of a single walk.
func (Topics) WalkEvents(walkID string) string {
	return fmt.Sprintf("%s/rulewalk/%s/+", TopicPrefixCore, walkID)
}

// AllWalkEvents matches step events of every walk.
func (Topics) AllWalkEvents() string {
	return TopicPrefixCore + "/rulewalk/+/+"
}

// SystemStatus carries the retained online/offline status of this client.
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}

// ParseWalkEventTopic splits a walk event topic into its walk ID and step.
// ok is false for topics outside the walk event tree.
func ParseWalkEventTopic(topic string) (walkID, step string, ok bool) {
	rest, found := strings.CutPrefix(topic, TopicPrefixCore+"/rulewalk/")
	if !found {
		return "", "", false
	}
	walkID, step, found = strings.Cut(rest, "/")
	if !found || walkID == "" || step == "" || strings.Contains(step, "/") {
		return "", "", false
	}
	return walkID, step, true
}
