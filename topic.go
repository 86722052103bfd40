package mqttws

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// Topic errors.
var (
	ErrInvalidTopicName   = errors.New("invalid topic name")
	ErrInvalidTopicFilter = errors.New("invalid topic filter")
)

const (
	topicSeparator      = "/"
	singleLevelWildcard = "+"
	multiLevelWildcard  = "#"
	sharePrefix         = "$share/"
)

// ValidateTopicName checks a concrete topic used for publishing or matching.
func ValidateTopicName(topic string) error {
	if topic == "" || len(topic) > maxUint16 || !utf8.ValidString(topic) {
		return ErrInvalidTopicName
	}
	if strings.ContainsAny(topic, "+#\x00") {
		return ErrInvalidTopicName
	}
	return nil
}

// ValidateTopicFilter checks a subscription filter. "+" must fill a whole
// level and "#" must fill the last level.
func ValidateTopicFilter(filter string) error {
	if filter == "" || len(filter) > maxUint16 || !utf8.ValidString(filter) {
		return ErrInvalidTopicFilter
	}
	if strings.IndexByte(filter, 0) >= 0 {
		return ErrInvalidTopicFilter
	}

	levels := strings.Split(filter, topicSeparator)
	for i, level := range levels {
		if strings.Contains(level, singleLevelWildcard) && level != singleLevelWildcard {
			return ErrInvalidTopicFilter
		}
		if strings.Contains(level, multiLevelWildcard) {
			if level != multiLevelWildcard || i != len(levels)-1 {
				return ErrInvalidTopicFilter
			}
		}
	}

	if strings.HasPrefix(filter, sharePrefix) {
		if _, err := sharedFilter(filter); err != nil {
			return err
		}
	}

	return nil
}

// sharedFilter returns the topic filter part of "$share/{name}/{filter}".
// Filters without the prefix are returned unchanged.
func sharedFilter(filter string) (string, error) {
	if !strings.HasPrefix(filter, sharePrefix) {
		return filter, nil
	}

	rest := filter[len(sharePrefix):]
	idx := strings.Index(rest, topicSeparator)
	if idx <= 0 || idx == len(rest)-1 {
		return "", ErrInvalidTopicFilter
	}
	return rest[idx+1:], nil
}

// MessageHandler receives messages whose topic matches a subscription.
type MessageHandler func(msg *Message)

// TopicMatcher is a trie of topic filters, one handler per filter.
// It is not safe for concurrent use.
type TopicMatcher struct {
	root *topicNode
}

type topicNode struct {
	level    string
	parent   *topicNode
	children map[string]*topicNode
	handler  MessageHandler
}

func (n *topicNode) dead() bool {
	return n.handler == nil && len(n.children) == 0
}

// NewTopicMatcher returns an empty matcher.
func NewTopicMatcher() *TopicMatcher {
	return &TopicMatcher{root: &topicNode{}}
}

// Subscribe sets the handler for filter, replacing any earlier one.
// Shared subscription filters are stored under their topic filter part.
func (m *TopicMatcher) Subscribe(filter string, handler MessageHandler) error {
	if err := ValidateTopicFilter(filter); err != nil {
		return err
	}
	filter, _ = sharedFilter(filter)

	node := m.root
	for _, level := range strings.Split(filter, topicSeparator) {
		child, ok := node.children[level]
		if !ok {
			if node.children == nil {
				node.children = make(map[string]*topicNode)
			}
			child = &topicNode{level: level, parent: node}
			node.children[level] = child
		}
		node = child
	}

	node.handler = handler
	return nil
}

// Unsubscribe removes the handler for filter and prunes nodes left empty.
// Unknown filters are ignored.
func (m *TopicMatcher) Unsubscribe(filter string) error {
	if err := ValidateTopicFilter(filter); err != nil {
		return err
	}
	node := m.find(filter)
	if node == nil {
		return nil
	}

	node.handler = nil
	m.prune(node)
	return nil
}

// Handler returns the handler set for filter, if any.
func (m *TopicMatcher) Handler(filter string) (MessageHandler, bool) {
	if ValidateTopicFilter(filter) != nil {
		return nil, false
	}
	node := m.find(filter)
	if node == nil || node.handler == nil {
		return nil, false
	}
	return node.handler, true
}

func (m *TopicMatcher) find(filter string) *topicNode {
	filter, _ = sharedFilter(filter)

	node := m.root
	for _, level := range strings.Split(filter, topicSeparator) {
		child, ok := node.children[level]
		if !ok {
			return nil
		}
		node = child
	}
	return node
}

func (m *TopicMatcher) prune(node *topicNode) {
	for node != m.root && node.dead() {
		parent := node.parent
		delete(parent.children, node.level)
		node.parent = nil
		node = parent
	}
}

// Match returns every handler whose filter matches topic. A topic that
// contains wildcards is rejected rather than treated as a non-match.
func (m *TopicMatcher) Match(topic string) ([]MessageHandler, error) {
	if err := ValidateTopicName(topic); err != nil {
		return nil, err
	}

	levels := strings.Split(topic, topicSeparator)
	system := strings.HasPrefix(topic, "$")

	var handlers []MessageHandler
	m.matchNode(m.root, levels, system, &handlers)
	return handlers, nil
}

// matchNode walks every branch that can match levels. Topics starting with
// "$" are not matched by wildcards in the first level.
func (m *TopicMatcher) matchNode(node *topicNode, levels []string, system bool, out *[]MessageHandler) {
	wildcards := !system || node != m.root

	// "a/#" also matches "a".
	if wildcards {
		if child, ok := node.children[multiLevelWildcard]; ok && child.handler != nil {
			*out = append(*out, child.handler)
		}
	}

	if len(levels) == 0 {
		if node.handler != nil {
			*out = append(*out, node.handler)
		}
		return
	}

	if wildcards {
		if child, ok := node.children[singleLevelWildcard]; ok {
			m.matchNode(child, levels[1:], system, out)
		}
	}

	if child, ok := node.children[levels[0]]; ok {
		m.matchNode(child, levels[1:], system, out)
	}
}

// Len returns the number of trie nodes below the root.
func (m *TopicMatcher) Len() int {
	return countNodes(m.root) - 1
}

func countNodes(n *topicNode) int {
	total := 1
	for _, child := range n.children {
		total += countNodes(child)
	}
	return total
}
