package types

import "strings"

type TopicKind string

const (
	TopicFlat    TopicKind = "flat"
	TopicSociety TopicKind = "society"
)

// Topic names a realtime channel, e.g. flat:F-101.
type Topic struct {
	Kind TopicKind
	ID   string
}

func FlatTopic(id string) Topic    { return Topic{Kind: TopicFlat, ID: id} }
func SocietyTopic(id string) Topic { return Topic{Kind: TopicSociety, ID: id} }

func (t Topic) String() string { return string(t.Kind) + ":" + t.ID }

// ParseTopic builds a topic from the subscribe frame fields.
func ParseTopic(kind, id string) (Topic, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Topic{}, Invalid("topic_id", "is required")
	}
	switch TopicKind(strings.ToLower(strings.TrimSpace(kind))) {
	case TopicFlat:
		return FlatTopic(id), nil
	case TopicSociety:
		return SocietyTopic(id), nil
	}
	return Topic{}, Invalid("topic_type", `must be "flat" or "society"`)
}
