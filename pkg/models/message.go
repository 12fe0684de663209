package models

import "time"

// Message is a canonical broker message. Coordinates that do not apply to a
// broker are left at their zero value and omitted from JSON.
type Message struct {
	Topic       string            `json:"topic,omitempty"`
	Partition   int32             `json:"partition,omitempty"`
	Offset      int64             `json:"offset,omitempty"`
	Key         string            `json:"key,omitempty"`
	Queue       string            `json:"queue,omitempty"`
	Exchange    string            `json:"exchange,omitempty"`
	RoutingKey  string            `json:"routing_key,omitempty"`
	DeliveryTag uint64            `json:"delivery_tag,omitempty"`
	Destination string            `json:"destination,omitempty"`
	MessageID   string            `json:"message_id,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	Value       any               `json:"value"`
	Timestamp   time.Time         `json:"timestamp"`
}

// Record flattens the message for transport inside a sync result.
func (m Message) Record() Record {
	r := Record{"value": m.Value, "timestamp": m.Timestamp}
	set := func(k string, v any, present bool) {
		if present {
			r[k] = v
		}
	}
	set("topic", m.Topic, m.Topic != "")
	set("partition", m.Partition, m.Topic != "")
	set("offset", m.Offset, m.Topic != "")
	set("key", m.Key, m.Key != "")
	set("queue", m.Queue, m.Queue != "")
	set("exchange", m.Exchange, m.Queue != "")
	set("routing_key", m.RoutingKey, m.RoutingKey != "")
	set("delivery_tag", m.DeliveryTag, m.Queue != "")
	set("destination", m.Destination, m.Destination != "")
	set("message_id", m.MessageID, m.MessageID != "")
	set("headers", m.Headers, len(m.Headers) > 0)
	return r
}
