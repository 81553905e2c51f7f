package schema

import "time"

const ClientEventSchemaTextV1 = `{
	"type": "record",
	"namespace": "storefront",
	"name": "client_event",
	"fields" : [
		{"name": "session_id", "type": "string"},
		{"name": "action", "type": {
			"type": "enum",
			"name": "client_action",
			"symbols": ["search", "add_to_cart", "clear_cart", "toggle_favorite"]
		}},
		{"name": "product_id", "type": "long"},
		{"name": "query", "type": "string"},
		{"name": "category_id", "type": "string"},
		{"name": "succeeded", "type": "boolean"},
		{"name": "occurred_at", "type": {"type": "long", "logicalType": "timestamp-millis"}}
	]
}`

type ClientEventV1 struct {
	SessionID  string    `avro:"session_id"`
	Action     string    `avro:"action"`
	ProductID  int64     `avro:"product_id"`
	Query      string    `avro:"query"`
	CategoryID string    `avro:"category_id"`
	Succeeded  bool      `avro:"succeeded"`
	OccurredAt time.Time `avro:"occurred_at"`
}
