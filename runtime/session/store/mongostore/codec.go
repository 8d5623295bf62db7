package mongostore

import (
	"encoding/json"

	"github.com/streetrace-ai/streetrace-go/runtime/session/model"
)

// Events are stored as an embedded JSON blob rather than native BSON
// subdocuments: Event's Part union already has a lossless JSON
// encoder/decoder (model.MarshalPart/UnmarshalPart), and reusing it avoids
// maintaining a second, BSON-specific shape-sniffing decoder for the same
// tagged union.
func marshalEvents(events []model.Event) ([]byte, error) {
	return json.Marshal(events)
}

func unmarshalEvents(data []byte) ([]model.Event, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var events []model.Event
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, err
	}
	return events, nil
}
