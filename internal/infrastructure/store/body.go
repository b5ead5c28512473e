package store

import (
	"encoding/json"
	"fmt"
)

// familyBody is the serialized member list of a family row. Deltas are
// variable length, so they travel as JSON (base64 per delta) next to the
// fixed 20-byte parent column.
type familyBody struct {
	Members []string `json:"members"`
	Deltas  [][]byte `json:"deltas"`
}

func encodeFamilyBody(members []string, deltas [][]byte) ([]byte, error) {
	if len(members) != len(deltas) {
		return nil, fmt.Errorf("family body: %d members but %d deltas", len(members), len(deltas))
	}
	return json.Marshal(familyBody{Members: members, Deltas: deltas})
}

func decodeFamilyBody(data []byte) ([]string, [][]byte, error) {
	var body familyBody
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, nil, fmt.Errorf("family body: %w", err)
	}
	if len(body.Members) != len(body.Deltas) {
		return nil, nil, fmt.Errorf("family body: %d members but %d deltas", len(body.Members), len(body.Deltas))
	}
	return body.Members, body.Deltas, nil
}
