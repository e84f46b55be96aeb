package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// FlexID is an identifier that backends send as either a JSON number or a
// JSON string. It always unmarshals to its string form so callers can
// compare ids without caring which variant the server picked.
type FlexID string

func (id *FlexID) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}

	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*id = FlexID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		*id = FlexID(n.String())
		return nil
	}

	return fmt.Errorf("id is neither a string nor a number: %s", b)
}

func (id FlexID) String() string {
	return string(id)
}
