package types

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// FlexString is a string that can be unmarshaled from a JSON string, number,
// boolean or null. Billing cell values arrive in any of those shapes.
type FlexString string

// UnmarshalJSON implements the json.Unmarshaler interface.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		*f = ""
		return nil
	}

	// Try unmarshaling as a string first
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = FlexString(s)
		return nil
	}

	// Numbers keep their literal representation
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*f = FlexString(n.String())
		return nil
	}

	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = FlexString(strconv.FormatBool(b))
		return nil
	}

	return fmt.Errorf("FlexString: unexpected type, expected string, number or bool")
}

// MarshalJSON implements the json.Marshaler interface.
func (f FlexString) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(f))
}

// String converts FlexString back to string.
func (f FlexString) String() string {
	return string(f)
}
