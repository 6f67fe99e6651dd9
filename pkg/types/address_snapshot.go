package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// AddressSnapshot is the delivery address frozen onto an order at placement
// time. It is a copy, never a live reference to the customer's address book.
type AddressSnapshot struct {
	Label   string   `json:"label"`
	Address string   `json:"address"`
	Lat     *float64 `json:"lat,omitempty"`
	Lng     *float64 `json:"lng,omitempty"`
}

// Valid reports whether the snapshot carries the minimum fields.
func (a AddressSnapshot) Valid() bool {
	return strings.TrimSpace(a.Address) != ""
}

// Value marshals the snapshot into JSONB.
func (a AddressSnapshot) Value() (driver.Value, error) {
	buf, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(buf), nil
}

// Scan decodes JSONB into the snapshot.
func (a *AddressSnapshot) Scan(value interface{}) error {
	if value == nil {
		*a = AddressSnapshot{}
		return nil
	}

	var raw []byte
	switch v := value.(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("address snapshot: unsupported scan type %T", value)
	}

	return json.Unmarshal(raw, a)
}
