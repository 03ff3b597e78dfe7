package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// CartLine is a single product entry in a cart or order. Prices are integer
// minor units (cents); money is never represented as a float anywhere in the
// system.
type CartLine struct {
	ProductID           string `json:"product_id"`
	Name                string `json:"name"`
	UnitPriceMinorUnits int64  `json:"unit_price_minor_units"`
	Quantity            int64  `json:"quantity"`
}

// LineItems is a slice of cart lines persisted as a single JSON column.
type LineItems []CartLine

func (l LineItems) Value() (driver.Value, error) {
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *LineItems) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*l = nil
		return nil
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("unsupported line items column type %T", value)
	}
}

// Total returns the exact integer sum of unit price times quantity across all
// lines, in minor units.
func (l LineItems) Total() int64 {
	var total int64
	for _, line := range l {
		total += line.UnitPriceMinorUnits * line.Quantity
	}
	return total
}
