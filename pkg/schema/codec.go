package schema

import (
	"encoding/json"
	"fmt"
)

// wireRow is the JSON shape a Row is persisted as, grounded on the
// teacher's pkg/resource/badger RowCodec (json.Marshal of the row map),
// generalised to carry the closed Value sum type's Kind tag alongside each
// column's scalar payload instead of relying on Go's own JSON typing.
type wireRow struct {
	ID      RowID                `json:"id"`
	Payload map[string]wireValue `json:"payload"`
}

type wireValue struct {
	Kind Kind    `json:"kind"`
	Int  int64   `json:"int,omitempty"`
	Real float64 `json:"real,omitempty"`
	Str  string  `json:"str,omitempty"`
	Bool bool    `json:"bool,omitempty"`
	Bin  []byte  `json:"bin,omitempty"`
}

func toWireValue(v Value) wireValue {
	return wireValue{Kind: v.Kind, Int: v.Int, Real: v.Real, Str: v.Str, Bool: v.Bool, Bin: v.Bin}
}

func fromWireValue(w wireValue) Value {
	return Value{Kind: w.Kind, Int: w.Int, Real: w.Real, Str: w.Str, Bool: w.Bool, Bin: w.Bin}
}

// EncodeRow serialises row for back-store persistence.
func EncodeRow(row Row) ([]byte, error) {
	wr := wireRow{ID: row.ID, Payload: make(map[string]wireValue, len(row.Payload))}
	for col, v := range row.Payload {
		wr.Payload[col] = toWireValue(v)
	}
	data, err := json.Marshal(wr)
	if err != nil {
		return nil, fmt.Errorf("schema: encode row %d: %w", row.ID, err)
	}
	return data, nil
}

// DecodeRow is the inverse of EncodeRow.
func DecodeRow(data []byte) (Row, error) {
	var wr wireRow
	if err := json.Unmarshal(data, &wr); err != nil {
		return Row{}, fmt.Errorf("schema: decode row: %w", err)
	}
	row := Row{ID: wr.ID, Payload: make(map[string]Value, len(wr.Payload))}
	for col, wv := range wr.Payload {
		row.Payload[col] = fromWireValue(wv)
	}
	return row, nil
}
