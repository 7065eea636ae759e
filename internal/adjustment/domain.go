// Package adjustment implements the inventory adjustment form: local
// validation, payload construction, submission to the automation webhook and
// interpretation of its answer.
package adjustment

import "strconv"

// MovementKind is the tipo_lancamento of a payload.
type MovementKind string

const (
	// KindEntrada adds stock.
	KindEntrada MovementKind = "entrada"
	// KindSaida removes stock.
	KindSaida MovementKind = "saida"
	// KindBalanco replaces stock with a counted quantity.
	KindBalanco MovementKind = "balanco"
)

// Warehouse is the deposito of a payload.
type Warehouse string

const (
	WarehouseXina     Warehouse = "xina"
	WarehouseDeposito Warehouse = "deposito"
	WarehouseGalpao   Warehouse = "galpao"
)

// Variant selects the field rules of the form.
type Variant string

const (
	// VariantGeneral accepts entrada/saida with optional price and note.
	VariantGeneral Variant = "geral"
	// VariantBalance requires every field and a masked price.
	VariantBalance Variant = "balanco"
)

// Option is a select entry.
type Option struct {
	Value string
	Label string
}

var movementOptions = []Option{
	{Value: string(KindEntrada), Label: "Entrada (+)"},
	{Value: string(KindSaida), Label: "Saída (-)"},
}

var warehouseOptions = []Option{
	{Value: string(WarehouseXina), Label: "China"},
	{Value: string(WarehouseDeposito), Label: "Depósito Principal"},
	{Value: string(WarehouseGalpao), Label: "Galpão"},
}

// WarehouseLabel returns the display name of w.
func WarehouseLabel(w Warehouse) string {
	for _, opt := range warehouseOptions {
		if opt.Value == string(w) {
			return opt.Label
		}
	}
	return string(w)
}

func validWarehouse(w Warehouse) bool {
	switch w {
	case WarehouseXina, WarehouseDeposito, WarehouseGalpao:
		return true
	}
	return false
}

// Payload is the JSON body posted to the webhook.
type Payload struct {
	SKU         string       `json:"sku"`
	Kind        MovementKind `json:"tipo_lancamento"`
	Warehouse   Warehouse    `json:"deposito"`
	Responsible string       `json:"responsavel"`
	Quantity    float64      `json:"quantidade"`
	Price       float64      `json:"preco_lancamento"`
	Note        string       `json:"observacao"`
	Timestamp   string       `json:"timestamp"`
}

// Snapshot is the display copy of the last balance submission.
type Snapshot struct {
	Payload        Payload `json:"payload"`
	WarehouseLabel string  `json:"warehouse_label"`
	Quantity       string  `json:"quantity"`
	Price          string  `json:"price"`
	SubmittedAt    string  `json:"submitted_at"`
}

func formatQuantity(q float64) string {
	return strconv.FormatFloat(q, 'f', -1, 64)
}
