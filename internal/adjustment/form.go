package adjustment

import (
	"errors"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/evolury/estoque/internal/currency"
)

const (
	msgGeneralRequired  = "Preencha SKU e Quantidade."
	msgBalanceRequired  = "Preencha todos os campos obrigatórios."
	msgInvalidQuantity  = "Quantidade deve ser um número válido."
	msgPriceNotPositive = "Informe um preço maior que zero."
	msgInvalidKind      = "Tipo de lançamento inválido."
	msgInvalidWarehouse = "Depósito inválido."
)

// Form carries the submitted values as typed by the user plus the numbers
// derived from them.
type Form struct {
	SKU       string
	Kind      MovementKind
	Warehouse Warehouse
	Quantity  string
	Price     string
	Note      string

	quantity   float64
	price      float64
	priceCents int64
}

// Errors maps form fields to messages; "general" holds the summary.
type Errors map[string]string

type generalRules struct {
	SKU      string `validate:"required"`
	Quantity string `validate:"required"`
}

type balanceRules struct {
	SKU       string `validate:"required"`
	Warehouse string `validate:"required"`
	Quantity  string `validate:"required"`
	Price     string `validate:"required"`
	Note      string `validate:"required"`
}

var fieldKeys = map[string]string{
	"SKU":       "sku",
	"Warehouse": "deposito",
	"Quantity":  "quantidade",
	"Price":     "preco",
	"Note":      "observacao",
}

// Parser reads and validates submitted forms.
type Parser struct {
	validate  *validator.Validate
	formatter *currency.Formatter
}

// NewParser builds a Parser masking prices with formatter.
func NewParser(formatter *currency.Formatter) *Parser {
	if formatter == nil {
		formatter = currency.NewFormatter(currency.DefaultLocale)
	}
	return &Parser{validate: validator.New(), formatter: formatter}
}

// ParseGeneral applies the entrada/saida rules: SKU and quantity required,
// price optional and read as zero when malformed, note optional.
func (p *Parser) ParseGeneral(values url.Values) (Form, Errors) {
	form := Form{
		SKU:       strings.TrimSpace(values.Get("sku")),
		Kind:      MovementKind(values.Get("tipo_lancamento")),
		Warehouse: Warehouse(values.Get("deposito")),
		Quantity:  strings.TrimSpace(values.Get("quantidade")),
		Price:     strings.TrimSpace(values.Get("preco")),
		Note:      strings.TrimSpace(values.Get("observacao")),
	}
	if form.Kind == "" {
		form.Kind = KindEntrada
	}
	if form.Warehouse == "" {
		form.Warehouse = WarehouseDeposito
	}

	errs := p.check(generalRules{SKU: form.SKU, Quantity: form.Quantity}, msgGeneralRequired)
	if form.Kind != KindEntrada && form.Kind != KindSaida {
		errs.add("tipo_lancamento", msgInvalidKind)
	}
	if !validWarehouse(form.Warehouse) {
		errs.add("deposito", msgInvalidWarehouse)
	}
	if form.Quantity != "" {
		q, ok := parseFinite(form.Quantity)
		if !ok {
			errs.add("quantidade", msgInvalidQuantity)
		}
		form.quantity = q
	}
	// Malformed prices count as zero in this variant.
	if price, ok := parseFinite(form.Price); ok && price >= 0 {
		form.price = price
	}
	return form, errs.orNil()
}

// ParseBalance applies the balance rules: every field required, price read
// from the currency mask and strictly positive.
func (p *Parser) ParseBalance(values url.Values) (Form, Errors) {
	form := Form{
		SKU:       strings.TrimSpace(values.Get("sku")),
		Kind:      KindBalanco,
		Warehouse: Warehouse(values.Get("deposito")),
		Quantity:  strings.TrimSpace(values.Get("quantidade")),
		Note:      strings.TrimSpace(values.Get("observacao")),
	}
	rawPrice := strings.TrimSpace(values.Get("preco"))
	if currency.Digits(rawPrice) != "" {
		form.Price = p.formatter.Mask(rawPrice)
	}

	errs := p.check(balanceRules{
		SKU:       form.SKU,
		Warehouse: string(form.Warehouse),
		Quantity:  form.Quantity,
		Price:     form.Price,
		Note:      form.Note,
	}, msgBalanceRequired)
	if form.Warehouse != "" && !validWarehouse(form.Warehouse) {
		errs.add("deposito", msgInvalidWarehouse)
	}
	if form.Quantity != "" {
		q, ok := parseFinite(form.Quantity)
		if !ok {
			errs.add("quantidade", msgInvalidQuantity)
		}
		form.quantity = q
	}
	if form.Price != "" {
		cents, err := currency.Cents(form.Price)
		switch {
		case err != nil:
			errs.add("preco", msgPriceNotPositive)
		case cents <= 0:
			errs.add("preco", msgPriceNotPositive)
		default:
			form.priceCents = cents
			form.price = float64(cents) / 100
		}
	}
	return form, errs.orNil()
}

func (p *Parser) check(rules any, requiredMsg string) Errors {
	errs := Errors{}
	err := p.validate.Struct(rules)
	if err == nil {
		return errs
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		errs["general"] = requiredMsg
		return errs
	}
	for _, fe := range fieldErrs {
		errs[fieldKeys[fe.Field()]] = requiredMsg
	}
	errs["general"] = requiredMsg
	return errs
}

func (e Errors) add(field, msg string) {
	e[field] = msg
	if _, ok := e["general"]; !ok {
		e["general"] = msg
	}
}

func (e Errors) orNil() Errors {
	if len(e) == 0 {
		return nil
	}
	return e
}

// parseFinite accepts a decimal point or a decimal comma.
func parseFinite(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
