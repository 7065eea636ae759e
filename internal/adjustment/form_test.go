package adjustment

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generalValues(kv ...string) url.Values {
	v := url.Values{}
	for i := 0; i+1 < len(kv); i += 2 {
		v.Set(kv[i], kv[i+1])
	}
	return v
}

func TestParseGeneralRequiresSKUAndQuantity(t *testing.T) {
	p := NewParser(nil)
	cases := []url.Values{
		generalValues("sku", "", "quantidade", "3"),
		generalValues("sku", "P001", "quantidade", ""),
		generalValues("sku", "   ", "quantidade", "  "),
	}
	for _, values := range cases {
		_, errs := p.ParseGeneral(values)
		require.NotNil(t, errs)
		assert.Equal(t, "Preencha SKU e Quantidade.", errs["general"])
	}
}

func TestParseGeneralDefaults(t *testing.T) {
	form, errs := NewParser(nil).ParseGeneral(generalValues("sku", " P001 ", "quantidade", "10"))
	require.Nil(t, errs)
	assert.Equal(t, "P001", form.SKU)
	assert.Equal(t, KindEntrada, form.Kind)
	assert.Equal(t, WarehouseDeposito, form.Warehouse)
	assert.Equal(t, 10.0, form.quantity)
	assert.Equal(t, 0.0, form.price)
	assert.Equal(t, "", form.Note)
}

func TestParseGeneralQuantityMayBeNegativeOrFractional(t *testing.T) {
	p := NewParser(nil)
	form, errs := p.ParseGeneral(generalValues("sku", "P1", "quantidade", "-5"))
	require.Nil(t, errs)
	assert.Equal(t, -5.0, form.quantity)

	form, errs = p.ParseGeneral(generalValues("sku", "P1", "quantidade", "2,5"))
	require.Nil(t, errs)
	assert.Equal(t, 2.5, form.quantity)
}

func TestParseGeneralRejectsMalformedQuantity(t *testing.T) {
	for _, q := range []string{"abc", "NaN", "Inf"} {
		_, errs := NewParser(nil).ParseGeneral(generalValues("sku", "P1", "quantidade", q))
		require.NotNil(t, errs, q)
		assert.Equal(t, msgInvalidQuantity, errs["quantidade"])
	}
}

func TestParseGeneralPriceFallsBackToZero(t *testing.T) {
	p := NewParser(nil)
	cases := map[string]float64{
		"":        0,
		"abc":     0,
		"-3":      0,
		"12.5":    12.5,
		"12,50":   12.5,
		"NaN":     0,
		"1234567": 1234567,
	}
	for raw, want := range cases {
		form, errs := p.ParseGeneral(generalValues("sku", "P1", "quantidade", "1", "preco", raw))
		require.Nil(t, errs, raw)
		assert.Equal(t, want, form.price, raw)
	}
}

func TestParseGeneralRejectsUnknownSelections(t *testing.T) {
	p := NewParser(nil)
	_, errs := p.ParseGeneral(generalValues("sku", "P1", "quantidade", "1", "tipo_lancamento", "balanco"))
	require.NotNil(t, errs)
	assert.Equal(t, msgInvalidKind, errs["tipo_lancamento"])

	_, errs = p.ParseGeneral(generalValues("sku", "P1", "quantidade", "1", "deposito", "lua"))
	require.NotNil(t, errs)
	assert.Equal(t, msgInvalidWarehouse, errs["deposito"])
}

func balanceValues() url.Values {
	return generalValues(
		"sku", "P001",
		"deposito", "galpao",
		"quantidade", "42",
		"preco", "1234567",
		"observacao", "contagem mensal",
	)
}

func TestParseBalanceMasksPrice(t *testing.T) {
	form, errs := NewParser(nil).ParseBalance(balanceValues())
	require.Nil(t, errs)
	assert.Equal(t, KindBalanco, form.Kind)
	assert.Equal(t, "12.345,67", form.Price)
	assert.Equal(t, int64(1234567), form.priceCents)
	assert.InDelta(t, 12345.67, form.price, 1e-9)
	assert.Equal(t, 42.0, form.quantity)
}

func TestParseBalanceRequiresEveryField(t *testing.T) {
	p := NewParser(nil)
	for _, field := range []string{"sku", "deposito", "quantidade", "preco", "observacao"} {
		values := balanceValues()
		values.Set(field, "")
		_, errs := p.ParseBalance(values)
		require.NotNil(t, errs, field)
		assert.Equal(t, "Preencha todos os campos obrigatórios.", errs["general"], field)
	}
}

func TestParseBalanceRejectsZeroPrice(t *testing.T) {
	p := NewParser(nil)
	for _, raw := range []string{"0", "0,00", "000"} {
		values := balanceValues()
		values.Set("preco", raw)
		form, errs := p.ParseBalance(values)
		require.NotNil(t, errs, raw)
		assert.Equal(t, "Informe um preço maior que zero.", errs["general"], raw)
		assert.Equal(t, "0,00", form.Price)
	}
}

func TestParseBalanceTreatsPriceWithoutDigitsAsMissing(t *testing.T) {
	values := balanceValues()
	values.Set("preco", "R$ ")
	_, errs := NewParser(nil).ParseBalance(values)
	require.NotNil(t, errs)
	assert.Equal(t, msgBalanceRequired, errs["preco"])
}

func TestParseBalanceAcceptsAlreadyMaskedPrice(t *testing.T) {
	values := balanceValues()
	values.Set("preco", "9.876.543,21")
	form, errs := NewParser(nil).ParseBalance(values)
	require.Nil(t, errs)
	assert.Equal(t, "9.876.543,21", form.Price)
	assert.Equal(t, int64(987654321), form.priceCents)
}
