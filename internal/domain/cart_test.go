package domain

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func testProduct() Product {
	return Product{ID: 10, Name: "Camisa", Price: decimal.RequireFromString("50.00")}
}

func TestLineKey(t *testing.T) {
	assert.Equal(t, "10::M::rojo", LineKey(10, "M", "rojo"))
	assert.Equal(t, "10::::", LineKey(10, "", ""))
}

func TestLinesAdd_SameKeySumsQuantities(t *testing.T) {
	var lines Lines
	p := testProduct()

	for _, q := range []int{1, 2, 4} {
		require.NoError(t, lines.Add(NewLine(p, q, "M", "rojo")))
	}

	require.Len(t, lines, 1)
	assert.Equal(t, 7, lines[0].Quantity)
	assert.Equal(t, "10::M::rojo", lines[0].Key)
}

func TestLinesAdd_DifferentOptionsAppend(t *testing.T) {
	var lines Lines
	p := testProduct()

	require.NoError(t, lines.Add(NewLine(p, 1, "M", "rojo")))
	require.NoError(t, lines.Add(NewLine(p, 1, "L", "rojo")))
	require.NoError(t, lines.Add(NewLine(p, 1, "M", "azul")))

	assert.Len(t, lines, 3)
}

func TestLinesAdd_RejectsNonPositive(t *testing.T) {
	var lines Lines
	p := testProduct()

	assert.ErrorIs(t, lines.Add(NewLine(p, 0, "", "")), ErrInvalidQuantity)
	assert.ErrorIs(t, lines.Add(NewLine(p, -3, "", "")), ErrInvalidQuantity)
	assert.Empty(t, lines)
}

func TestLinesAdd_ClampsToStock(t *testing.T) {
	var lines Lines
	p := testProduct()
	p.Stock = intPtr(3)

	require.NoError(t, lines.Add(NewLine(p, 2, "", "")))
	require.NoError(t, lines.Add(NewLine(p, 5, "", "")))

	assert.Equal(t, 3, lines[0].Quantity)
}

func TestLinesAdd_OutOfStock(t *testing.T) {
	var lines Lines
	p := testProduct()
	p.Stock = intPtr(0)

	assert.ErrorIs(t, lines.Add(NewLine(p, 1, "", "")), ErrOutOfStock)
	assert.Empty(t, lines)
}

func TestLinesSetQty_ZeroRemoves(t *testing.T) {
	var lines Lines
	p := testProduct()
	require.NoError(t, lines.Add(NewLine(p, 2, "M", "")))

	require.NoError(t, lines.SetQty("10::M::", 0))
	assert.Empty(t, lines)
}

func TestLinesSetQty_NegativeRemoves(t *testing.T) {
	var lines Lines
	p := testProduct()
	require.NoError(t, lines.Add(NewLine(p, 2, "M", "")))

	require.NoError(t, lines.SetQty("10::M::", -1))
	assert.Empty(t, lines)
}

func TestLinesSetQty_Clamp(t *testing.T) {
	var lines Lines
	p := testProduct()
	p.Stock = intPtr(4)
	require.NoError(t, lines.Add(NewLine(p, 1, "", "")))

	require.NoError(t, lines.SetQty(lines[0].Key, 9))
	assert.Equal(t, 4, lines[0].Quantity)
}

func TestLinesSetQty_Missing(t *testing.T) {
	var lines Lines
	assert.ErrorIs(t, lines.SetQty("nope", 1), ErrLineNotFound)
	assert.ErrorIs(t, lines.Remove("nope"), ErrLineNotFound)
}

func TestLinesTotals(t *testing.T) {
	var lines Lines
	a := testProduct()
	b := Product{ID: 11, Name: "Pantalon", Price: decimal.RequireFromString("12.50")}
	require.NoError(t, lines.Add(NewLine(a, 2, "", "")))
	require.NoError(t, lines.Add(NewLine(b, 3, "", "")))

	totals := lines.Totals()
	assert.True(t, decimal.RequireFromString("137.50").Equal(totals.Subtotal))
	assert.True(t, totals.Shipping.IsZero())
	assert.True(t, totals.Total.Equal(totals.Subtotal))
	assert.Equal(t, 5, lines.Count())
}

func TestServerCartLines(t *testing.T) {
	raw := `{"id":1,"user":4,"items":[
		{"id":31,"product":10,"product_name":"Camisa","product_price":"50.00","variant":7,
		 "variant_size":"M","size_label":null,"quantity":2,
		 "availability":{"status":"ok","available":5,"requested":2,"can_purchase":true},
		 "product_image_url":"http://img/1.jpg"},
		{"id":32,"product":11,"product_name":"Gorra","product_price":"20.00","variant":null,
		 "variant_size":null,"size_label":"U","quantity":1,"availability":null,"product_image_url":null}
	]}`
	var c ServerCart
	require.NoError(t, json.Unmarshal([]byte(raw), &c))

	lines := c.Lines()
	require.Len(t, lines, 2)

	assert.Equal(t, "31", lines[0].Key)
	assert.Equal(t, int64(31), lines[0].ServerItemID)
	assert.Equal(t, "M", lines[0].SelectedSize)
	require.NotNil(t, lines[0].ServerVariantID)
	assert.Equal(t, int64(7), *lines[0].ServerVariantID)
	require.NotNil(t, lines[0].AvailableStock)
	assert.Equal(t, 5, *lines[0].AvailableStock)

	assert.Equal(t, "U", lines[1].SelectedSize)
	assert.Nil(t, lines[1].AvailableStock)
	assert.True(t, decimal.RequireFromString("120.00").Equal(lines.Totals().Subtotal))
}

func TestStartItems(t *testing.T) {
	var lines Lines
	require.NoError(t, lines.Add(NewLine(testProduct(), 2, "M", "rojo")))

	items := lines.StartItems()
	require.Len(t, items, 1)
	assert.Equal(t, StartItem{ProductID: 10, SizeLabel: "M", Quantity: 2}, items[0])
}
