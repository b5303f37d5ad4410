package trade

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReferenceID_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		raw  string
		want ReferenceID
	}{
		{`"abc"`, "abc"},
		{`12`, "12"},
		{`12.0`, "12.0"},
		{`null`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			var id ReferenceID
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &id))
			assert.Equal(t, tt.want, id)
		})
	}

	var id ReferenceID
	assert.Error(t, json.Unmarshal([]byte(`{}`), &id))
}

func TestProduct_UnitCost(t *testing.T) {
	cost := d("19.99")
	negative := d("-1")

	assert.True(t, Product{}.UnitCost().IsZero())
	assert.True(t, Product{DefaultCost: &cost}.UnitCost().Equal(cost))
	assert.True(t, Product{DefaultCost: &negative}.UnitCost().IsZero())
}

func TestNameIndex_Resolve(t *testing.T) {
	idx := NewProductIndex([]Product{{ID: "1", Name: "Widget"}, {ID: "2", Name: ""}})

	name, ok := idx.Resolve("1")
	assert.True(t, ok)
	assert.Equal(t, "Widget", name)

	name, ok = idx.Resolve("2")
	assert.False(t, ok)
	assert.Equal(t, UnknownName, name)

	name, ok = idx.Resolve("missing")
	assert.False(t, ok)
	assert.Equal(t, UnknownName, name)
}

type staticRef struct{}

func (staticRef) Products(context.Context) ([]Product, error) { return nil, nil }
func (staticRef) Suppliers(context.Context) ([]Party, error) {
	return []Party{{ID: "s1", Name: "Acme Supply"}}, nil
}
func (staticRef) Customers(context.Context) ([]Party, error) {
	return []Party{{ID: "c1", Name: "Jane Doe"}}, nil
}

func TestPartiesFor(t *testing.T) {
	ctx := context.Background()

	parties, err := PartiesFor(ctx, staticRef{}, DirectionPurchase)
	require.NoError(t, err)
	assert.Equal(t, ReferenceID("s1"), parties[0].ID)

	parties, err = PartiesFor(ctx, staticRef{}, DirectionSales)
	require.NoError(t, err)
	assert.Equal(t, ReferenceID("c1"), parties[0].ID)

	name, _ := NewPartyIndex(parties).Resolve("c1")
	assert.Equal(t, "Jane Doe", name)
}
