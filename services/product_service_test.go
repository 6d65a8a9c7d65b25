package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/database/dbtest"
)

func TestListProductsInStockNewestFirst(t *testing.T) {
	db := dbtest.Open(t)
	svc := NewProductService(db)

	first := dbtest.InsertProduct(t, db, "mug", "12.50", 4)
	dbtest.InsertProduct(t, db, "poster", "5.00", 0)
	last := dbtest.InsertProduct(t, db, "tee", "19.99", 1)

	products, err := svc.ListProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, last, products[0].ID)
	assert.Equal(t, first, products[1].ID)
	assert.Equal(t, "19.99", products[0].Price.StringFixed(2))
	assert.Equal(t, "general", products[0].Category)
	assert.Equal(t, "/img/tee.jpg", products[0].Image)
}

func TestListProductsEmpty(t *testing.T) {
	products, err := NewProductService(dbtest.Open(t)).ListProducts(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, products)
	assert.Empty(t, products)
}

func TestGetProduct(t *testing.T) {
	db := dbtest.Open(t)
	svc := NewProductService(db)
	id := dbtest.InsertProduct(t, db, "poster", "5.00", 0)

	p, err := svc.GetProduct(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "poster", p.Name)
	assert.Equal(t, 0, p.Stock)

	_, err = svc.GetProduct(context.Background(), id+1)
	assert.ErrorIs(t, err, ErrProductNotFound)
}
