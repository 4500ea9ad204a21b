package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextAdvancesForward(t *testing.T) {
	assert.Equal(t, StatusPreparing, StatusNew.Next())
	assert.Equal(t, StatusReady, StatusPreparing.Next())
	assert.Equal(t, StatusDelivery, StatusReady.Next())
	assert.Equal(t, StatusCompleted, StatusDelivery.Next())
	assert.Equal(t, StatusPaid, StatusCompleted.Next())
}

func TestNextTerminalIsNoOp(t *testing.T) {
	assert.Equal(t, StatusPaid, StatusPaid.Next())
	assert.Equal(t, StatusCancelled, StatusCancelled.Next())
}

func TestNormalizeStatusMapsWireLiteral(t *testing.T) {
	st, err := NormalizeStatus("out_for_delivery")
	require.NoError(t, err)
	assert.Equal(t, StatusDelivery, st)
}

func TestNormalizeStatusRejectsUnknown(t *testing.T) {
	_, err := NormalizeStatus("shipped")
	require.Error(t, err)
	assert.ErrorAs(t, err, &ErrUnknownStatus{})
}

func TestApplyStatusAcceptsAnyEnumValue(t *testing.T) {
	o := Order{Status: StatusPaid, UpdatedAt: time.Unix(0, 0)}
	now := time.Now()
	require.NoError(t, ApplyStatus(&o, "preparing", now))
	assert.Equal(t, StatusPreparing, o.Status)
	assert.Equal(t, now, o.UpdatedAt)
}

func TestApplyStatusRejectsBeforeMutating(t *testing.T) {
	o := Order{Status: StatusReady, UpdatedAt: time.Unix(0, 0)}
	err := ApplyStatus(&o, "bogus", time.Now())
	require.Error(t, err)
	assert.Equal(t, StatusReady, o.Status)
	assert.Equal(t, time.Unix(0, 0), o.UpdatedAt)
}

func TestValidateItemsTotals(t *testing.T) {
	total, err := ValidateItems([]OrderItem{
		{Name: "margherita", Price: 12.5, Quantity: 2},
		{Name: "cola", Price: 3, Quantity: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, 28.0, total)
}

func TestValidateItemsRejectsEmptyAndNonPositive(t *testing.T) {
	_, err := ValidateItems(nil)
	assert.Error(t, err)
	_, err = ValidateItems([]OrderItem{{Name: "cola", Price: 3, Quantity: 0}})
	assert.Error(t, err)
	_, err = ValidateItems([]OrderItem{{Name: "cola", Price: 0, Quantity: 1}})
	assert.Error(t, err)
}
