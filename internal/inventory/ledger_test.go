package inventory

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jeffmuturi45/EVENTIFY/internal/domain"
	"github.com/Jeffmuturi45/EVENTIFY/internal/repository"
)

func TestCheckAvailability(t *testing.T) {
	tc := &domain.TicketClass{ID: 1, Category: domain.TicketCategoryVIP, Price: decimal.NewFromInt(2000), QuantityAvailable: 3}

	tests := []struct {
		name     string
		quantity int
		wantErr  error
	}{
		{"within stock", 2, nil},
		{"exactly the rest", 3, nil},
		{"one too many", 4, domain.ErrInsufficientInventory},
		{"zero", 0, domain.ErrInvalidQuantity},
		{"negative", -1, domain.ErrInvalidQuantity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckAvailability(tc, tt.quantity)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestLedger_CheckAndReserve(t *testing.T) {
	store := repository.NewMemoryStore()
	tc := store.PutTicketClass(&domain.TicketClass{EventID: 1, Category: domain.TicketCategoryRegular, Price: decimal.NewFromInt(500), QuantityAvailable: 2})
	ledger := NewLedger(store.Events())
	ctx := context.Background()

	got, err := ledger.CheckAndReserve(ctx, tc.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, tc.ID, got.ID)

	_, err = ledger.CheckAndReserve(ctx, tc.ID, 3)
	assert.ErrorIs(t, err, domain.ErrInsufficientInventory)

	_, err = ledger.CheckAndReserve(ctx, 404, 1)
	assert.ErrorIs(t, err, domain.ErrTicketClassNotFound)
}

func TestLedger_ReadsCurrentStock(t *testing.T) {
	store := repository.NewMemoryStore()
	tc := store.PutTicketClass(&domain.TicketClass{EventID: 1, Category: domain.TicketCategoryRegular, Price: decimal.NewFromInt(500), QuantityAvailable: 5})
	ledger := NewLedger(store.Events())
	ctx := context.Background()

	_, err := ledger.CheckAndReserve(ctx, tc.ID, 5)
	require.NoError(t, err)

	tc.QuantityAvailable = 1
	store.PutTicketClass(tc)

	_, err = ledger.CheckAndReserve(ctx, tc.ID, 2)
	assert.ErrorIs(t, err, domain.ErrInsufficientInventory)
}
