package capacity

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLedger_Reserve(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		seats   int
		reserve int
		wantErr error
	}{
		{name: "reserves within capacity", seats: 4, reserve: 2},
		{name: "reserves exactly remaining", seats: 4, reserve: 4},
		{name: "rejects over capacity", seats: 4, reserve: 5, wantErr: ErrInsufficientSeats},
		{name: "rejects zero seats", seats: 4, reserve: 0, wantErr: ErrInvalidSeatAmount},
		{name: "rejects negative seats", seats: 4, reserve: -1, wantErr: ErrInvalidSeatAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger := NewMemoryLedger()
			rideID := uuid.New()
			ledger.AddRide(rideID, tt.seats)

			err := ledger.Reserve(ctx, rideID, tt.reserve)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				available, _ := ledger.Available(rideID)
				assert.Equal(t, tt.seats, available, "failed reserve must not change the count")
				return
			}

			require.NoError(t, err)
			available, _ := ledger.Available(rideID)
			assert.Equal(t, tt.seats-tt.reserve, available)
		})
	}
}

func TestMemoryLedger_ReserveUnknownRide(t *testing.T) {
	ledger := NewMemoryLedger()

	err := ledger.Reserve(context.Background(), uuid.New(), 1)

	require.ErrorIs(t, err, ErrRideUnavailable)
}

func TestMemoryLedger_ReserveCancelledRide(t *testing.T) {
	ledger := NewMemoryLedger()
	rideID := uuid.New()
	ledger.AddRide(rideID, 4)
	ledger.CancelRide(rideID)

	err := ledger.Reserve(context.Background(), rideID, 1)

	require.ErrorIs(t, err, ErrRideUnavailable)
}

func TestMemoryLedger_ReleaseClampsAtCapacity(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger()
	rideID := uuid.New()
	ledger.AddRide(rideID, 4)

	require.NoError(t, ledger.Reserve(ctx, rideID, 2))
	require.NoError(t, ledger.Release(ctx, rideID, 2))
	require.NoError(t, ledger.Release(ctx, rideID, 3))

	available, ok := ledger.Available(rideID)
	require.True(t, ok)
	assert.Equal(t, 4, available, "release must never push the count above capacity")
}

func TestMemoryLedger_Recompute(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger()
	rideID := uuid.New()
	ledger.AddRide(rideID, 6)

	require.NoError(t, ledger.Reserve(ctx, rideID, 2))
	require.NoError(t, ledger.Reserve(ctx, rideID, 1))

	available, err := ledger.Recompute(ctx, rideID)

	require.NoError(t, err)
	assert.Equal(t, 3, available)
}

// Concurrent single-seat reservations on a ride with N seats: exactly N must
// succeed and the count must land on zero, never below.
func TestMemoryLedger_ConcurrentReservations(t *testing.T) {
	const (
		capacity   = 10
		goroutines = 64
	)

	ctx := context.Background()
	ledger := NewMemoryLedger()
	rideID := uuid.New()
	ledger.AddRide(rideID, capacity)

	var (
		wg        sync.WaitGroup
		succeeded int64
		mu        sync.Mutex
	)

	start := make(chan struct{})
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start

			err := ledger.Reserve(ctx, rideID, 1)
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, ErrInsufficientSeats)
		}()
	}

	close(start)
	wg.Wait()

	assert.Equal(t, int64(capacity), succeeded)

	available, ok := ledger.Available(rideID)
	require.True(t, ok)
	assert.Equal(t, 0, available)
}

func TestMemoryLedger_ConcurrentReserveRelease(t *testing.T) {
	const iterations = 200

	ctx := context.Background()
	ledger := NewMemoryLedger()
	rideID := uuid.New()
	ledger.AddRide(rideID, 2)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				if err := ledger.Reserve(ctx, rideID, 1); err == nil {
					_ = ledger.Release(ctx, rideID, 1)
				}
			}
		}()
	}
	wg.Wait()

	available, ok := ledger.Available(rideID)
	require.True(t, ok)
	assert.Equal(t, 2, available, "paired reserve/release must leave the count unchanged")
}
