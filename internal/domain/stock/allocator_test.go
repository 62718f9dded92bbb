package stock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medistock/internal/core/apperror"
	"medistock/internal/core/id"
	"medistock/internal/domain/batch"
)

func testBatch(medicineID id.ID, name string, qty int64, expiryDays int) *batch.Batch {
	return batch.New(medicineID, name, qty, time.Now().AddDate(0, 0, expiryDays))
}

func TestPlan_FIFOByExpiry(t *testing.T) {
	medID := id.New()
	batches := []*batch.Batch{
		testBatch(medID, "LOT-1", 5, 1),
		testBatch(medID, "LOT-2", 5, 5),
		testBatch(medID, "LOT-3", 5, 10),
	}

	plan, err := Plan(medID, batches, 7)
	require.NoError(t, err)

	require.Len(t, plan.Lines, 2)
	assert.Equal(t, batches[0].ID, plan.Lines[0].BatchID)
	assert.Equal(t, int64(5), plan.Lines[0].Amount)
	assert.Equal(t, batches[1].ID, plan.Lines[1].BatchID)
	assert.Equal(t, int64(2), plan.Lines[1].Amount)
}

func TestPlan_SumEqualsRequested(t *testing.T) {
	medID := id.New()
	batches := []*batch.Batch{
		testBatch(medID, "LOT-1", 3, 1),
		testBatch(medID, "LOT-2", 4, 2),
		testBatch(medID, "LOT-3", 9, 3),
	}

	plan, err := Plan(medID, batches, 10)
	require.NoError(t, err)

	var total int64
	for _, line := range plan.Lines {
		total += line.Amount
	}
	assert.Equal(t, int64(10), total)
}

func TestPlan_Exhaustion(t *testing.T) {
	medID := id.New()
	batches := []*batch.Batch{testBatch(medID, "LOT-1", 3, 1)}

	plan, err := Plan(medID, batches, 5)
	require.Error(t, err)
	assert.Nil(t, plan)
	assert.True(t, apperror.IsCode(err, apperror.CodeInsufficientStock))

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, int64(3), appErr.Details["available"])
}

func TestPlan_ScanWindowFailure(t *testing.T) {
	// Six single-unit batches but only five in the window: the request for
	// six fails even though total physical stock equals six.
	medID := id.New()
	var window []*batch.Batch
	for i := 0; i < 6; i++ {
		window = append(window, testBatch(medID, "LOT", 1, i+1))
	}
	window = window[:DefaultScanWindow]

	plan, err := Plan(medID, window, 6)
	require.Error(t, err)
	assert.Nil(t, plan)
	assert.True(t, apperror.IsCode(err, apperror.CodeInsufficientStock))
}

func TestPlan_SkipsZeroQuantity(t *testing.T) {
	medID := id.New()
	batches := []*batch.Batch{
		testBatch(medID, "EMPTY", 0, 1),
		testBatch(medID, "LOT-2", 5, 5),
	}

	plan, err := Plan(medID, batches, 3)
	require.NoError(t, err)

	require.Len(t, plan.Lines, 1)
	assert.Equal(t, batches[1].ID, plan.Lines[0].BatchID)
	assert.Equal(t, int64(3), plan.Lines[0].Amount)
}

func TestPlan_InvalidQuantity(t *testing.T) {
	medID := id.New()

	for _, qty := range []int64{0, -1} {
		plan, err := Plan(medID, nil, qty)
		require.Error(t, err)
		assert.Nil(t, plan)
		assert.True(t, apperror.IsCode(err, apperror.CodeInvalidQuantity))
	}
}

func TestPlan_StopsAtExactCover(t *testing.T) {
	medID := id.New()
	batches := []*batch.Batch{
		testBatch(medID, "LOT-1", 5, 1),
		testBatch(medID, "LOT-2", 5, 5),
	}

	plan, err := Plan(medID, batches, 5)
	require.NoError(t, err)

	require.Len(t, plan.Lines, 1)
	assert.Equal(t, batches[0].ID, plan.Lines[0].BatchID)
}
