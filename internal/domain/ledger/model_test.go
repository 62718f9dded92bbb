package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medistock/internal/core/apperror"
	"medistock/internal/core/id"
)

func validRef() BatchRef {
	return BatchRef{ID: id.New(), Name: "LOT-1", MedicineID: id.New()}
}

func TestEntryValidate_SignInvariant(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name   string
		kind   Kind
		change int64
		ok     bool
	}{
		{"received positive", KindReceived, 10, true},
		{"received zero", KindReceived, 0, false},
		{"received negative", KindReceived, -10, false},
		{"consumed negative", KindConsumed, -3, true},
		{"consumed zero", KindConsumed, 0, false},
		{"consumed positive", KindConsumed, 3, false},
		{"discarded negative", KindDiscarded, -1, true},
		{"discarded positive", KindDiscarded, 1, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := NewEntry(validRef(), tc.change, tc.kind, "reason", "actor", nil)
			err := e.Validate(ctx)
			if tc.ok {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
			}
		})
	}
}

func TestEntryValidate_RequiredFields(t *testing.T) {
	ctx := context.Background()

	e := NewEntry(validRef(), 5, KindReceived, "", "actor", nil)
	assert.Error(t, e.Validate(ctx))

	e = NewEntry(validRef(), 5, KindReceived, "reason", "", nil)
	assert.Error(t, e.Validate(ctx))

	e = NewEntry(validRef(), 5, Kind("REFUNDED"), "reason", "actor", nil)
	assert.Error(t, e.Validate(ctx))
}

func TestNewEntry_DenormalizesBatchFields(t *testing.T) {
	ref := validRef()
	e := NewEntry(ref, -2, KindConsumed, "administered", "nurse-1", nil)

	require.NotNil(t, e.BatchID)
	assert.Equal(t, ref.ID, *e.BatchID)
	assert.Equal(t, ref.Name, e.BatchName)
	assert.Equal(t, ref.MedicineID, e.MedicineID)
	assert.False(t, id.IsNil(e.ID))
	assert.False(t, e.CreatedAt.IsZero())
}
