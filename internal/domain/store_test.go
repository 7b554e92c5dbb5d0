package domain

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSource = "open-meteo"

func sequentialIDs() StoreOption {
	n := 0
	return WithIDFunc(func() string {
		n++
		return fmt.Sprintf("poly-%d", n)
	})
}

func newTestStore(t *testing.T, n int) *PolygonStore {
	t.Helper()
	s := NewPolygonStore(sequentialIDs())
	for range n {
		s.Add(pts(3), testSource, DefaultField, math.NaN())
	}
	return s
}

func TestPolygonStore_Add(t *testing.T) {
	created := time.Date(2024, 4, 26, 15, 0, 0, 0, time.UTC)
	SetClock(clockwork.NewFakeClockAt(created))
	t.Cleanup(func() { SetClock(nil) })

	s := NewPolygonStore()
	rec := s.Add(pts(4), testSource, "", 21.5)

	assert.Contains(t, rec.ID, "poly_")
	assert.Equal(t, pts(4), rec.Points)
	assert.Equal(t, testSource, rec.DataSourceID)
	assert.Equal(t, DefaultField, rec.Field)
	assert.Equal(t, DefaultRules(), rec.Rules)
	assert.Equal(t, 21.5, rec.Value)
	assert.Equal(t, created, rec.CreatedAt)
	assert.Equal(t, "blue", rec.Color())

	other := s.Add(pts(3), testSource, DefaultField, 0)
	assert.NotEqual(t, rec.ID, other.ID)
	assert.Equal(t, 2, s.Len())
}

func TestPolygonStore_DeleteIdempotent(t *testing.T) {
	s := newTestStore(t, 2)
	before := s.List()

	// Records start with a NaN value, which reflect.DeepEqual never matches.
	assert.False(t, s.Delete("missing"))
	if diff := cmp.Diff(before, s.List(), cmpopts.EquateNaNs()); diff != "" {
		t.Fatalf("deleting a missing id changed the store (-before +after):\n%s", diff)
	}

	assert.True(t, s.Delete("poly-1"))
	assert.False(t, s.Delete("poly-1"))
	require.Equal(t, 1, s.Len())
	assert.Equal(t, "poly-2", s.List()[0].ID)
}

func TestPolygonStore_ApplyValueBroadcast(t *testing.T) {
	s := newTestStore(t, 3)

	require.True(t, s.ApplyValue(18.25))
	for _, r := range s.List() {
		assert.Equal(t, 18.25, r.Value)
	}
}

func TestPolygonStore_ApplyValueGuard(t *testing.T) {
	s := newTestStore(t, 2)
	require.True(t, s.ApplyValue(7))

	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		assert.False(t, s.ApplyValue(v))
		for _, r := range s.List() {
			assert.Equal(t, 7.0, r.Value)
		}
	}
}

func TestPolygonStore_ReadsDoNotAlias(t *testing.T) {
	s := newTestStore(t, 1)
	rec, ok := s.Get("poly-1")
	require.True(t, ok)

	rec.Rules[0].Color = "mutated"
	rec.Points[0].Lat = 0

	fresh, _ := s.Get("poly-1")
	assert.Equal(t, "green", fresh.Rules[0].Color)
	assert.NotEqual(t, 0.0, fresh.Points[0].Lat)
}

func TestPolygonStore_RuleRoundTrip(t *testing.T) {
	s := newTestStore(t, 1)
	const id = "poly-1"

	rules, err := s.AddRule(id, NewRule())
	require.NoError(t, err)
	require.Len(t, rules, 4)
	added := len(rules) - 1

	updated := rules[added]
	updated.Value = 42
	_, err = s.UpdateRule(id, added, updated)
	require.NoError(t, err)

	rules, err = s.DeleteRule(id, 1)
	require.NoError(t, err)

	assert.Len(t, rules, 3)
	assert.Equal(t, 42.0, rules[len(rules)-1].Value)
	assert.Equal(t, OpLess, rules[len(rules)-1].Operator)
	assert.Equal(t, "green", rules[0].Color)
	assert.Equal(t, "blue", rules[1].Color, "exactly the red rule was removed")
}

func TestPolygonStore_RuleEditsAreCopyOnWrite(t *testing.T) {
	s := newTestStore(t, 1)
	held, err := s.Rules("poly-1")
	require.NoError(t, err)

	_, err = s.UpdateRule("poly-1", 0, ThresholdRule{Operator: OpGreater, Value: 1, Color: "pink"})
	require.NoError(t, err)

	assert.Equal(t, "green", held[0].Color, "previously returned list must not change")
}

func TestPolygonStore_RuleErrors(t *testing.T) {
	s := newTestStore(t, 1)

	_, err := s.AddRule("missing", NewRule())
	require.ErrorIs(t, err, ErrPolygonNotFound)

	_, err = s.AddRule("poly-1", ThresholdRule{Color: "x"})
	require.ErrorIs(t, err, ErrInvalidOperator)

	_, err = s.UpdateRule("poly-1", 3, NewRule())
	require.ErrorIs(t, err, ErrRuleIndexOutOfRange)

	_, err = s.UpdateRule("poly-1", -1, NewRule())
	require.ErrorIs(t, err, ErrRuleIndexOutOfRange)

	_, err = s.DeleteRule("poly-1", 5)
	require.ErrorIs(t, err, ErrRuleIndexOutOfRange)

	_, err = s.DeleteRule("missing", 0)
	require.ErrorIs(t, err, ErrPolygonNotFound)

	rules, _ := s.Rules("poly-1")
	assert.Equal(t, DefaultRules(), rules)
}

func TestPolygonStore_SetField(t *testing.T) {
	s := newTestStore(t, 1)

	require.NoError(t, s.SetField("poly-1", "relative_humidity_2m"))
	rec, _ := s.Get("poly-1")
	assert.Equal(t, "relative_humidity_2m", rec.Field)

	require.ErrorIs(t, s.SetField("poly-1", "  "), ErrEmptyField)
	require.ErrorIs(t, s.SetField("missing", "x"), ErrPolygonNotFound)
}
