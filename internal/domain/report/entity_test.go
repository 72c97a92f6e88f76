package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func ptr(f float64) *float64 { return &f }

func TestReport_IsDetailed(t *testing.T) {
	full := Report{MeasureHeightCm: ptr(10), MeasureWidthCm: ptr(20), Feedback: "pile near the river"}
	assert.True(t, full.IsDetailed())

	noFeedback := full
	noFeedback.Feedback = "  "
	assert.False(t, noFeedback.IsDetailed())

	zeroHeight := full
	zeroHeight.MeasureHeightCm = ptr(0)
	assert.False(t, zeroHeight.IsDetailed())

	assert.False(t, Report{}.IsDetailed())
}

func TestPredicate_Matches(t *testing.T) {
	r := Report{Safe: true, UrbanArea: false, ImageURL: "https://img/1.jpg"}

	assert.True(t, PredicateAny.Matches(r))
	assert.True(t, PredicateSafe.Matches(r))
	assert.False(t, PredicateUrban.Matches(r))
	assert.True(t, PredicateRural.Matches(r))
	assert.True(t, PredicateWithImage.Matches(r))
	assert.False(t, PredicateDetailed.Matches(r))
	assert.False(t, Predicate("bogus").IsValid())
}

func TestReport_Field(t *testing.T) {
	r := Report{WasteType: WasteElectronic, Safe: true}

	v, ok := r.Field("waste_type")
	assert.True(t, ok)
	assert.Equal(t, "e_waste", v)

	v, ok = r.Field("has_image")
	assert.True(t, ok)
	assert.Equal(t, "false", v)

	_, ok = r.Field("color")
	assert.False(t, ok)
}

func TestReport_Validate(t *testing.T) {
	ok := Report{ID: "r1", CreatedBy: "u1", WasteType: WasteMixed, Timestamp: time.Now()}
	assert.NoError(t, ok.Validate())

	err := Report{WasteType: "plutonium"}.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown waste_type plutonium")
	assert.Contains(t, err.Error(), "created_by is required")
}
