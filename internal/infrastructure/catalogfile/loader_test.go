package catalogfile

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carboniq/carboniq-rewards/internal/domain/catalog"
	"github.com/carboniq/carboniq-rewards/internal/domain/report"
	"github.com/carboniq/carboniq-rewards/internal/domain/shared"
)

func TestLoad_OverridesSectionsAndKeepsDefaults(t *testing.T) {
	doc := `
[[rules]]
action = "report_created"
points = 20
description = "Base points"

  [[rules.multipliers]]
  field = "waste_type"
  equals = "e_waste"
  factor = 1.5

[[rules]]
action = "badge_earned"
points = 10
description = "Badge bonus"

[[rules]]
action = "weekly_goal"
points = 30
description = "Weekly goal"

[[rules]]
action = "monthly_goal"
points = 90
description = "Monthly goal"

[[badges]]
id = "plastic_hunter"
name = "Plastic Hunter"
description = "Report 3 urban sites this week"

  [badges.requirement]
  kind = "windowed_count"
  threshold = 3
  window = "week"
  predicate = "urban"
`
	c, err := Load(strings.NewReader(doc))
	require.NoError(t, err)

	pts, ok := c.PointsFor(catalog.ActionReportCreated, &report.Report{WasteType: report.WasteElectronic})
	require.True(t, ok)
	assert.Equal(t, 30, pts)

	_, ok = c.Rule(catalog.ActionReportWithImage)
	assert.False(t, ok, "a rules section replaces the stock rules")

	require.Len(t, c.Badges(), 1)
	b, ok := c.Badge("plastic_hunter")
	require.True(t, ok)
	assert.Equal(t, catalog.WindowedCount(catalog.WindowWeek, report.PredicateUrban, 3), b.Requirement)

	assert.Equal(t, catalog.DefaultGoals(), c.Goals())
	assert.Equal(t, catalog.DefaultLevelThresholds, c.Levels().Thresholds())
}

func TestLoad_RejectsUnknownKeys(t *testing.T) {
	doc := `
[[badges]]
id = "x"
name = "X"
description = "x"
  [badges.requirement]
  kind = "total_reports"
  treshold = 3
`
	_, err := Load(strings.NewReader(doc))
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrValidation)
	assert.Contains(t, err.Error(), "treshold")
}

func TestLoad_RejectsInvalidCatalog(t *testing.T) {
	doc := `
level_thresholds = [0, 100, 50]

[[badges]]
id = "x"
name = "X"
description = "x"
  [badges.requirement]
  kind = "unheard_of"
  threshold = 1
`
	_, err := Load(strings.NewReader(doc))
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestLoad_MalformedTOML(t *testing.T) {
	_, err := Load(strings.NewReader("rules = [ broken"))
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestMarshal_RoundTripsDefaults(t *testing.T) {
	def := catalog.Default()

	data, err := Marshal(def)
	require.NoError(t, err)

	back, err := Load(bytes.NewReader(data))
	require.NoError(t, err)

	assert.Equal(t, def.Badges(), back.Badges())
	assert.Equal(t, def.Rules(), back.Rules())
	assert.Equal(t, def.Goals(), back.Goals())
	assert.Equal(t, def.Levels().Thresholds(), back.Levels().Thresholds())
}

func TestLoadFile(t *testing.T) {
	c, err := LoadFile("")
	require.NoError(t, err)
	assert.Len(t, c.Badges(), len(catalog.DefaultBadges()))

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "catalog.toml")
	require.NoError(t, os.WriteFile(path, []byte("level_thresholds = [0, 10, 20]\n"), 0o600))
	c, err = LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 3, c.Levels().Max())
}
