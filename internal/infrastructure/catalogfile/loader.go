// Package catalogfile reads and writes the rule catalog as TOML.
//
// Every top-level section is optional; an omitted section keeps the stock
// values. Unknown keys are rejected so a misspelled requirement fails at
// startup instead of silently disabling a badge.
package catalogfile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/carboniq/carboniq-rewards/internal/domain/catalog"
	"github.com/carboniq/carboniq-rewards/internal/domain/report"
	"github.com/carboniq/carboniq-rewards/internal/domain/shared"
)

// File is the TOML document layout.
type File struct {
	LevelThresholds []int      `toml:"level_thresholds,omitempty"`
	Rules           []RuleDTO  `toml:"rules,omitempty"`
	Goals           []GoalDTO  `toml:"goals,omitempty"`
	Badges          []BadgeDTO `toml:"badges,omitempty"`
}

type MultiplierDTO struct {
	Field  string  `toml:"field"`
	Equals string  `toml:"equals"`
	Factor float64 `toml:"factor"`
}

type RuleDTO struct {
	Action      string          `toml:"action"`
	Points      int             `toml:"points"`
	Description string          `toml:"description"`
	Multipliers []MultiplierDTO `toml:"multipliers,omitempty"`
}

type GoalDTO struct {
	Action    string `toml:"action"`
	Window    string `toml:"window"`
	Threshold int    `toml:"threshold"`
}

type RequirementDTO struct {
	Kind      string `toml:"kind"`
	Threshold int    `toml:"threshold"`
	Window    string `toml:"window,omitempty"`
	Predicate string `toml:"predicate,omitempty"`
}

type BadgeDTO struct {
	ID          string         `toml:"id"`
	Name        string         `toml:"name"`
	Description string         `toml:"description"`
	Requirement RequirementDTO `toml:"requirement"`
}

// LoadFile reads path. An empty path returns the stock catalog.
func LoadFile(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Default(), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	defer f.Close()

	return Load(f)
}

// Load decodes a TOML catalog and validates it with catalog.New.
func Load(r io.Reader) (*catalog.Catalog, error) {
	var doc File
	dec := toml.NewDecoder(r).DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			err = errors.New(strict.String())
		}
		return nil, shared.WrapError("catalog", "Load", shared.ErrValidation, "malformed catalog file", err)
	}
	return doc.Catalog()
}

// Catalog converts the document, filling omitted sections from the defaults.
func (f File) Catalog() (*catalog.Catalog, error) {
	rules := catalog.DefaultRules()
	if len(f.Rules) > 0 {
		rules = make([]catalog.Rule, 0, len(f.Rules))
		for _, r := range f.Rules {
			rule := catalog.Rule{
				Action:      catalog.Action(r.Action),
				Points:      r.Points,
				Description: r.Description,
			}
			for _, m := range r.Multipliers {
				rule.Multipliers = append(rule.Multipliers, catalog.Multiplier{Field: m.Field, Equals: m.Equals, Factor: m.Factor})
			}
			rules = append(rules, rule)
		}
	}

	goals := catalog.DefaultGoals()
	if len(f.Goals) > 0 {
		goals = make([]catalog.GoalRule, 0, len(f.Goals))
		for _, g := range f.Goals {
			goals = append(goals, catalog.GoalRule{
				Action:    catalog.Action(g.Action),
				Window:    catalog.Window(g.Window),
				Threshold: g.Threshold,
			})
		}
	}

	badges := catalog.DefaultBadges()
	if len(f.Badges) > 0 {
		badges = make([]catalog.Badge, 0, len(f.Badges))
		for _, b := range f.Badges {
			badges = append(badges, catalog.Badge{
				ID:          catalog.BadgeID(b.ID),
				Name:        b.Name,
				Description: b.Description,
				Requirement: catalog.Requirement{
					Kind:      catalog.RequirementKind(b.Requirement.Kind),
					Threshold: b.Requirement.Threshold,
					Window:    catalog.Window(b.Requirement.Window),
					Predicate: report.Predicate(b.Requirement.Predicate),
				},
			})
		}
	}

	thresholds := catalog.DefaultLevelThresholds
	if len(f.LevelThresholds) > 0 {
		thresholds = f.LevelThresholds
	}

	return catalog.New(rules, goals, badges, thresholds)
}

// FromCatalog builds the document describing c.
func FromCatalog(c *catalog.Catalog) File {
	f := File{LevelThresholds: c.Levels().Thresholds()}

	for _, r := range c.Rules() {
		dto := RuleDTO{Action: string(r.Action), Points: r.Points, Description: r.Description}
		for _, m := range r.Multipliers {
			dto.Multipliers = append(dto.Multipliers, MultiplierDTO{Field: m.Field, Equals: m.Equals, Factor: m.Factor})
		}
		f.Rules = append(f.Rules, dto)
	}
	for _, g := range c.Goals() {
		f.Goals = append(f.Goals, GoalDTO{Action: string(g.Action), Window: string(g.Window), Threshold: g.Threshold})
	}
	for _, b := range c.Badges() {
		f.Badges = append(f.Badges, BadgeDTO{
			ID:          string(b.ID),
			Name:        b.Name,
			Description: b.Description,
			Requirement: RequirementDTO{
				Kind:      string(b.Requirement.Kind),
				Threshold: b.Requirement.Threshold,
				Window:    string(b.Requirement.Window),
				Predicate: string(b.Requirement.Predicate),
			},
		})
	}
	return f
}

// Marshal renders c as TOML.
func Marshal(c *catalog.Catalog) ([]byte, error) {
	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf).SetIndentTables(true)
	if err := enc.Encode(FromCatalog(c)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
