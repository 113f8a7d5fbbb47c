package brackets

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

type FormatType string

const (
	FormatRoundRobin        FormatType = "RoundRobin"
	FormatKnockout          FormatType = "Knockout"
	FormatBestOf            FormatType = "BestOf"
	FormatDoubleElimination FormatType = "DoubleElimination"
	FormatTwiceToBeat       FormatType = "TwiceToBeat"
)

type Seeding string

const (
	SeedingRandom  Seeding = "random"
	SeedingRanking Seeding = "ranking"
)

const (
	defaultMaxLoss   = 2
	twiceToBeatGames = 2
)

var formatTypeAliases = map[string]FormatType{
	"roundrobin":        FormatRoundRobin,
	"knockout":          FormatKnockout,
	"singleelimination": FormatKnockout,
	"bestof":            FormatBestOf,
	"doubleelimination": FormatDoubleElimination,
	"twicetobeat":       FormatTwiceToBeat,
}

// ParseFormatType accepts the canonical names as well as snake/kebab spellings.
func ParseFormatType(s string) (FormatType, error) {
	key := strings.ToLower(strings.NewReplacer("_", "", "-", "", " ", "").Replace(s))
	t, ok := formatTypeAliases[key]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
	return t, nil
}

// SeriesConfig turns every pairing of a knockout round into a series.
// TwiceToBeat is the only series kind.
type SeriesConfig struct {
	Type FormatType `json:"type"`
}

type RoundRobinConfig struct {
	GroupCount       int  `json:"group_count"`
	AdvancesPerGroup int  `json:"advances_per_group"`
	UsePointSystem   bool `json:"use_point_system"`
}

type KnockoutConfig struct {
	GroupCount   int           `json:"group_count"`
	Seeding      Seeding       `json:"seeding"`
	SeriesConfig *SeriesConfig `json:"series_config,omitempty"`
}

// IsTwiceToBeatSeries reports whether each pairing is played as a twice-to-beat series.
func (c *KnockoutConfig) IsTwiceToBeatSeries() bool {
	return c.SeriesConfig != nil && c.SeriesConfig.Type == FormatTwiceToBeat
}

type BestOfConfig struct {
	GroupCount       int           `json:"group_count"`
	Games            int           `json:"games"`
	AdvancesPerGroup int           `json:"advances_per_group"`
	SeriesConfig     *SeriesConfig `json:"series_config,omitempty"`
}

// WinsNeeded is the number of games that decides the series.
func (c *BestOfConfig) WinsNeeded() int {
	return c.Games/2 + 1
}

type DoubleEliminationConfig struct {
	GroupCount       int      `json:"group_count"`
	MaxLoss          int      `json:"max_loss"`
	Brackets         []string `json:"brackets"`
	AdvancesPerGroup int      `json:"advances_per_group"`
}

type TwiceToBeatConfig struct {
	AdvantagedTeam int `json:"advantaged_team"`
	ChallengerTeam int `json:"challenger_team"`
	MaxGames       int `json:"max_games"`
}

// FormatConfig is a tagged union; exactly the variant named by Type is set.
type FormatConfig struct {
	Type              FormatType
	RoundRobin        *RoundRobinConfig
	Knockout          *KnockoutConfig
	BestOf            *BestOfConfig
	DoubleElimination *DoubleEliminationConfig
	TwiceToBeat       *TwiceToBeatConfig
}

// GroupCount returns the configured number of groups, 1 for formats without groups.
func (c FormatConfig) GroupCount() int {
	switch c.Type {
	case FormatRoundRobin:
		return c.RoundRobin.GroupCount
	case FormatKnockout:
		return c.Knockout.GroupCount
	case FormatBestOf:
		return c.BestOf.GroupCount
	case FormatDoubleElimination:
		return c.DoubleElimination.GroupCount
	}
	return 1
}

func (c FormatConfig) variant() interface{} {
	switch c.Type {
	case FormatRoundRobin:
		return c.RoundRobin
	case FormatKnockout:
		return c.Knockout
	case FormatBestOf:
		return c.BestOf
	case FormatDoubleElimination:
		return c.DoubleElimination
	case FormatTwiceToBeat:
		return c.TwiceToBeat
	}
	return nil
}

// MarshalJSON writes the variant's fields next to the "type" discriminator.
func (c FormatConfig) MarshalJSON() ([]byte, error) {
	v := c.variant()
	if v == nil || reflect.ValueOf(v).IsNil() {
		return nil, fmt.Errorf("%w: no variant set for type %q", ErrInvalidFormatConfig, c.Type)
	}
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	typeJSON, _ := json.Marshal(c.Type)
	fields["type"] = typeJSON
	return json.Marshal(fields)
}

func (c *FormatConfig) UnmarshalJSON(data []byte) error {
	parsed, err := ParseFormatConfig(data)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Wire shapes. Pointers distinguish a missing field from a zero value.

type seriesWire struct {
	Type *string `json:"type" validate:"required"`
}

type roundRobinWire struct {
	GroupCount       *int  `json:"group_count" validate:"required,gte=1"`
	AdvancesPerGroup *int  `json:"advances_per_group" validate:"required,gte=1"`
	UsePointSystem   *bool `json:"use_point_system"`
}

type knockoutWire struct {
	GroupCount   *int        `json:"group_count" validate:"required,gte=1"`
	Seeding      *string     `json:"seeding" validate:"required,oneof=random ranking"`
	SeriesConfig *seriesWire `json:"series_config" validate:"omitempty"`
}

type bestOfWire struct {
	GroupCount       *int        `json:"group_count" validate:"required,gte=1"`
	Games            *int        `json:"games" validate:"required,gte=1,odd"`
	AdvancesPerGroup *int        `json:"advances_per_group" validate:"required,gte=1"`
	SeriesConfig     *seriesWire `json:"series_config" validate:"omitempty"`
}

type doubleEliminationWire struct {
	GroupCount       *int     `json:"group_count" validate:"omitempty,gte=1"`
	MaxLoss          *int     `json:"max_loss" validate:"omitempty,gte=1"`
	Brackets         []string `json:"brackets" validate:"omitempty,min=1,dive,oneof=winners losers"`
	AdvancesPerGroup *int     `json:"advances_per_group" validate:"omitempty,gte=1"`
}

type twiceToBeatWire struct {
	AdvantagedTeam *int `json:"advantaged_team" validate:"required,gte=1"`
	ChallengerTeam *int `json:"challenger_team" validate:"required,gte=1"`
	MaxGames       *int `json:"max_games" validate:"omitempty,eq=2"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("odd", func(fl validator.FieldLevel) bool {
		return fl.Field().Int()%2 == 1
	})
	return v
}

// ParseFormatConfig decodes a stored format config. Configs written before the
// "type" discriminator existed are classified by their distinguishing keys.
func ParseFormatConfig(raw []byte) (FormatConfig, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return FormatConfig{}, fmt.Errorf("%w: empty config", ErrInvalidFormatConfig)
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return FormatConfig{}, fmt.Errorf("%w: %v", ErrInvalidFormatConfig, err)
	}

	formatType, err := detectFormatType(probe)
	if err != nil {
		return FormatConfig{}, err
	}

	cfg := FormatConfig{Type: formatType}
	switch formatType {
	case FormatRoundRobin:
		var w roundRobinWire
		if err := decodeWire(raw, &w); err != nil {
			return FormatConfig{}, err
		}
		cfg.RoundRobin = &RoundRobinConfig{
			GroupCount:       *w.GroupCount,
			AdvancesPerGroup: *w.AdvancesPerGroup,
			UsePointSystem:   w.UsePointSystem != nil && *w.UsePointSystem,
		}
	case FormatKnockout:
		var w knockoutWire
		if err := decodeWire(raw, &w); err != nil {
			return FormatConfig{}, err
		}
		series, err := w.SeriesConfig.toConfig()
		if err != nil {
			return FormatConfig{}, err
		}
		cfg.Knockout = &KnockoutConfig{
			GroupCount:   *w.GroupCount,
			Seeding:      Seeding(*w.Seeding),
			SeriesConfig: series,
		}
	case FormatBestOf:
		var w bestOfWire
		if err := decodeWire(raw, &w); err != nil {
			return FormatConfig{}, err
		}
		series, err := w.SeriesConfig.toConfig()
		if err != nil {
			return FormatConfig{}, err
		}
		cfg.BestOf = &BestOfConfig{
			GroupCount:       *w.GroupCount,
			Games:            *w.Games,
			AdvancesPerGroup: *w.AdvancesPerGroup,
			SeriesConfig:     series,
		}
	case FormatDoubleElimination:
		var w doubleEliminationWire
		if err := decodeWire(raw, &w); err != nil {
			return FormatConfig{}, err
		}
		cfg.DoubleElimination = &DoubleEliminationConfig{
			GroupCount:       intOr(w.GroupCount, 1),
			MaxLoss:          intOr(w.MaxLoss, defaultMaxLoss),
			Brackets:         w.Brackets,
			AdvancesPerGroup: intOr(w.AdvancesPerGroup, 1),
		}
		if len(cfg.DoubleElimination.Brackets) == 0 {
			cfg.DoubleElimination.Brackets = []string{"winners", "losers"}
		}
	case FormatTwiceToBeat:
		var w twiceToBeatWire
		if err := decodeWire(raw, &w); err != nil {
			return FormatConfig{}, err
		}
		if *w.AdvantagedTeam == *w.ChallengerTeam {
			return FormatConfig{}, fmt.Errorf("%w: advantaged_team and challenger_team must differ", ErrInvalidFormatConfig)
		}
		cfg.TwiceToBeat = &TwiceToBeatConfig{
			AdvantagedTeam: *w.AdvantagedTeam,
			ChallengerTeam: *w.ChallengerTeam,
			MaxGames:       intOr(w.MaxGames, twiceToBeatGames),
		}
	}
	return cfg, nil
}

func detectFormatType(probe map[string]json.RawMessage) (FormatType, error) {
	if rawType, ok := probe["type"]; ok {
		var name string
		if err := json.Unmarshal(rawType, &name); err != nil {
			return "", fmt.Errorf("%w: type must be a string", ErrInvalidFormatConfig)
		}
		t, err := ParseFormatType(name)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidFormatConfig, err)
		}
		return t, nil
	}
	switch {
	case hasKey(probe, "max_loss"):
		return FormatDoubleElimination, nil
	case hasKey(probe, "games"):
		return FormatBestOf, nil
	case hasKey(probe, "seeding"):
		return FormatKnockout, nil
	}
	return FormatRoundRobin, nil
}

func hasKey(m map[string]json.RawMessage, key string) bool {
	_, ok := m[key]
	return ok
}

func decodeWire(raw []byte, dst interface{}) error {
	if err := json.Unmarshal(raw, dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return fmt.Errorf("%w: field %q must be %s", ErrInvalidFormatConfig, typeErr.Field, typeErr.Type)
		}
		return fmt.Errorf("%w: %v", ErrInvalidFormatConfig, err)
	}
	if err := validate.Struct(dst); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidFormatConfig, describeValidation(err))
	}
	return nil
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			parts = append(parts, fmt.Sprintf("%s is required", fe.Field()))
		case "odd":
			parts = append(parts, fmt.Sprintf("%s must be odd", fe.Field()))
		default:
			if fe.Param() != "" {
				parts = append(parts, fmt.Sprintf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param()))
			} else {
				parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
			}
		}
	}
	return strings.Join(parts, "; ")
}

func (w *seriesWire) toConfig() (*SeriesConfig, error) {
	if w == nil {
		return nil, nil
	}
	t, err := ParseFormatType(*w.Type)
	if err != nil || t != FormatTwiceToBeat {
		return nil, fmt.Errorf("%w: series_config type must be TwiceToBeat", ErrInvalidFormatConfig)
	}
	return &SeriesConfig{Type: t}, nil
}

func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}
