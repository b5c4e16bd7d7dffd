package core

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"

	"wfm-core/model"
)

// DayTypeRegistry is the process-wide day-type table. It is built once at
// startup and never mutated afterwards, so lookups need no locking.
type DayTypeRegistry struct {
	byCode map[string]model.DayType
}

func NewDayTypeRegistry(types []model.DayType) *DayTypeRegistry {
	byCode := make(map[string]model.DayType, len(types))
	for _, dt := range types {
		byCode[dt.Code] = dt
	}
	return &DayTypeRegistry{byCode: byCode}
}

// LoadDayTypeRegistry reads the day types of a network from the store.
func LoadDayTypeRegistry(db *gorm.DB) (*DayTypeRegistry, error) {
	var types []model.DayType
	if err := db.Order("ordering").Find(&types).Error; err != nil {
		return nil, fmt.Errorf("failed to load day types: %w", err)
	}
	return NewDayTypeRegistry(types), nil
}

// LoadDayTypeSeed parses the YAML file shipping the system built-ins.
func LoadDayTypeSeed(path string) ([]model.DayType, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read day type seed: %w", err)
	}

	var seed struct {
		DayTypes []model.DayType `yaml:"day_types"`
	}
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse day type seed: %w", err)
	}
	return seed.DayTypes, nil
}

func (r *DayTypeRegistry) Len() int {
	return len(r.byCode)
}

func (r *DayTypeRegistry) Lookup(code string) (model.DayType, bool) {
	dt, ok := r.byCode[code]
	return dt, ok
}

func (r *DayTypeRegistry) WorkHoursMethod(code string) string {
	dt, ok := r.byCode[code]
	if !ok {
		return model.WorkHoursNone
	}
	if dt.GetWorkHoursMethod == "" {
		if dt.IsDayoff {
			return model.WorkHoursNone
		}
		return model.WorkHoursFromShift
	}
	return dt.GetWorkHoursMethod
}

func (r *DayTypeRegistry) AllowedAdditional(code string) model.StringArray {
	return r.byCode[code].AllowedAdditionalTypes
}

func (r *DayTypeRegistry) IsDayOff(code string) bool {
	return r.byCode[code].IsDayoff
}

func (r *DayTypeRegistry) SubtractBreaks(code string) bool {
	return r.byCode[code].SubtractBreaks
}

func (r *DayTypeRegistry) UsableIn(code string, isFact bool) bool {
	dt, ok := r.byCode[code]
	if !ok {
		return false
	}
	if isFact {
		return dt.UseInFact
	}
	return dt.UseInPlan
}

// MutuallyAdditional reports whether every pair of the given codes allows
// the other as an additional type on the same date.
func (r *DayTypeRegistry) MutuallyAdditional(codes []string) bool {
	for i, a := range codes {
		for j, b := range codes {
			if i == j {
				continue
			}
			if !r.AllowedAdditional(a).Contains(b) {
				return false
			}
		}
	}
	return true
}
