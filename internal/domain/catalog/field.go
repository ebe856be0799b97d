package catalog

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gorm.io/datatypes"
)

type Category string

const (
	CategoryIdentification Category = "IDENTIFICATION"
	CategoryMethodology    Category = "METHODOLOGY"
	CategorySample         Category = "SAMPLE"
	CategoryResults        Category = "RESULTS"
	CategoryEffects        Category = "EFFECTS"
	CategoryQuality        Category = "QUALITY"
	CategoryOther          Category = "OTHER"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryIdentification, CategoryMethodology, CategorySample, CategoryResults,
		CategoryEffects, CategoryQuality, CategoryOther:
		return true
	default:
		return false
	}
}

type DataType string

const (
	TypeText    DataType = "TEXT"
	TypeNumber  DataType = "NUMBER"
	TypeDate    DataType = "DATE"
	TypeBoolean DataType = "BOOLEAN"
	TypeOptions DataType = "OPTIONS"
)

func (d DataType) Valid() bool {
	switch d {
	case TypeText, TypeNumber, TypeDate, TypeBoolean, TypeOptions:
		return true
	default:
		return false
	}
}

var codePattern = regexp.MustCompile(`^[a-z][a-z0-9_]{1,49}$`)

// ValidCode reports whether code is a lowercase identifier usable as a field code.
func ValidCode(code string) bool {
	return codePattern.MatchString(code)
}

type MetadataField struct {
	ID          uint     `gorm:"primaryKey"`
	Name        string   `gorm:"type:varchar(200);not null"`
	Code        string   `gorm:"type:varchar(50);not null;uniqueIndex:idx_fields_code"`
	Category    Category `gorm:"type:varchar(32);not null;index"`
	DataType    DataType `gorm:"type:varchar(16);not null;default:'TEXT'"`
	Description string   `gorm:"type:text"`
	Options     datatypes.JSONSlice[string]
	Predefined  bool  `gorm:"not null;default:false"`
	ProjectID   *uint `gorm:"index"`
	CreatedByID *uint
	Active      bool `gorm:"not null;default:true"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (f MetadataField) IsGlobal() bool { return f.ProjectID == nil }

// VisibleIn reports whether the field belongs to the catalog of projectID.
func (f MetadataField) VisibleIn(projectID uint) bool {
	if !f.Active {
		return false
	}
	return f.ProjectID == nil || *f.ProjectID == projectID
}

var booleanValues = map[string]bool{
	"true": true, "false": true, "yes": true, "no": true, "1": true, "0": true,
	"si": true, "sí": true,
}

// ValidateValue checks a non-empty value against the field's data type.
// Empty values are always accepted; they clear the assignment.
func (f MetadataField) ValidateValue(value string) error {
	v := strings.TrimSpace(value)
	if v == "" {
		return nil
	}
	switch f.DataType {
	case TypeText:
		return nil
	case TypeNumber:
		if _, err := strconv.ParseFloat(strings.ReplaceAll(v, ",", "."), 64); err != nil {
			return fmt.Errorf("%s expects a number", f.Code)
		}
		return nil
	case TypeDate:
		if _, err := time.Parse("2006-01-02", v); err != nil {
			return fmt.Errorf("%s expects a date (YYYY-MM-DD)", f.Code)
		}
		return nil
	case TypeBoolean:
		if !booleanValues[strings.ToLower(v)] {
			return fmt.Errorf("%s expects yes or no", f.Code)
		}
		return nil
	case TypeOptions:
		for _, o := range f.Options {
			if o == v {
				return nil
			}
		}
		return fmt.Errorf("%s must be one of %s", f.Code, strings.Join(f.Options, ", "))
	default:
		return fmt.Errorf("%s has unknown data type %q", f.Code, f.DataType)
	}
}
