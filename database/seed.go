package database

import (
	"fmt"

	"metareview/internal/domain/catalog"
	"metareview/internal/domain/users"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SeedRoles upserts the default roles. Existing permission sets are kept.
func SeedRoles(db *gorm.DB) error {
	roles := users.DefaultRoles()
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoNothing: true,
	}).Create(&roles).Error
	if err != nil {
		return fmt.Errorf("seed roles: %w", err)
	}
	return nil
}

// SeedFields inserts the predefined global catalog, skipping codes that exist.
// It returns the number of newly created fields.
func SeedFields(db *gorm.DB) (int64, error) {
	fields := PredefinedFields()
	res := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "code"}},
		DoNothing: true,
	}).Create(&fields)
	if res.Error != nil {
		return 0, fmt.Errorf("seed fields: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func PredefinedFields() []catalog.MetadataField {
	fields := make([]catalog.MetadataField, 0, len(predefined))
	for _, p := range predefined {
		fields = append(fields, catalog.MetadataField{
			Name:        p.name,
			Code:        p.code,
			Category:    p.category,
			DataType:    p.dataType,
			Description: p.description,
			Options:     p.options,
			Predefined:  true,
			Active:      true,
		})
	}
	return fields
}
