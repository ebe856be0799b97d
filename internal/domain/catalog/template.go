package catalog

import "time"

type SearchTemplate struct {
	ID          uint   `gorm:"primaryKey"`
	ProjectID   uint   `gorm:"not null;index"`
	Name        string `gorm:"type:varchar(200);not null"`
	Description string `gorm:"type:text"`
	IsDefault   bool   `gorm:"not null;default:false"`
	CreatedByID uint

	Fields []MetadataField `gorm:"many2many:template_fields;"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (t SearchTemplate) FieldIDs() []uint {
	ids := make([]uint, 0, len(t.Fields))
	for _, f := range t.Fields {
		ids = append(ids, f.ID)
	}
	return ids
}
