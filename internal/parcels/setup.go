package parcels

import "gorm.io/gorm"

func Migrate(d *gorm.DB) error {
	return d.AutoMigrate(&Parcel{})
}
