package lots

import "gorm.io/gorm"

// Migrate creates the uses, lot_groups and lots tables. Owners must be
// migrated first.
func Migrate(d *gorm.DB) error {
	return d.AutoMigrate(&Use{}, &LotGroup{}, &Lot{})
}
