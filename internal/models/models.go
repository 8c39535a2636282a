package models

// All lists every model handled by AutoMigrate.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Course{},
		&Module{},
		&Section{},
		&ProgressRecord{},
		&Batch{},
		&UploadRecord{},
		&ActivityLog{},
	}
}
