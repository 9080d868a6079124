package models

// Period is one weekday. IDs follow Monday=1 ... Sunday=7.
type Period struct {
	ID    uint64 `gorm:"primarykey;autoIncrement:false" json:"id"`
	Label string `gorm:"type:varchar(3);uniqueIndex;not null" json:"label"`
}

// Weekdays is the reference data seeded at migration time.
var Weekdays = []Period{
	{ID: 1, Label: "Mon"},
	{ID: 2, Label: "Tue"},
	{ID: 3, Label: "Wed"},
	{ID: 4, Label: "Thu"},
	{ID: 5, Label: "Fri"},
	{ID: 6, Label: "Sat"},
	{ID: 7, Label: "Sun"},
}
