package models

// TestCaseComment is a free-text comment left on a test case.
type TestCaseComment struct {
	BaseModel

	TestCaseID string    `gorm:"type:uuid;not null;index" json:"test_case_id"`
	TestCase   *TestCase `gorm:"foreignKey:TestCaseID;constraint:OnDelete:CASCADE" json:"-"`
	AuthorID   string    `gorm:"type:uuid;not null" json:"author_id"`
	Author     *User     `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	Body       string    `gorm:"not null" json:"body"`
}
