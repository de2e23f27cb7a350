package domain

import "time"

// Label values for training rows.
const (
	LabelNotProduct = 0
	LabelProduct    = 1
)

// ExampleRow is one stored training row. PagePath and ProductPath are the
// locators recorded at labeling time and may carry foreign path separators.
type ExampleRow struct {
	ID          int64     `db:"id"           json:"id"`
	URL         string    `db:"url"          json:"url"`
	PagePath    string    `db:"page_path"    json:"page_path"`
	ProductPath string    `db:"product_path" json:"product_path"`
	Label       int       `db:"label"        json:"label"`
	CreatedAt   time.Time `db:"created_at"   json:"created_at"`
}

// Example is an extracted (page text, segment text, label) triple.
type Example struct {
	RowID       int64
	PageText    string
	SegmentText string
	Label       int
}

// LabelCount is the number of stored rows per label.
type LabelCount struct {
	Label int `db:"label"`
	Count int `db:"count"`
}
