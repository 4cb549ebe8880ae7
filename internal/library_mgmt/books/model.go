package books

import "time"

// Book は books テーブルの1行を表す
type Book struct {
	BookID          int64
	BookULID        string
	Title           string
	Author          string
	Category        string
	Description     string
	TotalCopies     int
	AvailableCopies int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type WaitlistEntry struct {
	StudentULID   string
	StudentNumber string
	Name          string
	Dept          string
	AddedAt       time.Time
}
