package admin

import "time"

// Book は books テーブルの1行を表す（管理画面視点）
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

// RecentBorrow はダッシュボード用の直近アクティブ貸出
type RecentBorrow struct {
	BorrowULID    string
	Token         string
	IssueDate     time.Time
	BookULID      string
	BookTitle     string
	BookAuthor    string
	StudentULID   string
	StudentName   string
	StudentNumber string
	StudentDept   string
}
