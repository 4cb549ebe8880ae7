package borrows

import (
	"database/sql"
	"time"
)

const (
	StatusActive   = "active"
	StatusReturned = "returned"
)

// 貸出期間（発行日から14日）
const loanPeriodDays = 14

// Borrow は borrows テーブルの1行を表す
type Borrow struct {
	BorrowID         int64
	BorrowULID       string
	BookID           int64
	StudentID        int64
	Token            string
	IssueDate        time.Time
	ReturnDate       time.Time
	ActualReturnDate sql.NullTime
	Status           string
}

// BookRef は貸出ワークフローから見た書籍行
type BookRef struct {
	BookID          int64
	BookULID        string
	Title           string
	Author          string
	Category        string
	Description     string
	TotalCopies     int
	AvailableCopies int
}

// StudentRef は貸出ワークフローから見た学生行
type StudentRef struct {
	StudentID     int64
	StudentULID   string
	StudentNumber string
	Name          string
	Email         string
	Phone         string
	Dept          string
}

// BorrowDetail は書籍・学生を展開した貸出レコード
type BorrowDetail struct {
	Borrow
	Book    BookRef
	Student StudentRef
}

// WaitlistEntryDetail はFIFO順のウェイトリスト1件
type WaitlistEntryDetail struct {
	Student StudentRef
	AddedAt time.Time
}
