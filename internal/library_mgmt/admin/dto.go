package admin

import "time"

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type CreateBookRequest struct {
	Title       string `json:"title"`
	Author      string `json:"author"`
	Category    string `json:"category"`
	Description string `json:"description"`
	TotalCopies int    `json:"totalCopies"`
}

// 空フィールドは据え置き。totalCopies 変更時は差分を availableCopies にも反映する
type UpdateBookRequest struct {
	Title       string `json:"title"`
	Author      string `json:"author"`
	Category    string `json:"category"`
	Description string `json:"description"`
	TotalCopies int    `json:"totalCopies"`
}

type BookView struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Author          string    `json:"author"`
	Category        string    `json:"category"`
	Description     string    `json:"description"`
	TotalCopies     int       `json:"totalCopies"`
	AvailableCopies int       `json:"availableCopies"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

type RecentBorrowView struct {
	ID        string    `json:"id"`
	Token     string    `json:"token"`
	IssueDate time.Time `json:"issueDate"`
	Book      struct {
		ID     string `json:"id"`
		Title  string `json:"title"`
		Author string `json:"author"`
	} `json:"book"`
	Student struct {
		ID        string `json:"id"`
		Name      string `json:"name"`
		StudentID string `json:"studentId"`
		Dept      string `json:"dept"`
	} `json:"student"`
}

type StatsResponse struct {
	TotalBooks    int64              `json:"totalBooks"`
	TotalBorrowed int64              `json:"totalBorrowed"`
	TotalReturned int64              `json:"totalReturned"`
	RecentBorrows []RecentBorrowView `json:"recentBorrows"`
}
