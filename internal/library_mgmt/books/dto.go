package books

import "time"

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

type WaitlistStudentView struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	StudentID string `json:"studentId"`
	Dept      string `json:"dept"`
}

type WaitlistEntryView struct {
	Student WaitlistStudentView `json:"student"`
	AddedAt time.Time           `json:"addedAt"`
}

// 詳細ページ用。ウェイトリストを学生情報込みで展開する
type BookDetailView struct {
	BookView
	Waitlist []WaitlistEntryView `json:"waitlist"`
}
