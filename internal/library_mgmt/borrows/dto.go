package borrows

import "time"

// 貸出・ウェイトリスト登録リクエスト
// 未登録の studentId の場合はこのフィールド群から学生レコードを作成する
type BorrowRequest struct {
	Name      string `json:"name"`
	StudentID string `json:"studentId"`
	Dept      string `json:"dept"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

type BookSummary struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Author          string `json:"author"`
	Category        string `json:"category"`
	Description     string `json:"description"`
	TotalCopies     int    `json:"totalCopies"`
	AvailableCopies int    `json:"availableCopies"`
}

type StudentSummary struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	StudentID string `json:"studentId"`
	Dept      string `json:"dept"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

type BorrowView struct {
	ID               string         `json:"id"`
	Token            string         `json:"token"`
	IssueDate        time.Time      `json:"issueDate"`
	ReturnDate       time.Time      `json:"returnDate"`
	ActualReturnDate *time.Time     `json:"actualReturnDate,omitempty"`
	Status           string         `json:"status"`
	Book             BookSummary    `json:"book"`
	Student          StudentSummary `json:"student"`
}

type WaitlistEntryView struct {
	Student StudentSummary `json:"student"`
	AddedAt time.Time      `json:"addedAt"`
}

func toBookSummary(b *BookRef) BookSummary {
	return BookSummary{
		ID:              b.BookULID,
		Title:           b.Title,
		Author:          b.Author,
		Category:        b.Category,
		Description:     b.Description,
		TotalCopies:     b.TotalCopies,
		AvailableCopies: b.AvailableCopies,
	}
}

func toStudentSummary(st *StudentRef) StudentSummary {
	return StudentSummary{
		ID:        st.StudentULID,
		Name:      st.Name,
		StudentID: st.StudentNumber,
		Dept:      st.Dept,
		Email:     st.Email,
		Phone:     st.Phone,
	}
}

func toBorrowView(d *BorrowDetail) BorrowView {
	v := BorrowView{
		ID:         d.BorrowULID,
		Token:      d.Token,
		IssueDate:  d.IssueDate,
		ReturnDate: d.ReturnDate,
		Status:     d.Status,
		Book:       toBookSummary(&d.Book),
		Student:    toStudentSummary(&d.Student),
	}
	if d.ActualReturnDate.Valid {
		t := d.ActualReturnDate.Time
		v.ActualReturnDate = &t
	}
	return v
}

func toBorrowViews(details []BorrowDetail) []BorrowView {
	views := make([]BorrowView, 0, len(details))
	for i := range details {
		views = append(views, toBorrowView(&details[i]))
	}
	return views
}
