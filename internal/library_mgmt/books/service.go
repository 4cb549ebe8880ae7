package books

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ===== Error model (borrows/admin と同型) =====

type Code string

const (
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeNotFound        Code = "NOT_FOUND"
	CodeConflict        Code = "CONFLICT"
	CodeInternal        Code = "INTERNAL"
)

type APIError struct {
	Code    Code
	Message string
}

func (e *APIError) Error() string { return fmt.Sprintf("%s: %s", e.Code, e.Message) }

func ErrInvalid(msg string) *APIError  { return &APIError{Code: CodeInvalidArgument, Message: msg} }
func ErrNotFound(msg string) *APIError { return &APIError{Code: CodeNotFound, Message: msg} }
func ErrInternal(msg string) *APIError { return &APIError{Code: CodeInternal, Message: msg} }

func toHTTPStatus(err error) int {
	var api *APIError
	if errors.As(err, &api) {
		switch api.Code {
		case CodeInvalidArgument:
			return 400
		case CodeNotFound:
			return 404
		case CodeConflict:
			return 409
		default:
			return 500
		}
	}
	return 500
}

func errMessage(err error) string {
	var api *APIError
	if errors.As(err, &api) {
		return api.Message
	}
	return "Server error"
}

// ===== Service =====

type Service struct {
	store *Store
}

func NewService(db *sql.DB) *Service {
	return &Service{store: NewStore(db)}
}

// 蔵書に存在するカテゴリ一覧
func (s *Service) ListCategories(ctx context.Context) ([]string, error) {
	return s.store.ListCategories(ctx)
}

// カテゴリ別の書籍一覧
func (s *Service) ListByCategory(ctx context.Context, category string) ([]BookView, error) {
	if category == "" {
		return nil, ErrInvalid("category is required")
	}
	items, err := s.store.ListByCategory(ctx, category)
	if err != nil {
		return nil, err
	}

	views := make([]BookView, 0, len(items))
	for i := range items {
		views = append(views, toView(&items[i]))
	}
	return views, nil
}

// 書籍詳細（ウェイトリスト展開込み）
func (s *Service) GetByULID(ctx context.Context, bookULID string) (*BookDetailView, error) {
	book, err := s.store.GetByULID(ctx, bookULID)
	if err != nil {
		return nil, err
	}
	if book == nil {
		return nil, ErrNotFound("Book not found")
	}

	entries, err := s.store.ListWaitlist(ctx, book.BookID)
	if err != nil {
		return nil, err
	}

	detail := BookDetailView{
		BookView: toView(book),
		Waitlist: make([]WaitlistEntryView, 0, len(entries)),
	}
	for _, e := range entries {
		detail.Waitlist = append(detail.Waitlist, WaitlistEntryView{
			Student: WaitlistStudentView{
				ID:        e.StudentULID,
				Name:      e.Name,
				StudentID: e.StudentNumber,
				Dept:      e.Dept,
			},
			AddedAt: e.AddedAt,
		})
	}
	return &detail, nil
}

func toView(b *Book) BookView {
	return BookView{
		ID:              b.BookULID,
		Title:           b.Title,
		Author:          b.Author,
		Category:        b.Category,
		Description:     b.Description,
		TotalCopies:     b.TotalCopies,
		AvailableCopies: b.AvailableCopies,
		CreatedAt:       b.CreatedAt,
		UpdatedAt:       b.UpdatedAt,
	}
}
