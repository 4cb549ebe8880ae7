package admin

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	ulid "github.com/oklog/ulid/v2"

	"LBMS-backend/internal/platform/auth"
)

// ===== Error model (books/borrows と同型 + UNAUTHORIZED) =====

type Code string

const (
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeUnauthorized    Code = "UNAUTHORIZED"
	CodeNotFound        Code = "NOT_FOUND"
	CodeConflict        Code = "CONFLICT"
	CodeInternal        Code = "INTERNAL"
)

type APIError struct {
	Code    Code
	Message string
}

func (e *APIError) Error() string { return fmt.Sprintf("%s: %s", e.Code, e.Message) }

func ErrInvalid(msg string) *APIError      { return &APIError{Code: CodeInvalidArgument, Message: msg} }
func ErrUnauthorized(msg string) *APIError { return &APIError{Code: CodeUnauthorized, Message: msg} }
func ErrNotFound(msg string) *APIError     { return &APIError{Code: CodeNotFound, Message: msg} }
func ErrInternal(msg string) *APIError     { return &APIError{Code: CodeInternal, Message: msg} }

func toHTTPStatus(err error) int {
	var api *APIError
	if errors.As(err, &api) {
		switch api.Code {
		case CodeInvalidArgument:
			return 400
		case CodeUnauthorized:
			return 401
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

// 書籍カテゴリの固定一覧
var validCategories = []string{
	"Mechanical", "Electrical", "Business", "Non-fiction", "Fiction", "Science", "Technology",
}

func isValidCategory(c string) bool {
	for _, v := range validCategories {
		if v == c {
			return true
		}
	}
	return false
}

// Credentials は設定由来の管理者アカウント
type Credentials struct {
	Username string
	Password string
}

type AdminStore interface {
	InsertBook(ctx context.Context, b *Book) error
	GetBookByULID(ctx context.Context, bookULID string) (*Book, error)
	ListBooks(ctx context.Context) ([]Book, error)
	UpdateBook(ctx context.Context, b *Book) error
	DeleteBook(ctx context.Context, bookULID string) (int64, error)
	CountBooks(ctx context.Context) (int64, error)
	CountBorrowsByStatus(ctx context.Context, status string) (int64, error)
	RecentActiveBorrows(ctx context.Context, limit int) ([]RecentBorrow, error)
}

type Service struct {
	store  AdminStore
	creds  Credentials
	secret []byte
	expire time.Duration
}

func NewService(db *sql.DB, creds Credentials, secret []byte, expire time.Duration) *Service {
	return &Service{store: NewStore(db), creds: creds, secret: secret, expire: expire}
}

// Login は設定済みの管理者アカウントと照合し、role=admin のBearerトークンを
// 発行する。クライアント側フラグだけの旧方式は廃止。
func (s *Service) Login(username, password string) (string, error) {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.creds.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(s.creds.Password)) == 1
	if !userOK || !passOK {
		return "", ErrUnauthorized("Invalid credentials")
	}
	return auth.SignToken(s.secret, s.creds.Username, auth.RoleAdmin, s.expire)
}

// 書籍登録。availableCopies は totalCopies で初期化する
func (s *Service) CreateBook(ctx context.Context, req CreateBookRequest) (*BookView, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.Author = strings.TrimSpace(req.Author)
	req.Description = strings.TrimSpace(req.Description)

	if req.Title == "" || req.Author == "" || req.Category == "" || req.Description == "" {
		return nil, ErrInvalid("title, author, category, description are required")
	}
	if !isValidCategory(req.Category) {
		return nil, ErrInvalid("invalid category")
	}
	if req.TotalCopies < 1 {
		return nil, ErrInvalid("totalCopies must be >= 1")
	}

	b := &Book{
		BookULID:        ulid.Make().String(),
		Title:           req.Title,
		Author:          req.Author,
		Category:        req.Category,
		Description:     req.Description,
		TotalCopies:     req.TotalCopies,
		AvailableCopies: req.TotalCopies,
	}
	if err := s.store.InsertBook(ctx, b); err != nil {
		return nil, err
	}

	view := toView(b)
	return &view, nil
}

// 書籍一覧（登録降順）
func (s *Service) ListBooks(ctx context.Context) ([]BookView, error) {
	items, err := s.store.ListBooks(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]BookView, 0, len(items))
	for i := range items {
		views = append(views, toView(&items[i]))
	}
	return views, nil
}

// 書籍更新。totalCopies の増減差分を availableCopies に反映する（下限0）
func (s *Service) UpdateBook(ctx context.Context, bookULID string, req UpdateBookRequest) (*BookView, error) {
	b, err := s.store.GetBookByULID(ctx, bookULID)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, ErrNotFound("Book not found")
	}

	if v := strings.TrimSpace(req.Title); v != "" {
		b.Title = v
	}
	if v := strings.TrimSpace(req.Author); v != "" {
		b.Author = v
	}
	if req.Category != "" {
		if !isValidCategory(req.Category) {
			return nil, ErrInvalid("invalid category")
		}
		b.Category = req.Category
	}
	if v := strings.TrimSpace(req.Description); v != "" {
		b.Description = v
	}
	if req.TotalCopies > 0 {
		diff := req.TotalCopies - b.TotalCopies
		b.TotalCopies = req.TotalCopies
		b.AvailableCopies += diff
		if b.AvailableCopies < 0 {
			b.AvailableCopies = 0
		}
	}

	if err := s.store.UpdateBook(ctx, b); err != nil {
		return nil, err
	}
	view := toView(b)
	return &view, nil
}

// 書籍削除。既存の貸出レコードには波及しない
func (s *Service) DeleteBook(ctx context.Context, bookULID string) error {
	n, err := s.store.DeleteBook(ctx, bookULID)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound("Book not found")
	}
	return nil
}

// ダッシュボード統計
func (s *Service) Stats(ctx context.Context) (*StatsResponse, error) {
	totalBooks, err := s.store.CountBooks(ctx)
	if err != nil {
		return nil, err
	}
	totalBorrowed, err := s.store.CountBorrowsByStatus(ctx, "active")
	if err != nil {
		return nil, err
	}
	totalReturned, err := s.store.CountBorrowsByStatus(ctx, "returned")
	if err != nil {
		return nil, err
	}
	recent, err := s.store.RecentActiveBorrows(ctx, 5)
	if err != nil {
		return nil, err
	}

	res := &StatsResponse{
		TotalBooks:    totalBooks,
		TotalBorrowed: totalBorrowed,
		TotalReturned: totalReturned,
		RecentBorrows: make([]RecentBorrowView, 0, len(recent)),
	}
	for _, r := range recent {
		var v RecentBorrowView
		v.ID = r.BorrowULID
		v.Token = r.Token
		v.IssueDate = r.IssueDate
		v.Book.ID = r.BookULID
		v.Book.Title = r.BookTitle
		v.Book.Author = r.BookAuthor
		v.Student.ID = r.StudentULID
		v.Student.Name = r.StudentName
		v.Student.StudentID = r.StudentNumber
		v.Student.Dept = r.StudentDept
		res.RecentBorrows = append(res.RecentBorrows, v)
	}
	return res, nil
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
