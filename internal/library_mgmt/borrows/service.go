package borrows

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// ===== インターフェース群 =====

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

type IDGen interface {
	New() (string, error)
}

type ulidGen struct{}

func (ulidGen) New() (string, error) {
	t := time.Now().UTC()
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(t), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// TokenGen は貸出1件を指す受付トークン（16桁の大文字hex）を生成する。
// 一意性は borrows.token のUNIQUE制約が担保する。
type TokenGen interface {
	New() (string, error)
}

type hexTokenGen struct{}

func (hexTokenGen) New() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return strings.ToUpper(hex.EncodeToString(buf)), nil
}

// BorrowStore は貸出・返却・ウェイトリストの永続化操作
type BorrowStore interface {
	GetBookByULID(ctx context.Context, bookULID string) (*BookRef, error)
	FindStudentByNumber(ctx context.Context, number string) (*StudentRef, error)
	CreateStudent(ctx context.Context, st *StudentRef) error

	// ExecBorrow は在庫確認・減算と貸出INSERTを1トランザクションで行う。
	// 在庫ゼロなら Conflict を返す。
	ExecBorrow(ctx context.Context, b *Borrow) error
	// ExecReturn は所有・状態確認、返却記録、在庫加算（totalでキャップ）を
	// 1トランザクションで行い、更新後の展開済みレコードを返す。
	ExecReturn(ctx context.Context, borrowULID string, studentID int64, now time.Time) (*BorrowDetail, error)

	GetDetailByToken(ctx context.Context, token string) (*BorrowDetail, error)
	ListActive(ctx context.Context) ([]BorrowDetail, error)
	ListByStudent(ctx context.Context, studentID int64, activeOnly bool) ([]BorrowDetail, error)

	// AddWaitlistEntry は追加後の1始まり待ち順を返す。重複は Conflict。
	AddWaitlistEntry(ctx context.Context, bookID, studentID int64, at time.Time) (int, error)
	ListWaitlist(ctx context.Context, bookID int64) ([]WaitlistEntryDetail, error)
}

// ===== Service本体 =====

type Service struct {
	store BorrowStore
	clock Clock
	id    IDGen
	token TokenGen
}

func NewService(db *sql.DB) *Service {
	return &Service{
		store: NewStore(db),
		clock: realClock{},
		id:    ulidGen{},
		token: hexTokenGen{},
	}
}

// 貸出登録
func (s *Service) Borrow(ctx context.Context, bookULID string, req BorrowRequest) (*BorrowDetail, error) {
	book, err := s.resolveBook(ctx, bookULID)
	if err != nil {
		return nil, err
	}

	// 在庫ゼロの早期リターン。最終判定は ExecBorrow が行ロック下で再確認する
	if book.AvailableCopies <= 0 {
		return nil, ErrConflict("Book not available. Join waitlist.")
	}

	student, err := s.findOrCreateStudent(ctx, req)
	if err != nil {
		return nil, err
	}

	borrowULID, err := s.id.New()
	if err != nil {
		return nil, err
	}
	token, err := s.token.New()
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	b := &Borrow{
		BorrowULID: borrowULID,
		BookID:     book.BookID,
		StudentID:  student.StudentID,
		Token:      token,
		IssueDate:  now,
		ReturnDate: now.AddDate(0, 0, loanPeriodDays),
		Status:     StatusActive,
	}

	if err := s.store.ExecBorrow(ctx, b); err != nil {
		return nil, err
	}

	book.AvailableCopies--
	return &BorrowDetail{Borrow: *b, Book: *book, Student: *student}, nil
}

// 返却登録。returnedOnTime は actual <= due（同時刻は期限内扱い）
func (s *Service) Return(ctx context.Context, borrowULID string, studentID int64) (*BorrowDetail, bool, error) {
	now := s.clock.Now()
	detail, err := s.store.ExecReturn(ctx, borrowULID, studentID, now)
	if err != nil {
		return nil, false, err
	}

	onTime := false
	if detail.ActualReturnDate.Valid {
		onTime = returnedOnTime(detail.ActualReturnDate.Time, detail.ReturnDate)
	}
	return detail, onTime, nil
}

// トークン照会
func (s *Service) TokenInfo(ctx context.Context, token string) (*BorrowDetail, error) {
	detail, err := s.store.GetDetailByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if detail == nil {
		return nil, ErrNotFound("Token not found")
	}
	return detail, nil
}

// 全アクティブ貸出（発行日降順）
func (s *Service) ListBorrowed(ctx context.Context) ([]BorrowDetail, error) {
	return s.store.ListActive(ctx)
}

// 認証済み学生のアクティブ貸出
func (s *Service) ListMyBorrowed(ctx context.Context, studentID int64) ([]BorrowDetail, error) {
	return s.store.ListByStudent(ctx, studentID, true)
}

// 認証済み学生の全履歴
func (s *Service) ListMyHistory(ctx context.Context, studentID int64) ([]BorrowDetail, error) {
	return s.store.ListByStudent(ctx, studentID, false)
}

// ウェイトリスト追加。戻り値は1始まりの待ち順
func (s *Service) JoinWaitlist(ctx context.Context, bookULID string, req BorrowRequest) (int, error) {
	book, err := s.resolveBook(ctx, bookULID)
	if err != nil {
		return 0, err
	}

	student, err := s.findOrCreateStudent(ctx, req)
	if err != nil {
		return 0, err
	}

	return s.store.AddWaitlistEntry(ctx, book.BookID, student.StudentID, s.clock.Now())
}

// ウェイトリスト取得（FIFO順）
func (s *Service) GetWaitlist(ctx context.Context, bookULID string) ([]WaitlistEntryDetail, error) {
	book, err := s.resolveBook(ctx, bookULID)
	if err != nil {
		return nil, err
	}
	return s.store.ListWaitlist(ctx, book.BookID)
}

// ===== helpers =====

func (s *Service) resolveBook(ctx context.Context, bookULID string) (*BookRef, error) {
	if bookULID == "" {
		return nil, ErrInvalid("bookId is required")
	}
	book, err := s.store.GetBookByULID(ctx, bookULID)
	if err != nil {
		return nil, err
	}
	if book == nil {
		return nil, ErrNotFound("Book not found")
	}
	return book, nil
}

// 学籍番号で引き当て、未登録なら資格情報なしの最小レコードを作成する
// （窓口キオスク運用。このレコードはそのままではログインできない）
func (s *Service) findOrCreateStudent(ctx context.Context, req BorrowRequest) (*StudentRef, error) {
	number := strings.TrimSpace(req.StudentID)
	if number == "" {
		return nil, ErrInvalid("studentId is required")
	}

	student, err := s.store.FindStudentByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	if student != nil {
		return student, nil
	}

	name := strings.TrimSpace(req.Name)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if name == "" || email == "" {
		return nil, ErrInvalid("name and email are required for new students")
	}

	studentULID, err := s.id.New()
	if err != nil {
		return nil, err
	}
	student = &StudentRef{
		StudentULID:   studentULID,
		StudentNumber: number,
		Name:          name,
		Email:         email,
		Phone:         strings.TrimSpace(req.Phone),
		Dept:          strings.TrimSpace(req.Dept),
	}
	if err := s.store.CreateStudent(ctx, student); err != nil {
		return nil, err
	}
	return student, nil
}

func returnedOnTime(actual, due time.Time) bool {
	return !actual.After(due)
}
