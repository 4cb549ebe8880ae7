package auth

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	mysql "github.com/go-sql-driver/mysql"
	ulid "github.com/oklog/ulid/v2"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLen = 6

type Service struct {
	store  StudentStore
	secret []byte
	expire time.Duration
}

func NewService(db *sql.DB, secret []byte, expire time.Duration) *Service {
	return &Service{store: NewStore(db), secret: secret, expire: expire}
}

// Register は学生のセルフ登録。貸出フローで自動作成された同じ学籍番号の
// 資格情報なしレコードがあれば、それを引き取ってパスワードを設定する。
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*StudentView, string, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.StudentID = strings.TrimSpace(req.StudentID)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Dept = strings.TrimSpace(req.Dept)
	req.Phone = strings.TrimSpace(req.Phone)

	if req.Name == "" || req.StudentID == "" || req.Email == "" || req.Password == "" || req.Dept == "" || req.Phone == "" {
		return nil, "", ErrInvalid("Please provide all required fields")
	}
	if len(req.Password) < minPasswordLen {
		return nil, "", ErrInvalid("Password must be at least 6 characters")
	}

	byEmail, err := s.store.GetByEmail(ctx, req.Email)
	if err != nil {
		return nil, "", err
	}
	if byEmail != nil {
		return nil, "", ErrConflict("Email already registered")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", err
	}

	byNumber, err := s.store.GetByNumber(ctx, req.StudentID)
	if err != nil {
		return nil, "", err
	}

	var st *Student
	switch {
	case byNumber != nil && byNumber.PasswordHash.Valid:
		return nil, "", ErrConflict("Student ID already registered")
	case byNumber != nil:
		// 資格情報なしレコードの引き取り
		st = byNumber
		st.Name = req.Name
		st.Email = req.Email
		st.Phone = req.Phone
		st.Dept = req.Dept
		st.PasswordHash = sql.NullString{String: string(hash), Valid: true}
		st.IsActive = true
		if err := s.store.Update(ctx, st); err != nil {
			return nil, "", mapDuplicate(err)
		}
	default:
		st = &Student{
			StudentULID:   ulid.Make().String(),
			StudentNumber: req.StudentID,
			Name:          req.Name,
			Email:         req.Email,
			Phone:         req.Phone,
			Dept:          req.Dept,
			PasswordHash:  sql.NullString{String: string(hash), Valid: true},
			IsActive:      true,
		}
		if err := s.store.Create(ctx, st); err != nil {
			return nil, "", mapDuplicate(err)
		}
	}

	token, err := SignToken(s.secret, st.StudentULID, RoleStudent, s.expire)
	if err != nil {
		return nil, "", err
	}
	view := toView(st)
	return &view, token, nil
}

func (s *Service) Login(ctx context.Context, req LoginRequest) (*StudentView, string, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		return nil, "", ErrInvalid("Please provide email and password")
	}

	st, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		return nil, "", err
	}
	if st == nil || !st.PasswordHash.Valid {
		return nil, "", ErrUnauthorized("Invalid email or password")
	}
	if !st.IsActive {
		return nil, "", ErrUnauthorized("Account is deactivated. Please contact admin.")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(st.PasswordHash.String), []byte(req.Password)); err != nil {
		return nil, "", ErrUnauthorized("Invalid email or password")
	}

	token, err := SignToken(s.secret, st.StudentULID, RoleStudent, s.expire)
	if err != nil {
		return nil, "", err
	}
	view := toView(st)
	return &view, token, nil
}

func (s *Service) Profile(ctx context.Context, studentULID string) (*StudentView, error) {
	st, err := s.store.GetByULID(ctx, studentULID)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, ErrNotFound("Student not found")
	}
	view := toView(st)
	return &view, nil
}

// UpdateProfile は name/dept/phone の更新と任意のパスワード変更。
// 成功時はトークンを再発行する。
func (s *Service) UpdateProfile(ctx context.Context, studentULID string, req UpdateProfileRequest) (*StudentView, string, error) {
	st, err := s.store.GetByULID(ctx, studentULID)
	if err != nil {
		return nil, "", err
	}
	if st == nil {
		return nil, "", ErrNotFound("Student not found")
	}

	if v := strings.TrimSpace(req.Name); v != "" {
		st.Name = v
	}
	if v := strings.TrimSpace(req.Dept); v != "" {
		st.Dept = v
	}
	if v := strings.TrimSpace(req.Phone); v != "" {
		st.Phone = v
	}
	if req.Password != "" {
		if len(req.Password) < minPasswordLen {
			return nil, "", ErrInvalid("Password must be at least 6 characters")
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, "", err
		}
		st.PasswordHash = sql.NullString{String: string(hash), Valid: true}
	}

	if err := s.store.Update(ctx, st); err != nil {
		return nil, "", err
	}

	token, err := SignToken(s.secret, st.StudentULID, RoleStudent, s.expire)
	if err != nil {
		return nil, "", err
	}
	view := toView(st)
	return &view, token, nil
}

func toView(st *Student) StudentView {
	return StudentView{
		ID:        st.StudentULID,
		Name:      st.Name,
		StudentID: st.StudentNumber,
		Email:     st.Email,
		Dept:      st.Dept,
		Phone:     st.Phone,
		IsActive:  st.IsActive,
		CreatedAt: st.CreatedAt,
		UpdatedAt: st.UpdatedAt,
	}
}

// UNIQUE制約違反(1062)をConflictに読み替える
func mapDuplicate(err error) error {
	var me *mysql.MySQLError
	if errors.As(err, &me) && me.Number == 1062 {
		return ErrConflict("Email or student ID already registered")
	}
	return err
}
