package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

type Student struct {
	StudentID     int64
	StudentULID   string
	StudentNumber string
	Name          string
	Email         string
	Phone         string
	Dept          string
	// NULL のレコードは貸出フローで自動作成されたもの（ログイン不可）
	PasswordHash sql.NullString
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type StudentStore interface {
	GetByULID(ctx context.Context, ulid string) (*Student, error)
	GetByEmail(ctx context.Context, email string) (*Student, error)
	GetByNumber(ctx context.Context, number string) (*Student, error)
	Create(ctx context.Context, st *Student) error
	Update(ctx context.Context, st *Student) error
}

type Store struct{ db *sql.DB }

func NewStore(db *sql.DB) StudentStore {
	return &Store{db: db}
}

const studentCols = `
student_id, student_ulid, student_number, name, email, phone, dept,
password_hash, is_active, created_at, updated_at
`

func scanStudent(row *sql.Row) (*Student, error) {
	var st Student
	var isActiveInt int
	err := row.Scan(
		&st.StudentID,
		&st.StudentULID,
		&st.StudentNumber,
		&st.Name,
		&st.Email,
		&st.Phone,
		&st.Dept,
		&st.PasswordHash,
		&isActiveInt,
		&st.CreatedAt,
		&st.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	st.IsActive = isActiveInt != 0
	return &st, nil
}

func (s *Store) GetByULID(ctx context.Context, ulid string) (*Student, error) {
	const q = `SELECT ` + studentCols + ` FROM students WHERE student_ulid = ? LIMIT 1`
	return scanStudent(s.db.QueryRowContext(ctx, q, ulid))
}

func (s *Store) GetByEmail(ctx context.Context, email string) (*Student, error) {
	const q = `SELECT ` + studentCols + ` FROM students WHERE email = ? LIMIT 1`
	return scanStudent(s.db.QueryRowContext(ctx, q, email))
}

func (s *Store) GetByNumber(ctx context.Context, number string) (*Student, error) {
	const q = `SELECT ` + studentCols + ` FROM students WHERE student_number = ? LIMIT 1`
	return scanStudent(s.db.QueryRowContext(ctx, q, number))
}

func (s *Store) Create(ctx context.Context, st *Student) error {
	const q = `
INSERT INTO students (student_ulid, student_number, name, email, phone, dept, password_hash, is_active, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, 1, NOW(6), NOW(6))
`
	res, err := s.db.ExecContext(ctx, q,
		st.StudentULID, st.StudentNumber, st.Name, st.Email, st.Phone, st.Dept, st.PasswordHash,
	)
	if err != nil {
		return err
	}
	id, _ := res.LastInsertId()
	st.StudentID = id
	return nil
}

func (s *Store) Update(ctx context.Context, st *Student) error {
	const q = `
UPDATE students
SET name = ?, email = ?, phone = ?, dept = ?, password_hash = ?, is_active = ?
WHERE student_id = ?
`
	_, err := s.db.ExecContext(ctx, q,
		st.Name, st.Email, st.Phone, st.Dept, st.PasswordHash, st.IsActive, st.StudentID,
	)
	return err
}
