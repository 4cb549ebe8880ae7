package borrows

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	mysql "github.com/go-sql-driver/mysql"

	"LBMS-backend/internal/platform/db"
)

type Store struct {
	db *sql.DB
}

func NewStore(sqlDB *sql.DB) *Store { return &Store{db: sqlDB} }

func (s *Store) GetBookByULID(ctx context.Context, bookULID string) (*BookRef, error) {
	const q = `
SELECT book_id, book_ulid, title, author, category, description, total_copies, available_copies
FROM books WHERE book_ulid = ? LIMIT 1`
	var b BookRef
	err := s.db.QueryRowContext(ctx, q, bookULID).Scan(
		&b.BookID, &b.BookULID, &b.Title, &b.Author, &b.Category, &b.Description,
		&b.TotalCopies, &b.AvailableCopies,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *Store) FindStudentByNumber(ctx context.Context, number string) (*StudentRef, error) {
	const q = `
SELECT student_id, student_ulid, student_number, name, email, phone, dept
FROM students WHERE student_number = ? LIMIT 1`
	var st StudentRef
	err := s.db.QueryRowContext(ctx, q, number).Scan(
		&st.StudentID, &st.StudentULID, &st.StudentNumber, &st.Name, &st.Email, &st.Phone, &st.Dept,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// 貸出フロー用の最小レコード。password_hash はNULLのまま
func (s *Store) CreateStudent(ctx context.Context, st *StudentRef) error {
	const q = `
INSERT INTO students (student_ulid, student_number, name, email, phone, dept, password_hash, is_active, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, NULL, 1, NOW(6), NOW(6))`
	res, err := s.db.ExecContext(ctx, q,
		st.StudentULID, st.StudentNumber, st.Name, st.Email, st.Phone, st.Dept,
	)
	if err != nil {
		return mapStudentDuplicate(err)
	}
	id, _ := res.LastInsertId()
	st.StudentID = id
	return nil
}

// ExecBorrow は在庫行をロックして確認・減算し、貸出を登録する。
// 最後の1冊への同時リクエストはここで直列化され、片方だけが成功する。
func (s *Store) ExecBorrow(ctx context.Context, m *Borrow) error {
	return db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		const lockQ = `SELECT available_copies FROM books WHERE book_id = ? FOR UPDATE`
		var available int
		if err := tx.QueryRowContext(ctx, lockQ, m.BookID).Scan(&available); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound("Book not found")
			}
			return err
		}
		if available <= 0 {
			return ErrConflict("Book not available. Join waitlist.")
		}

		const decQ = `UPDATE books SET available_copies = available_copies - 1 WHERE book_id = ?`
		if _, err := tx.ExecContext(ctx, decQ, m.BookID); err != nil {
			return err
		}

		const insQ = `
INSERT INTO borrows (borrow_ulid, book_id, student_id, token, issue_date, return_date, status)
VALUES (?, ?, ?, ?, ?, ?, 'active')`
		res, err := tx.ExecContext(ctx, insQ,
			m.BorrowULID, m.BookID, m.StudentID, m.Token, m.IssueDate, m.ReturnDate,
		)
		if err != nil {
			if isDuplicate(err) {
				// トークン衝突。確率的にほぼ起きないのでリトライはしない
				return ErrConflict("Borrow token collision, please retry")
			}
			return err
		}
		id, _ := res.LastInsertId()
		m.BorrowID = id
		return nil
	})
}

// ExecReturn は貸出行をロックして所有・状態を確認し、返却記録と
// 在庫加算（total_copies でキャップ）を行う。
func (s *Store) ExecReturn(ctx context.Context, borrowULID string, studentID int64, now time.Time) (*BorrowDetail, error) {
	err := db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		const lockQ = `
SELECT borrow_id, student_id, book_id, status FROM borrows WHERE borrow_ulid = ? FOR UPDATE`
		var (
			borrowID int64
			ownerID  int64
			bookID   int64
			status   string
		)
		if err := tx.QueryRowContext(ctx, lockQ, borrowULID).Scan(&borrowID, &ownerID, &bookID, &status); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound("Borrow record not found")
			}
			return err
		}
		// 他人の貸出は存在を明かさない
		if ownerID != studentID {
			return ErrNotFound("Borrow record not found")
		}
		if status == StatusReturned {
			return ErrConflict("Book already returned")
		}

		const retQ = `
UPDATE borrows SET status = 'returned', actual_return_date = ? WHERE borrow_id = ?`
		if _, err := tx.ExecContext(ctx, retQ, now, borrowID); err != nil {
			return err
		}

		const incQ = `
UPDATE books SET available_copies = LEAST(available_copies + 1, total_copies) WHERE book_id = ?`
		if _, err := tx.ExecContext(ctx, incQ, bookID); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	detail, err := s.getDetailByULID(ctx, borrowULID)
	if err != nil {
		return nil, err
	}
	if detail == nil {
		return nil, ErrInternal("returned borrow disappeared")
	}
	return detail, nil
}

// ---- Queries ----

// 書籍は削除済みでも貸出記録を返せるよう LEFT JOIN で引く
const detailSelect = `
SELECT
    b.borrow_id, b.borrow_ulid, b.book_id, b.token, b.issue_date, b.return_date,
    b.actual_return_date, b.status,
    bk.book_ulid, bk.title, bk.author, bk.category, bk.description,
    bk.total_copies, bk.available_copies,
    st.student_id, st.student_ulid, st.student_number, st.name, st.email, st.phone, st.dept
FROM borrows b
LEFT JOIN books bk ON bk.book_id = b.book_id
JOIN students st ON st.student_id = b.student_id
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDetail(row rowScanner) (*BorrowDetail, error) {
	var d BorrowDetail
	var (
		bookULID, title, author, category, description sql.NullString
		totalCopies, availableCopies                   sql.NullInt64
	)
	err := row.Scan(
		&d.BorrowID, &d.BorrowULID, &d.BookID, &d.Token, &d.IssueDate, &d.ReturnDate,
		&d.ActualReturnDate, &d.Status,
		&bookULID, &title, &author, &category, &description,
		&totalCopies, &availableCopies,
		&d.Student.StudentID, &d.Student.StudentULID, &d.Student.StudentNumber,
		&d.Student.Name, &d.Student.Email, &d.Student.Phone, &d.Student.Dept,
	)
	if err != nil {
		return nil, err
	}
	// 削除済み書籍の記録は書籍側がNULLで返る。Book はゼロ値のまま
	if bookULID.Valid {
		d.Book = BookRef{
			BookID:          d.BookID,
			BookULID:        bookULID.String,
			Title:           title.String,
			Author:          author.String,
			Category:        category.String,
			Description:     description.String,
			TotalCopies:     int(totalCopies.Int64),
			AvailableCopies: int(availableCopies.Int64),
		}
	}
	d.StudentID = d.Student.StudentID
	return &d, nil
}

func (s *Store) getDetailByULID(ctx context.Context, borrowULID string) (*BorrowDetail, error) {
	q := detailSelect + ` WHERE b.borrow_ulid = ? LIMIT 1`
	d, err := scanDetail(s.db.QueryRowContext(ctx, q, borrowULID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Store) GetDetailByToken(ctx context.Context, token string) (*BorrowDetail, error) {
	q := detailSelect + ` WHERE b.token = ? LIMIT 1`
	d, err := scanDetail(s.db.QueryRowContext(ctx, q, token))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Store) ListActive(ctx context.Context) ([]BorrowDetail, error) {
	q := detailSelect + ` WHERE b.status = 'active' ORDER BY b.issue_date DESC`
	return s.queryDetails(ctx, q)
}

func (s *Store) ListByStudent(ctx context.Context, studentID int64, activeOnly bool) ([]BorrowDetail, error) {
	q := detailSelect + ` WHERE b.student_id = ?`
	if activeOnly {
		q += ` AND b.status = 'active'`
	}
	q += ` ORDER BY b.issue_date DESC`
	return s.queryDetails(ctx, q, studentID)
}

func (s *Store) queryDetails(ctx context.Context, q string, args ...any) ([]BorrowDetail, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BorrowDetail
	for rows.Next() {
		d, err := scanDetail(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ---- Waitlist ----

// AddWaitlistEntry は書籍行をロックして同一書籍への同時追加を直列化し、
// 追加直後の待ち順（= その書籍のエントリ数）を正確に返す。
func (s *Store) AddWaitlistEntry(ctx context.Context, bookID, studentID int64, at time.Time) (int, error) {
	var position int
	err := db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		const lockQ = `SELECT book_id FROM books WHERE book_id = ? FOR UPDATE`
		var locked int64
		if err := tx.QueryRowContext(ctx, lockQ, bookID).Scan(&locked); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound("Book not found")
			}
			return err
		}

		const insQ = `INSERT INTO waitlist_entries (book_id, student_id, added_at) VALUES (?, ?, ?)`
		if _, err := tx.ExecContext(ctx, insQ, bookID, studentID, at); err != nil {
			if isDuplicate(err) {
				return ErrConflict("Already in waitlist")
			}
			return err
		}

		const cntQ = `SELECT COUNT(*) FROM waitlist_entries WHERE book_id = ?`
		return tx.QueryRowContext(ctx, cntQ, bookID).Scan(&position)
	})
	if err != nil {
		return 0, err
	}
	return position, nil
}

func (s *Store) ListWaitlist(ctx context.Context, bookID int64) ([]WaitlistEntryDetail, error) {
	const q = `
SELECT w.added_at,
    st.student_id, st.student_ulid, st.student_number, st.name, st.email, st.phone, st.dept
FROM waitlist_entries w
JOIN students st ON st.student_id = w.student_id
WHERE w.book_id = ?
ORDER BY w.added_at, w.entry_id`
	rows, err := s.db.QueryContext(ctx, q, bookID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []WaitlistEntryDetail
	for rows.Next() {
		var e WaitlistEntryDetail
		if err := rows.Scan(
			&e.AddedAt,
			&e.Student.StudentID, &e.Student.StudentULID, &e.Student.StudentNumber,
			&e.Student.Name, &e.Student.Email, &e.Student.Phone, &e.Student.Dept,
		); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}

// 学生INSERTの1062をキー名で読み分ける。find/create の競合では
// uq_students_number 側でも起きるので、メールと決めつけない
func mapStudentDuplicate(err error) error {
	var me *mysql.MySQLError
	if !errors.As(err, &me) || me.Number != 1062 {
		return err
	}
	if strings.Contains(me.Message, "uq_students_email") {
		return ErrConflict("Email already registered")
	}
	return ErrConflict("Student already registered")
}
