package admin

import (
	"context"
	"database/sql"
	"errors"
)

type Store struct{ db *sql.DB }

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) InsertBook(ctx context.Context, b *Book) error {
	const q = `
INSERT INTO books (book_ulid, title, author, category, description, total_copies, available_copies)
VALUES (?, ?, ?, ?, ?, ?, ?)`
	res, err := s.db.ExecContext(ctx, q,
		b.BookULID, b.Title, b.Author, b.Category, b.Description, b.TotalCopies, b.AvailableCopies,
	)
	if err != nil {
		return err
	}
	id, _ := res.LastInsertId()
	b.BookID = id
	return nil
}

const bookCols = `
book_id, book_ulid, title, author, category, description, total_copies, available_copies, created_at, updated_at
`

func (s *Store) GetBookByULID(ctx context.Context, bookULID string) (*Book, error) {
	const q = `SELECT ` + bookCols + ` FROM books WHERE book_ulid = ? LIMIT 1`
	var b Book
	err := s.db.QueryRowContext(ctx, q, bookULID).Scan(
		&b.BookID, &b.BookULID, &b.Title, &b.Author, &b.Category, &b.Description,
		&b.TotalCopies, &b.AvailableCopies, &b.CreatedAt, &b.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *Store) ListBooks(ctx context.Context) ([]Book, error) {
	const q = `SELECT ` + bookCols + ` FROM books ORDER BY created_at DESC`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Book
	for rows.Next() {
		var b Book
		if err := rows.Scan(
			&b.BookID, &b.BookULID, &b.Title, &b.Author, &b.Category, &b.Description,
			&b.TotalCopies, &b.AvailableCopies, &b.CreatedAt, &b.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) UpdateBook(ctx context.Context, b *Book) error {
	const q = `
UPDATE books
SET title = ?, author = ?, category = ?, description = ?, total_copies = ?, available_copies = ?
WHERE book_id = ?`
	_, err := s.db.ExecContext(ctx, q,
		b.Title, b.Author, b.Category, b.Description, b.TotalCopies, b.AvailableCopies, b.BookID,
	)
	return err
}

func (s *Store) DeleteBook(ctx context.Context, bookULID string) (int64, error) {
	const q = `DELETE FROM books WHERE book_ulid = ?`
	res, err := s.db.ExecContext(ctx, q, bookULID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) CountBooks(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM books`).Scan(&n)
	return n, err
}

func (s *Store) CountBorrowsByStatus(ctx context.Context, status string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM borrows WHERE status = ?`, status).Scan(&n)
	return n, err
}

func (s *Store) RecentActiveBorrows(ctx context.Context, limit int) ([]RecentBorrow, error) {
	const q = `
SELECT
    b.borrow_ulid, b.token, b.issue_date,
    bk.book_ulid, bk.title, bk.author,
    st.student_ulid, st.name, st.student_number, st.dept
FROM borrows b
JOIN books bk ON bk.book_id = b.book_id
JOIN students st ON st.student_id = b.student_id
WHERE b.status = 'active'
ORDER BY b.issue_date DESC
LIMIT ?`
	rows, err := s.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RecentBorrow
	for rows.Next() {
		var r RecentBorrow
		if err := rows.Scan(
			&r.BorrowULID, &r.Token, &r.IssueDate,
			&r.BookULID, &r.BookTitle, &r.BookAuthor,
			&r.StudentULID, &r.StudentName, &r.StudentNumber, &r.StudentDept,
		); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
