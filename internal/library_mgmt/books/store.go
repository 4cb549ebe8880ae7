package books

import (
	"context"
	"database/sql"
	"errors"
)

type Store struct{ db *sql.DB }

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

const bookCols = `
book_id, book_ulid, title, author, category, description, total_copies, available_copies, created_at, updated_at
`

func (s *Store) ListCategories(ctx context.Context) ([]string, error) {
	const q = `SELECT DISTINCT category FROM books ORDER BY category`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]string, 0, 8)
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) ListByCategory(ctx context.Context, category string) ([]Book, error) {
	const q = `SELECT ` + bookCols + ` FROM books WHERE category = ? ORDER BY title`
	rows, err := s.db.QueryContext(ctx, q, category)
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

func (s *Store) GetByULID(ctx context.Context, bookULID string) (*Book, error) {
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

func (s *Store) ListWaitlist(ctx context.Context, bookID int64) ([]WaitlistEntry, error) {
	const q = `
SELECT st.student_ulid, st.student_number, st.name, st.dept, w.added_at
FROM waitlist_entries w
JOIN students st ON st.student_id = w.student_id
WHERE w.book_id = ?
ORDER BY w.added_at, w.entry_id`
	rows, err := s.db.QueryContext(ctx, q, bookID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []WaitlistEntry
	for rows.Next() {
		var e WaitlistEntry
		if err := rows.Scan(&e.StudentULID, &e.StudentNumber, &e.Name, &e.Dept, &e.AddedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
