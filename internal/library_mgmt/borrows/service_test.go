package borrows

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ===== fakes =====

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type seqIDGen struct {
	mu sync.Mutex
	n  int
}

func (g *seqIDGen) New() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("ULID%022d", g.n), nil
}

type waitEntry struct {
	studentID int64
	addedAt   time.Time
}

// fakeStore は BorrowStore のインメモリ実装。ExecBorrow は本実装と同じく
// 「確認と減算を1つのクリティカルセクションで」行う。
type fakeStore struct {
	mu               sync.Mutex
	booksByULID      map[string]*BookRef
	booksByID        map[int64]*BookRef
	studentsByNumber map[string]*StudentRef
	studentsByID     map[int64]*StudentRef
	borrowsByULID    map[string]*Borrow
	borrowsByToken   map[string]*Borrow
	waitlists        map[int64][]waitEntry
	nextID           int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		booksByULID:      map[string]*BookRef{},
		booksByID:        map[int64]*BookRef{},
		studentsByNumber: map[string]*StudentRef{},
		studentsByID:     map[int64]*StudentRef{},
		borrowsByULID:    map[string]*Borrow{},
		borrowsByToken:   map[string]*Borrow{},
		waitlists:        map[int64][]waitEntry{},
	}
}

func (f *fakeStore) addBook(ulid, title string, total, available int) *BookRef {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	b := &BookRef{
		BookID: f.nextID, BookULID: ulid, Title: title, Author: "author",
		Category: "Fiction", Description: "desc",
		TotalCopies: total, AvailableCopies: available,
	}
	f.booksByULID[ulid] = b
	f.booksByID[b.BookID] = b
	return b
}

func (f *fakeStore) GetBookByULID(_ context.Context, bookULID string) (*BookRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.booksByULID[bookULID]
	if !ok {
		return nil, nil
	}
	cp := *b
	return &cp, nil
}

func (f *fakeStore) FindStudentByNumber(_ context.Context, number string) (*StudentRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.studentsByNumber[number]
	if !ok {
		return nil, nil
	}
	cp := *st
	return &cp, nil
}

func (f *fakeStore) CreateStudent(_ context.Context, st *StudentRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	st.StudentID = f.nextID
	cp := *st
	f.studentsByNumber[st.StudentNumber] = &cp
	f.studentsByID[st.StudentID] = &cp
	return nil
}

func (f *fakeStore) ExecBorrow(_ context.Context, b *Borrow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	book, ok := f.booksByID[b.BookID]
	if !ok {
		return ErrNotFound("Book not found")
	}
	if book.AvailableCopies <= 0 {
		return ErrConflict("Book not available. Join waitlist.")
	}
	book.AvailableCopies--
	f.nextID++
	b.BorrowID = f.nextID
	cp := *b
	f.borrowsByULID[b.BorrowULID] = &cp
	f.borrowsByToken[b.Token] = &cp
	return nil
}

func (f *fakeStore) ExecReturn(_ context.Context, borrowULID string, studentID int64, now time.Time) (*BorrowDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.borrowsByULID[borrowULID]
	if !ok || b.StudentID != studentID {
		return nil, ErrNotFound("Borrow record not found")
	}
	if b.Status == StatusReturned {
		return nil, ErrConflict("Book already returned")
	}
	b.Status = StatusReturned
	b.ActualReturnDate.Time = now
	b.ActualReturnDate.Valid = true

	if book, ok := f.booksByID[b.BookID]; ok && book.AvailableCopies < book.TotalCopies {
		book.AvailableCopies++
	}
	return f.detailLocked(b), nil
}

func (f *fakeStore) detailLocked(b *Borrow) *BorrowDetail {
	d := &BorrowDetail{Borrow: *b, Student: *f.studentsByID[b.StudentID]}
	// 削除済み書籍はゼロ値のまま（LEFT JOIN相当）
	if book, ok := f.booksByID[b.BookID]; ok {
		d.Book = *book
	}
	return d
}

func (f *fakeStore) removeBook(ulid string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.booksByULID[ulid]; ok {
		delete(f.booksByULID, ulid)
		delete(f.booksByID, b.BookID)
	}
}

func (f *fakeStore) GetDetailByToken(_ context.Context, token string) (*BorrowDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.borrowsByToken[token]
	if !ok {
		return nil, nil
	}
	return f.detailLocked(b), nil
}

func (f *fakeStore) ListActive(_ context.Context) ([]BorrowDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []BorrowDetail
	for _, b := range f.borrowsByULID {
		if b.Status == StatusActive {
			out = append(out, *f.detailLocked(b))
		}
	}
	return out, nil
}

func (f *fakeStore) ListByStudent(_ context.Context, studentID int64, activeOnly bool) ([]BorrowDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []BorrowDetail
	for _, b := range f.borrowsByULID {
		if b.StudentID != studentID {
			continue
		}
		if activeOnly && b.Status != StatusActive {
			continue
		}
		out = append(out, *f.detailLocked(b))
	}
	return out, nil
}

func (f *fakeStore) AddWaitlistEntry(_ context.Context, bookID, studentID int64, at time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.booksByID[bookID]; !ok {
		return 0, ErrNotFound("Book not found")
	}
	for _, e := range f.waitlists[bookID] {
		if e.studentID == studentID {
			return 0, ErrConflict("Already in waitlist")
		}
	}
	f.waitlists[bookID] = append(f.waitlists[bookID], waitEntry{studentID: studentID, addedAt: at})
	return len(f.waitlists[bookID]), nil
}

func (f *fakeStore) ListWaitlist(_ context.Context, bookID int64) ([]WaitlistEntryDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []WaitlistEntryDetail
	for _, e := range f.waitlists[bookID] {
		out = append(out, WaitlistEntryDetail{Student: *f.studentsByID[e.studentID], AddedAt: e.addedAt})
	}
	return out, nil
}

// ===== helpers =====

var testNow = time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC)

func newTestService(store *fakeStore) *Service {
	return &Service{
		store: store,
		clock: fixedClock{t: testNow},
		id:    &seqIDGen{},
		token: hexTokenGen{},
	}
}

func borrowReq(number string) BorrowRequest {
	return BorrowRequest{
		Name:      "Student " + number,
		StudentID: number,
		Dept:      "CSE",
		Email:     number + "@example.edu",
		Phone:     "0123456789",
	}
}

// ===== tests =====

func Test_Borrow_BookNotFound(t *testing.T) {
	svc := newTestService(newFakeStore())

	_, err := svc.Borrow(context.Background(), "NOPE", borrowReq("S-1"))

	var api *APIError
	require.ErrorAs(t, err, &api)
	assert.Equal(t, CodeNotFound, api.Code)
}

func Test_Borrow_ConflictWhenNoCopies(t *testing.T) {
	store := newFakeStore()
	store.addBook("BK1", "X", 2, 0)
	svc := newTestService(store)

	_, err := svc.Borrow(context.Background(), "BK1", borrowReq("S-1"))

	var api *APIError
	require.ErrorAs(t, err, &api)
	assert.Equal(t, CodeConflict, api.Code)
	assert.Equal(t, "Book not available. Join waitlist.", api.Message)
	// 貸出レコードが作られていないこと
	assert.Empty(t, store.borrowsByULID)
}

func Test_Borrow_LastCopy(t *testing.T) {
	store := newFakeStore()
	store.addBook("BK1", "X", 1, 1)
	svc := newTestService(store)

	detail, err := svc.Borrow(context.Background(), "BK1", borrowReq("S-1"))
	require.NoError(t, err)

	assert.Equal(t, 0, detail.Book.AvailableCopies)
	assert.Equal(t, StatusActive, detail.Status)
	assert.Equal(t, testNow, detail.IssueDate)
	assert.Equal(t, testNow.AddDate(0, 0, 14), detail.ReturnDate)
	assert.Regexp(t, regexp.MustCompile(`^[0-9A-F]{16}$`), detail.Token)

	assert.Equal(t, 0, store.booksByULID["BK1"].AvailableCopies)
	assert.Len(t, store.borrowsByULID, 1)
}

func Test_Borrow_CreatesStudentWhenUnknown(t *testing.T) {
	store := newFakeStore()
	store.addBook("BK1", "X", 3, 3)
	svc := newTestService(store)

	detail, err := svc.Borrow(context.Background(), "BK1", borrowReq("S-9"))
	require.NoError(t, err)

	created, ok := store.studentsByNumber["S-9"]
	require.True(t, ok)
	assert.Equal(t, "s-9@example.edu", created.Email)
	assert.Equal(t, created.StudentID, detail.Student.StudentID)

	// 2回目は既存レコードを使う
	_, err = svc.Borrow(context.Background(), "BK1", borrowReq("S-9"))
	require.NoError(t, err)
	assert.Len(t, store.studentsByNumber, 1)
}

func Test_Borrow_StudentIDRequired(t *testing.T) {
	store := newFakeStore()
	store.addBook("BK1", "X", 1, 1)
	svc := newTestService(store)

	_, err := svc.Borrow(context.Background(), "BK1", BorrowRequest{Name: "A", Email: "a@example.edu"})

	var api *APIError
	require.ErrorAs(t, err, &api)
	assert.Equal(t, CodeInvalidArgument, api.Code)
}

func Test_TokenLookup_RoundTrip(t *testing.T) {
	store := newFakeStore()
	store.addBook("BK1", "X", 1, 1)
	svc := newTestService(store)

	borrowed, err := svc.Borrow(context.Background(), "BK1", borrowReq("S-1"))
	require.NoError(t, err)

	found, err := svc.TokenInfo(context.Background(), borrowed.Token)
	require.NoError(t, err)
	assert.Equal(t, borrowed.BorrowULID, found.BorrowULID)
	assert.Equal(t, borrowed.Book.BookULID, found.Book.BookULID)
	assert.Equal(t, borrowed.Student.StudentNumber, found.Student.StudentNumber)
	assert.Equal(t, borrowed.IssueDate, found.IssueDate)

	_, err = svc.TokenInfo(context.Background(), "FFFFFFFFFFFFFFFF")
	var api *APIError
	require.ErrorAs(t, err, &api)
	assert.Equal(t, CodeNotFound, api.Code)
}

func Test_Waitlist_PositionsAndDuplicate(t *testing.T) {
	store := newFakeStore()
	store.addBook("BK1", "X", 1, 0)
	svc := newTestService(store)

	pos, err := svc.JoinWaitlist(context.Background(), "BK1", borrowReq("S-1"))
	require.NoError(t, err)
	assert.Equal(t, 1, pos)

	// 同じ学生の2回目は Conflict
	_, err = svc.JoinWaitlist(context.Background(), "BK1", borrowReq("S-1"))
	var api *APIError
	require.ErrorAs(t, err, &api)
	assert.Equal(t, CodeConflict, api.Code)
	assert.Equal(t, "Already in waitlist", api.Message)

	pos, err = svc.JoinWaitlist(context.Background(), "BK1", borrowReq("S-2"))
	require.NoError(t, err)
	assert.Equal(t, 2, pos)

	entries, err := svc.GetWaitlist(context.Background(), "BK1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "S-1", entries[0].Student.StudentNumber)
	assert.Equal(t, "S-2", entries[1].Student.StudentNumber)
}

func Test_Return_Flow(t *testing.T) {
	store := newFakeStore()
	store.addBook("BK1", "X", 1, 1)
	svc := newTestService(store)

	borrowed, err := svc.Borrow(context.Background(), "BK1", borrowReq("S-1"))
	require.NoError(t, err)
	ownerID := borrowed.Student.StudentID

	// 他人の返却は存在を明かさず NotFound
	_, _, err = svc.Return(context.Background(), borrowed.BorrowULID, ownerID+100)
	var api *APIError
	require.ErrorAs(t, err, &api)
	assert.Equal(t, CodeNotFound, api.Code)

	detail, onTime, err := svc.Return(context.Background(), borrowed.BorrowULID, ownerID)
	require.NoError(t, err)
	assert.Equal(t, StatusReturned, detail.Status)
	assert.True(t, onTime)
	// 在庫が戻ること
	assert.Equal(t, 1, store.booksByULID["BK1"].AvailableCopies)

	// 二重返却は Conflict
	_, _, err = svc.Return(context.Background(), borrowed.BorrowULID, ownerID)
	require.ErrorAs(t, err, &api)
	assert.Equal(t, CodeConflict, api.Code)
}

func Test_ReturnedOnTime_Boundary(t *testing.T) {
	due := time.Date(2025, 4, 15, 10, 0, 0, 0, time.UTC)

	// 期限ちょうどは期限内
	assert.True(t, returnedOnTime(due, due))
	assert.True(t, returnedOnTime(due.Add(-time.Second), due))
	assert.False(t, returnedOnTime(due.Add(time.Second), due))
}

func Test_Return_IncrementCappedAtTotal(t *testing.T) {
	store := newFakeStore()
	store.addBook("BK1", "X", 1, 1)
	svc := newTestService(store)

	borrowed, err := svc.Borrow(context.Background(), "BK1", borrowReq("S-1"))
	require.NoError(t, err)

	// 返却前に管理操作などで在庫が補充されていても total を超えない
	store.booksByULID["BK1"].AvailableCopies = 1
	_, _, err = svc.Return(context.Background(), borrowed.BorrowULID, borrowed.Student.StudentID)
	require.NoError(t, err)
	assert.Equal(t, 1, store.booksByULID["BK1"].AvailableCopies)
}

// 書籍は削除されても貸出記録は残る。返却・履歴照会は書籍なしで成立する
func Test_Return_And_History_AfterBookDeleted(t *testing.T) {
	store := newFakeStore()
	store.addBook("BK1", "X", 1, 1)
	svc := newTestService(store)
	ctx := context.Background()

	borrowed, err := svc.Borrow(ctx, "BK1", borrowReq("S-1"))
	require.NoError(t, err)

	store.removeBook("BK1")

	detail, onTime, err := svc.Return(ctx, borrowed.BorrowULID, borrowed.Student.StudentID)
	require.NoError(t, err)
	assert.Equal(t, StatusReturned, detail.Status)
	assert.True(t, onTime)
	// 書籍側はゼロ値
	assert.Empty(t, detail.Book.BookULID)

	history, err := svc.ListMyHistory(ctx, borrowed.Student.StudentID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, borrowed.BorrowULID, history[0].BorrowULID)
	assert.Empty(t, history[0].Book.BookULID)
}

func Test_ConcurrentWaitlistJoins_DistinctPositions(t *testing.T) {
	store := newFakeStore()
	store.addBook("BK1", "X", 1, 0)
	svc := newTestService(store)

	for i := 0; i < 5; i++ {
		require.NoError(t, store.CreateStudent(context.Background(), &StudentRef{
			StudentULID:   fmt.Sprintf("STU%d", i),
			StudentNumber: fmt.Sprintf("S-%d", i),
			Name:          "n", Email: fmt.Sprintf("s%d@example.edu", i),
		}))
	}

	type joinResult struct {
		pos int
		err error
	}
	var wg sync.WaitGroup
	results := make(chan joinResult, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			pos, err := svc.JoinWaitlist(context.Background(), "BK1", borrowReq(fmt.Sprintf("S-%d", i)))
			results <- joinResult{pos: pos, err: err}
		}(i)
	}
	wg.Wait()
	close(results)

	seen := map[int]bool{}
	for r := range results {
		require.NoError(t, r.err)
		assert.False(t, seen[r.pos], "position %d reported twice", r.pos)
		seen[r.pos] = true
	}
	for want := 1; want <= 5; want++ {
		assert.True(t, seen[want], "position %d missing", want)
	}
}

func Test_ConcurrentBorrow_LastCopy(t *testing.T) {
	store := newFakeStore()
	store.addBook("BK1", "X", 1, 1)
	svc := newTestService(store)

	// 先に学生を作っておき、貸出パスだけを競わせる
	for i := 0; i < 10; i++ {
		require.NoError(t, store.CreateStudent(context.Background(), &StudentRef{
			StudentULID:   fmt.Sprintf("STU%d", i),
			StudentNumber: fmt.Sprintf("S-%d", i),
			Name:          "n", Email: fmt.Sprintf("s%d@example.edu", i),
		}))
	}

	var wg sync.WaitGroup
	results := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Borrow(context.Background(), "BK1", borrowReq(fmt.Sprintf("S-%d", i)))
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	success, conflict := 0, 0
	for err := range results {
		if err == nil {
			success++
			continue
		}
		var api *APIError
		require.ErrorAs(t, err, &api)
		assert.Equal(t, CodeConflict, api.Code)
		conflict++
	}

	// 最後の1冊は高々1人にしか貸し出されない
	assert.Equal(t, 1, success)
	assert.Equal(t, 9, conflict)
	assert.Equal(t, 0, store.booksByULID["BK1"].AvailableCopies)
	assert.Len(t, store.borrowsByULID, 1)
}

// 仕様シナリオ: 1冊の本をA→B(待ち)→A返却の順で回す
func Test_Scenario_BorrowWaitlistReturn(t *testing.T) {
	store := newFakeStore()
	store.addBook("BK1", "X", 1, 1)
	svc := newTestService(store)
	ctx := context.Background()

	borrowed, err := svc.Borrow(ctx, "BK1", borrowReq("A"))
	require.NoError(t, err)
	assert.Equal(t, 0, store.booksByULID["BK1"].AvailableCopies)
	assert.NotEmpty(t, borrowed.Token)

	_, err = svc.Borrow(ctx, "BK1", borrowReq("B"))
	var api *APIError
	require.ErrorAs(t, err, &api)
	assert.Equal(t, CodeConflict, api.Code)

	pos, err := svc.JoinWaitlist(ctx, "BK1", borrowReq("B"))
	require.NoError(t, err)
	assert.Equal(t, 1, pos)

	detail, _, err := svc.Return(ctx, borrowed.BorrowULID, borrowed.Student.StudentID)
	require.NoError(t, err)
	assert.Equal(t, StatusReturned, detail.Status)
	assert.Equal(t, 1, store.booksByULID["BK1"].AvailableCopies)
}
