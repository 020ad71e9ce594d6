package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Freeeeeet/classroom_scheduler/internal/model"
	"github.com/Freeeeeet/classroom_scheduler/internal/repository"
)

// memStore — хранилище занятий в памяти с семантикой транзакции под блокировкой преподавателя
type memStore struct {
	mu      sync.Mutex
	nextID  int64
	rows    map[int64]*model.Reservation
	reviews []*model.Review

	lockMu sync.Mutex
	locks  map[string]*sync.Mutex

	// хуки для внедрения сбоев
	expireErr func(id int64) error
	listErr   error
}

func newMemStore() *memStore {
	return &memStore{
		rows:  make(map[int64]*model.Reservation),
		locks: make(map[string]*sync.Mutex),
	}
}

// seed кладёт занятие напрямую, минуя проверки
func (m *memStore) seed(r *model.Reservation) *model.Reservation {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	r.ID = m.nextID
	m.rows[r.ID] = r.Clone()
	return r
}

func (m *memStore) get(id int64) *model.Reservation {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rows[id]; ok {
		return r.Clone()
	}
	return nil
}

func (m *memStore) count(filter func(*model.Reservation) bool) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.rows {
		if filter(r) {
			n++
		}
	}
	return n
}

func (m *memStore) tutorLock(tutorID string) *sync.Mutex {
	m.lockMu.Lock()
	defer m.lockMu.Unlock()
	l, ok := m.locks[tutorID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[tutorID] = l
	}
	return l
}

func (m *memStore) WithTutorLock(ctx context.Context, tutorID string, fn func(ctx context.Context, tx repository.ReservationTx) error) error {
	l := m.tutorLock(tutorID)
	l.Lock()
	defer l.Unlock()

	tx := &memTx{store: m, updates: make(map[int64]*model.Reservation)}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range tx.inserts {
		for _, existing := range m.rows {
			if existing.TutorID == r.TutorID && existing.Status.HoldsSlot() && existing.BeginsAt.Equal(r.BeginsAt) {
				return repository.ErrDuplicateSlot
			}
		}
	}
	for _, r := range tx.inserts {
		m.rows[r.ID] = r.Clone()
	}
	for id, r := range tx.updates {
		m.rows[id] = r
	}
	return nil
}

func (m *memStore) holding(tutorID string, match func(*model.Reservation) bool, excludeID int64, extra []*model.Reservation) []*model.Reservation {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Reservation
	for _, r := range append(m.snapshot(), extra...) {
		if r.TutorID == tutorID && r.Status.HoldsSlot() && r.ID != excludeID && match(r) {
			out = append(out, r.Clone())
		}
	}
	return out
}

func (m *memStore) snapshot() []*model.Reservation {
	out := make([]*model.Reservation, 0, len(m.rows))
	for _, r := range m.rows {
		out = append(out, r)
	}
	return out
}

func (m *memStore) FindHoldingByStart(ctx context.Context, tutorID string, beginsAt time.Time, excludeID int64) ([]*model.Reservation, error) {
	return m.holding(tutorID, func(r *model.Reservation) bool { return r.BeginsAt.Equal(beginsAt) }, excludeID, nil), nil
}

func (m *memStore) FindHoldingOverlapping(ctx context.Context, tutorID string, beginsAt, endsAt time.Time, excludeID int64) ([]*model.Reservation, error) {
	return m.holding(tutorID, func(r *model.Reservation) bool { return r.Overlaps(beginsAt, endsAt) }, excludeID, nil), nil
}

func (m *memStore) GetByID(ctx context.Context, id int64) (*model.Reservation, error) {
	return m.get(id), nil
}

func (m *memStore) ListByTutor(ctx context.Context, tutorID string, from, to time.Time, statuses []model.ReservationStatus) ([]*model.Reservation, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Reservation
	for _, r := range m.rows {
		if r.TutorID == tutorID && !r.BeginsAt.Before(from) && r.BeginsAt.Before(to) && statusIn(r.Status, statuses) {
			out = append(out, r.Clone())
		}
	}
	return out, nil
}

func (m *memStore) ListByPaymentID(ctx context.Context, paymentID string) ([]*model.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Reservation
	for _, r := range m.rows {
		if r.PaymentID != nil && *r.PaymentID == paymentID {
			out = append(out, r.Clone())
		}
	}
	return out, nil
}

func (m *memStore) ListExpired(ctx context.Context, now time.Time) ([]*model.Reservation, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Reservation
	for _, r := range m.rows {
		if r.Status == model.ReservationStatusNext && r.EndsAt.Before(now) {
			out = append(out, r.Clone())
		}
	}
	return out, nil
}

func (m *memStore) ExpireNext(ctx context.Context, id int64, now time.Time) (*model.Reservation, error) {
	if m.expireErr != nil {
		if err := m.expireErr(id); err != nil {
			return nil, err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok || r.Status != model.ReservationStatusNext || !r.EndsAt.Before(now) {
		return nil, nil
	}
	r.Status = model.ReservationStatusNotConfirmed
	r.UpdatedAt = now
	return r.Clone(), nil
}

func (m *memStore) TransitionStatus(ctx context.Context, id int64, from []model.ReservationStatus, to model.ReservationStatus) (*model.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transitionLocked(id, from, to), nil
}

func (m *memStore) transitionLocked(id int64, from []model.ReservationStatus, to model.ReservationStatus) *model.Reservation {
	r, ok := m.rows[id]
	if !ok || !statusIn(r.Status, from) {
		return nil
	}
	r.Status = to
	if to == model.ReservationStatusConfirmed {
		r.Confirmed = true
	}
	return r.Clone()
}

func (m *memStore) TransitionByPayment(ctx context.Context, paymentID, studentID, tutorID string, from []model.ReservationStatus, to model.ReservationStatus) ([]*model.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Reservation
	for id, r := range m.rows {
		if r.PaymentID != nil && *r.PaymentID == paymentID && r.StudentID == studentID && r.TutorID == tutorID {
			if updated := m.transitionLocked(id, from, to); updated != nil {
				out = append(out, updated)
			}
		}
	}
	return out, nil
}

func (m *memStore) ConfirmWithReview(ctx context.Context, id int64, from []model.ReservationStatus, review *model.Review) (*model.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	updated := m.transitionLocked(id, from, model.ReservationStatusConfirmed)
	if updated == nil {
		return nil, nil
	}
	review.ReservationID = id
	review.ID = int64(len(m.reviews) + 1)
	m.reviews = append(m.reviews, review)
	return updated, nil
}

type memTx struct {
	store   *memStore
	inserts []*model.Reservation
	updates map[int64]*model.Reservation
}

func (t *memTx) FindHoldingByStart(ctx context.Context, tutorID string, beginsAt time.Time, excludeID int64) ([]*model.Reservation, error) {
	return t.filter(tutorID, excludeID, func(r *model.Reservation) bool { return r.BeginsAt.Equal(beginsAt) }), nil
}

func (t *memTx) FindHoldingOverlapping(ctx context.Context, tutorID string, beginsAt, endsAt time.Time, excludeID int64) ([]*model.Reservation, error) {
	return t.filter(tutorID, excludeID, func(r *model.Reservation) bool { return r.Overlaps(beginsAt, endsAt) }), nil
}

func (t *memTx) filter(tutorID string, excludeID int64, match func(*model.Reservation) bool) []*model.Reservation {
	var out []*model.Reservation
	for _, r := range t.store.holding(tutorID, match, excludeID, t.inserts) {
		if _, updated := t.updates[r.ID]; updated {
			continue
		}
		out = append(out, r)
	}
	for _, r := range t.updates {
		if r.TutorID == tutorID && r.Status.HoldsSlot() && r.ID != excludeID && match(r) {
			out = append(out, r.Clone())
		}
	}
	return out
}

func (t *memTx) Insert(ctx context.Context, r *model.Reservation) error {
	if err := r.Validate(); err != nil {
		return err
	}
	// как у sequence: номер выдаётся сразу и не возвращается при откате
	t.store.mu.Lock()
	t.store.nextID++
	r.ID = t.store.nextID
	t.store.mu.Unlock()

	t.inserts = append(t.inserts, r)
	return nil
}

func (t *memTx) GetByID(ctx context.Context, id int64) (*model.Reservation, error) {
	if r, ok := t.updates[id]; ok {
		return r.Clone(), nil
	}
	return t.store.get(id), nil
}

func (t *memTx) UpdateSlot(ctx context.Context, id int64, beginsAt, endsAt time.Time, durationMinutes int) error {
	r, ok := t.updates[id]
	if !ok {
		if r = t.store.get(id); r == nil {
			return errors.New("reservation not found")
		}
	}
	r.BeginsAt, r.EndsAt, r.DurationMinutes = beginsAt, endsAt, durationMinutes
	t.updates[id] = r
	return nil
}

func statusIn(s model.ReservationStatus, set []model.ReservationStatus) bool {
	for _, x := range set {
		if x == s {
			return true
		}
	}
	return false
}

// memAvailability — сетка в памяти
type memAvailability struct {
	mu    sync.Mutex
	grids map[string]*model.WeeklyAvailability
}

func newMemAvailability() *memAvailability {
	return &memAvailability{grids: make(map[string]*model.WeeklyAvailability)}
}

func (m *memAvailability) GetWeekly(ctx context.Context, tutorID string) (*model.WeeklyAvailability, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := model.NewWeeklyAvailability(tutorID)
	if g, ok := m.grids[tutorID]; ok {
		for d, ranges := range g.Days {
			out.Days[d] = append([]model.TimeRange(nil), ranges...)
		}
	}
	return out, nil
}

func (m *memAvailability) ReplaceWeekly(ctx context.Context, a *model.WeeklyAvailability) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.grids[a.TutorID] = a
	return nil
}

// fakeCategories — справочник категорий на функциях
type fakeCategories struct {
	byID   map[int64]*model.Category
	byCode map[string]*model.Category
}

func newFakeCategories(categories ...*model.Category) *fakeCategories {
	f := &fakeCategories{byID: map[int64]*model.Category{}, byCode: map[string]*model.Category{}}
	for _, c := range categories {
		f.byID[c.ID] = c
		f.byCode[c.Code] = c
	}
	return f
}

func (f *fakeCategories) GetByID(ctx context.Context, id int64) (*model.Category, error) {
	return f.byID[id], nil
}

func (f *fakeCategories) GetByCode(ctx context.Context, code string) (*model.Category, error) {
	return f.byCode[code], nil
}

// recordingNotifier запоминает уведомления; fail позволяет уронить доставку
type recordingNotifier struct {
	mu   sync.Mutex
	sent []model.Notification
	fail func(n model.Notification) error
}

func (r *recordingNotifier) Notify(ctx context.Context, n model.Notification) error {
	if r.fail != nil {
		if err := r.fail(n); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return nil
}

func (r *recordingNotifier) to(profileID string) []model.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Notification
	for _, n := range r.sent {
		if n.ProfileID == profileID {
			out = append(out, n)
		}
	}
	return out
}

func (r *recordingNotifier) total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

// recordingEvents запоминает опубликованные события
type recordingEvents struct {
	mu      sync.Mutex
	created []int64
	changed []string
}

func (e *recordingEvents) PublishReservationCreated(ctx context.Context, r *model.Reservation) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.created = append(e.created, r.ID)
	return nil
}

func (e *recordingEvents) PublishStatusChanged(ctx context.Context, r *model.Reservation, from model.ReservationStatus) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.changed = append(e.changed, string(from)+"->"+string(r.Status))
	return nil
}
