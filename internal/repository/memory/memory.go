// Package memory holds an in-memory repository.Store used by service tests.
// It mirrors the Postgres semantics the services rely on: the overlap
// predicate, the non-negative balance guard, latest-window resolution and
// WithTx rollback on error.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/medimeet/telehealth-api/internal/model"
	"github.com/medimeet/telehealth-api/internal/repository"
	"github.com/medimeet/telehealth-api/pkg/apperror"
)

type Store struct {
	mu   sync.Mutex
	txMu sync.Mutex

	users          map[uuid.UUID]*model.User
	availabilities []*model.Availability
	appointments   map[uuid.UUID]*model.Appointment
	transactions   []*model.CreditTransaction
	outbox         []*model.OutboxEvent
	seq            int
}

func NewStore() *Store {
	return &Store{
		users:        make(map[uuid.UUID]*model.User),
		appointments: make(map[uuid.UUID]*model.Appointment),
	}
}

// AddUser seeds a user for a test.
func (s *Store) AddUser(user *model.User) *model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.CreatedAt.IsZero() {
		s.seq++
		user.CreatedAt = time.Unix(int64(s.seq), 0)
	}
	s.users[user.ID] = user
	return user
}

// AddAvailability seeds a window for a test.
func (s *Store) AddAvailability(a *model.Availability) *model.Availability {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Status == "" {
		a.Status = model.AvailabilityStatusAvailable
	}
	s.seq++
	a.CreatedAt = time.Unix(int64(s.seq), 0)
	s.availabilities = append(s.availabilities, a)
	return a
}

// AddAppointment seeds an appointment for a test.
func (s *Store) AddAppointment(a *model.Appointment) *model.Appointment {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Status == "" {
		a.Status = model.AppointmentStatusScheduled
	}
	s.appointments[a.ID] = a
	return a
}

// OutboxEvents returns everything written to the outbox so far.
func (s *Store) OutboxEvents() []*model.OutboxEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.OutboxEvent, len(s.outbox))
	copy(out, s.outbox)
	return out
}

// Transactions returns every ledger entry written so far.
func (s *Store) Transactions() []*model.CreditTransaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.CreditTransaction, len(s.transactions))
	copy(out, s.transactions)
	return out
}

func (s *Store) Users() repository.UserRepository                 { return &userRepo{s} }
func (s *Store) Availabilities() repository.AvailabilityRepository { return &availabilityRepo{s} }
func (s *Store) Appointments() repository.AppointmentRepository   { return &appointmentRepo{s} }
func (s *Store) Ledger() repository.LedgerRepository              { return &ledgerRepo{s} }
func (s *Store) Outbox() repository.OutboxRepository              { return &outboxRepo{s} }

// WithTx snapshots the store, runs fn and restores the snapshot when fn
// fails, so a failing transaction leaves no writes behind. Transactions
// run one at a time; a nested call joins the surrounding one, as it does
// against Postgres.
func (s *Store) WithTx(ctx context.Context, fn func(repository.Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if err := fn(&txStore{s}); err != nil {
		s.mu.Lock()
		s.restoreLocked(snap)
		s.mu.Unlock()
		return err
	}
	return nil
}

// txStore is the store handed to a transaction body. Its WithTx runs the
// nested body directly instead of snapshotting again.
type txStore struct{ *Store }

func (t *txStore) WithTx(ctx context.Context, fn func(repository.Store) error) error {
	return fn(t)
}

type snapshot struct {
	users          map[uuid.UUID]*model.User
	availabilities []*model.Availability
	appointments   map[uuid.UUID]*model.Appointment
	transactions   []*model.CreditTransaction
	outbox         []*model.OutboxEvent
	seq            int
}

func (s *Store) snapshotLocked() *snapshot {
	snap := &snapshot{
		users:        make(map[uuid.UUID]*model.User, len(s.users)),
		appointments: make(map[uuid.UUID]*model.Appointment, len(s.appointments)),
		seq:          s.seq,
	}
	for id, u := range s.users {
		clone := *u
		snap.users[id] = &clone
	}
	for id, a := range s.appointments {
		clone := *a
		snap.appointments[id] = &clone
	}
	for _, a := range s.availabilities {
		clone := *a
		snap.availabilities = append(snap.availabilities, &clone)
	}
	for _, tx := range s.transactions {
		clone := *tx
		snap.transactions = append(snap.transactions, &clone)
	}
	for _, e := range s.outbox {
		clone := *e
		snap.outbox = append(snap.outbox, &clone)
	}
	return snap
}

func (s *Store) restoreLocked(snap *snapshot) {
	s.users = snap.users
	s.availabilities = snap.availabilities
	s.appointments = snap.appointments
	s.transactions = snap.transactions
	s.outbox = snap.outbox
	s.seq = snap.seq
}

type userRepo struct{ s *Store }

func (r *userRepo) Create(ctx context.Context, user *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.users {
		if existing.ExternalID == user.ExternalID {
			return apperror.Conflict("user already exists")
		}
	}
	user.ID = uuid.New()
	if user.Role == "" {
		user.Role = model.RoleUnassigned
	}
	r.s.seq++
	user.CreatedAt = time.Unix(int64(r.s.seq), 0)
	r.s.users[user.ID] = user
	return nil
}

func (r *userRepo) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	user, ok := r.s.users[id]
	if !ok {
		return nil, apperror.NotFound("user not found")
	}
	clone := *user
	return &clone, nil
}

func (r *userRepo) GetByExternalID(ctx context.Context, externalID string) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, user := range r.s.users {
		if user.ExternalID == externalID {
			clone := *user
			return &clone, nil
		}
	}
	return nil, apperror.NotFound("user not found")
}

func (r *userRepo) GetForUpdate(ctx context.Context, ids ...uuid.UUID) (map[uuid.UUID]*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	// Copies, like rows loaded from Postgres: repository writes go to the
	// store, not through the returned structs.
	out := make(map[uuid.UUID]*model.User, len(ids))
	for _, id := range ids {
		if user, ok := r.s.users[id]; ok {
			clone := *user
			out[id] = &clone
		}
	}
	return out, nil
}

func (r *userRepo) Update(ctx context.Context, user *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[user.ID]; !ok {
		return apperror.NotFound("user not found")
	}
	r.s.users[user.ID] = user
	return nil
}

func (r *userRepo) UpdateVerification(ctx context.Context, doctorID uuid.UUID, status model.VerificationStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	user, ok := r.s.users[doctorID]
	if !ok || user.Role != model.RoleDoctor {
		return apperror.NotFound("doctor not found")
	}
	user.VerificationStatus = &status
	return nil
}

func (r *userRepo) ListDoctors(ctx context.Context, filters *model.DoctorFilters) ([]*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.User
	for _, user := range r.s.users {
		if user.Role != model.RoleDoctor {
			continue
		}
		if filters != nil && filters.VerificationStatus != "" {
			if user.VerificationStatus == nil || *user.VerificationStatus != filters.VerificationStatus {
				continue
			}
		}
		if filters != nil && filters.Specialty != "" {
			if user.Specialty == nil || *user.Specialty != filters.Specialty {
				continue
			}
		}
		clone := *user
		out = append(out, &clone)
	}
	// Pending newest first, everything else oldest first.
	if filters != nil && filters.VerificationStatus == model.VerificationPending {
		sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	} else {
		sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	}

	var page model.Pagination
	if filters != nil {
		page = filters.Pagination
	}
	lo, hi := pageBounds(len(out), page)
	return out[lo:hi], nil
}

// pageBounds clamps a page window to the slice, like LIMIT/OFFSET does.
func pageBounds(n int, page model.Pagination) (int, int) {
	lo := page.Offset()
	if lo > n {
		lo = n
	}
	hi := lo + page.Limit()
	if hi > n {
		hi = n
	}
	return lo, hi
}

type availabilityRepo struct{ s *Store }

func (r *availabilityRepo) Create(ctx context.Context, a *model.Availability) error {
	r.s.AddAvailability(a)
	return nil
}

func (r *availabilityRepo) Latest(ctx context.Context, doctorID uuid.UUID) (*model.Availability, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var latest *model.Availability
	for _, a := range r.s.availabilities {
		if a.DoctorID != doctorID || a.Status != model.AvailabilityStatusAvailable {
			continue
		}
		if latest == nil || a.CreatedAt.After(latest.CreatedAt) {
			latest = a
		}
	}
	if latest == nil {
		return nil, apperror.NotFound("no availability set by doctor")
	}
	clone := *latest
	return &clone, nil
}

func (r *availabilityRepo) List(ctx context.Context, doctorID uuid.UUID) ([]*model.Availability, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Availability
	for _, a := range r.s.availabilities {
		if a.DoctorID == doctorID {
			clone := *a
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (r *availabilityRepo) ExistsForDate(ctx context.Context, doctorID uuid.UUID, day time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	y, m, d := day.Date()
	for _, a := range r.s.availabilities {
		ay, am, ad := a.StartTime.Date()
		if a.DoctorID == doctorID && ay == y && am == m && ad == d {
			return true, nil
		}
	}
	return false, nil
}

func (r *availabilityRepo) DeleteUnreferenced(ctx context.Context, doctorID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	referenced := make(map[uuid.UUID]bool)
	for _, apt := range r.s.appointments {
		if apt.AvailabilityID != nil {
			referenced[*apt.AvailabilityID] = true
		}
	}
	kept := r.s.availabilities[:0]
	for _, a := range r.s.availabilities {
		if a.DoctorID != doctorID || referenced[a.ID] {
			kept = append(kept, a)
		}
	}
	r.s.availabilities = kept
	return nil
}

type appointmentRepo struct{ s *Store }

func (r *appointmentRepo) Create(ctx context.Context, a *model.Appointment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a.ID = uuid.New()
	a.CreatedAt = time.Now()
	r.s.appointments[a.ID] = a
	return nil
}

func (r *appointmentRepo) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.appointments[id]
	if !ok {
		return nil, apperror.NotFound("appointment not found")
	}
	clone := *a
	return &clone, nil
}

func (r *appointmentRepo) Update(ctx context.Context, a *model.Appointment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.appointments[a.ID]; !ok {
		return apperror.NotFound("appointment not found")
	}
	r.s.appointments[a.ID] = a
	return nil
}

func (r *appointmentRepo) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Appointment
	for _, a := range r.s.appointments {
		if filters != nil && filters.DoctorID != uuid.Nil && a.DoctorID != filters.DoctorID {
			continue
		}
		if filters != nil && filters.PatientID != uuid.Nil && a.PatientID != filters.PatientID {
			continue
		}
		if filters != nil && filters.Status != "" && a.Status != filters.Status {
			continue
		}
		clone := *a
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })

	var page model.Pagination
	if filters != nil {
		page = filters.Pagination
	}
	lo, hi := pageBounds(len(out), page)
	return out[lo:hi], nil
}

func (r *appointmentRepo) ListScheduled(ctx context.Context, doctorID uuid.UUID, until time.Time) ([]*model.Appointment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Appointment
	for _, a := range r.s.appointments {
		if a.DoctorID != doctorID || a.Status != model.AppointmentStatusScheduled {
			continue
		}
		if a.StartTime.After(until) {
			continue
		}
		clone := *a
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (r *appointmentRepo) HasOverlap(ctx context.Context, doctorID uuid.UUID, start, end time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.appointments {
		if a.DoctorID != doctorID || a.Status != model.AppointmentStatusScheduled {
			continue
		}
		if model.Overlaps(start, end, a.StartTime, a.EndTime) {
			return true, nil
		}
	}
	return false, nil
}

func (r *appointmentRepo) SetVideoToken(ctx context.Context, id uuid.UUID, token string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.appointments[id]
	if !ok {
		return apperror.NotFound("appointment not found")
	}
	a.VideoSessionToken = &token
	return nil
}

type ledgerRepo struct{ s *Store }

func (r *ledgerRepo) Transfer(ctx context.Context, from, to uuid.UUID, amount int, txType model.TransactionType) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	payer, ok := r.s.users[from]
	if !ok || payer.Credits < amount {
		return apperror.InsufficientCredits("insufficient credits")
	}
	payee, ok := r.s.users[to]
	if !ok {
		return apperror.NotFound("user not found")
	}

	payer.Credits -= amount
	payee.Credits += amount
	now := time.Now()
	r.s.transactions = append(r.s.transactions,
		&model.CreditTransaction{ID: uuid.New(), UserID: from, Amount: -amount, Type: txType, CreatedAt: now},
		&model.CreditTransaction{ID: uuid.New(), UserID: to, Amount: amount, Type: txType, CreatedAt: now},
	)
	return nil
}

func (r *ledgerRepo) Allocate(ctx context.Context, userID uuid.UUID, planID string, amount int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	user, ok := r.s.users[userID]
	if !ok {
		return apperror.NotFound("user not found")
	}
	user.Credits += amount
	r.s.transactions = append(r.s.transactions, &model.CreditTransaction{
		ID:        uuid.New(),
		UserID:    userID,
		Amount:    amount,
		Type:      model.TransactionTypeCreditPurchase,
		PackageID: &planID,
		CreatedAt: time.Now(),
	})
	return nil
}

func (r *ledgerRepo) LatestPurchase(ctx context.Context, userID uuid.UUID) (*model.CreditTransaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var latest *model.CreditTransaction
	for _, tx := range r.s.transactions {
		if tx.UserID != userID || tx.Type != model.TransactionTypeCreditPurchase {
			continue
		}
		if latest == nil || tx.CreatedAt.After(latest.CreatedAt) {
			latest = tx
		}
	}
	if latest == nil {
		return nil, nil
	}
	clone := *latest
	return &clone, nil
}

func (r *ledgerRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*model.CreditTransaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.CreditTransaction
	for _, tx := range r.s.transactions {
		if tx.UserID == userID {
			clone := *tx
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

type outboxRepo struct{ s *Store }

func (r *outboxRepo) Create(ctx context.Context, event *model.OutboxEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	event.ID = uuid.New()
	event.Status = model.OutboxStatusPending
	event.CreatedAt = time.Now()
	r.s.outbox = append(r.s.outbox, event)
	return nil
}

func (r *outboxRepo) GetPendingWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.OutboxEvent
	for _, e := range r.s.outbox {
		if e.Status != model.OutboxStatusPending {
			continue
		}
		out = append(out, e)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *outboxRepo) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	return r.setStatus(id, model.OutboxStatusProcessed, nil)
}

func (r *outboxRepo) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	return r.setStatus(id, model.OutboxStatusFailed, &errMsg)
}

func (r *outboxRepo) setStatus(id uuid.UUID, status model.OutboxStatus, errMsg *string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, e := range r.s.outbox {
		if e.ID == id {
			e.Status = status
			e.ErrorMessage = errMsg
			now := time.Now()
			e.ProcessedAt = &now
			return nil
		}
	}
	return apperror.NotFound("event not found")
}
