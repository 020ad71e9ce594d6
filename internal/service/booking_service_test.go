package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Freeeeeet/classroom_scheduler/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const (
	tutorID   = "prof456"
	studentID = "stu123"
	operator  = "ops1"
)

type harness struct {
	store        *memStore
	weekly       *memAvailability
	notifier     *recordingNotifier
	events       *recordingEvents
	booking      *BookingService
	lifecycle    *LifecycleService
	availability *AvailabilityService

	mu  sync.Mutex
	now time.Time
}

func newHarness(t *testing.T, mutate ...func(*BookingConfig)) *harness {
	t.Helper()

	h := &harness{
		store:    newMemStore(),
		weekly:   newMemAvailability(),
		notifier: &recordingNotifier{},
		events:   &recordingEvents{},
		now:      time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
	}

	cfg := DefaultBookingConfig()
	cfg.BaseURL = "https://tutors.example/"
	cfg.OperatorProfileID = operator
	cfg.Now = h.clock
	for _, m := range mutate {
		m(&cfg)
	}

	logger := zaptest.NewLogger(t)
	categories := newFakeCategories(
		&model.Category{ID: 1, Code: "math", Name: "Математика", IsActive: true},
		&model.Category{ID: 2, Code: "english", Name: "Английский", IsActive: true},
		&model.Category{ID: 3, Code: "latin", Name: "Латынь", IsActive: false},
	)

	h.lifecycle = NewLifecycleService(h.store, h.notifier, h.events, cfg, logger)
	h.booking = NewBookingService(h.store, categories, h.lifecycle, h.notifier, h.events, cfg, logger)
	h.availability = NewAvailabilityService(h.weekly, h.store, cfg, logger)
	return h
}

func (h *harness) clock() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.now
}

func (h *harness) setNow(t time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.now = t
}

func request(timeRange, duration string) BookingRequest {
	return BookingRequest{
		StudentID:  studentID,
		TutorID:    tutorID,
		CategoryID: 1,
		Date:       "2025-03-10",
		Time:       timeRange,
		Duration:   duration,
		CostCents:  2500,
		Title:      "Алгебра",
	}
}

func seedReservation(h *harness, status model.ReservationStatus, begins time.Time, minutes int) *model.Reservation {
	return h.store.seed(&model.Reservation{
		TutorID:         tutorID,
		StudentID:       "stu999",
		CategoryID:      1,
		BeginsAt:        begins,
		EndsAt:          begins.Add(time.Duration(minutes) * time.Minute),
		DurationMinutes: minutes,
		Status:          status,
	})
}

func holdingFor(tutor string) func(*model.Reservation) bool {
	return func(r *model.Reservation) bool {
		return r.TutorID == tutor && r.Status.HoldsSlot()
	}
}

func TestCreateSingleReservation_DirectRequestIsRequested(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	ten, fourteen := 10, 14
	_, err := h.availability.SetWeeklyAvailability(ctx, tutorID, map[time.Weekday][]model.TimeRange{
		time.Monday: {{StartHour: ten, EndHour: &fourteen}},
	})
	require.NoError(t, err)

	result, err := h.booking.CreateSingleReservation(ctx, request("10:00 AM - 10:30 AM", "30"))
	require.NoError(t, err)
	require.True(t, result.Success)
	require.NotZero(t, result.ReservationID)

	stored := h.store.get(result.ReservationID)
	require.NotNil(t, stored)
	assert.Equal(t, model.ReservationStatusRequested, stored.Status)
	assert.False(t, stored.Confirmed)
	assert.Nil(t, stored.PaymentID)
	assert.Equal(t, time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC), stored.BeginsAt)
	assert.Equal(t, 30, stored.DurationMinutes)

	tutorMsgs := h.notifier.to(tutorID)
	require.Len(t, tutorMsgs, 1)
	assert.Equal(t, model.NotificationActionManage, tutorMsgs[0].Action)
	assert.Equal(t, fmt.Sprintf("https://tutors.example/class-rooms/%d", result.ReservationID), tutorMsgs[0].URL)
	assert.Equal(t, []int64{result.ReservationID}, h.events.created)
}

func TestCreateSingleReservation_SameStartIsUnavailable(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	seedReservation(h, model.ReservationStatusNext, time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC), 30)

	result, err := h.booking.CreateSingleReservation(ctx, request("10:00 AM - 10:30 AM", "30"))
	assert.Nil(t, result)
	require.ErrorIs(t, err, ErrSlotUnavailable)
	assert.Equal(t, KindUnavailable, Kind(err))
	assert.Equal(t, 1, h.store.count(holdingFor(tutorID)))
	assert.Zero(t, h.notifier.total())
}

func TestCreateSingleReservation_ConflictModes(t *testing.T) {
	begins := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)

	t.Run("overlap rejects a clash in the middle", func(t *testing.T) {
		h := newHarness(t)
		seedReservation(h, model.ReservationStatusRequested, begins, 60)

		_, err := h.booking.CreateSingleReservation(context.Background(), request("10:30 AM - 11:00 AM", "30"))
		assert.ErrorIs(t, err, ErrSlotUnavailable)
	})

	t.Run("overlap admits an adjacent slot", func(t *testing.T) {
		h := newHarness(t)
		seedReservation(h, model.ReservationStatusRequested, begins, 60)

		result, err := h.booking.CreateSingleReservation(context.Background(), request("11:00 AM - 11:30 AM", "30"))
		require.NoError(t, err)
		assert.True(t, result.Success)
	})

	t.Run("exact only compares starts", func(t *testing.T) {
		h := newHarness(t, func(c *BookingConfig) { c.ConflictMode = ConflictModeExact })
		seedReservation(h, model.ReservationStatusRequested, begins, 60)

		result, err := h.booking.CreateSingleReservation(context.Background(), request("10:30 AM - 11:00 AM", "30"))
		require.NoError(t, err)
		assert.True(t, result.Success)

		_, err = h.booking.CreateSingleReservation(context.Background(), request("10:00 AM - 10:15 AM", "15"))
		assert.ErrorIs(t, err, ErrSlotUnavailable)
	})

	t.Run("released slots do not count", func(t *testing.T) {
		h := newHarness(t)
		seedReservation(h, model.ReservationStatusCancelled, begins, 30)
		seedReservation(h, model.ReservationStatusNotConfirmed, begins, 30)

		result, err := h.booking.CreateSingleReservation(context.Background(), request("10:00 AM - 10:30 AM", "30"))
		require.NoError(t, err)
		assert.True(t, result.Success)
	})
}

func TestCreateSingleReservation_InvalidInput(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*BookingRequest)
		want   error
	}{
		{"bad clock", func(r *BookingRequest) { r.Time = "10:00 XM - 10:30 AM" }, ErrInvalidTimeFormat},
		{"missing separator", func(r *BookingRequest) { r.Time = "10:00 AM-10:30 AM" }, ErrInvalidRangeFormat},
		{"end before start", func(r *BookingRequest) { r.Time = "11:00 AM - 10:30 AM" }, ErrInvalidRangeFormat},
		{"bad date", func(r *BookingRequest) { r.Date = "10.03.2025" }, ErrInvalidDate},
		{"duration not a number", func(r *BookingRequest) { r.Duration = "half an hour" }, ErrInvalidDuration},
		{"duration zero", func(r *BookingRequest) { r.Duration = "0" }, ErrInvalidDuration},
		{"duration mismatch", func(r *BookingRequest) { r.Duration = "45" }, ErrInvalidDuration},
		{"unknown category", func(r *BookingRequest) { r.CategoryID = 99 }, ErrUnknownCategory},
		{"inactive category", func(r *BookingRequest) { r.CategoryID = 3 }, ErrUnknownCategory},
		{"self booking", func(r *BookingRequest) { r.StudentID = tutorID }, ErrInvalidRequest},
		{"negative cost", func(r *BookingRequest) { r.CostCents = -1 }, ErrInvalidRequest},
		{"in the past", func(r *BookingRequest) { r.Date = "2025-02-28" }, ErrInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			req := request("10:00 AM - 10:30 AM", "30")
			tt.mutate(&req)

			_, err := h.booking.CreateSingleReservation(context.Background(), req)
			require.ErrorIs(t, err, tt.want)
			assert.Equal(t, KindInvalidInput, Kind(err))
			assert.Zero(t, h.store.count(func(*model.Reservation) bool { return true }))
		})
	}
}

func TestCreateSingleReservation_ConcurrentOverlapsAdmitExactlyOne(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	const attempts = 24
	var (
		wg          sync.WaitGroup
		successes   atomic.Int32
		unavailable atomic.Int32
		start       = make(chan struct{})
	)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := request("10:00 AM - 11:00 AM", "60")
			if i%2 == 1 {
				req.Time = "10:30 AM - 11:30 AM"
			}
			req.StudentID = fmt.Sprintf("stu%d", i)

			<-start
			_, err := h.booking.CreateSingleReservation(ctx, req)
			switch {
			case err == nil:
				successes.Add(1)
			case Kind(err) == KindUnavailable:
				unavailable.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), successes.Load())
	assert.Equal(t, int32(attempts-1), unavailable.Load())
	assert.Equal(t, 1, h.store.count(holdingFor(tutorID)))
}

func packageSlots(times ...string) []SlotRequest {
	slots := make([]SlotRequest, len(times))
	for i, tr := range times {
		slots[i] = SlotRequest{Date: "2025-03-10", Time: tr, CategoryCode: "math", CostCents: 2000, Title: fmt.Sprintf("Занятие %d", i+1)}
	}
	return slots
}

func TestCreatePackageReservations_AllCreatedWithSharedPayment(t *testing.T) {
	h := newHarness(t)

	created, err := h.booking.CreatePackageReservations(context.Background(),
		PaymentContext{PaymentID: "purch789", StudentID: studentID, TutorID: tutorID},
		packageSlots("09:00 AM - 10:00 AM", "10:00 AM - 11:00 AM", "01:00 PM - 02:00 PM", "03:00 PM - 04:00 PM"))
	require.NoError(t, err)
	require.Len(t, created, 4)

	for _, r := range created {
		stored := h.store.get(r.ID)
		require.NotNil(t, stored)
		assert.Equal(t, model.ReservationStatusCreated, stored.Status)
		require.NotNil(t, stored.PaymentID)
		assert.Equal(t, "purch789", *stored.PaymentID)
		assert.Equal(t, int64(1), stored.CategoryID)
	}
	assert.Len(t, h.events.created, 4)
}

func TestCreatePackageReservations_AllOrNothing(t *testing.T) {
	h := newHarness(t)
	// третий слот пакета уже занят
	seedReservation(h, model.ReservationStatusNext, time.Date(2025, 3, 10, 13, 0, 0, 0, time.UTC), 60)

	created, err := h.booking.CreatePackageReservations(context.Background(),
		PaymentContext{PaymentID: "purch789", StudentID: studentID, TutorID: tutorID},
		packageSlots("09:00 AM - 10:00 AM", "10:00 AM - 11:00 AM", "01:00 PM - 02:00 PM", "03:00 PM - 04:00 PM"))
	assert.Nil(t, created)
	require.ErrorIs(t, err, ErrSlotUnavailable)

	assert.Zero(t, h.store.count(func(r *model.Reservation) bool { return r.PaymentID != nil }))
	assert.Empty(t, h.events.created)
}

func TestCreatePackageReservations_Rejections(t *testing.T) {
	tests := []struct {
		name  string
		pc    PaymentContext
		slots []SlotRequest
		want  error
	}{
		{
			name:  "unknown category code",
			pc:    PaymentContext{PaymentID: "p1", StudentID: studentID, TutorID: tutorID},
			slots: append(packageSlots("09:00 AM - 10:00 AM"), SlotRequest{Date: "2025-03-10", Time: "11:00 AM - 12:00 PM", CategoryCode: "chemistry"}),
			want:  ErrUnknownCategory,
		},
		{
			name:  "slots clash inside the package",
			pc:    PaymentContext{PaymentID: "p1", StudentID: studentID, TutorID: tutorID},
			slots: packageSlots("09:00 AM - 10:00 AM", "09:30 AM - 10:30 AM"),
			want:  ErrSlotUnavailable,
		},
		{
			name:  "missing payment",
			pc:    PaymentContext{StudentID: studentID, TutorID: tutorID},
			slots: packageSlots("09:00 AM - 10:00 AM"),
			want:  ErrInvalidRequest,
		},
		{
			name: "empty package",
			pc:   PaymentContext{PaymentID: "p1", StudentID: studentID, TutorID: tutorID},
			want: ErrInvalidRequest,
		},
		{
			name:  "malformed slot time",
			pc:    PaymentContext{PaymentID: "p1", StudentID: studentID, TutorID: tutorID},
			slots: packageSlots("09:00 AM - 10:00 AM", "nine - ten"),
			want:  ErrInvalidTimeFormat,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			_, err := h.booking.CreatePackageReservations(context.Background(), tt.pc, tt.slots)
			require.ErrorIs(t, err, tt.want)
			assert.Zero(t, h.store.count(func(*model.Reservation) bool { return true }))
		})
	}
}

func createPackage(t *testing.T, h *harness, times ...string) []*model.Reservation {
	t.Helper()
	created, err := h.booking.CreatePackageReservations(context.Background(),
		PaymentContext{PaymentID: "purch789", StudentID: studentID, TutorID: tutorID},
		packageSlots(times...))
	require.NoError(t, err)
	return created
}

func TestHandlePaymentOutcome_ApprovedIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	created := createPackage(t, h, "10:00 AM - 11:00 AM", "02:00 PM - 03:00 PM")

	outcome := PaymentOutcome{ExternalReference: "stu123-prof456-purch789", Status: "approved", PaymentID: "purch789"}

	result, err := h.booking.HandlePaymentOutcome(ctx, outcome)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusApproved, result.Status)
	assert.Len(t, result.Transitioned, 2)
	for _, r := range created {
		assert.Equal(t, model.ReservationStatusNext, h.store.get(r.ID).Status)
	}
	require.Len(t, h.notifier.to(studentID), 1)
	require.Len(t, h.notifier.to(tutorID), 1)

	// повторная доставка того же вебхука
	result, err = h.booking.HandlePaymentOutcome(ctx, outcome)
	require.NoError(t, err)
	assert.Empty(t, result.Transitioned)
	assert.Len(t, h.notifier.to(studentID), 1)
	assert.Len(t, h.notifier.to(tutorID), 1)
	assert.Len(t, h.events.changed, 2)
}

func TestHandlePaymentOutcome_VersionedReferenceWithoutPaymentID(t *testing.T) {
	h := newHarness(t)
	createPackage(t, h, "10:00 AM - 11:00 AM")

	ref, err := NewReference(studentID, tutorID, "purch789")
	require.NoError(t, err)

	result, err := h.booking.HandlePaymentOutcome(context.Background(),
		PaymentOutcome{ExternalReference: ref.Encode(), Status: "APPROVED"})
	require.NoError(t, err)
	assert.Len(t, result.Transitioned, 1)
}

func TestHandlePaymentOutcome_GatewayPaymentIDDoesNotLinkPackage(t *testing.T) {
	ctx := context.Background()

	for _, tc := range []struct {
		status string
		want   model.ReservationStatus
	}{
		{status: "approved", want: model.ReservationStatusNext},
		{status: "rejected", want: model.ReservationStatusCancelled},
	} {
		t.Run(tc.status, func(t *testing.T) {
			h := newHarness(t)
			created := createPackage(t, h, "10:00 AM - 11:00 AM", "02:00 PM - 03:00 PM")

			result, err := h.booking.HandlePaymentOutcome(ctx,
				PaymentOutcome{ExternalReference: "stu123-prof456-purch789", Status: tc.status, PaymentID: "gw-555001"})
			require.NoError(t, err)
			assert.Len(t, result.Transitioned, 2)
			for _, r := range created {
				assert.Equal(t, tc.want, h.store.get(r.ID).Status)
			}
		})
	}
}

func TestHandlePaymentOutcome_RejectedReleasesSlots(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	created := createPackage(t, h, "10:00 AM - 11:00 AM", "02:00 PM - 03:00 PM")

	result, err := h.booking.HandlePaymentOutcome(ctx,
		PaymentOutcome{ExternalReference: "stu123-prof456-purch789", Status: "rejected", PaymentID: "purch789"})
	require.NoError(t, err)
	assert.Len(t, result.Transitioned, 2)
	for _, r := range created {
		assert.Equal(t, model.ReservationStatusCancelled, h.store.get(r.ID).Status)
	}

	// слот снова свободен
	_, err = h.booking.CreateSingleReservation(ctx, request("10:00 AM - 11:00 AM", "60"))
	require.NoError(t, err)

	// запоздавшее одобрение не воскрешает отменённый пакет
	result, err = h.booking.HandlePaymentOutcome(ctx,
		PaymentOutcome{ExternalReference: "stu123-prof456-purch789", Status: "approved", PaymentID: "purch789"})
	require.NoError(t, err)
	assert.Empty(t, result.Transitioned)
}

func TestHandlePaymentOutcome_PendingChangesNothing(t *testing.T) {
	h := newHarness(t)
	created := createPackage(t, h, "10:00 AM - 11:00 AM")

	result, err := h.booking.HandlePaymentOutcome(context.Background(),
		PaymentOutcome{ExternalReference: "stu123-prof456-purch789", Status: "in_process", PaymentID: "purch789"})
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusPending, result.Status)
	assert.Empty(t, result.Transitioned)
	assert.Equal(t, model.ReservationStatusCreated, h.store.get(created[0].ID).Status)
	assert.Zero(t, h.notifier.total())
}

func TestHandlePaymentOutcome_OtherStudentCannotApprove(t *testing.T) {
	h := newHarness(t)
	created := createPackage(t, h, "10:00 AM - 11:00 AM")

	result, err := h.booking.HandlePaymentOutcome(context.Background(),
		PaymentOutcome{ExternalReference: "stu000-prof456-purch789", Status: "approved", PaymentID: "purch789"})
	require.NoError(t, err)
	assert.Empty(t, result.Transitioned)
	assert.Equal(t, model.ReservationStatusCreated, h.store.get(created[0].ID).Status)
}

func TestHandlePaymentOutcome_UnknownPurchaseGoesToOperator(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	createPackage(t, h, "10:00 AM - 11:00 AM")

	result, err := h.booking.HandlePaymentOutcome(ctx,
		PaymentOutcome{ExternalReference: "stu123-prof456-purch000", Status: "approved", PaymentID: "gw-1"})
	require.NoError(t, err)
	assert.True(t, result.UnknownPurchase)
	assert.Empty(t, result.Transitioned)
	require.Len(t, h.notifier.to(operator), 1)

	// повтор известного пакета оператора не беспокоит
	outcome := PaymentOutcome{ExternalReference: "stu123-prof456-purch789", Status: "approved", PaymentID: "gw-2"}
	_, err = h.booking.HandlePaymentOutcome(ctx, outcome)
	require.NoError(t, err)
	result, err = h.booking.HandlePaymentOutcome(ctx, outcome)
	require.NoError(t, err)
	assert.False(t, result.UnknownPurchase)
	assert.Len(t, h.notifier.to(operator), 1)
}

func TestHandlePaymentOutcome_MalformedReferenceGoesToOperator(t *testing.T) {
	h := newHarness(t)

	for _, raw := range []string{"", "stu123", "stu123-prof456", "v9:stu123-prof456-purch789"} {
		_, err := h.booking.HandlePaymentOutcome(context.Background(),
			PaymentOutcome{ExternalReference: raw, Status: "approved", PaymentID: "p"})
		require.ErrorIs(t, err, ErrMalformedReference, raw)
		assert.Equal(t, KindInvalidInput, Kind(err))
	}

	ops := h.notifier.to(operator)
	require.Len(t, ops, 4)
	assert.True(t, ops[0].IsStaff)
	assert.Equal(t, model.NotificationActionOperator, ops[0].Action)
}

func TestHandlePaymentOutcome_UnknownStatus(t *testing.T) {
	h := newHarness(t)
	_, err := h.booking.HandlePaymentOutcome(context.Background(),
		PaymentOutcome{ExternalReference: "stu123-prof456-purch789", Status: "teleported"})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestRescheduleReservation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first, err := h.booking.CreateSingleReservation(ctx, request("10:00 AM - 11:00 AM", "60"))
	require.NoError(t, err)
	other := request("12:00 PM - 01:00 PM", "60")
	other.StudentID = "stu777"
	_, err = h.booking.CreateSingleReservation(ctx, other)
	require.NoError(t, err)

	_, err = h.booking.RescheduleReservation(ctx, first.ReservationID, "2025-03-10", "12:30 PM - 01:30 PM")
	require.ErrorIs(t, err, ErrSlotUnavailable)

	// пересечение только с самим собой не мешает
	moved, err := h.booking.RescheduleReservation(ctx, first.ReservationID, "2025-03-10", "10:30 AM - 11:00 AM")
	require.NoError(t, err)
	assert.Equal(t, 30, moved.DurationMinutes)

	stored := h.store.get(first.ReservationID)
	assert.Equal(t, time.Date(2025, 3, 10, 10, 30, 0, 0, time.UTC), stored.BeginsAt)
	assert.Equal(t, time.Date(2025, 3, 10, 11, 0, 0, 0, time.UTC), stored.EndsAt)

	_, err = h.booking.RescheduleReservation(ctx, 404, "2025-03-10", "03:00 PM - 04:00 PM")
	assert.ErrorIs(t, err, ErrReservationNotFound)

	_, err = h.booking.CancelReservation(ctx, first.ReservationID)
	require.NoError(t, err)
	_, err = h.booking.RescheduleReservation(ctx, first.ReservationID, "2025-03-10", "03:00 PM - 04:00 PM")
	assert.ErrorIs(t, err, ErrAlreadyTerminal)
}

func TestListTutorReservations(t *testing.T) {
	h := newHarness(t)
	seedReservation(h, model.ReservationStatusCancelled, time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC), 30)
	seedReservation(h, model.ReservationStatusNext, time.Date(2025, 3, 16, 23, 0, 0, 0, time.UTC), 30)
	seedReservation(h, model.ReservationStatusNext, time.Date(2025, 3, 17, 0, 0, 0, 0, time.UTC), 30)

	from := mustDate(t, "2025-03-10")
	list, err := h.booking.ListTutorReservations(context.Background(), tutorID, from, from.AddDays(6))
	require.NoError(t, err)
	assert.Len(t, list, 2)

	_, err = h.booking.ListTutorReservations(context.Background(), tutorID, from, from.AddDays(-1))
	assert.ErrorIs(t, err, ErrInvalidRequest)
}
