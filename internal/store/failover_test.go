package store

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"tablemind/internal/models"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) GetRestaurant(ctx context.Context, id string) (*models.Restaurant, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Restaurant), args.Error(1)
}

func (m *mockStore) SaveRestaurant(ctx context.Context, r *models.Restaurant) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

func (m *mockStore) ListRestaurants(ctx context.Context) ([]models.Restaurant, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Restaurant), args.Error(1)
}

func (m *mockStore) CreateReservation(ctx context.Context, r *models.Reservation) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

func (m *mockStore) GetReservation(ctx context.Context, restaurantID, id string) (*models.Reservation, error) {
	args := m.Called(ctx, restaurantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Reservation), args.Error(1)
}

func (m *mockStore) UpdateReservation(ctx context.Context, r *models.Reservation) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

func (m *mockStore) ListReservations(ctx context.Context, restaurantID string, filter ReservationFilter) ([]models.Reservation, error) {
	args := m.Called(ctx, restaurantID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Reservation), args.Error(1)
}

func (m *mockStore) CreateSchedule(ctx context.Context, s *models.Schedule) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func (m *mockStore) GetSchedule(ctx context.Context, restaurantID, id string) (*models.Schedule, error) {
	args := m.Called(ctx, restaurantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Schedule), args.Error(1)
}

func (m *mockStore) UpdateSchedule(ctx context.Context, s *models.Schedule) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func (m *mockStore) ListSchedules(ctx context.Context, restaurantID string, filter ScheduleFilter) ([]models.Schedule, error) {
	args := m.Called(ctx, restaurantID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Schedule), args.Error(1)
}

func (m *mockStore) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

func TestFailoverStore(t *testing.T) {
	primary := new(mockStore)
	fallback := new(mockStore)
	logger := zerolog.New(io.Discard)
	repo := NewFailover(primary, fallback, &logger)
	ctx := context.Background()

	t.Run("PrimarySuccess", func(t *testing.T) {
		r := &models.Restaurant{ID: "r1"}
		primary.On("GetRestaurant", ctx, "r1").Return(r, nil).Once()

		got, err := repo.GetRestaurant(ctx, "r1")
		assert.NoError(t, err)
		assert.Equal(t, r, got)
		assert.False(t, repo.Degraded())
		primary.AssertExpectations(t)
	})

	t.Run("WriteIsMirrored", func(t *testing.T) {
		res := &models.Reservation{ID: "a", RestaurantID: "r1"}
		primary.On("CreateReservation", ctx, res).Return(nil).Once()
		fallback.On("UpdateReservation", ctx, res).Return(models.NewNotFound("reservation", "a")).Once()
		fallback.On("CreateReservation", ctx, res).Return(nil).Once()

		assert.NoError(t, repo.CreateReservation(ctx, res))
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("MirrorFailureIsIgnored", func(t *testing.T) {
		r := &models.Restaurant{ID: "r1"}
		primary.On("SaveRestaurant", ctx, r).Return(nil).Once()
		fallback.On("SaveRestaurant", ctx, r).Return(errors.New("disk full")).Once()

		assert.NoError(t, repo.SaveRestaurant(ctx, r))
		assert.False(t, repo.Degraded())
		fallback.AssertExpectations(t)
	})

	t.Run("NotFoundIsAuthoritative", func(t *testing.T) {
		primary.On("GetReservation", ctx, "r1", "x").Return(nil, models.NewNotFound("reservation", "x")).Once()

		_, err := repo.GetReservation(ctx, "r1", "x")
		assert.True(t, models.IsNotFound(err))
		assert.False(t, repo.Degraded())
		primary.AssertExpectations(t)
		fallback.AssertNotCalled(t, "GetReservation", ctx, "r1", "x")
	})

	t.Run("PrimaryFailFallbackSuccess", func(t *testing.T) {
		r := &models.Restaurant{ID: "r2"}
		primary.On("GetRestaurant", ctx, "r2").Return(nil, errors.New("connection refused")).Once()
		fallback.On("GetRestaurant", ctx, "r2").Return(r, nil).Once()

		got, err := repo.GetRestaurant(ctx, "r2")
		assert.NoError(t, err)
		assert.Equal(t, r, got)
		assert.True(t, repo.isDown.Load())
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("DownRejectsWrites", func(t *testing.T) {
		res := &models.Reservation{ID: "b", RestaurantID: "r2"}

		err := repo.UpdateReservation(ctx, res)
		assert.ErrorIs(t, err, ErrReadOnly)
		primary.AssertNotCalled(t, "UpdateReservation", ctx, res)
		fallback.AssertNotCalled(t, "UpdateReservation", ctx, res)
	})

	t.Run("RecoveryAttempt", func(t *testing.T) {
		repo.isDown.Store(true)
		repo.lastCheck = time.Now().Add(-2 * time.Minute)

		r := &models.Restaurant{ID: "r3"}
		primary.On("GetRestaurant", ctx, "r3").Return(r, nil).Once()

		got, err := repo.GetRestaurant(ctx, "r3")
		assert.NoError(t, err)
		assert.Equal(t, r, got)
		assert.False(t, repo.isDown.Load())
		primary.AssertExpectations(t)
	})

	t.Run("FailedWriteMarksDown", func(t *testing.T) {
		sc := &models.Schedule{ID: "s1"}
		primary.On("CreateSchedule", ctx, sc).Return(errors.New("primary down")).Once()

		err := repo.CreateSchedule(ctx, sc)
		assert.ErrorIs(t, err, ErrReadOnly)
		assert.ErrorContains(t, err, "primary down")
		assert.True(t, repo.Degraded())
		fallback.AssertNotCalled(t, "CreateSchedule", ctx, sc)
	})

	t.Run("BothFail", func(t *testing.T) {
		repo.isDown.Store(false)
		primary.On("ListRestaurants", ctx).Return(nil, errors.New("primary down")).Once()
		fallback.On("ListRestaurants", ctx).Return(nil, errors.New("disk full")).Once()

		_, err := repo.ListRestaurants(ctx)
		assert.EqualError(t, err, "disk full")
	})
}
