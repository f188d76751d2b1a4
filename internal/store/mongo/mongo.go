// Package mongo stores restaurants as documents with embedded tables and waiters,
// and reservations and schedules in their own collections.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"tablemind/internal/models"
	"tablemind/internal/store"
)

const defaultDatabase = "tablemind"

type Store struct {
	client       *mongo.Client
	db           *mongo.Database
	restaurants  *mongo.Collection
	reservations *mongo.Collection
	schedules    *mongo.Collection
	logger       zerolog.Logger
}

var _ store.Store = (*Store)(nil)

// Connect dials MongoDB, verifies the connection and ensures indexes.
func Connect(ctx context.Context, uri, database string, logger zerolog.Logger) (*Store, error) {
	if uri == "" {
		uri = "mongodb://localhost:27017"
	}
	if database == "" {
		database = defaultDatabase
	}

	clientOptions := options.Client().ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(10 * time.Second)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("cannot ping MongoDB: %w", err)
	}

	db := client.Database(database)
	s := &Store{
		client:       client,
		db:           db,
		restaurants:  db.Collection("restaurants"),
		reservations: db.Collection("reservations"),
		schedules:    db.Collection("schedules"),
		logger:       logger.With().Str("component", "mongo_store").Logger(),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	s.logger.Info().Str("database", database).Msg("Connected to MongoDB")
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	if _, err := s.reservations.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "restaurantId", Value: 1}, {Key: "time", Value: 1}}},
		{Keys: bson.D{{Key: "restaurantId", Value: 1}, {Key: "tableId", Value: 1}}},
		{Keys: bson.D{{Key: "restaurantId", Value: 1}, {Key: "assignedWaiterId", Value: 1}}},
	}); err != nil {
		return fmt.Errorf("cannot create reservation indexes: %w", err)
	}
	if _, err := s.schedules.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "restaurantId", Value: 1}, {Key: "waiterId", Value: 1}, {Key: "startTime", Value: 1}},
	}); err != nil {
		return fmt.Errorf("cannot create schedule indexes: %w", err)
	}
	return nil
}

func (s *Store) GetRestaurant(ctx context.Context, id string) (*models.Restaurant, error) {
	var r models.Restaurant
	err := s.restaurants.FindOne(ctx, bson.M{"_id": id}).Decode(&r)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.NewNotFound("restaurant", id)
	}
	if err != nil {
		return nil, fmt.Errorf("cannot get restaurant: %w", err)
	}
	return &r, nil
}

func (s *Store) SaveRestaurant(ctx context.Context, r *models.Restaurant) error {
	if r == nil {
		return fmt.Errorf("restaurant is nil")
	}
	_, err := s.restaurants.ReplaceOne(ctx, bson.M{"_id": r.ID}, r, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("cannot save restaurant: %w", err)
	}
	return nil
}

func (s *Store) ListRestaurants(ctx context.Context) ([]models.Restaurant, error) {
	cursor, err := s.restaurants.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("cannot list restaurants: %w", err)
	}
	defer cursor.Close(ctx)

	var result []models.Restaurant
	if err := cursor.All(ctx, &result); err != nil {
		return nil, fmt.Errorf("cannot decode restaurants: %w", err)
	}
	return result, nil
}

func (s *Store) CreateReservation(ctx context.Context, r *models.Reservation) error {
	if r == nil {
		return fmt.Errorf("reservation is nil")
	}
	if _, err := s.reservations.InsertOne(ctx, r); err != nil {
		return fmt.Errorf("cannot create reservation: %w", err)
	}
	return nil
}

func (s *Store) GetReservation(ctx context.Context, restaurantID, id string) (*models.Reservation, error) {
	var r models.Reservation
	err := s.reservations.FindOne(ctx, bson.M{"_id": id, "restaurantId": restaurantID}).Decode(&r)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.NewNotFound("reservation", id)
	}
	if err != nil {
		return nil, fmt.Errorf("cannot get reservation: %w", err)
	}
	return &r, nil
}

func (s *Store) UpdateReservation(ctx context.Context, r *models.Reservation) error {
	if r == nil {
		return fmt.Errorf("reservation is nil")
	}
	result, err := s.reservations.ReplaceOne(ctx, bson.M{"_id": r.ID, "restaurantId": r.RestaurantID}, r)
	if err != nil {
		return fmt.Errorf("cannot update reservation: %w", err)
	}
	if result.MatchedCount == 0 {
		return models.NewNotFound("reservation", r.ID)
	}
	return nil
}

func reservationQuery(restaurantID string, f store.ReservationFilter) bson.M {
	q := bson.M{"restaurantId": restaurantID}
	if f.TableID != nil {
		q["tableId"] = *f.TableID
	}
	if f.WaiterID != nil {
		q["assignedWaiterId"] = *f.WaiterID
	}
	if f.Status != nil {
		q["status"] = string(*f.Status)
	}
	if f.From != nil || f.To != nil {
		rng := bson.M{}
		if f.From != nil {
			rng["$gte"] = *f.From
		}
		if f.To != nil {
			rng["$lt"] = *f.To
		}
		q["time"] = rng
	}
	if f.ActiveOnly {
		q["archived"] = false
		if f.Status == nil {
			q["status"] = bson.M{"$in": []string{string(models.StatusBooked), string(models.StatusArrived)}}
		}
	}
	return q
}

func (s *Store) ListReservations(ctx context.Context, restaurantID string, filter store.ReservationFilter) ([]models.Reservation, error) {
	opts := options.Find().SetSort(bson.D{{Key: "time", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := s.reservations.Find(ctx, reservationQuery(restaurantID, filter), opts)
	if err != nil {
		return nil, fmt.Errorf("cannot list reservations: %w", err)
	}
	defer cursor.Close(ctx)

	var result []models.Reservation
	if err := cursor.All(ctx, &result); err != nil {
		return nil, fmt.Errorf("cannot decode reservations: %w", err)
	}
	// terminal statuses filtered natively; Match catches the rest
	out := result[:0]
	for i := range result {
		if filter.Match(&result[i]) {
			out = append(out, result[i])
		}
	}
	return out, nil
}

func (s *Store) CreateSchedule(ctx context.Context, sc *models.Schedule) error {
	if sc == nil {
		return fmt.Errorf("schedule is nil")
	}
	if _, err := s.schedules.InsertOne(ctx, sc); err != nil {
		return fmt.Errorf("cannot create schedule: %w", err)
	}
	return nil
}

func (s *Store) GetSchedule(ctx context.Context, restaurantID, id string) (*models.Schedule, error) {
	var sc models.Schedule
	err := s.schedules.FindOne(ctx, bson.M{"_id": id, "restaurantId": restaurantID}).Decode(&sc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.NewNotFound("schedule", id)
	}
	if err != nil {
		return nil, fmt.Errorf("cannot get schedule: %w", err)
	}
	return &sc, nil
}

func (s *Store) UpdateSchedule(ctx context.Context, sc *models.Schedule) error {
	if sc == nil {
		return fmt.Errorf("schedule is nil")
	}
	result, err := s.schedules.ReplaceOne(ctx, bson.M{"_id": sc.ID, "restaurantId": sc.RestaurantID}, sc)
	if err != nil {
		return fmt.Errorf("cannot update schedule: %w", err)
	}
	if result.MatchedCount == 0 {
		return models.NewNotFound("schedule", sc.ID)
	}
	return nil
}

func scheduleQuery(restaurantID string, f store.ScheduleFilter) bson.M {
	q := bson.M{"restaurantId": restaurantID}
	if f.WaiterID != nil {
		q["waiterId"] = *f.WaiterID
	}
	if f.From != nil {
		q["endTime"] = bson.M{"$gt": *f.From}
	}
	if f.To != nil {
		q["startTime"] = bson.M{"$lt": *f.To}
	}
	if f.ActiveOnly {
		q["isActive"] = true
		q["status"] = bson.M{"$ne": string(models.ScheduleCancelled)}
	}
	return q
}

func (s *Store) ListSchedules(ctx context.Context, restaurantID string, filter store.ScheduleFilter) ([]models.Schedule, error) {
	opts := options.Find().SetSort(bson.D{{Key: "startTime", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := s.schedules.Find(ctx, scheduleQuery(restaurantID, filter), opts)
	if err != nil {
		return nil, fmt.Errorf("cannot list schedules: %w", err)
	}
	defer cursor.Close(ctx)

	var result []models.Schedule
	if err := cursor.All(ctx, &result); err != nil {
		return nil, fmt.Errorf("cannot decode schedules: %w", err)
	}
	return result, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("cannot disconnect from MongoDB: %w", err)
	}
	return nil
}
