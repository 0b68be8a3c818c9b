package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/intervu/live-interview/internal/config"
	"github.com/intervu/live-interview/internal/live"
	"github.com/intervu/live-interview/internal/observability"
	"github.com/intervu/live-interview/internal/report"
	"github.com/intervu/live-interview/internal/resilience"
)

const (
	usersCollection   = "users"
	reportsCollection = "reports"
)

// MongoStore is the MongoDB backed Store
type MongoStore struct {
	client  *mongo.Client
	db      *mongo.Database
	policy  *resilience.Policy
	timeout time.Duration
	logger  zerolog.Logger
}

// Connect opens a MongoDB client and verifies it with a ping
func Connect(ctx context.Context, cfg *config.Config) (*MongoStore, error) {
	timeout := time.Duration(cfg.MongoTimeout) * time.Second
	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to verify MongoDB connection: %w", err)
	}

	logger := observability.WithComponent("store")
	logger.Info().Str("database", cfg.MongoDatabase).Msg("Connected to MongoDB")

	return &MongoStore{
		client:  client,
		db:      client.Database(cfg.MongoDatabase),
		policy:  resilience.NewPolicy("mongodb", cfg),
		timeout: timeout,
		logger:  logger,
	}, nil
}

func (s *MongoStore) do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	err := s.policy.Do(ctx, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		return fn(ctx)
	})
	if err != nil {
		observability.RecordError(op, "store")
		s.logger.Error().Err(err).Str("op", op).Msg("MongoDB operation failed")
	}
	return err
}

func (s *MongoStore) GetProfile(ctx context.Context, userID string) (*live.Profile, error) {
	var profile live.Profile
	found := false
	err := s.do(ctx, "get_profile", func(ctx context.Context) error {
		err := s.db.Collection(usersCollection).FindOne(ctx, bson.M{"_id": userID}).Decode(&profile)
		if errors.Is(err, mongo.ErrNoDocuments) {
			// a missing profile is not a database failure
			return nil
		}
		found = err == nil
		return err
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}
	return &profile, nil
}

func (s *MongoStore) UpdateProfile(ctx context.Context, profile *live.Profile) error {
	if profile.ID == "" {
		return errors.New("profile id is required")
	}
	return s.do(ctx, "update_profile", func(ctx context.Context) error {
		_, err := s.db.Collection(usersCollection).ReplaceOne(ctx,
			bson.M{"_id": profile.ID}, profile, options.Replace().SetUpsert(true))
		return err
	})
}

func (s *MongoStore) SaveReport(ctx context.Context, rep *report.Report) error {
	ensureReportID(rep)
	return s.do(ctx, "save_report", func(ctx context.Context) error {
		_, err := s.db.Collection(reportsCollection).InsertOne(ctx, rep)
		if mongo.IsDuplicateKeyError(err) {
			// an earlier attempt already landed
			return nil
		}
		return err
	})
}

func (s *MongoStore) ListReports(ctx context.Context, userID string) ([]report.Report, error) {
	reports := make([]report.Report, 0)
	err := s.do(ctx, "list_reports", func(ctx context.Context) error {
		cursor, err := s.db.Collection(reportsCollection).Find(ctx, bson.M{"userId": userID}, reportsFindOptions())
		if err != nil {
			return err
		}
		defer cursor.Close(ctx)

		reports = reports[:0]
		return cursor.All(ctx, &reports)
	})
	if err != nil {
		return nil, err
	}
	return reports, nil
}

func reportsFindOptions() *options.FindOptions {
	return options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
}

func (s *MongoStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.client.Ping(ctx, nil)
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
