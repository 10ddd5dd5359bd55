package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/vendweave-gateway/internal/domain/audit"
	"github.com/vendweave-gateway/internal/platform/persistence"
)

const (
	// VerificationEventsCollectionName is the name of the audit collection in MongoDB
	VerificationEventsCollectionName = "verification_events"
)

// VerificationAuditRepository implements the audit.Repository interface for MongoDB
type VerificationAuditRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

// NewVerificationAuditRepository creates a new MongoDB audit repository
func NewVerificationAuditRepository(logger *slog.Logger, db *mongo.Database) *VerificationAuditRepository {
	return &VerificationAuditRepository{
		db:     db,
		logger: logger,
	}
}

// EnsureIndexes creates the unique event index and the per-order lookup index
func (r *VerificationAuditRepository) EnsureIndexes(ctx context.Context) error {
	collection := r.db.Collection(VerificationEventsCollectionName)

	if err := persistence.EnsureIndex(ctx, collection, bson.D{{Key: "event_id", Value: 1}}, true); err != nil {
		return err
	}
	return persistence.EnsureIndex(ctx, collection, bson.D{{Key: "order_id", Value: 1}, {Key: "occurred_at", Value: -1}}, false)
}

// Create stores a new audit entry after checking for duplicates.
// Returns ErrDuplicateEntry if the event was already recorded.
func (r *VerificationAuditRepository) Create(ctx context.Context, entry *audit.Entry) error {
	collection := r.db.Collection(VerificationEventsCollectionName)

	existingEntry, err := r.GetByEventID(ctx, entry.EventID)
	if err != nil && !errors.Is(err, audit.ErrEntryNotFound{}) {
		r.logger.Error("Failed to check for existing audit entry",
			"event_id", entry.EventID.String(),
			"error", err)
		return fmt.Errorf("failed to check for existing audit entry: %w", err)
	}

	if existingEntry != nil {
		return audit.ErrDuplicateEntry{EventID: entry.EventID}
	}

	_, err = collection.InsertOne(ctx, entry)
	if err != nil {
		// A concurrent consumer won the unique index
		if mongo.IsDuplicateKeyError(err) {
			return audit.ErrDuplicateEntry{EventID: entry.EventID}
		}
		r.logger.Error("Failed to create audit entry",
			"event_id", entry.EventID.String(),
			"error", err)
		return fmt.Errorf("failed to create audit entry: %w", err)
	}

	return nil
}

// GetByEventID retrieves an audit entry by its event ID.
// Returns ErrEntryNotFound if the event was never recorded.
func (r *VerificationAuditRepository) GetByEventID(ctx context.Context, eventID uuid.UUID) (*audit.Entry, error) {
	collection := r.db.Collection(VerificationEventsCollectionName)

	filter := bson.M{"event_id": eventID}
	var entry audit.Entry
	err := collection.FindOne(ctx, filter).Decode(&entry)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, audit.ErrEntryNotFound{EventID: eventID}
		}
		r.logger.Error("Failed to get audit entry",
			"event_id", eventID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to get audit entry: %w", err)
	}

	return &entry, nil
}

// GetByOrderID retrieves paginated audit entries for an order, newest first
func (r *VerificationAuditRepository) GetByOrderID(ctx context.Context, orderID string, limit, offset int) ([]*audit.Entry, error) {
	collection := r.db.Collection(VerificationEventsCollectionName)

	filter := bson.M{"order_id": orderID}
	opts := options.Find().
		SetSort(bson.D{{Key: "occurred_at", Value: -1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		r.logger.Error("Failed to get audit entries",
			"order_id", orderID,
			"error", err)
		return nil, fmt.Errorf("failed to get audit entries: %w", err)
	}
	defer cursor.Close(ctx)

	var entries []*audit.Entry
	if err := cursor.All(ctx, &entries); err != nil {
		r.logger.Error("Failed to decode audit entries",
			"order_id", orderID,
			"error", err)
		return nil, fmt.Errorf("failed to decode audit entries: %w", err)
	}

	return entries, nil
}

func (r *VerificationAuditRepository) CountByOrderID(ctx context.Context, orderID string) (int64, error) {
	collection := r.db.Collection(VerificationEventsCollectionName)

	count, err := collection.CountDocuments(ctx, bson.M{"order_id": orderID})
	if err != nil {
		r.logger.Error("Failed to count audit entries",
			"order_id", orderID,
			"error", err)
		return 0, fmt.Errorf("failed to count audit entries: %w", err)
	}

	return count, nil
}

var _ audit.Repository = (*VerificationAuditRepository)(nil)
