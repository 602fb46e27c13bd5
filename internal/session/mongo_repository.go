package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_storefront/internal/cart"
	"github.com/fjod/go_storefront/internal/checkout"
	"github.com/fjod/go_storefront/internal/domain"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DefaultSessionTTL is how long an untouched session survives in MongoDB.
const DefaultSessionTTL = 30 * 24 * time.Hour

// lineDocument stores prices as strings; decimals have no native BSON form.
type lineDocument struct {
	ProductID   int64  `bson:"product_id"`
	Name        string `bson:"name"`
	Price       string `bson:"price"`
	Category    string `bson:"category"`
	Image       string `bson:"image"`
	Description string `bson:"description"`
	Quantity    int    `bson:"quantity"`
}

type sessionDocument struct {
	SessionID string          `bson:"session_id"`
	Lines     []lineDocument  `bson:"lines"`
	Checkout  *checkout.State `bson:"checkout,omitempty"`
	CreatedAt time.Time       `bson:"created_at"`
	UpdatedAt time.Time       `bson:"updated_at"`
}

func toDocument(s *Session) sessionDocument {
	doc := sessionDocument{
		SessionID: s.ID,
		Lines:     make([]lineDocument, 0, len(s.Lines)),
		Checkout:  s.Checkout,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
	for _, l := range s.Lines {
		doc.Lines = append(doc.Lines, lineDocument{
			ProductID:   l.Product.ID,
			Name:        l.Product.Name,
			Price:       l.Product.Price.String(),
			Category:    l.Product.Category,
			Image:       l.Product.Image,
			Description: l.Product.Description,
			Quantity:    l.Quantity,
		})
	}
	return doc
}

func fromDocument(doc sessionDocument) (*Session, error) {
	s := &Session{
		ID:        doc.SessionID,
		Checkout:  doc.Checkout,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
	for _, l := range doc.Lines {
		price, err := decimal.NewFromString(l.Price)
		if err != nil {
			return nil, fmt.Errorf("session %s: bad price for product %d: %w", doc.SessionID, l.ProductID, err)
		}
		s.Lines = append(s.Lines, cart.Line{
			Product: domain.Product{
				ID:          l.ProductID,
				Name:        l.Name,
				Price:       price,
				Category:    l.Category,
				Image:       l.Image,
				Description: l.Description,
			},
			Quantity: l.Quantity,
		})
	}
	return s, nil
}

type MongoRepository struct {
	collection *mongo.Collection
	ttl        time.Duration
}

func NewMongoRepository(db *mongo.Database, ttl time.Duration) *MongoRepository {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &MongoRepository{
		collection: db.Collection("sessions"),
		ttl:        ttl,
	}
}

func (m *MongoRepository) Get(ctx context.Context, id string) (*Session, error) {
	var doc sessionDocument

	err := m.collection.FindOne(ctx, bson.M{"session_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return fromDocument(doc)
}

func (m *MongoRepository) Upsert(ctx context.Context, s *Session) error {
	now := time.Now()

	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now

	doc := toDocument(s)
	update := bson.M{"$set": doc}
	if doc.Checkout == nil {
		// $set cannot drop a field that omitempty left out
		update["$unset"] = bson.M{"checkout": ""}
	}

	opts := options.Update().SetUpsert(true)
	if _, err := m.collection.UpdateOne(ctx, bson.M{"session_id": s.ID}, update, opts); err != nil {
		return fmt.Errorf("failed to upsert session: %w", err)
	}

	return nil
}

func (m *MongoRepository) Delete(ctx context.Context, id string) error {
	if _, err := m.collection.DeleteOne(ctx, bson.M{"session_id": id}); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (m *MongoRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "session_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "updated_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(m.ttl.Seconds())),
		},
	}

	if _, err := m.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}
