package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/99minutos/user-management/internal/core/domain"
)

type TokenRepository struct {
	col *mongo.Collection
	now func() time.Time
}

func NewTokenRepository(db *mongo.Database) *TokenRepository {
	return &TokenRepository{col: db.Collection(collectionTokens), now: time.Now}
}

type tokenDocument struct {
	ID                    string `bson:"_id"`
	AccessToken           string `bson:"access_token"`
	RefreshToken          string `bson:"refresh_token"`
	AccessTokenExpiresAt  int64  `bson:"access_token_expires_at"`
	RefreshTokenExpiresAt int64  `bson:"refresh_token_expires_at"`
	UserID                string `bson:"user_id"`
	IsRevoked             bool   `bson:"is_revoked"`
	CreatedAt             int64  `bson:"created_at"`
}

func toTokenDocument(p *domain.TokenPair) tokenDocument {
	return tokenDocument{
		ID:                    p.ID,
		AccessToken:           p.AccessToken,
		RefreshToken:          p.RefreshToken,
		AccessTokenExpiresAt:  toMillis(p.AccessTokenExpiresAt),
		RefreshTokenExpiresAt: toMillis(p.RefreshTokenExpiresAt),
		UserID:                p.UserID,
		IsRevoked:             p.IsRevoked,
		CreatedAt:             toMillis(p.CreatedAt),
	}
}

func (d tokenDocument) toDomain() *domain.TokenPair {
	return &domain.TokenPair{
		ID:                    d.ID,
		AccessToken:           d.AccessToken,
		RefreshToken:          d.RefreshToken,
		AccessTokenExpiresAt:  fromMillis(d.AccessTokenExpiresAt),
		RefreshTokenExpiresAt: fromMillis(d.RefreshTokenExpiresAt),
		UserID:                d.UserID,
		IsRevoked:             d.IsRevoked,
		CreatedAt:             fromMillis(d.CreatedAt),
	}
}

// RevokeAllForUser flags every live pair of userID as revoked.
func (r *TokenRepository) RevokeAllForUser(ctx context.Context, userID string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := r.col.UpdateMany(ctx,
		bson.M{"user_id": userID, "is_revoked": false},
		bson.M{"$set": bson.M{"is_revoked": true}},
	)
	if err != nil {
		return fmt.Errorf("revoke tokens: %w", err)
	}
	return nil
}

// FindActiveByRefreshToken returns the unrevoked, unexpired pair of userID
// that holds refreshToken.
func (r *TokenRepository) FindActiveByRefreshToken(ctx context.Context, refreshToken, userID string) (*domain.TokenPair, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := activeFilter(r.now())
	filter["refresh_token"] = refreshToken
	filter["user_id"] = userID
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})

	var doc tokenDocument
	if err := r.col.FindOne(ctx, filter, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrTokenNotFound
		}
		return nil, fmt.Errorf("find token pair: %w", err)
	}
	return doc.toDomain(), nil
}

// Save inserts a newly issued pair.
func (r *TokenRepository) Save(ctx context.Context, pair *domain.TokenPair) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if _, err := r.col.InsertOne(ctx, toTokenDocument(pair)); err != nil {
		return fmt.Errorf("save token pair: %w", err)
	}
	return nil
}

// UpdateAccess sets the rotated access token on a pair that is still active.
// A revoked or expired document is left alone and reported as
// domain.ErrTokenNotFound.
func (r *TokenRepository) UpdateAccess(ctx context.Context, pair *domain.TokenPair) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := activeFilter(r.now())
	filter["_id"] = pair.ID

	res, err := r.col.UpdateOne(ctx, filter, accessUpdate(pair))
	if err != nil {
		return fmt.Errorf("update token pair: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrTokenNotFound
	}
	return nil
}

// activeFilter matches pairs that are neither revoked nor past their
// refresh expiry at now.
func activeFilter(now time.Time) bson.M {
	return bson.M{
		"is_revoked":               false,
		"refresh_token_expires_at": bson.M{"$gt": toMillis(now)},
	}
}

func accessUpdate(pair *domain.TokenPair) bson.M {
	return bson.M{"$set": bson.M{
		"access_token":            pair.AccessToken,
		"access_token_expires_at": toMillis(pair.AccessTokenExpiresAt),
	}}
}

// EnsureIndexes creates the lookup indexes on the tokens collection.
func (r *TokenRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := r.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "is_revoked", Value: 1}}},
		{Keys: bson.D{{Key: "refresh_token", Value: 1}}},
	})
	return err
}
