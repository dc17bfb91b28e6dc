package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Ritik272004/PROJMANAGEMENT/internal/domain"
	"github.com/Ritik272004/PROJMANAGEMENT/pkg/database"
	apperrors "github.com/Ritik272004/PROJMANAGEMENT/pkg/errors"
)

// CollectionName is the collection holding user documents.
const CollectionName = "users"

const (
	usernameIndex     = "users_username_unique"
	emailIndex        = "users_email_unique"
	verifyHashIndex   = "users_email_verification_hash"
	resetHashIndex    = "users_password_reset_hash"
	fieldVerification = "email_verification"
	fieldReset        = "password_reset"
)

var slotFields = map[domain.SecretKind]string{
	domain.SecretEmailVerification: fieldVerification,
	domain.SecretPasswordReset:     fieldReset,
}

type secretDocument struct {
	Hash      string    `bson:"hash"`
	ExpiresAt time.Time `bson:"expires_at"`
}

type userDocument struct {
	ID                string          `bson:"_id"`
	Username          string          `bson:"username"`
	Email             string          `bson:"email"`
	FullName          string          `bson:"full_name"`
	AvatarURL         string          `bson:"avatar_url"`
	PasswordHash      string          `bson:"password_hash"`
	IsEmailVerified   bool            `bson:"is_email_verified"`
	RefreshTokenHash  string          `bson:"refresh_token_hash"`
	EmailVerification *secretDocument `bson:"email_verification,omitempty"`
	PasswordReset     *secretDocument `bson:"password_reset,omitempty"`
	CreatedAt         time.Time       `bson:"created_at"`
	UpdatedAt         time.Time       `bson:"updated_at"`
}

func toDocument(u *domain.User) userDocument {
	return userDocument{
		ID:                u.ID,
		Username:          u.Username,
		Email:             u.Email,
		FullName:          u.FullName,
		AvatarURL:         u.AvatarURL,
		PasswordHash:      u.PasswordHash,
		IsEmailVerified:   u.IsEmailVerified,
		RefreshTokenHash:  u.RefreshTokenHash,
		EmailVerification: toSecretDocument(u.EmailVerification),
		PasswordReset:     toSecretDocument(u.PasswordReset),
		CreatedAt:         u.CreatedAt,
		UpdatedAt:         u.UpdatedAt,
	}
}

func (d *userDocument) toDomain() *domain.User {
	return &domain.User{
		ID:                d.ID,
		Username:          d.Username,
		Email:             d.Email,
		FullName:          d.FullName,
		AvatarURL:         d.AvatarURL,
		PasswordHash:      d.PasswordHash,
		IsEmailVerified:   d.IsEmailVerified,
		RefreshTokenHash:  d.RefreshTokenHash,
		EmailVerification: fromSecretDocument(d.EmailVerification),
		PasswordReset:     fromSecretDocument(d.PasswordReset),
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
	}
}

func toSecretDocument(p *domain.PendingSecret) *secretDocument {
	if p == nil {
		return nil
	}
	return &secretDocument{Hash: p.Hash, ExpiresAt: p.ExpiresAt}
}

func fromSecretDocument(d *secretDocument) *domain.PendingSecret {
	if d == nil {
		return nil
	}
	return &domain.PendingSecret{Hash: d.Hash, ExpiresAt: d.ExpiresAt}
}

// UserRepository implements repository.UserRepository on a MongoDB collection.
// Pending secrets are embedded sub-documents, so a hash and its expiry are
// always written and unset together.
type UserRepository struct {
	col *mongo.Collection
	now func() time.Time
}

// NewUserRepository creates a repository over db.users.
func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{col: db.Collection(CollectionName), now: time.Now}
}

// EnsureIndexes creates the unique identity indexes and the secret lookup
// indexes. Safe to call on every startup.
func (r *UserRepository) EnsureIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetName(usernameIndex).SetUnique(true)},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetName(emailIndex).SetUnique(true)},
		{Keys: bson.D{{Key: fieldVerification + ".hash", Value: 1}}, Options: options.Index().SetName(verifyHashIndex).SetSparse(true)},
		{Keys: bson.D{{Key: fieldReset + ".hash", Value: 1}}, Options: options.Index().SetName(resetHashIndex).SetSparse(true)},
	}
	if _, err := r.col.Indexes().CreateMany(ctx, models); err != nil {
		return fmt.Errorf("create user indexes: %w", err)
	}
	return nil
}

// Create inserts a new user document.
func (r *UserRepository) Create(ctx context.Context, u *domain.User) (err error) {
	ctx, end := database.TraceOperation(ctx, "mongodb", "CreateUser", CollectionName+".insertOne")
	defer func() { end(err) }()

	_, err = r.col.InsertOne(ctx, toDocument(u))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			if strings.Contains(err.Error(), usernameIndex) {
				return apperrors.AlreadyExists("user", "username", u.Username)
			}
			return apperrors.AlreadyExists("user", "email", u.Email)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by their ID.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.findOne(ctx, "GetUserByID", bson.M{"_id": id})
}

// GetByEmail retrieves a user by their email address.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, "GetUserByEmail", bson.M{"email": email})
}

// IdentityTaken reports which of username or email is already registered.
// Username is checked first so the answer does not depend on which of two
// conflicting accounts the server returns.
func (r *UserRepository) IdentityTaken(ctx context.Context, username, email string) (string, error) {
	checks := []struct{ field, value string }{
		{"username", username},
		{"email", email},
	}
	for _, c := range checks {
		_, err := r.findOne(ctx, "IdentityTaken", bson.M{c.field: c.value})
		if err == nil {
			return c.field, nil
		}
		if !errors.Is(err, apperrors.ErrNotFound) {
			return "", err
		}
	}
	return "", nil
}

// FindBySecret retrieves the user holding the given pending secret digest.
func (r *UserRepository) FindBySecret(ctx context.Context, kind domain.SecretKind, hash string) (*domain.User, error) {
	field, ok := slotFields[kind]
	if !ok {
		return nil, fmt.Errorf("find by secret: unknown kind %q", kind)
	}
	return r.findOne(ctx, "FindUserBySecret", bson.M{field + ".hash": hash})
}

// SetRefreshToken overwrites the stored refresh token digest.
func (r *UserRepository) SetRefreshToken(ctx context.Context, id, digest string) error {
	update := bson.M{"$set": bson.M{"refresh_token_hash": digest, "updated_at": r.now().UTC()}}
	matched, err := r.updateOne(ctx, "SetRefreshToken", bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if matched == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// SwapRefreshToken replaces the refresh digest if it still equals expected.
func (r *UserRepository) SwapRefreshToken(ctx context.Context, id, expected, next string) error {
	if expected == "" {
		return apperrors.ErrSessionInvalidated
	}
	filter := bson.M{"_id": id, "refresh_token_hash": expected}
	update := bson.M{"$set": bson.M{"refresh_token_hash": next, "updated_at": r.now().UTC()}}
	matched, err := r.updateOne(ctx, "SwapRefreshToken", filter, update)
	if err != nil {
		return err
	}
	if matched == 0 {
		return apperrors.ErrSessionInvalidated
	}
	return nil
}

// SetSecret stores a pending secret, replacing any previous one in the slot.
func (r *UserRepository) SetSecret(ctx context.Context, id string, kind domain.SecretKind, secret domain.PendingSecret) error {
	field, ok := slotFields[kind]
	if !ok {
		return fmt.Errorf("set secret: unknown kind %q", kind)
	}
	update := bson.M{"$set": bson.M{
		field:        secretDocument{Hash: secret.Hash, ExpiresAt: secret.ExpiresAt},
		"updated_at": r.now().UTC(),
	}}
	matched, err := r.updateOne(ctx, "SetSecret", bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if matched == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// ConsumeEmailVerification marks the email verified and unsets the slot.
func (r *UserRepository) ConsumeEmailVerification(ctx context.Context, hash string, now time.Time) (*domain.User, error) {
	filter := bson.M{
		fieldVerification + ".hash":       hash,
		fieldVerification + ".expires_at": bson.M{"$gt": now.UTC()},
	}
	update := bson.M{
		"$set":   bson.M{"is_email_verified": true, "updated_at": now.UTC()},
		"$unset": bson.M{fieldVerification: ""},
	}
	return r.findOneAndUpdate(ctx, "ConsumeEmailVerification", filter, update)
}

// ConsumePasswordReset replaces the password, unsets the slot and ends the session.
func (r *UserRepository) ConsumePasswordReset(ctx context.Context, hash, passwordHash string, now time.Time) (*domain.User, error) {
	filter := bson.M{
		fieldReset + ".hash":       hash,
		fieldReset + ".expires_at": bson.M{"$gt": now.UTC()},
	}
	update := bson.M{
		"$set": bson.M{
			"password_hash":      passwordHash,
			"refresh_token_hash": "",
			"updated_at":         now.UTC(),
		},
		"$unset": bson.M{fieldReset: ""},
	}
	return r.findOneAndUpdate(ctx, "ConsumePasswordReset", filter, update)
}

// UpdatePassword replaces the password hash and ends the session if the
// stored hash is still currentHash.
func (r *UserRepository) UpdatePassword(ctx context.Context, id, currentHash, passwordHash string) error {
	update := bson.M{"$set": bson.M{
		"password_hash":      passwordHash,
		"refresh_token_hash": "",
		"updated_at":         r.now().UTC(),
	}}
	filter := bson.M{"_id": id, "password_hash": currentHash}
	matched, err := r.updateOne(ctx, "UpdatePassword", filter, update)
	if err != nil {
		return err
	}
	if matched == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *UserRepository) findOne(ctx context.Context, op string, filter any) (_ *domain.User, err error) {
	ctx, end := database.TraceOperation(ctx, "mongodb", op, CollectionName+".findOne")
	defer func() { end(ignoreNotFound(err)) }()

	var doc userDocument
	if err = r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *UserRepository) findOneAndUpdate(ctx context.Context, op string, filter, update any) (_ *domain.User, err error) {
	ctx, end := database.TraceOperation(ctx, "mongodb", op, CollectionName+".findOneAndUpdate")
	defer func() { end(ignoreNotFound(err)) }()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc userDocument
	if err = r.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return doc.toDomain(), nil
}

func (r *UserRepository) updateOne(ctx context.Context, op string, filter, update any) (_ int64, err error) {
	ctx, end := database.TraceOperation(ctx, "mongodb", op, CollectionName+".updateOne")
	defer func() { end(err) }()

	res, err := r.col.UpdateOne(ctx, filter, update)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return res.MatchedCount, nil
}

func ignoreNotFound(err error) error {
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil
	}
	return err
}
