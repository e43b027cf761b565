package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/tour-auth/pkg/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// AccountsCollection is the Mongo collection holding account documents.
const AccountsCollection = "accounts"

// ConnectMongo connects to MongoDB and pings the primary.
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	clientOptions := options.Client().ApplyURI(uri)
	clientOptions.SetServerSelectionTimeout(10 * time.Second)

	client, err := mongo.Connect(connectCtx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 10*time.Second)
	defer pingCancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	return client, nil
}

// accountDocument is the stored shape of an account.
type accountDocument struct {
	ID                string     `bson:"_id"`
	Email             string     `bson:"email"`
	FirstName         string     `bson:"firstName,omitempty"`
	LastName          string     `bson:"lastName,omitempty"`
	Photo             string     `bson:"photo,omitempty"`
	PasswordHash      *string    `bson:"password,omitempty"`
	GoogleID          *string    `bson:"googleId,omitempty"`
	Role              string     `bson:"role"`
	Active            bool       `bson:"active"`
	IsVerified        bool       `bson:"isVerified"`
	EmailOTPHash      string     `bson:"emailVerificationOtp,omitempty"`
	EmailOTPExpiresAt *time.Time `bson:"emailVerificationOtpExpires,omitempty"`
	ResetOTPHash      string     `bson:"passwordResetOtp,omitempty"`
	ResetOTPExpiresAt *time.Time `bson:"passwordResetOtpExpires,omitempty"`
	OTPAttempts       int        `bson:"otpAttempts"`
	OTPBlockedUntil   *time.Time `bson:"otpBlockedUntil,omitempty"`
	ResetTokenID      string     `bson:"passwordResetTokenId,omitempty"`
	PasswordChangedAt *time.Time `bson:"passwordChangedAt,omitempty"`
	CreatedAt         time.Time  `bson:"createdAt"`
	UpdatedAt         time.Time  `bson:"updatedAt"`
}

func toDocument(a *domain.Account) *accountDocument {
	return &accountDocument{
		ID:                a.ID.String(),
		Email:             strings.ToLower(a.Email),
		FirstName:         a.FirstName,
		LastName:          a.LastName,
		Photo:             a.Photo,
		PasswordHash:      a.PasswordHash,
		GoogleID:          a.GoogleID,
		Role:              string(a.Role),
		Active:            a.Active,
		IsVerified:        a.IsVerified,
		EmailOTPHash:      a.EmailVerificationOTP.Hash,
		EmailOTPExpiresAt: a.EmailVerificationOTP.ExpiresAt,
		ResetOTPHash:      a.PasswordResetOTP.Hash,
		ResetOTPExpiresAt: a.PasswordResetOTP.ExpiresAt,
		OTPAttempts:       a.OTPAttempts,
		OTPBlockedUntil:   a.OTPBlockedUntil,
		ResetTokenID:      a.ResetTokenID,
		PasswordChangedAt: a.PasswordChangedAt,
		CreatedAt:         a.CreatedAt,
		UpdatedAt:         a.UpdatedAt,
	}
}

func (d *accountDocument) toAccount() (*domain.Account, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("parse account id %q: %w", d.ID, err)
	}
	return &domain.Account{
		ID:                   id,
		Email:                d.Email,
		FirstName:            d.FirstName,
		LastName:             d.LastName,
		Photo:                d.Photo,
		PasswordHash:         d.PasswordHash,
		GoogleID:             d.GoogleID,
		Role:                 domain.Role(d.Role),
		Active:               d.Active,
		IsVerified:           d.IsVerified,
		EmailVerificationOTP: domain.PendingOTP{Hash: d.EmailOTPHash, ExpiresAt: d.EmailOTPExpiresAt},
		PasswordResetOTP:     domain.PendingOTP{Hash: d.ResetOTPHash, ExpiresAt: d.ResetOTPExpiresAt},
		OTPAttempts:          d.OTPAttempts,
		OTPBlockedUntil:      d.OTPBlockedUntil,
		ResetTokenID:         d.ResetTokenID,
		PasswordChangedAt:    d.PasswordChangedAt,
		CreatedAt:            d.CreatedAt,
		UpdatedAt:            d.UpdatedAt,
	}, nil
}

// MongoAccountsRepository stores one document per account.
type MongoAccountsRepository struct {
	coll *mongo.Collection
}

// NewMongoAccountsRepository creates a repository over db's accounts collection.
func NewMongoAccountsRepository(db *mongo.Database) *MongoAccountsRepository {
	return &MongoAccountsRepository{coll: db.Collection(AccountsCollection)}
}

// EnsureIndexes creates the unique email and sparse googleId indexes.
func (r *MongoAccountsRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName("email_unique").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "googleId", Value: 1}},
			Options: options.Index().SetName("google_id_unique").SetUnique(true).SetSparse(true),
		},
	})
	if err != nil {
		return fmt.Errorf("create account indexes: %w", err)
	}
	return nil
}

// Create inserts a new account.
func (r *MongoAccountsRepository) Create(ctx context.Context, acct *domain.Account) error {
	if _, err := r.coll.InsertOne(ctx, toDocument(acct)); err != nil {
		return fmt.Errorf("insert account: %w", mapMongoError(err))
	}
	return nil
}

// GetByID retrieves an account by ID.
func (r *MongoAccountsRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	return r.findOne(ctx, bson.M{"_id": id.String()})
}

// GetByEmail retrieves an account by email regardless of active state.
func (r *MongoAccountsRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return r.findOne(ctx, bson.M{"email": strings.ToLower(email)})
}

// GetActiveByEmail retrieves an active account by email.
func (r *MongoAccountsRepository) GetActiveByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return r.findOne(ctx, bson.M{"email": strings.ToLower(email), "active": true})
}

// GetByGoogleID retrieves an account by its linked Google subject.
func (r *MongoAccountsRepository) GetByGoogleID(ctx context.Context, googleID string) (*domain.Account, error) {
	return r.findOne(ctx, bson.M{"googleId": googleID})
}

// Update replaces the account document.
func (r *MongoAccountsRepository) Update(ctx context.Context, acct *domain.Account) error {
	doc := toDocument(acct)
	result, err := r.coll.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc)
	if err != nil {
		return fmt.Errorf("update account: %w", mapMongoError(err))
	}
	if result.MatchedCount == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

func (r *MongoAccountsRepository) findOne(ctx context.Context, filter bson.M) (*domain.Account, error) {
	var doc accountDocument
	err := r.coll.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find account: %w", err)
	}
	return doc.toAccount()
}

// mapMongoError converts duplicate key errors to domain errors.
func mapMongoError(err error) error {
	if !mongo.IsDuplicateKeyError(err) {
		return err
	}
	if strings.Contains(err.Error(), "google_id_unique") {
		return domain.ErrIdentityConflict
	}
	return domain.ErrDuplicateEmail
}
