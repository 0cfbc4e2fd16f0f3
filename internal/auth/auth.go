package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"user_service/internal/config"
	"user_service/internal/lib/jwt"
	sl "user_service/internal/lib/logger"
	"user_service/internal/models"
	"user_service/internal/storage"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials  = errors.New("invalid user credentials")
	ErrUserExists          = errors.New("username or email already exists")
	ErrUserNotFound        = errors.New("user does not exist")
	ErrAvatarUpload        = errors.New("avatar upload failed")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrTokenReused         = errors.New("refresh token is expired or used")
)

type Auth struct {
	log         *slog.Logger
	usrSaver    UserSaver
	usrProvider UserProvider
	uploader    FileUploader
	publisher   EventPublisher
	tokens      config.Tokens
}

type UserSaver interface {
	SaveUser(ctx context.Context, user models.User) (uid int64, err error)
	UpdateRefreshToken(ctx context.Context, userID int64, token *string) error
}

type UserProvider interface {
	UserByLogin(ctx context.Context, username, email string) (models.User, error)
	UserByID(ctx context.Context, id int64) (models.User, error)
}

type FileUploader interface {
	Upload(ctx context.Context, category string, file io.Reader, contentType string) (url string, err error)
}

type EventPublisher interface {
	PublishUserRegistered(ctx context.Context, event models.UserRegistered) error
}

func New(
	log *slog.Logger,
	userSaver UserSaver,
	userProvider UserProvider,
	uploader FileUploader,
	publisher EventPublisher,
	tokens config.Tokens,
) *Auth {
	return &Auth{
		log:         log,
		usrSaver:    userSaver,
		usrProvider: userProvider,
		uploader:    uploader,
		publisher:   publisher,
		tokens:      tokens,
	}
}

type Upload struct {
	File        io.Reader
	ContentType string
}

type RegisterInput struct {
	FullName string
	Email    string
	Username string
	Password string
	Avatar   Upload
	Cover    *Upload
}

// RegisterNewUser uploads the avatar (and optional cover image), hashes the
// password and persists the user with a lowercased username. Uniqueness is
// enforced by the store, atomically with the insert.
func (a *Auth) RegisterNewUser(ctx context.Context, input RegisterInput) (models.User, error) {
	const op = "auth.RegisterNewUser"

	log := a.log.With(
		slog.String("op", op),
	)

	log.Info("Registering new user")

	passHash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Error("failed to generate password hash", sl.Err(err))
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	avatarURL, err := a.uploader.Upload(ctx, "avatars", input.Avatar.File, input.Avatar.ContentType)
	if err != nil {
		log.Error("failed to upload avatar", sl.Err(err))
		return models.User{}, fmt.Errorf("%s: %w", op, ErrAvatarUpload)
	}

	var coverURL string
	if input.Cover != nil {
		coverURL, err = a.uploader.Upload(ctx, "covers", input.Cover.File, input.Cover.ContentType)
		if err != nil {
			log.Error("failed to upload cover image", sl.Err(err))
			return models.User{}, fmt.Errorf("%s: %w", op, err)
		}
	}

	user := models.User{
		FullName:      input.FullName,
		Email:         input.Email,
		Username:      strings.ToLower(input.Username),
		PassHash:      passHash,
		AvatarURL:     avatarURL,
		CoverImageURL: coverURL,
	}

	id, err := a.usrSaver.SaveUser(ctx, user)
	if err != nil {
		if errors.Is(err, storage.ErrUserExists) {
			log.Warn("User already exists")

			return models.User{}, fmt.Errorf("%s: %w", op, ErrUserExists)
		}

		log.Error("Failed to save user", sl.Err(err))

		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	event := models.UserRegistered{
		Email:    user.Email,
		Username: user.Username,
		FullName: user.FullName,
	}
	if err := a.publisher.PublishUserRegistered(ctx, event); err != nil {
		// registration already succeeded; the event is best-effort
		log.Warn("failed to publish registered event", sl.Err(err))
	}

	created, err := a.usrProvider.UserByID(ctx, id)
	if err != nil {
		log.Error("failed to load created user", sl.Err(err))
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("User registered", slog.Int64("uid", id))

	return created.Sanitize(), nil
}

// Login verifies credentials against the stored hash and issues a token pair.
// The refresh token overwrites the user's single slot.
func (a *Auth) Login(
	ctx context.Context,
	username, email, password string,
) (models.User, models.TokenPair, error) {
	const op = "auth.Login"

	log := a.log.With(slog.String("op", op))

	user, err := a.usrProvider.UserByLogin(ctx, strings.ToLower(username), strings.ToLower(email))
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			log.Warn("user not found")
			return models.User{}, models.TokenPair{}, ErrUserNotFound
		}

		log.Error("failed to get user", sl.Err(err))
		return models.User{}, models.TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := bcrypt.CompareHashAndPassword(user.PassHash, []byte(password)); err != nil {
		log.Info("invalid credentials", sl.Err(err))
		return models.User{}, models.TokenPair{}, ErrInvalidCredentials
	}

	pair, err := a.issueTokenPair(ctx, user)
	if err != nil {
		log.Error("failed to issue token pair", sl.Err(err))
		return models.User{}, models.TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user logged in successfully", slog.Int64("uid", user.ID))

	return user.Sanitize(), pair, nil
}

// Refresh rotates the token pair. The incoming token must match the user's
// stored slot exactly; a token that was already rotated out fails here, which
// makes every issued refresh token single-use.
func (a *Auth) Refresh(ctx context.Context, refreshToken string) (models.TokenPair, error) {
	const op = "auth.Refresh"

	log := a.log.With(slog.String("op", op))

	claims, err := jwt.ParseToken(refreshToken, a.tokens.RefreshTokenSecret)
	if err != nil {
		log.Warn("invalid refresh token", sl.Err(err))
		return models.TokenPair{}, ErrInvalidRefreshToken
	}

	user, err := a.usrProvider.UserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			log.Warn("user not found")
			return models.TokenPair{}, ErrUserNotFound
		}

		log.Error("failed to load user", sl.Err(err))
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}

	if user.RefreshToken == nil || *user.RefreshToken != refreshToken {
		log.Warn("refresh token is expired or used", slog.Int64("uid", user.ID))
		return models.TokenPair{}, ErrTokenReused
	}

	pair, err := a.issueTokenPair(ctx, user)
	if err != nil {
		log.Error("failed to issue token pair", sl.Err(err))
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("refresh successful", slog.Int64("uid", user.ID))

	return pair, nil
}

// Logout clears the user's refresh-token slot.
func (a *Auth) Logout(ctx context.Context, userID int64) error {
	const op = "auth.Logout"

	log := a.log.With(slog.String("op", op))

	if err := a.usrSaver.UpdateRefreshToken(ctx, userID, nil); err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			log.Warn("user not found")
			return ErrUserNotFound
		}

		log.Error("failed to clear refresh token", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("logout successful", slog.Int64("uid", userID))

	return nil
}

func (a *Auth) issueTokenPair(ctx context.Context, user models.User) (models.TokenPair, error) {
	accessToken, err := jwt.NewAccessToken(user.ID, user.Username, a.tokens.AccessTokenSecret, a.tokens.AccessTokenTTL)
	if err != nil {
		return models.TokenPair{}, err
	}

	refreshToken, err := jwt.NewRefreshToken(user.ID, a.tokens.RefreshTokenSecret, a.tokens.RefreshTokenTTL)
	if err != nil {
		return models.TokenPair{}, err
	}

	if err := a.usrSaver.UpdateRefreshToken(ctx, user.ID, &refreshToken); err != nil {
		return models.TokenPair{}, err
	}

	return models.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}
