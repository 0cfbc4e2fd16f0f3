package register

import (
	"context"
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"user_service/internal/auth"
	resp "user_service/internal/lib/api/response"
	sl "user_service/internal/lib/logger"
	"user_service/internal/models"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

const maxMultipartMemory = 16 << 20

type Request struct {
	FullName string `validate:"required"`
	Email    string `validate:"required,email"`
	Username string `validate:"required"`
	Password string `validate:"required"`
}

type Response struct {
	resp.Response
	User UserPayload `json:"user"`
}

type UserPayload struct {
	ID         int64     `json:"id"`
	FullName   string    `json:"fullName"`
	Email      string    `json:"email"`
	Username   string    `json:"userName"`
	Avatar     string    `json:"avatar"`
	CoverImage string    `json:"coverImage,omitempty"`
	CreatedAt  time.Time `json:"createdAt,omitzero"`
}

func New(
	log *slog.Logger,
	validate *validator.Validate,
	authService *auth.Auth,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.register.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
			log.Error("Failed to parse multipart form", sl.Err(err))

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("Failed to decode request"))

			return
		}

		req := Request{
			FullName: strings.TrimSpace(r.FormValue("fullName")),
			Email:    strings.TrimSpace(r.FormValue("email")),
			Username: strings.TrimSpace(r.FormValue("userName")),
			Password: strings.TrimSpace(r.FormValue("password")),
		}

		log.Info("Request body decoded")

		if err := validate.Struct(req); err != nil {
			validateErr := err.(validator.ValidationErrors)

			log.Error("Invalid request", sl.Err(err))

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.ValidationError(validateErr))

			return
		}

		avatar, err := firstFile(r, "avatar")
		if err != nil {
			log.Error("Avatar file is missing", sl.Err(err))

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("Avatar file is required"))

			return
		}
		defer avatar.File.Close()

		input := auth.RegisterInput{
			FullName: req.FullName,
			Email:    req.Email,
			Username: req.Username,
			Password: req.Password,
			Avatar:   auth.Upload{File: avatar.File, ContentType: avatar.ContentType},
		}

		if cover, err := firstFile(r, "coverImage"); err == nil {
			defer cover.File.Close()
			input.Cover = &auth.Upload{File: cover.File, ContentType: cover.ContentType}
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		user, err := authService.RegisterNewUser(ctx, input)
		if err != nil {
			if errors.Is(err, auth.ErrUserExists) {
				render.Status(r, http.StatusConflict)
				render.JSON(w, r, resp.Error("User name or email already exists"))

				return
			}
			if errors.Is(err, auth.ErrAvatarUpload) {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, resp.Error("Avatar file is required"))

				return
			}

			log.Error("failed to register user", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		log.Info("User registered", slog.Int64("id", user.ID))

		ResponseOK(w, r, user)
	}
}

func ResponseOK(w http.ResponseWriter, r *http.Request, user models.User) {
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, Response{
		Response: resp.OK(),
		User: UserPayload{
			ID:         user.ID,
			FullName:   user.FullName,
			Email:      user.Email,
			Username:   user.Username,
			Avatar:     user.AvatarURL,
			CoverImage: user.CoverImageURL,
			CreatedAt:  user.CreatedAt,
		},
	})
}

type formFile struct {
	File        multipart.File
	ContentType string
}

// firstFile returns the first uploaded file for the field; extra files under
// the same field are ignored.
func firstFile(r *http.Request, field string) (formFile, error) {
	files := r.MultipartForm.File[field]
	if len(files) == 0 {
		return formFile{}, errors.New("no file for field " + field)
	}

	fh := files[0]

	f, err := fh.Open()
	if err != nil {
		return formFile{}, err
	}

	return formFile{
		File:        f,
		ContentType: fh.Header.Get("Content-Type"),
	}, nil
}
