package api

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"path"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/hatemosphere/movies-backend/internal/audit"
	"github.com/hatemosphere/movies-backend/internal/auth"
	"github.com/hatemosphere/movies-backend/internal/identity"
)

// multipartOverhead is the allowance for form fields and boundaries on top of
// the photo itself.
const multipartOverhead = 64 << 10

var errPhotoStoreDisabled = &identity.Error{
	Kind:    identity.KindProviderUnavailable,
	Code:    "backend/photo-store-disabled",
	Message: "Photo uploads are not configured on this server",
}

func (s *Server) registerSignUp(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID:   "signUp",
		Method:        http.MethodPost,
		Path:          "/users/signUp",
		Tags:          []string{"Users"},
		Summary:       "Create a user account",
		DefaultStatus: http.StatusCreated,
		MaxBodyBytes:  s.maxUploadBytes + multipartOverhead,
		Errors:        []int{http.StatusBadRequest, http.StatusInternalServerError},
	}, func(ctx context.Context, input *SignUpInput) (*UserOutput, error) {
		vals := multipartValues(&input.RawBody)
		form := identity.SignupForm{
			Email:       vals.Get("email"),
			Password:    vals.Get("password"),
			DisplayName: strings.TrimSpace(vals.Get("displayName")),
		}
		if err := identity.ValidateSignup(form); err != nil {
			return nil, apiError(err)
		}
		verified, err := optionalBool(vals, "emailVerified")
		if err != nil {
			return nil, apiError(err)
		}
		photo, err := s.photoFile(&input.RawBody, false)
		if err != nil {
			return nil, apiError(err)
		}

		req := identity.CreateRequest{
			Email:       form.Email,
			Password:    form.Password,
			DisplayName: form.DisplayName,
		}
		if verified != nil {
			req.EmailVerified = *verified
		}
		created, err := s.identity.CreateIdentity(ctx, req)
		if err != nil {
			return nil, apiError(err)
		}

		// The account exists from here on; a failed photo step is logged and
		// the signup still succeeds without a photo.
		if photo != nil {
			if url, err := s.uploadPhoto(ctx, created.UID, photo); err != nil {
				slog.Warn("signup photo upload failed", "uid", created.UID, "error", err)
			} else if updated, err := s.identity.UpdateIdentity(ctx, created.UID, identity.Patch{PhotoURL: &url}); err != nil {
				slog.Warn("signup photo url update failed", "uid", created.UID, "error", err)
			} else {
				created = updated
			}
		}

		audit.Event{
			Actor:    created.UID,
			Action:   "signUp",
			Status:   "succeeded",
			Resource: "users/" + created.UID,
		}.Info("Audit Log: Identity Created")
		return &UserOutput{Body: userRecord(created)}, nil
	})
}

func (s *Server) registerAccount(api huma.API) {
	security := []map[string][]string{{"bearer": {}}}

	huma.Register(api, huma.Operation{
		OperationID:   "updateProfilePic",
		Method:        http.MethodPatch,
		Path:          "/users/updateProfilePic",
		Tags:          []string{"Users"},
		Summary:       "Replace the caller's profile photo",
		DefaultStatus: http.StatusCreated,
		MaxBodyBytes:  s.maxUploadBytes + multipartOverhead,
		Security:      security,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusInternalServerError},
	}, func(ctx context.Context, input *UpdateProfilePicInput) (*UpdateProfilePicOutput, error) {
		ctx, err := auth.Run(ctx, auth.RequireAuthenticated())
		if err != nil {
			return nil, apiError(err)
		}
		caller := identity.FromContext(ctx)
		if s.photos == nil {
			return nil, apiError(errPhotoStoreDisabled)
		}

		photo, err := s.photoFile(&input.RawBody, true)
		if err != nil {
			return nil, apiError(err)
		}
		url, err := s.uploadPhoto(ctx, caller.UID, photo)
		if err != nil {
			return nil, apiError(fmt.Errorf("upload photo: %w", err))
		}
		updated, err := s.identity.UpdateIdentity(ctx, caller.UID, identity.Patch{PhotoURL: &url})
		if err != nil {
			return nil, apiError(err)
		}

		out := &UpdateProfilePicOutput{}
		out.Body.PhotoURL = updated.PhotoURL
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "updateUserData",
		Method:        http.MethodPut,
		Path:          "/users/updateUserData",
		Tags:          []string{"Users"},
		Summary:       "Update the caller's email, display name or verification flag",
		DefaultStatus: http.StatusCreated,
		Security:      security,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusNotFound, http.StatusInternalServerError},
	}, func(ctx context.Context, input *FormOrJSONInput) (*UserOutput, error) {
		ctx, err := auth.Run(ctx, auth.RequireAuthenticated())
		if err != nil {
			return nil, apiError(err)
		}
		caller := identity.FromContext(ctx)

		vals, err := formValues(input.ContentType, input.RawBody)
		if err != nil {
			return nil, apiError(err)
		}
		form, err := profileForm(vals)
		if err != nil {
			return nil, apiError(err)
		}
		if err := identity.ValidateProfileUpdate(form); err != nil {
			return nil, apiError(err)
		}

		updated, err := s.identity.UpdateIdentity(ctx, caller.UID, identity.Patch{
			Email:         form.Email,
			DisplayName:   form.DisplayName,
			EmailVerified: form.EmailVerified,
		})
		if err != nil {
			return nil, apiError(err)
		}
		return &UserOutput{Body: userRecord(updated)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "deleteUser",
		Method:      http.MethodDelete,
		Path:        "/users",
		Tags:        []string{"Users"},
		Summary:     "Delete the caller's account",
		Security:    security,
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct{}) (*MessageOutput, error) {
		ctx, err := auth.Run(ctx, auth.RequireAuthenticated())
		if err != nil {
			return nil, apiError(err)
		}
		caller := identity.FromContext(ctx)

		if err := s.identity.DeleteIdentity(ctx, caller.UID); err != nil {
			return nil, apiError(err)
		}

		reviews, err := s.reviews.CountReviewsByAuthor(ctx, caller.UID)
		if err != nil {
			slog.Warn("count authored reviews failed", "uid", caller.UID, "error", err)
		}
		audit.Event{
			Actor:       caller.UID,
			Action:      "deleteUser",
			Status:      "succeeded",
			Resource:    "users/" + caller.UID,
			Fingerprint: caller.Fingerprint,
			Extra:       []any{slog.Int64("authored_reviews", reviews)},
		}.Info("Audit Log: Identity Deleted")
		s.removePhotos(ctx, caller.UID)

		return &MessageOutput{Body: MessageBody{Message: "User deleted"}}, nil
	})
}

// photoFile returns the "photo" part of form. A missing photo is an error
// only when required.
func (s *Server) photoFile(form *multipart.Form, required bool) (*multipart.FileHeader, error) {
	var fh *multipart.FileHeader
	if form != nil {
		if files := form.File["photo"]; len(files) > 0 {
			fh = files[0]
		}
	}
	if fh == nil {
		if required {
			return nil, identity.InvalidInput("photo file is required")
		}
		return nil, nil
	}
	if fh.Size > s.maxUploadBytes {
		return nil, identity.InvalidInput("photo exceeds %d bytes", s.maxUploadBytes)
	}
	mt, _, err := mime.ParseMediaType(fh.Header.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(mt, "image/") {
		return nil, identity.InvalidInput("photo must be an image")
	}
	if s.photos == nil {
		slog.Warn("photo ignored: no photo store configured")
		return nil, nil
	}
	return fh, nil
}

// uploadPhoto stores the photo under photos/<uid>/ and returns its URL.
func (s *Server) uploadPhoto(ctx context.Context, uid string, fh *multipart.FileHeader) (string, error) {
	f, err := fh.Open()
	if err != nil {
		photoUploads.WithLabelValues("error").Inc()
		return "", err
	}
	defer f.Close()

	contentType := fh.Header.Get("Content-Type")
	key := path.Join(photoPrefix(uid), uuid.NewString()+photoExt(contentType, fh.Filename))
	url, err := s.photos.Put(ctx, key, f, fh.Size, contentType)
	if err != nil {
		photoUploads.WithLabelValues("error").Inc()
		return "", err
	}
	photoUploads.WithLabelValues("ok").Inc()
	slog.Debug("photo stored", "uid", uid, "key", key, "backend", s.photos.Name())
	return url, nil
}

// removePhotos deletes every stored photo of uid. Failures are logged only.
func (s *Server) removePhotos(ctx context.Context, uid string) {
	if s.photos == nil {
		return
	}
	objs, err := s.photos.List(ctx, photoPrefix(uid)+"/")
	if err != nil {
		slog.Warn("list photos of deleted user failed", "uid", uid, "error", err)
		return
	}
	for _, o := range objs {
		if err := s.photos.Delete(ctx, o.Key); err != nil {
			slog.Warn("delete photo failed", "uid", uid, "key", o.Key, "error", err)
		}
	}
}

func photoPrefix(uid string) string {
	return "photos/" + uid
}

func photoExt(contentType, filename string) string {
	if ext := path.Ext(filename); ext != "" && len(ext) <= 5 {
		return strings.ToLower(ext)
	}
	if exts, _ := mime.ExtensionsByType(contentType); len(exts) > 0 {
		return exts[0]
	}
	return ""
}
