package creatorDonations

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"creatorfund/internal/http_server/middleware/authz"
	"creatorfund/internal/http_server/views"
	resp "creatorfund/internal/lib/api/response"
	sl "creatorfund/internal/lib/logger"
	"creatorfund/internal/models"
	"creatorfund/internal/storage"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type Store interface {
	CreatorByID(ctx context.Context, id int64) (models.Creator, error)
	DonationsByCreator(ctx context.Context, creatorID int64) ([]models.Donation, error)
}

type Response struct {
	resp.Response
	Donations []views.DonationView `json:"donations"`
}

// OwnerOf resolves the user id owning the creator page a request targets,
// for use with authz.RequireOwnerOrRole.
func OwnerOf(store Store) authz.OwnerResolver {
	return func(ctx context.Context, r *http.Request) (int64, error) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			return 0, err
		}

		creator, err := store.CreatorByID(ctx, id)
		if err != nil {
			return 0, err
		}

		return creator.UserID, nil
	}
}

// New lists the donations a creator has received, newest first. Only the
// owning creator or an admin gets through the route guard.
func New(log *slog.Logger, store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.creatorDonations.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		creatorID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("invalid creator id"))

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if _, err := store.CreatorByID(ctx, creatorID); err != nil {
			if errors.Is(err, storage.ErrCreatorNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, resp.Error("creator not found"))

				return
			}

			log.Error("failed to load creator", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("internal error"))

			return
		}

		donations, err := store.DonationsByCreator(ctx, creatorID)
		if err != nil {
			log.Error("failed to list donations", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("internal error"))

			return
		}

		out := make([]views.DonationView, 0, len(donations))
		for _, d := range donations {
			out = append(out, views.FromDonation(d))
		}

		render.JSON(w, r, Response{
			Response:  resp.OK(),
			Donations: out,
		})
	}
}
