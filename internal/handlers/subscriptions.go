package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/viewtube/backend/internal/apierr"
	"github.com/viewtube/backend/internal/repositories"
)

// SubscriptionHandler implements channel subscription endpoints.
type SubscriptionHandler struct {
	Subscriptions repositories.SubscriptionRepository
}

// Toggle handles POST /api/v1/subscriptions/c/{channelId}.
func (h SubscriptionHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	channelID := chi.URLParam(r, "channelId")
	subscriberID := currentUserID(r)
	if channelID == subscriberID {
		respondError(ctx, w, apierr.BadRequest("cannot subscribe to your own channel"))
		return
	}

	subscribed, err := h.Subscriptions.Toggle(ctx, subscriberID, channelID)
	if err != nil {
		respondError(ctx, w, apierr.Internal("failed to toggle subscription", err))
		return
	}

	message := "unsubscribed"
	if subscribed {
		message = "subscribed"
	}
	respond(ctx, w, http.StatusOK, message, map[string]bool{"subscribed": subscribed})
}

// Subscribers handles GET /api/v1/subscriptions/c/{channelId}.
func (h SubscriptionHandler) Subscribers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	subscribers, err := h.Subscriptions.Subscribers(ctx, chi.URLParam(r, "channelId"), parsePage(r))
	if err != nil {
		respondError(ctx, w, apierr.Internal("failed to list subscribers", err))
		return
	}

	respond(ctx, w, http.StatusOK, "channel subscribers", subscribers)
}

// Subscribed handles GET /api/v1/subscriptions/u/{subscriberId}.
func (h SubscriptionHandler) Subscribed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	channels, err := h.Subscriptions.SubscribedChannels(ctx, chi.URLParam(r, "subscriberId"), parsePage(r))
	if err != nil {
		respondError(ctx, w, apierr.Internal("failed to list subscribed channels", err))
		return
	}

	respond(ctx, w, http.StatusOK, "subscribed channels", channels)
}
