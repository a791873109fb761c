// Package api exposes the device registration endpoints. Registering a
// device stamps its push timestamp, which is exactly what the dispatch
// path's race guard checks before trusting a gateway failure report.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
	"github.com/tinywideclouds/go-microservice-base/pkg/response"
	urn "github.com/tinywideclouds/go-platform/pkg/net/v1"

	"github.com/tinywideclouds/go-wakeup-service/pkg/wakeup"
)

type DeviceAPI struct {
	Store  wakeup.AccountStore
	Logger *slog.Logger

	now func() time.Time
}

func NewDeviceAPI(store wakeup.AccountStore, logger *slog.Logger) *DeviceAPI {
	return &DeviceAPI{
		Store:  store,
		Logger: logger,
		now:    time.Now,
	}
}

type RegisterDeviceRequest struct {
	DeviceID int64  `json:"device_id"`
	Platform string `json:"platform"`
	Token    string `json:"token"`
}

// RegisterDevice sets (or replaces) a device's push token and records the
// registration time. Creating the account on first registration keeps the
// endpoint idempotent for fresh installs.
func (api *DeviceAPI) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := middleware.GetUserHandleFromContext(ctx)
	if !ok {
		response.WriteJSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	accountURN, err := urn.Parse(userID)
	if err != nil {
		response.WriteJSONError(w, http.StatusBadRequest, "invalid account identifier")
		return
	}

	var req RegisterDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.WriteJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.DeviceID <= 0 || req.Token == "" || !wakeup.ValidPlatform(req.Platform) {
		response.WriteJSONError(w, http.StatusBadRequest, "missing or invalid device fields")
		return
	}

	account, err := api.Store.Lookup(ctx, accountURN)
	if errors.Is(err, wakeup.ErrAccountNotFound) {
		account = &wakeup.Account{ID: accountURN}
	} else if err != nil {
		api.Logger.Error("failed to look up account for registration", "err", err)
		response.WriteJSONError(w, http.StatusInternalServerError, "storage failed")
		return
	}

	device := account.Device(req.DeviceID)
	if device == nil {
		account.Devices = append(account.Devices, wakeup.Device{ID: req.DeviceID})
		device = account.Device(req.DeviceID)
	}
	device.Platform = req.Platform
	device.PushToken = req.Token
	device.LastPushMillis = api.now().UnixMilli()

	if err := api.Store.Persist(ctx, account); err != nil {
		api.Logger.Error("failed to persist registration", "err", err)
		response.WriteJSONError(w, http.StatusInternalServerError, "storage failed")
		return
	}
	api.Logger.Info("Device registered", "account", accountURN.String(), "device_id", req.DeviceID, "platform", req.Platform)

	w.WriteHeader(http.StatusNoContent)
}

type UnregisterDeviceRequest struct {
	DeviceID int64 `json:"device_id"`
}

// UnregisterDevice clears a device's push token. Idempotent: an unknown
// account or device is already unregistered.
func (api *DeviceAPI) UnregisterDevice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := middleware.GetUserHandleFromContext(ctx)
	if !ok {
		response.WriteJSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	accountURN, err := urn.Parse(userID)
	if err != nil {
		response.WriteJSONError(w, http.StatusBadRequest, "invalid account identifier")
		return
	}

	var req UnregisterDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.WriteJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}

	account, err := api.Store.Lookup(ctx, accountURN)
	if errors.Is(err, wakeup.ErrAccountNotFound) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		api.Logger.Error("failed to look up account for unregistration", "err", err)
		response.WriteJSONError(w, http.StatusInternalServerError, "storage failed")
		return
	}

	device := account.Device(req.DeviceID)
	if device == nil || device.PushToken == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	device.PushToken = ""
	if err := api.Store.Persist(ctx, account); err != nil {
		// Log but don't fail hard; idempotency is preferred for unregister.
		api.Logger.Warn("failed to persist unregistration", "err", err)
	}

	w.WriteHeader(http.StatusNoContent)
}
