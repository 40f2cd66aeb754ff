package www

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"orderlink/config"
	"orderlink/offline"
	"orderlink/store"
)

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("www: encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// handleLogin verifies operator credentials. The first login on a fresh
// install creates the operator account.
func (h *Handlers) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "username and password required")
		return
	}

	exists, err := h.db.OperatorExists()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !exists {
		hash, err := hashPassword(req.Password)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if _, err := h.db.CreateOperator(req.Username, hash, req.Username); err != nil {
			respondError(w, http.StatusInternalServerError, "failed to create operator")
			return
		}
		h.sessions.setUser(w, r, req.Username)
		h.client.Login(req.Username)
		respondJSON(w, http.StatusOK, map[string]bool{"created": true})
		return
	}

	op, err := h.db.GetOperator(req.Username)
	if err != nil || !checkPassword(req.Password, op.PasswordHash) {
		respondError(w, http.StatusUnauthorized, "invalid username or password")
		return
	}

	h.sessions.setUser(w, r, req.Username)
	h.client.Login(req.Username)
	respondJSON(w, http.StatusOK, map[string]bool{"created": false})
}

func (h *Handlers) handleLogout(w http.ResponseWriter, r *http.Request) {
	h.sessions.clear(w, r)
	h.client.Logout()
	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handlers) apiStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.client.Snapshot())
}

// apiSubmitOrder forwards an order to the POS API, falling back to the
// durable offline queue. The response mirrors the submit outcome: 201
// with the order number, or 202 with the local placeholder.
func (h *Handlers) apiSubmitOrder(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil || len(payload) == 0 {
		respondError(w, http.StatusBadRequest, "order payload required")
		return
	}
	if !json.Valid(payload) {
		respondError(w, http.StatusBadRequest, "order payload must be JSON")
		return
	}

	res, err := h.client.SubmitOrder(r.Context(), payload)
	if err != nil {
		var apiErr *offline.APIError
		if errors.As(err, &apiErr) {
			respondError(w, apiErr.Status, apiErr.Body)
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if res.Queued {
		respondJSON(w, http.StatusAccepted, res)
		return
	}
	respondJSON(w, http.StatusCreated, res)
}

func (h *Handlers) apiListNotifications(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"notifications": h.client.Notifications().Records(),
		"unread":        h.client.Notifications().UnreadCount(),
	})
}

func (h *Handlers) apiMarkRead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.client.Notifications().MarkRead(id) {
		respondError(w, http.StatusNotFound, "unknown notification")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handlers) apiMarkAllRead(w http.ResponseWriter, r *http.Request) {
	h.client.Notifications().MarkAllRead()
	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handlers) apiRequestPermission(w http.ResponseWriter, r *http.Request) {
	state := h.client.RequestNotificationPermission()
	respondJSON(w, http.StatusOK, map[string]string{"permission": state.String()})
}

func (h *Handlers) apiListPending(w http.ResponseWriter, r *http.Request) {
	list, err := h.db.ListUnsynced()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string][]*store.PendingOrder{"pending": list})
}

func (h *Handlers) apiListFailed(w http.ResponseWriter, r *http.Request) {
	list, err := h.db.ListSyncFailed()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string][]*store.PendingOrder{"failed": list})
}

func (h *Handlers) apiSyncNow(w http.ResponseWriter, r *http.Request) {
	h.client.SyncNow()
	respondJSON(w, http.StatusAccepted, map[string]bool{"ok": true})
}

func (h *Handlers) apiConnect(w http.ResponseWriter, r *http.Request) {
	if err := h.client.Connect(nil, nil); err != nil {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handlers) apiDisconnect(w http.ResponseWriter, r *http.Request) {
	h.client.Disconnect()
	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// apiDiscardPending removes a failed submission after operator review.
func (h *Handlers) apiDiscardPending(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "bad id")
		return
	}
	rec, err := h.db.GetPendingOrder(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "unknown record")
		return
	}
	if !rec.SyncFailed && !rec.Synced {
		respondError(w, http.StatusConflict, "record is still queued for sync")
		return
	}
	if err := h.db.DeletePendingOrder(id); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type realtimeConfigRequest struct {
	Backend      string   `json:"backend"`
	URL          string   `json:"url"`
	MQTTBroker   string   `json:"mqtt_broker"`
	MQTTPort     int      `json:"mqtt_port"`
	MQTTClientID string   `json:"mqtt_client_id"`
	KafkaBrokers []string `json:"kafka_brokers"`
	KafkaGroupID string   `json:"kafka_group_id"`
}

// apiUpdateRealtime swaps the realtime backend settings, bouncing the
// link around the change.
func (h *Handlers) apiUpdateRealtime(w http.ResponseWriter, r *http.Request) {
	var req realtimeConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "bad request body")
		return
	}
	switch req.Backend {
	case "websocket", "mqtt", "kafka":
	default:
		respondError(w, http.StatusBadRequest, "backend must be websocket, mqtt or kafka")
		return
	}

	wasConnected := h.client.IsConnected()
	if wasConnected {
		h.client.Disconnect()
	}

	err := h.client.Reconfigure(func(cfg *config.Config) {
		cfg.Realtime.Backend = req.Backend
		if req.URL != "" {
			cfg.Realtime.URL = req.URL
		}
		if req.MQTTBroker != "" {
			cfg.Realtime.MQTT.Broker = req.MQTTBroker
		}
		if req.MQTTPort > 0 {
			cfg.Realtime.MQTT.Port = req.MQTTPort
		}
		if req.MQTTClientID != "" {
			cfg.Realtime.MQTT.ClientID = req.MQTTClientID
		}
		if len(req.KafkaBrokers) > 0 {
			cfg.Realtime.Kafka.Brokers = req.KafkaBrokers
		}
		if req.KafkaGroupID != "" {
			cfg.Realtime.Kafka.GroupID = req.KafkaGroupID
		}
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if wasConnected {
		if err := h.client.Connect(nil, nil); err != nil {
			log.Printf("www: reconnect after reconfigure: %v", err)
		}
	}
	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type passwordRequest struct {
	Current string `json:"current"`
	New     string `json:"new"`
}

func (h *Handlers) apiChangePassword(w http.ResponseWriter, r *http.Request) {
	username, _ := h.sessions.getUser(r)
	var req passwordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.New == "" {
		respondError(w, http.StatusBadRequest, "new password required")
		return
	}
	op, err := h.db.GetOperator(username)
	if err != nil || !checkPassword(req.Current, op.PasswordHash) {
		respondError(w, http.StatusUnauthorized, "current password incorrect")
		return
	}
	hash, err := hashPassword(req.New)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if err := h.db.UpdateOperatorPassword(username, hash); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
