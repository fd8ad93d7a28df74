package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/etelemed/etelemed-api/api"
	"github.com/etelemed/etelemed-api/config"
	"github.com/etelemed/etelemed-api/databases"
	"github.com/etelemed/etelemed-api/models"
)

var notificationUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// NotificationHub tracks the live notification sockets of logged-in portal
// users (userId -> conn). One connection per user; a reconnect replaces the
// old socket.
type NotificationHub struct {
	clients map[string]*websocket.Conn
	mutex   sync.Mutex
}

// NewNotificationHub returns an empty hub.
func NewNotificationHub() *NotificationHub {
	return &NotificationHub{clients: make(map[string]*websocket.Conn)}
}

// ServeWS upgrades the request and registers the user for in-app pushes.
func (h *NotificationHub) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		http.Error(w, "userId is required", http.StatusBadRequest)
		return
	}

	conn, err := notificationUpgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.S().Errorw("websocket upgrade failed", "error", err)
		return
	}

	h.mutex.Lock()
	if old, exists := h.clients[userID]; exists {
		old.Close()
	}
	h.clients[userID] = conn
	h.mutex.Unlock()
	zap.S().Debugf("user %v connected to /ws/notifications", userID)

	// Drain the connection until the client goes away.
	for {
		if _, _, err := conn.NextReader(); err != nil {
			break
		}
	}
	conn.Close()

	h.mutex.Lock()
	if h.clients[userID] == conn {
		delete(h.clients, userID)
	}
	h.mutex.Unlock()
	zap.S().Debugf("user %v disconnected from /ws/notifications", userID)
}

// Push delivers a notification to the user's live socket, if any. A write
// failure drops the connection; the notification is already persisted, so
// the portal picks it up on its next fetch.
func (h *NotificationHub) Push(userID string, notification models.Notification) {
	h.mutex.Lock()
	conn, exists := h.clients[userID]
	h.mutex.Unlock()
	if !exists {
		return
	}

	err := conn.WriteJSON(map[string]interface{}{
		"event": "new_notification",
		"data":  notification,
	})
	if err != nil {
		zap.S().Warnw("failed to push notification", "error", err, "userId", userID)
		h.mutex.Lock()
		if h.clients[userID] == conn {
			delete(h.clients, userID)
		}
		h.mutex.Unlock()
		conn.Close()
	}
}

// ConnectedCount reports how many users hold a live notification socket.
func (h *NotificationHub) ConnectedCount() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.clients)
}

// NotificationAPI exported for testing purposes
type NotificationAPI struct {
	DB databases.NotificationDatabase
}

// GetUserNotificationsHandler returns a user's notifications, newest first.
// Pass unread=true to filter to unread only.
func (n NotificationAPI) GetUserNotificationsHandler(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]

	Limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		zap.S().Warnf(fmt.Sprintf("limit not set, using default of %v, err: %v", Limit|10, err))
		Limit = 20
	}
	Page = getPage(Page, r)

	filter := bson.M{"userID": userID}
	if unread := r.URL.Query().Get("unread"); unread != "" {
		unreadB, err := strconv.ParseBool(unread)
		if err != nil {
			config.ErrorStatus("invalid unread value", http.StatusBadRequest, w, err)
			return
		}
		if unreadB {
			filter["read"] = false
		}
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	dbResp, err := n.DB.Find(ctx, filter, databases.PaginatedOpts(Limit, Page, "createdAt", true))
	if err != nil {
		config.ErrorStatus("failed to get notifications", http.StatusNotFound, w, err)
		return
	}
	if len(dbResp) == 0 {
		dbResp = []models.Notification{}
	}
	b, err := json.Marshal(dbResp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// MarkNotificationAsReadHandler marks one notification as read.
func (n NotificationAPI) MarkNotificationAsReadHandler(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]
	notificationID := mux.Vars(r)["notification_id"]

	nID, err := primitive.ObjectIDFromHex(notificationID)
	if err != nil {
		config.ErrorStatus("invalid notification ID", http.StatusBadRequest, w, err)
		return
	}

	updated, err := n.DB.UpdateOne(context.Background(), bson.M{"_id": nID, "userID": userID}, bson.M{"$set": bson.M{
		"read": true,
	}})
	if err != nil {
		config.ErrorStatus("failed to mark notification as read", http.StatusNotFound, w, err)
		return
	}

	b, err := json.Marshal(updated)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// DeleteNotificationHandler deletes one notification.
func (n NotificationAPI) DeleteNotificationHandler(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]
	notificationID := mux.Vars(r)["notification_id"]

	nID, err := primitive.ObjectIDFromHex(notificationID)
	if err != nil {
		config.ErrorStatus("invalid notification ID", http.StatusBadRequest, w, err)
		return
	}

	err = n.DB.DeleteOne(context.Background(), bson.M{"_id": nID, "userID": userID})
	if err != nil {
		config.ErrorStatus("failed to delete notification", http.StatusInternalServerError, w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "Notification deleted successfully",
	})
}

// DispatchPendingEmails sends every PENDING email notification and marks it
// SENT or FAILED. Invoked by the scheduler; returns how many rows were
// processed.
func DispatchPendingEmails(db databases.NotificationDatabase, send func(toEmail, toName, subject, htmlContent, plainText string) error) int {
	pending, err := db.Find(context.Background(), bson.M{
		"channel": models.ChannelEmail,
		"status":  models.NotificationPending,
	})
	if err != nil {
		zap.S().Errorw("failed to fetch pending email notifications", "error", err)
		return 0
	}

	for _, notification := range pending {
		status := models.NotificationSent
		html := renderNotificationEmail(notification)
		if err := send(notification.Email, "", notification.Title, html, notification.Message); err != nil {
			status = models.NotificationFailed
		}
		_, err := db.UpdateOne(context.Background(), bson.M{"_id": notification.ID}, bson.M{"$set": bson.M{
			"status": status,
			"sentAt": primitive.NewDateTimeFromTime(time.Now()),
		}})
		if err != nil {
			zap.S().Errorw("failed to update notification status", "error", err, "notificationId", notification.ID.Hex())
		}
	}
	return len(pending)
}
