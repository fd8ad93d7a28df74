package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/etelemed/etelemed-api/api"
	"github.com/etelemed/etelemed-api/config"
	"github.com/etelemed/etelemed-api/databases"
	"github.com/etelemed/etelemed-api/models"
)

// User exported for testing purposes
type User struct {
	DB databases.UserDatabase
}

type createUserRequest struct {
	Email          string `json:"email"`
	Password       string `json:"password"`
	Role           string `json:"role"`
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	Phone          string `json:"phone"`
	DateOfBirth    string `json:"dateOfBirth"`
	Address        string `json:"address"`
	Specialization string `json:"specialization"`
	LicenseNumber  string `json:"licenseNumber"`
}

// UserCreateHandler registers a new patient or doctor account. Doctor
// accounts require a license number; admin accounts cannot be created over
// the API.
func (u User) UserCreateHandler(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		config.ErrorStatus("a valid email is required", http.StatusBadRequest, w, fmt.Errorf("invalid email %q", req.Email))
		return
	}
	if len(req.Password) < 8 {
		config.ErrorStatus("password must be at least 8 characters", http.StatusBadRequest, w, fmt.Errorf("password too short"))
		return
	}
	if req.Role != models.RolePatient && req.Role != models.RoleDoctor {
		config.ErrorStatus("role must be PATIENT or DOCTOR", http.StatusBadRequest, w, fmt.Errorf("invalid role %q", req.Role))
		return
	}
	if req.Role == models.RoleDoctor && req.LicenseNumber == "" {
		config.ErrorStatus("doctors must provide a license number", http.StatusBadRequest, w, fmt.Errorf("missing license number"))
		return
	}

	_, err := u.DB.FindOne(context.Background(), bson.M{"email": req.Email})
	if err == nil {
		config.ErrorStatus("an account with that email already exists", http.StatusConflict, w, fmt.Errorf("duplicate email"))
		return
	}
	if err != mongo.ErrNoDocuments {
		config.ErrorStatus("failed to check for existing user", http.StatusInternalServerError, w, err)
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		config.ErrorStatus("failed to hash password", http.StatusInternalServerError, w, err)
		return
	}

	user := models.User{
		ID:             primitive.NewObjectID(),
		Email:          req.Email,
		Password:       string(hashed),
		Role:           req.Role,
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Phone:          req.Phone,
		DateOfBirth:    req.DateOfBirth,
		Address:        req.Address,
		Specialization: req.Specialization,
		LicenseNumber:  req.LicenseNumber,
		Active:         true,
		CreatedAt:      primitive.NewDateTimeFromTime(time.Now()),
		UpdatedAt:      primitive.NewDateTimeFromTime(time.Now()),
	}
	_, err = u.DB.InsertOne(context.Background(), user)
	if err != nil {
		config.ErrorStatus("failed to create user", http.StatusInternalServerError, w, err)
		return
	}
	zap.S().Debugf("user %v registered with role %v", user.ID.Hex(), user.Role)

	b, err := json.Marshal(user)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	w.Write(b)
}

// UserCheckEmailHandler reports whether an account exists for an email.
// Used by the portals to route sign-up vs sign-in.
func (u User) UserCheckEmailHandler(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	email := strings.ToLower(strings.TrimSpace(body.Email))

	exists := true
	user, err := u.DB.FindOne(context.Background(), bson.M{"email": email})
	if err == mongo.ErrNoDocuments {
		exists = false
	} else if err != nil {
		config.ErrorStatus("failed to check for user", http.StatusInternalServerError, w, err)
		return
	}

	resp := map[string]interface{}{"exists": exists}
	if exists {
		resp["role"] = user.Role
	}
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}

// UserHandler returns a user by ID
func (u User) UserHandler(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]

	uID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}
	dbResp, err := u.DB.FindOne(context.Background(), bson.M{"_id": uID})
	if err != nil {
		config.ErrorStatus("failed to get user by ID", http.StatusNotFound, w, err)
		return
	}

	b, err := json.Marshal(dbResp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// UpdateUserByIDHandler updates profile fields on a user. Email, password and
// role cannot be changed through this endpoint.
func (u User) UpdateUserByIDHandler(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]

	var requestBody map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&requestBody); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	uID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		config.ErrorStatus("invalid user ID", http.StatusBadRequest, w, err)
		return
	}

	for _, locked := range []string{"_id", "email", "password", "role", "createdAt"} {
		delete(requestBody, locked)
	}
	requestBody["updatedAt"] = primitive.NewDateTimeFromTime(time.Now())

	updated, err := u.DB.UpdateOne(context.Background(), bson.M{"_id": uID}, bson.M{"$set": requestBody})
	if err != nil {
		config.ErrorStatus("failed to update user", http.StatusInternalServerError, w, err)
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

// DoctorsHandler lists active doctors, optionally filtered by
// specialization.
func (u User) DoctorsHandler(w http.ResponseWriter, r *http.Request) {
	Limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		zap.S().Warnf(fmt.Sprintf("limit not set, using default of %v, err: %v", Limit|10, err))
		Limit = 20
	}
	Page = getPage(Page, r)

	filter := bson.M{"role": models.RoleDoctor, "active": true}
	if specialization := r.URL.Query().Get("specialization"); specialization != "" {
		filter["specialization"] = specialization
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	dbResp, err := u.DB.Find(ctx, filter, databases.PaginatedOpts(Limit, Page, "lastName", false))
	if err != nil {
		config.ErrorStatus("failed to get doctors", http.StatusNotFound, w, err)
		return
	}
	if len(dbResp) == 0 {
		dbResp = []models.User{}
	}
	b, err := json.Marshal(dbResp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// DeactivateUserHandler flips a user to inactive. Inactive doctors stop
// showing up in the directory; inactive users cannot authenticate.
func (u User) DeactivateUserHandler(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]

	uID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		config.ErrorStatus("invalid user ID", http.StatusBadRequest, w, err)
		return
	}

	updated, err := u.DB.UpdateOne(context.Background(), bson.M{"_id": uID}, bson.M{"$set": bson.M{
		"active":    false,
		"updatedAt": primitive.NewDateTimeFromTime(time.Now()),
	}})
	if err != nil {
		config.ErrorStatus("failed to deactivate user", http.StatusInternalServerError, w, err)
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
