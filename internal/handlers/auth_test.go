package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/zyansaber/dispatching-3-sub000/internal/auth"
	"github.com/zyansaber/dispatching-3-sub000/internal/db"
	"github.com/zyansaber/dispatching-3-sub000/internal/middleware"
	"github.com/zyansaber/dispatching-3-sub000/internal/models"
)

// MockUserStore is a mock implementation of db.UserStore
type MockUserStore struct {
	mock.Mock
}

func (m *MockUserStore) InsertUser(ctx context.Context, user models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserStore) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserStore) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserStore) UpdateUser(ctx context.Context, id string, user models.User) error {
	args := m.Called(ctx, id, user)
	return args.Error(0)
}

func (m *MockUserStore) UpdateLastLogin(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func newAuthService(t *testing.T) *auth.Service {
	t.Helper()
	service, err := auth.NewService()
	require.NoError(t, err)
	return service
}

func withClaims(req *http.Request, claims *models.Claims) *http.Request {
	ctx := context.WithValue(req.Context(), middleware.UserContextKey, claims)
	return req.WithContext(ctx)
}

func jsonBody(t *testing.T, v any) *bytes.Buffer {
	t.Helper()
	body, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewBuffer(body)
}

func TestAuthHandler_Login(t *testing.T) {
	authService := newAuthService(t)

	t.Run("successful login", func(t *testing.T) {
		mockStore := new(MockUserStore)
		handler := NewAuthHandler(authService, db.UserStore(mockStore))

		passwordHash, err := authService.HashPassword("password123")
		require.NoError(t, err)
		user := &models.User{
			ID:           primitive.NewObjectID(),
			Username:     "yard.dispatcher",
			Email:        "yard.dispatcher@example.com",
			PasswordHash: passwordHash,
			Role:         models.RoleDispatcher,
			IsActive:     true,
		}

		mockStore.On("FindUserByUsername", mock.Anything, "yard.dispatcher").Return(user, nil)
		mockStore.On("UpdateLastLogin", mock.Anything, user.ID.Hex()).Return(nil)

		req := httptest.NewRequest("POST", "/api/auth/login", jsonBody(t, models.LoginRequest{
			Username: "yard.dispatcher",
			Password: "password123",
		}))
		w := httptest.NewRecorder()

		handler.Login(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var response models.LoginResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.NotEmpty(t, response.Token)
		assert.NotEmpty(t, response.RefreshToken)
		assert.Equal(t, user.Username, response.User.Username)

		mockStore.AssertExpectations(t)
	})

	t.Run("invalid credentials", func(t *testing.T) {
		mockStore := new(MockUserStore)
		handler := NewAuthHandler(authService, db.UserStore(mockStore))

		mockStore.On("FindUserByUsername", mock.Anything, "yard.dispatcher").Return(nil, assert.AnError)

		req := httptest.NewRequest("POST", "/api/auth/login", jsonBody(t, models.LoginRequest{
			Username: "yard.dispatcher",
			Password: "wrongpassword",
		}))
		w := httptest.NewRecorder()

		handler.Login(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		mockStore.AssertExpectations(t)
	})

	t.Run("inactive user", func(t *testing.T) {
		mockStore := new(MockUserStore)
		handler := NewAuthHandler(authService, db.UserStore(mockStore))

		passwordHash, err := authService.HashPassword("password123")
		require.NoError(t, err)
		user := &models.User{
			ID:           primitive.NewObjectID(),
			Username:     "yard.dispatcher",
			PasswordHash: passwordHash,
			IsActive:     false,
		}

		mockStore.On("FindUserByUsername", mock.Anything, "yard.dispatcher").Return(user, nil)

		req := httptest.NewRequest("POST", "/api/auth/login", jsonBody(t, models.LoginRequest{
			Username: "yard.dispatcher",
			Password: "password123",
		}))
		w := httptest.NewRecorder()

		handler.Login(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		mockStore.AssertExpectations(t)
	})
}

func TestAuthHandler_Register(t *testing.T) {
	authService := newAuthService(t)

	t.Run("anonymous registration defaults to viewer", func(t *testing.T) {
		mockStore := new(MockUserStore)
		handler := NewAuthHandler(authService, db.UserStore(mockStore))

		mockStore.On("FindUserByUsername", mock.Anything, "newuser").Return(nil, assert.AnError)
		mockStore.On("FindUserByEmail", mock.Anything, "newuser@example.com").Return(nil, assert.AnError)
		mockStore.On("InsertUser", mock.Anything, mock.MatchedBy(func(u models.User) bool {
			return u.Role == models.RoleViewer
		})).Return(nil)

		req := httptest.NewRequest("POST", "/api/auth/register", jsonBody(t, models.RegisterRequest{
			Username:  "newuser",
			Email:     "newuser@example.com",
			Password:  "password123",
			FirstName: "New",
			LastName:  "User",
		}))
		w := httptest.NewRecorder()

		handler.Register(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)

		var response models.LoginResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.NotEmpty(t, response.Token)
		assert.Equal(t, models.RoleViewer, response.User.Role)

		mockStore.AssertExpectations(t)
	})

	t.Run("elevated role requires admin caller", func(t *testing.T) {
		mockStore := new(MockUserStore)
		handler := NewAuthHandler(authService, db.UserStore(mockStore))

		req := httptest.NewRequest("POST", "/api/auth/register", jsonBody(t, models.RegisterRequest{
			Username: "newdispatcher",
			Email:    "newdispatcher@example.com",
			Password: "password123",
			Role:     models.RoleDispatcher,
		}))
		w := httptest.NewRecorder()

		handler.Register(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
		mockStore.AssertNotCalled(t, "InsertUser", mock.Anything, mock.Anything)
	})

	t.Run("admin can register a dispatcher", func(t *testing.T) {
		mockStore := new(MockUserStore)
		handler := NewAuthHandler(authService, db.UserStore(mockStore))

		mockStore.On("FindUserByUsername", mock.Anything, "newdispatcher").Return(nil, assert.AnError)
		mockStore.On("FindUserByEmail", mock.Anything, "newdispatcher@example.com").Return(nil, assert.AnError)
		mockStore.On("InsertUser", mock.Anything, mock.MatchedBy(func(u models.User) bool {
			return u.Role == models.RoleDispatcher
		})).Return(nil)

		req := httptest.NewRequest("POST", "/api/auth/register", jsonBody(t, models.RegisterRequest{
			Username: "newdispatcher",
			Email:    "newdispatcher@example.com",
			Password: "password123",
			Role:     models.RoleDispatcher,
		}))
		req = withClaims(req, &models.Claims{
			UserID:   primitive.NewObjectID().Hex(),
			Username: "ops.admin",
			Role:     models.RoleAdmin,
		})
		w := httptest.NewRecorder()

		handler.Register(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)
		mockStore.AssertExpectations(t)
	})

	t.Run("username already exists", func(t *testing.T) {
		mockStore := new(MockUserStore)
		handler := NewAuthHandler(authService, db.UserStore(mockStore))

		mockStore.On("FindUserByUsername", mock.Anything, "existinguser").
			Return(&models.User{Username: "existinguser"}, nil)

		req := httptest.NewRequest("POST", "/api/auth/register", jsonBody(t, models.RegisterRequest{
			Username: "existinguser",
			Email:    "newuser@example.com",
			Password: "password123",
		}))
		w := httptest.NewRecorder()

		handler.Register(w, req)

		assert.Equal(t, http.StatusConflict, w.Code)
		mockStore.AssertExpectations(t)
	})

	t.Run("invalid role", func(t *testing.T) {
		mockStore := new(MockUserStore)
		handler := NewAuthHandler(authService, db.UserStore(mockStore))

		req := httptest.NewRequest("POST", "/api/auth/register", jsonBody(t, models.RegisterRequest{
			Username: "newuser",
			Email:    "newuser@example.com",
			Password: "password123",
			Role:     "invalid_role",
		}))
		w := httptest.NewRecorder()

		handler.Register(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestAuthHandler_GetProfile(t *testing.T) {
	authService := newAuthService(t)

	t.Run("profile includes permissions", func(t *testing.T) {
		mockStore := new(MockUserStore)
		handler := NewAuthHandler(authService, db.UserStore(mockStore))

		userID := primitive.NewObjectID()
		user := &models.User{
			ID:       userID,
			Username: "yard.dispatcher",
			Email:    "yard.dispatcher@example.com",
			Role:     models.RoleDispatcher,
		}

		mockStore.On("FindUserByID", mock.Anything, userID.Hex()).Return(user, nil)

		req := httptest.NewRequest("GET", "/api/auth/profile", nil)
		req = withClaims(req, &models.Claims{
			UserID:   userID.Hex(),
			Username: "yard.dispatcher",
			Role:     models.RoleDispatcher,
		})
		w := httptest.NewRecorder()

		handler.GetProfile(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var response profileResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, user.Username, response.User.Username)
		assert.Contains(t, response.Permissions, models.PermissionEditRecords)
		assert.Contains(t, response.Permissions, models.PermissionIngestFeed)
		assert.NotContains(t, response.Permissions, models.PermissionManageUsers)

		mockStore.AssertExpectations(t)
	})

	t.Run("user not found", func(t *testing.T) {
		mockStore := new(MockUserStore)
		handler := NewAuthHandler(authService, db.UserStore(mockStore))

		userID := primitive.NewObjectID()
		mockStore.On("FindUserByID", mock.Anything, userID.Hex()).Return(nil, assert.AnError)

		req := httptest.NewRequest("GET", "/api/auth/profile", nil)
		req = withClaims(req, &models.Claims{UserID: userID.Hex(), Username: "ghost", Role: models.RoleViewer})
		w := httptest.NewRecorder()

		handler.GetProfile(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
		mockStore.AssertExpectations(t)
	})

	t.Run("missing claims", func(t *testing.T) {
		mockStore := new(MockUserStore)
		handler := NewAuthHandler(authService, db.UserStore(mockStore))

		req := httptest.NewRequest("GET", "/api/auth/profile", nil)
		w := httptest.NewRecorder()

		handler.GetProfile(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestAuthHandler_UpdateProfile(t *testing.T) {
	authService := newAuthService(t)

	t.Run("successful profile update", func(t *testing.T) {
		mockStore := new(MockUserStore)
		handler := NewAuthHandler(authService, db.UserStore(mockStore))

		userID := primitive.NewObjectID()
		user := &models.User{
			ID:        userID,
			Username:  "yard.dispatcher",
			Email:     "yard.dispatcher@example.com",
			FirstName: "Test",
			LastName:  "Dispatcher",
			Role:      models.RoleDispatcher,
		}

		mockStore.On("FindUserByID", mock.Anything, userID.Hex()).Return(user, nil)
		mockStore.On("UpdateUser", mock.Anything, userID.Hex(), mock.AnythingOfType("models.User")).Return(nil)

		req := httptest.NewRequest("PUT", "/api/auth/profile", jsonBody(t, map[string]string{
			"first_name": "Updated",
			"last_name":  "Name",
		}))
		req = withClaims(req, &models.Claims{
			UserID:   userID.Hex(),
			Username: "yard.dispatcher",
			Role:     models.RoleDispatcher,
		})
		w := httptest.NewRecorder()

		handler.UpdateProfile(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		mockStore.AssertExpectations(t)
	})
}

func TestAuthHandler_ChangePassword(t *testing.T) {
	authService := newAuthService(t)

	t.Run("successful password change", func(t *testing.T) {
		mockStore := new(MockUserStore)
		handler := NewAuthHandler(authService, db.UserStore(mockStore))

		userID := primitive.NewObjectID()
		passwordHash, err := authService.HashPassword("oldpassword")
		require.NoError(t, err)
		user := &models.User{
			ID:           userID,
			Username:     "yard.dispatcher",
			PasswordHash: passwordHash,
		}

		mockStore.On("FindUserByID", mock.Anything, userID.Hex()).Return(user, nil)
		mockStore.On("UpdateUser", mock.Anything, userID.Hex(), mock.AnythingOfType("models.User")).Return(nil)

		req := httptest.NewRequest("POST", "/api/auth/change-password", jsonBody(t, map[string]string{
			"current_password": "oldpassword",
			"new_password":     "newpassword123",
		}))
		req = withClaims(req, &models.Claims{
			UserID:   userID.Hex(),
			Username: "yard.dispatcher",
			Role:     models.RoleDispatcher,
		})
		w := httptest.NewRecorder()

		handler.ChangePassword(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		mockStore.AssertExpectations(t)
	})

	t.Run("incorrect current password", func(t *testing.T) {
		mockStore := new(MockUserStore)
		handler := NewAuthHandler(authService, db.UserStore(mockStore))

		userID := primitive.NewObjectID()
		passwordHash, err := authService.HashPassword("oldpassword")
		require.NoError(t, err)
		user := &models.User{
			ID:           userID,
			Username:     "yard.dispatcher",
			PasswordHash: passwordHash,
		}

		mockStore.On("FindUserByID", mock.Anything, userID.Hex()).Return(user, nil)

		req := httptest.NewRequest("POST", "/api/auth/change-password", jsonBody(t, map[string]string{
			"current_password": "wrongpassword",
			"new_password":     "newpassword123",
		}))
		req = withClaims(req, &models.Claims{
			UserID:   userID.Hex(),
			Username: "yard.dispatcher",
			Role:     models.RoleDispatcher,
		})
		w := httptest.NewRecorder()

		handler.ChangePassword(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		mockStore.AssertExpectations(t)
	})
}
