package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"aimarket/internal/models"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB, PreferSimpleProtocol: true}), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	return db, mock
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
}

func requestWithClaims(c Claims) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	return r.WithContext(WithClaims(r.Context(), c))
}

func TestRequireRole_Allowed(t *testing.T) {
	h := RequireRole(models.RoleStore, models.RoleAdmin)(okHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, requestWithClaims(Claims{Subject: "u1", Role: models.RoleStore}))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestRequireRole_Forbidden(t *testing.T) {
	h := RequireRole(models.RoleAdmin)(okHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, requestWithClaims(Claims{Subject: "u1", Role: models.RoleCustomer}))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequireRole_NoClaims(t *testing.T) {
	h := RequireRole(models.RoleCustomer)(okHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

// The gate is a pure predicate: serving the same request twice yields the
// same result both times.
func TestRequireRole_Idempotent(t *testing.T) {
	h := RequireRole(models.RoleStore)(okHandler())

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, requestWithClaims(Claims{Subject: "u1", Role: models.RoleStore}))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ok", rec.Body.String())
	}
}

func TestJWTAuth_ValidTokenAndSession(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	db, mock := newMockDB(t)

	tok, err := Sign("u1", models.RoleCustomer, "jti-1")
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT \* FROM "sessions"`).
		WillReturnRows(sqlmock.NewRows([]string{"jti", "user_id", "expires_at", "revoked_at", "created_at"}).
			AddRow("jti-1", "u1", time.Now().Add(time.Hour), nil, time.Now()))

	h := JWTAuth(db)(okHandler())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJWTAuth_RevokedSession(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	db, mock := newMockDB(t)

	tok, err := Sign("u1", models.RoleCustomer, "jti-1")
	require.NoError(t, err)

	now := time.Now()
	mock.ExpectQuery(`SELECT \* FROM "sessions"`).
		WillReturnRows(sqlmock.NewRows([]string{"jti", "user_id", "expires_at", "revoked_at", "created_at"}).
			AddRow("jti-1", "u1", now.Add(time.Hour), now, now))

	h := JWTAuth(db)(okHandler())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTAuth_MissingHeader(t *testing.T) {
	db, _ := newMockDB(t)
	h := JWTAuth(db)(okHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireVerified(t *testing.T) {
	tests := []struct {
		name     string
		verified bool
		want     int
	}{
		{"verified passes", true, http.StatusOK},
		{"unverified rejected", false, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			mock.ExpectQuery(`SELECT \* FROM "profiles"`).
				WillReturnRows(sqlmock.NewRows([]string{"id", "email", "role", "email_verified"}).
					AddRow("u1", "a@b.com", models.RoleCustomer, tt.verified))

			h := RequireVerified(db)(okHandler())
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, requestWithClaims(Claims{Subject: "u1", Role: models.RoleCustomer}))
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}
