package shared

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/stockgate/internal/policy"
)

func newManager(t *testing.T) (*SessionManager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewSessionManager(client, "sg_session", "secret", time.Hour, false), mr
}

func roundTrip(t *testing.T, sm *SessionManager, sess *Session) *Session {
	t.Helper()
	ctx := context.Background()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	res := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, res, req, sess))

	next := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range res.Result().Cookies() {
		next.AddCookie(c)
	}
	loaded, err := sm.Load(ctx, next)
	require.NoError(t, err)
	return loaded
}

func TestSessionPersistsIdentity(t *testing.T) {
	sm, _ := newManager(t)
	sess, err := sm.Load(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	require.False(t, sess.Authenticated())
	require.Equal(t, policy.RoleNone, sess.Role())

	sess.SignIn(7, "ana", policy.RoleInventoryManager, "tok-7")
	sess.Set("k", "v")
	loaded := roundTrip(t, sm, sess)

	require.Equal(t, sess.ID, loaded.ID)
	require.True(t, loaded.Authenticated())
	require.Equal(t, int64(7), loaded.User())
	require.Equal(t, "7", loaded.UserKey())
	require.Equal(t, "ana", loaded.Username())
	require.Equal(t, policy.RoleInventoryManager, loaded.Role())
	require.Equal(t, "tok-7", loaded.Token())
	require.Equal(t, "v", loaded.Get("k"))
}

func TestSessionDestroyClearsStore(t *testing.T) {
	sm, mr := newManager(t)
	sess, err := sm.Load(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	sess.SignIn(1, "root", policy.RoleAdmin, "tok")
	loaded := roundTrip(t, sm, sess)
	require.True(t, mr.Exists(sm.redisKey(loaded.ID)))

	sm.Destroy(loaded)
	res := httptest.NewRecorder()
	require.NoError(t, sm.Commit(context.Background(), res, httptest.NewRequest(http.MethodGet, "/", nil), loaded))
	require.False(t, mr.Exists(sm.redisKey(loaded.ID)))
	cookies := res.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, -1, cookies[0].MaxAge)
}

func TestSessionUnknownCookieStartsFresh(t *testing.T) {
	sm, _ := newManager(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: sm.CookieName(), Value: "forged"})
	sess, err := sm.Load(context.Background(), req)
	require.NoError(t, err)
	require.NotEqual(t, "forged", sess.ID)
	require.False(t, sess.Authenticated())
}

func TestSessionRenewRotatesID(t *testing.T) {
	sm, mr := newManager(t)
	sess, err := sm.Load(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	loaded := roundTrip(t, sm, sess)
	oldID := loaded.ID

	require.NoError(t, sm.Renew(context.Background(), loaded))
	require.NotEqual(t, oldID, loaded.ID)
	require.False(t, mr.Exists(sm.redisKey(oldID)))
}

func TestCSRFTokenLifecycle(t *testing.T) {
	sm, _ := newManager(t)
	csrf := NewCSRFManager("csrf")
	sess, err := sm.Load(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)

	require.ErrorIs(t, csrf.VerifyToken(context.Background(), sess, "x"), ErrCSRFTokenMissing)

	token, err := csrf.EnsureToken(context.Background(), sess)
	require.NoError(t, err)
	again, err := csrf.EnsureToken(context.Background(), sess)
	require.NoError(t, err)
	require.Equal(t, token, again)

	require.NoError(t, csrf.VerifyToken(context.Background(), sess, token))
	require.ErrorIs(t, csrf.VerifyToken(context.Background(), sess, token+"x"), ErrCSRFTokenMismatch)
	require.ErrorIs(t, csrf.VerifyToken(context.Background(), sess, ""), ErrCSRFTokenMissing)
}

func TestAuditLoggerWithoutPoolIsNoop(t *testing.T) {
	logger := NewAuditLogger(nil)
	require.False(t, logger.Enabled())
	require.NoError(t, logger.Record(context.Background(), AuditLog{}))

	var nilLogger *AuditLogger
	require.NoError(t, nilLogger.Record(context.Background(), AuditLog{Action: "a"}))
}

func TestAuditLogValidate(t *testing.T) {
	require.Error(t, AuditLog{Action: "create", Entity: "delivery"}.validate())
	require.NoError(t, AuditLog{Action: "create", Entity: "delivery", Outcome: OutcomeDenied}.validate())
}
