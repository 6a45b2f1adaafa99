package gateway

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/climanger/relay/internal/v1/auth"
	"github.com/climanger/relay/internal/v1/transport"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGateway(t *testing.T) (*Gateway, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := auth.NewMemoryPairingStore(time.Minute)
	t.Cleanup(store.Close)

	g := &Gateway{
		Pairing:        store,
		JWTSecret:      []byte("a-test-secret-at-least-32-bytes!!"),
		Rooms:          NewRoomManager(transport.NewRegistry(), 2),
		AllowedOrigins: []string{"http://allowed.example"},
		PinExpiry:      time.Minute,
		SessionExpiry:  time.Hour,
		Version:        "test",
	}
	return g, NewRouter(g, false)
}

func decodeEnvelope(t *testing.T, body *bytes.Buffer) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(body.Bytes(), &env))
	return env
}

func TestGateway_Index(t *testing.T) {
	_, router := newTestGateway(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec.Body)
	assert.True(t, env.Success)
}

func TestGateway_CreatePin_RejectsMalformedDeviceID(t *testing.T) {
	_, router := newTestGateway(t)
	body, _ := json.Marshal(createPinRequest{DeviceID: "not valid"})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/pin/create", bytes.NewReader(body))
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGateway_PairAndAuth_Scenario1(t *testing.T) {
	_, router := newTestGateway(t)

	createBody, _ := json.Marshal(createPinRequest{DeviceID: "swift-tiger-42", DeviceName: "laptop"})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/pin/create", bytes.NewReader(createBody))
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	env := decodeEnvelope(t, rec.Body)
	data := env.Data.(map[string]any)
	pin := data["pin"].(string)
	assert.Regexp(t, `^\d{6}$`, pin)

	authBody, _ := json.Marshal(authRequest{DeviceID: "swift-tiger-42", Pin: pin})
	rec2 := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodPost, "/auth", bytes.NewReader(authBody))
	router.ServeHTTP(rec2, req2)
	require.Equal(t, http.StatusOK, rec2.Code)

	authEnv := decodeEnvelope(t, rec2.Body)
	authData := authEnv.Data.(map[string]any)
	token, _ := authData["token"].(string)
	assert.NotEmpty(t, token)

	// Second /auth with the same (now-deleted) pin must fail.
	rec3 := httptest.NewRecorder()
	req3 := httptest.NewRequest(http.MethodPost, "/auth", bytes.NewReader(authBody))
	router.ServeHTTP(rec3, req3)
	assert.Equal(t, http.StatusUnauthorized, rec3.Code)
}

func TestGateway_Verify_MissingHeader(t *testing.T) {
	_, router := newTestGateway(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/verify", nil)
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGateway_Verify_ValidToken(t *testing.T) {
	g, router := newTestGateway(t)
	token, err := auth.MintToken("swift-tiger-42", "mob1", "sess1", g.JWTSecret, time.Hour)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/verify", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec.Body)
	data := env.Data.(map[string]any)
	assert.Equal(t, "swift-tiger-42", data["device_id"])
}

func TestGateway_Status_UnknownDeviceReturnsEmptySnapshot(t *testing.T) {
	_, router := newTestGateway(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/device/swift-tiger-42/status", nil)
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec.Body)
	data := env.Data.(map[string]any)
	assert.False(t, data["host_connected"].(bool))
}

func TestGateway_CORS_ReflectsAllowedOrigin(t *testing.T) {
	_, router := newTestGateway(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://allowed.example")
	router.ServeHTTP(rec, req)

	assert.Equal(t, "http://allowed.example", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestGateway_CORS_FallsBackForDisallowedOrigin(t *testing.T) {
	_, router := newTestGateway(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://evil.example")
	router.ServeHTTP(rec, req)

	assert.Equal(t, "http://allowed.example", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestGateway_Connect_HostThenMobile_Scenario2(t *testing.T) {
	g, router := newTestGateway(t)
	srv := httptest.NewServer(router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/connect/swift-tiger-42?type=host"
	hostConn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer hostConn.Close()

	token, err := auth.MintToken("swift-tiger-42", "mob-1", "sess-1", g.JWTSecret, time.Hour)
	require.NoError(t, err)

	mobileURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/connect/swift-tiger-42?type=mobile&token=" + token
	mobileConn, _, err := websocket.DefaultDialer.Dial(mobileURL, nil)
	require.NoError(t, err)
	defer mobileConn.Close()

	registerMsg := map[string]any{"type": "register", "payload": map[string]any{"device_id": "swift-tiger-42", "device_name": "laptop"}}
	require.NoError(t, hostConn.WriteJSON(registerMsg))

	var registered map[string]any
	require.NoError(t, hostConn.ReadJSON(&registered))
	assert.Equal(t, "registered", registered["type"])

	sessionCreate := map[string]any{"type": "session_create", "payload": map[string]any{"workspace_id": "w1", "name": "sh"}}
	require.NoError(t, mobileConn.WriteJSON(sessionCreate))

	var forwarded map[string]any
	require.NoError(t, hostConn.ReadJSON(&forwarded))
	assert.Equal(t, "session_create", forwarded["type"])
	payload := forwarded["payload"].(map[string]any)
	mobileID, _ := payload["request_from"].(string)
	assert.NotEmpty(t, mobileID)

	sessionCreated := map[string]any{"type": "session_created", "payload": map[string]any{"request_to": mobileID, "session_id": "abc", "name": "sh"}}
	require.NoError(t, hostConn.WriteJSON(sessionCreated))

	var atMobile map[string]any
	require.NoError(t, mobileConn.ReadJSON(&atMobile))
	assert.Equal(t, "session_created", atMobile["type"])
	mobilePayload := atMobile["payload"].(map[string]any)
	assert.Equal(t, "abc", mobilePayload["session_id"])
	_, hasRequestTo := mobilePayload["request_to"]
	assert.False(t, hasRequestTo)
}
