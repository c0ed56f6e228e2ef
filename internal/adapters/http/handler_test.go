package httpadapter_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/amika-agent/internal/adapters/auth"
	httpadapter "github.com/PabloGalante/amika-agent/internal/adapters/http"
	"github.com/PabloGalante/amika-agent/internal/adapters/llm"
	"github.com/PabloGalante/amika-agent/internal/adapters/storage/memory"
	"github.com/PabloGalante/amika-agent/internal/app/agentflow"
	"github.com/PabloGalante/amika-agent/internal/app/conversation"
	"github.com/PabloGalante/amika-agent/internal/app/relations"
	"github.com/PabloGalante/amika-agent/internal/app/tools"
	"github.com/PabloGalante/amika-agent/internal/concurrency"
	"github.com/PabloGalante/amika-agent/internal/domain"
	"github.com/PabloGalante/amika-agent/internal/observability"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	http.Handler
	links *auth.JWTIssuer
	conv  *conversation.Service
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	store := memory.NewUserStore()
	writes := concurrency.NewKeyedMutex()
	provider := llm.NewMockAssistants(nil)
	sessions, err := agentflow.NewSessions(store, provider, 16, writes)
	require.NoError(t, err)
	runner := agentflow.NewRunner(provider, agentflow.PollPolicy{InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond, Timeout: time.Second}, nil)
	rels := relations.NewService(store, writes, time.UTC, nil)
	orch := agentflow.NewOrchestrator(agentflow.NewRespondent(sessions, runner), agentflow.NewClassifier(sessions, runner), tools.NewRelationTool(rels), nil, time.Second)
	conv := conversation.NewService(orch, sessions)

	links, err := auth.NewJWTIssuer("test-secret")
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	observability.MustNewMetrics(reg)

	h := httpadapter.NewServer(httpadapter.Deps{
		Conversation: conv,
		Relations:    rels,
		Links:        links,
		Metrics:      promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})
	return &testServer{Handler: h, links: links, conv: conv}
}

func (s *testServer) do(t *testing.T, method, path string, body any, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)
	w := srv.do(t, http.MethodGet, "/healthz", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)
	w := srv.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCreateUserStartSessionAndAsk(t *testing.T) {
	srv := newTestServer(t)

	w := srv.do(t, http.MethodPost, "/users", map[string]string{"googleId": "g-1", "email": "ada@example.com", "first_name": "Ada"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = srv.do(t, http.MethodPost, "/users", map[string]string{"googleId": "g-1", "email": "ada@example.com"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = srv.do(t, http.MethodPost, "/users/g-1/threads", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = srv.do(t, http.MethodPost, "/chat/ask", map[string]string{"message": "Hi Amika", "userId": "g-1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Messages, 2)
	assert.Equal(t, "assistant", resp.Messages[0].Role)
	assert.Equal(t, "user", resp.Messages[1].Role)
	assert.Equal(t, "Hi Amika", resp.Messages[1].Content)

	// googleId is accepted in place of userId.
	w = srv.do(t, http.MethodPost, "/chat/prompt", map[string]string{"message": "From the email", "googleId": "g-1"})
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
	srv.conv.Wait()
}

func TestChatValidation(t *testing.T) {
	srv := newTestServer(t)

	w := srv.do(t, http.MethodPost, "/chat/ask", "{not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = srv.do(t, http.MethodPost, "/chat/ask", map[string]string{"message": "hi"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = srv.do(t, http.MethodPost, "/chat/ask", map[string]string{"message": " ", "userId": "g-1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// No agents bound yet.
	srv.do(t, http.MethodPost, "/users", map[string]string{"googleId": "g-2", "email": "b@example.com"})
	w = srv.do(t, http.MethodPost, "/chat/ask", map[string]string{"message": "hi", "userId": "g-2"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRelationCRUD(t *testing.T) {
	srv := newTestServer(t)
	require.Equal(t, http.StatusCreated, srv.do(t, http.MethodPost, "/users", map[string]string{"googleId": "g-1", "email": "ada@example.com"}).Code)

	w := srv.do(t, http.MethodPost, "/users/g-1/relations", `{"name":"Jane","relationship_type":"sister","reminder_enabled":true}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var rel domain.Relation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rel))
	assert.NotEmpty(t, rel.ID)
	assert.Equal(t, domain.PronounsUnspecified, rel.Pronouns)

	w = srv.do(t, http.MethodPatch, "/users/g-1/relations/"+string(rel.ID), `{"overview":"Started a new job"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = srv.do(t, http.MethodGet, "/users/g-1/relations/"+string(rel.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rel))
	assert.Equal(t, "Started a new job", rel.Overview)
	assert.Equal(t, "sister", rel.RelationshipType)

	w = srv.do(t, http.MethodGet, "/users/g-1/reminders", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var reminders []domain.Relation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &reminders))
	assert.Len(t, reminders, 1)

	w = srv.do(t, http.MethodPost, "/users/g-1/relations", `{"name":""}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = srv.do(t, http.MethodDelete, "/users/g-1/relations/"+string(rel.ID), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = srv.do(t, http.MethodDelete, "/users/g-1/relations/"+string(rel.ID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = srv.do(t, http.MethodGet, "/users/g-1/relations", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = srv.do(t, http.MethodGet, "/users/nobody/relations", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestVerifyToken(t *testing.T) {
	srv := newTestServer(t)

	token, err := srv.links.Issue(domain.LinkClaims{UserID: "g-1", Email: "ada@example.com", Prompt: "Did you call Jane?"}, time.Hour)
	require.NoError(t, err)

	w := srv.do(t, http.MethodPost, "/auth/verify-token", nil, "Authorization", "Bearer "+token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"googleId":"g-1","email":"ada@example.com","emailContent":"Did you call Jane?"}`, w.Body.String())

	w = srv.do(t, http.MethodPost, "/auth/verify-token", map[string]string{"token": token})
	assert.Equal(t, http.StatusOK, w.Code)

	w = srv.do(t, http.MethodPost, "/auth/verify-token", nil, "Authorization", "Bearer nope")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = srv.do(t, http.MethodPost, "/auth/verify-token", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
