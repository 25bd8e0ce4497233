package websocket_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	gorillaWS "github.com/gorilla/websocket"
	"github.com/mautops/qms-workflow/internal/websocket"
	"github.com/mautops/qms-workflow/internal/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newServer 启动一个按 user 查询参数识别用户的测试服务
func newServer(t *testing.T, hub *websocket.Hub) *httptest.Server {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	resolve := func(c *gin.Context) (uint, bool) {
		switch c.Query("user") {
		case "1":
			return 1, true
		case "2":
			return 2, true
		}
		return 0, false
	}
	router.GET("/ws/todos", websocket.WebSocketHandler(hub, resolve, []string{"https://qms.example.com"}))
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, query string, header http.Header) (*gorillaWS.Conn, *http.Response, error) {
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/todos?" + query
	conn, resp, err := gorillaWS.DefaultDialer.Dial(url, header)
	if conn != nil {
		t.Cleanup(func() { conn.Close() })
	}
	return conn, resp, err
}

func startHub(t *testing.T) *websocket.Hub {
	hub := websocket.NewHub(nil)
	go hub.Run()
	t.Cleanup(hub.Stop)
	return hub
}

// TestHub_NotifyUser 事件只推送给目标用户
func TestHub_NotifyUser(t *testing.T) {
	hub := startHub(t)
	srv := newServer(t, hub)

	first, _, err := dial(t, srv, "user=1", nil)
	require.NoError(t, err)
	second, _, err := dial(t, srv, "user=1", nil)
	require.NoError(t, err)
	other, _, err := dial(t, srv, "user=2", nil)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return hub.ClientCount(1) == 2 && hub.ClientCount(2) == 1
	}, 2*time.Second, 10*time.Millisecond)

	hub.Notify(1, workflow.Event{
		Type:       workflow.EventTodoAssigned,
		Kind:       workflow.KindComplaint,
		BusinessID: "7",
		Status:     "Submitted",
	})

	for _, conn := range []*gorillaWS.Conn{first, second} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)

		var event workflow.Event
		require.NoError(t, json.Unmarshal(data, &event))
		assert.Equal(t, workflow.EventTodoAssigned, event.Type)
		assert.Equal(t, workflow.KindComplaint, event.Kind)
		assert.Equal(t, "7", event.BusinessID)
	}

	require.NoError(t, other.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err = other.ReadMessage()
	assert.Error(t, err)
}

// TestHub_UnregisterOnClose 客户端断开后注销
func TestHub_UnregisterOnClose(t *testing.T) {
	hub := startHub(t)
	srv := newServer(t, hub)

	conn, _, err := dial(t, srv, "user=2", nil)
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return hub.ClientCount(2) == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hub.TotalClients() == 0 }, 2*time.Second, 10*time.Millisecond)

	// 没有连接时推送不报错
	hub.Notify(2, workflow.Event{Type: workflow.EventTodoCancelled})
}

// TestWebSocketHandler_Rejects 未认证或来源不允许
func TestWebSocketHandler_Rejects(t *testing.T) {
	hub := startHub(t)
	srv := newServer(t, hub)

	_, resp, err := dial(t, srv, "user=9", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = dial(t, srv, "user=1", http.Header{"Origin": []string{"https://evil.example.com"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	_, _, err = dial(t, srv, "user=1", http.Header{"Origin": []string{"https://qms.example.com"}})
	assert.NoError(t, err)
}

// TestHub_Stop 停止后关闭所有连接
func TestHub_Stop(t *testing.T) {
	hub := websocket.NewHub(nil)
	go hub.Run()
	srv := newServer(t, hub)

	conn, _, err := dial(t, srv, "user=1", nil)
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return hub.ClientCount(1) == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.Stop()
	hub.Stop()
	assert.Eventually(t, func() bool { return hub.TotalClients() == 0 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
}
