package windgo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SessionStatus 终端会话状态
type SessionStatus int

const (
	StatusConnecting SessionStatus = 0
	StatusOpen       SessionStatus = 1
	StatusClosing    SessionStatus = 2
	StatusClosed     SessionStatus = 3
)

// GatewayConfig 终端网关连接配置
type GatewayConfig struct {
	Headers     http.Header
	CallTimeout time.Duration // 单次请求超时
	Logger      *zap.Logger   // 日志记录器
}

// DefaultGatewayConfig 默认配置
func DefaultGatewayConfig() GatewayConfig {
	return GatewayConfig{
		CallTimeout: 30 * time.Second,
		Logger:      NewDefaultLogger(),
	}
}

// gatewayRequest 网关请求报文
type gatewayRequest struct {
	ReqID     string `json:"req_id"`
	API       string `json:"api"` // "wset" | "wsd" | "wss"
	Report    string `json:"report,omitempty"`
	Codes     string `json:"codes,omitempty"`
	Fields    string `json:"fields,omitempty"`
	BeginTime string `json:"begin_time,omitempty"`
	EndTime   string `json:"end_time,omitempty"`
	Options   string `json:"options,omitempty"`
}

// GatewayTerminal 终端网关会话
//
// 通过 WebSocket 与本机终端网关通信，JSON 请求/应答按 req_id 关联。
// 每次调用阻塞到网关返回或超时；实现 Terminal 接口。
type GatewayTerminal struct {
	url    string
	auth   *GatewayAuth
	config GatewayConfig
	logger *zap.Logger

	conn   *websocket.Conn
	ctx    context.Context
	cancel context.CancelFunc

	status   SessionStatus
	statusMu sync.RWMutex

	pending   map[string]chan *Response
	pendingMu sync.Mutex
	writeMu   sync.Mutex
}

// NewGatewayTerminal 创建终端网关会话，auth 可以为 nil（网关未启用认证时）
func NewGatewayTerminal(url string, auth *GatewayAuth, config GatewayConfig) *GatewayTerminal {
	if config.Logger == nil {
		config.Logger = NewDefaultLogger()
	}
	if config.CallTimeout <= 0 {
		config.CallTimeout = 30 * time.Second
	}

	return &GatewayTerminal{
		url:     url,
		auth:    auth,
		config:  config,
		logger:  config.Logger,
		status:  StatusClosed,
		pending: make(map[string]chan *Response),
	}
}

// Start 建立会话，已连接时幂等返回
func (g *GatewayTerminal) Start() error {
	if g.IsConnected() {
		return nil
	}

	headers := g.config.Headers
	if g.auth != nil {
		if err := g.auth.Login(); err != nil {
			return fmt.Errorf("gateway login: %w", err)
		}
		headers = g.auth.BaseHeader()
	}

	g.logger.Info("Connecting to terminal gateway", zap.String("url", g.url))
	g.setStatus(StatusConnecting)

	ctx, cancel := context.WithCancel(context.Background())

	// 启用 deflate 压缩
	opts := &websocket.DialOptions{
		HTTPHeader:      headers,
		CompressionMode: websocket.CompressionContextTakeover,
	}

	conn, _, err := websocket.Dial(ctx, g.url, opts)
	if err != nil {
		cancel()
		g.setStatus(StatusClosed)
		g.logger.Error("Failed to connect terminal gateway",
			zap.String("url", g.url),
			zap.Error(err))
		return err
	}

	g.ctx = ctx
	g.cancel = cancel
	g.conn = conn
	g.setStatus(StatusOpen)

	go g.receiveLoop(ctx, conn)

	g.logger.Info("Terminal gateway session established", zap.String("url", g.url))
	return nil
}

// IsConnected 会话是否存活
func (g *GatewayTerminal) IsConnected() bool {
	g.statusMu.RLock()
	defer g.statusMu.RUnlock()
	return g.status == StatusOpen && g.conn != nil
}

// Stop 关闭会话
func (g *GatewayTerminal) Stop() error {
	g.setStatus(StatusClosing)

	if g.cancel != nil {
		g.cancel()
	}

	var err error
	if g.conn != nil {
		err = g.conn.Close(websocket.StatusNormalClosure, "closing")
		g.conn = nil
	}
	g.setStatus(StatusClosed)
	g.failPending()

	g.logger.Info("Terminal gateway session closed", zap.String("url", g.url))
	return err
}

// WSet 报表查询
func (g *GatewayTerminal) WSet(report, options string) (*Response, error) {
	return g.call(gatewayRequest{
		API:     "wset",
		Report:  report,
		Options: options,
	})
}

// WSD 时间序列查询
func (g *GatewayTerminal) WSD(codes, fields, beginTime, endTime, options string) (*Response, error) {
	return g.call(gatewayRequest{
		API:       "wsd",
		Codes:     codes,
		Fields:    fields,
		BeginTime: beginTime,
		EndTime:   endTime,
		Options:   options,
	})
}

// WSS 截面快照查询
func (g *GatewayTerminal) WSS(codes, fields, options string) (*Response, error) {
	return g.call(gatewayRequest{
		API:     "wss",
		Codes:   codes,
		Fields:  fields,
		Options: options,
	})
}

// call 发送请求并阻塞等待对应 req_id 的应答
func (g *GatewayTerminal) call(req gatewayRequest) (*Response, error) {
	if !g.IsConnected() {
		return nil, fmt.Errorf("terminal gateway not connected")
	}

	if g.auth != nil && !g.auth.HasGrant(req.API) {
		return nil, fmt.Errorf("no grant for dataset %q", req.API)
	}

	conn, ctx := g.conn, g.ctx
	if conn == nil {
		return nil, fmt.Errorf("terminal gateway not connected")
	}

	req.ReqID = uuid.NewString()

	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	ch := make(chan *Response, 1)
	g.pendingMu.Lock()
	g.pending[req.ReqID] = ch
	g.pendingMu.Unlock()

	defer func() {
		g.pendingMu.Lock()
		delete(g.pending, req.ReqID)
		g.pendingMu.Unlock()
	}()

	g.logger.Debug("Gateway sending request",
		zap.String("api", req.API),
		zap.String("req_id", req.ReqID),
		zap.String("message", string(data)))

	g.writeMu.Lock()
	err = conn.Write(ctx, websocket.MessageText, data)
	g.writeMu.Unlock()
	if err != nil {
		g.logger.Error("Failed to send request", zap.Error(err))
		return nil, err
	}

	select {
	case resp, ok := <-ch:
		if !ok || resp == nil {
			return nil, fmt.Errorf("terminal gateway connection lost")
		}
		return resp, nil
	case <-time.After(g.config.CallTimeout):
		return nil, fmt.Errorf("terminal gateway call timeout after %s", g.config.CallTimeout)
	case <-ctx.Done():
		return nil, fmt.Errorf("terminal gateway session closed")
	}
}

// receiveLoop 应答接收循环
func (g *GatewayTerminal) receiveLoop(ctx context.Context, conn *websocket.Conn) {
	defer func() {
		g.setStatus(StatusClosed)
		g.failPending()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_, message, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				// Context 已取消，正常退出
				return
			}
			g.logger.Error("Failed to read gateway message", zap.Error(err))
			return
		}

		g.logger.Debug("Gateway received message",
			zap.Int("length", len(message)))

		resp := &Response{}
		if err := json.Unmarshal(message, resp); err != nil {
			g.logger.Error("Failed to unmarshal gateway message",
				zap.Error(err),
				zap.String("message", string(message)))
			continue
		}

		g.pendingMu.Lock()
		ch, ok := g.pending[resp.RequestID]
		if ok {
			delete(g.pending, resp.RequestID)
		}
		g.pendingMu.Unlock()

		if ok {
			ch <- resp
		} else {
			g.logger.Warn("Gateway response without pending request",
				zap.String("req_id", resp.RequestID))
		}
	}
}

// failPending 会话断开时关闭所有等待中的请求
func (g *GatewayTerminal) failPending() {
	g.pendingMu.Lock()
	defer g.pendingMu.Unlock()
	for id, ch := range g.pending {
		close(ch)
		delete(g.pending, id)
	}
}

func (g *GatewayTerminal) setStatus(status SessionStatus) {
	g.statusMu.Lock()
	defer g.statusMu.Unlock()
	g.status = status
}

// GetStatus 获取会话状态
func (g *GatewayTerminal) GetStatus() SessionStatus {
	g.statusMu.RLock()
	defer g.statusMu.RUnlock()
	return g.status
}

var _ Terminal = (*GatewayTerminal)(nil)
