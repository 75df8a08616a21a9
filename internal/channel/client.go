package channel

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/brainsait/pulse/internal/domain"
	"github.com/brainsait/pulse/internal/infra"
)

/*
Файл client.go реализует клиент live-канала — единственное постоянное
WebSocket-соединение с бэкендом платформы (/ws/dashboard).

Гарантии:
- Не более одного транспорта на клиент в любой момент (Connect идемпотентен).
- Обрыв транспорта равнозначен неудачному коннекту: бесконечное
  переподключение с экспоненциальным бэкоффом, джиттером и потолком.
- Явный Disconnect отменяет ожидающий бэкофф и навсегда выключает
  переподключение.
- События доставляются подписчикам синхронно, строго в порядке прихода кадров.
- Битый кадр логируется и отбрасывается, соединение живет дальше.
*/

type EventHandler func(domain.Event)

type StateHandler func(domain.ConnectionState)

// Options — тюнинг транспорта. Нулевые значения заменяются дефолтами.
type Options struct {
	DialTimeout   time.Duration
	ReconnectBase time.Duration
	ReconnectMax  time.Duration
}

func (o *Options) withDefaults() {
	if o.DialTimeout <= 0 {
		o.DialTimeout = 5 * time.Second
	}
	if o.ReconnectBase <= 0 {
		o.ReconnectBase = time.Second
	}
	if o.ReconnectMax < o.ReconnectBase {
		o.ReconnectMax = 30 * time.Second
	}
}

type Client struct {
	url     string
	opts    Options
	logger  *zap.Logger
	metrics *infra.Metrics

	mu            sync.Mutex
	state         domain.ConnectionState
	conn          *websocket.Conn
	cancel        context.CancelFunc // Живет ровно одну сессию Connect..Disconnect
	handlers      []EventHandler
	stateHandlers []StateHandler

	lastConnected time.Time
	reconnects    uint64

	wg sync.WaitGroup
}

func NewClient(url string, opts Options, logger *zap.Logger, metrics *infra.Metrics) *Client {
	opts.withDefaults()
	return &Client{
		url:     url,
		opts:    opts,
		logger:  logger.Named("live-channel"),
		metrics: metrics,
		state:   domain.StateDisconnected,
	}
}

// OnEvent регистрирует обработчик входящих событий. Регистрация выполняется
// на этапе сборки приложения, до Connect.
func (c *Client) OnEvent(h EventHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = append(c.handlers, h)
}

// OnStateChange регистрирует обработчик смены состояния соединения.
func (c *Client) OnStateChange(h StateHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stateHandlers = append(c.stateHandlers, h)
}

// Connect запускает цикл соединения. Идемпотентен: повторный вызов при
// активной сессии (Connecting/Connected) — no-op, второй транспорт
// не открывается.
func (c *Client) Connect() {
	c.mu.Lock()
	if c.state != domain.StateDisconnected {
		c.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	hs := c.transitionLocked(domain.StateConnecting)
	c.mu.Unlock()
	c.fire(hs, domain.StateConnecting)

	c.wg.Add(1)
	go c.run(ctx)
}

// Disconnect — явный останов: гасит ожидающий бэкофф, закрывает транспорт
// и гарантирует отсутствие дальнейших попыток переподключения.
func (c *Client) Disconnect() {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if c.conn != nil {
		c.conn.Close() // будит заблокированный ReadMessage
		c.conn = nil
	}
	hs := c.transitionLocked(domain.StateDisconnected)
	c.mu.Unlock()
	c.fire(hs, domain.StateDisconnected)

	c.wg.Wait()
}

// State возвращает текущее состояние соединения.
func (c *Client) State() domain.ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Info — срез для сервисной ручки /api/v1/connection.
func (c *Client) Info() domain.ConnectionInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return domain.ConnectionInfo{
		State:           c.state,
		LastConnectedAt: c.lastConnected,
		Reconnects:      c.reconnects,
	}
}

// run — сессия клиента: dial -> read -> backoff, пока не отменят контекст.
func (c *Client) run(ctx context.Context) {
	defer c.wg.Done()

	attempt := 0
	for {
		c.setState(ctx, domain.StateConnecting)

		conn, err := c.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.setState(ctx, domain.StateDisconnected)
			delay := c.nextDelay(attempt)
			attempt++
			c.logger.Warn("dial failed",
				zap.Error(err),
				zap.Duration("retry_in", delay))
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			continue
		}
		attempt = 0

		c.mu.Lock()
		if ctx.Err() != nil {
			// Disconnect успел произойти во время рукопожатия
			c.mu.Unlock()
			conn.Close()
			return
		}
		c.conn = conn
		c.mu.Unlock()

		c.setState(ctx, domain.StateConnected)
		c.logger.Info("connected", zap.String("url", c.url))

		c.readLoop(ctx, conn)

		conn.Close()
		c.mu.Lock()
		c.conn = nil
		if ctx.Err() == nil {
			c.reconnects++
		}
		c.mu.Unlock()

		if ctx.Err() != nil {
			return
		}

		// Обрыв транспорта: та же ветка, что и неудачный dial
		c.setState(ctx, domain.StateDisconnected)
		c.metrics.Reconnects.Inc()
		delay := c.nextDelay(attempt)
		attempt++
		c.logger.Warn("connection dropped, reconnecting",
			zap.Duration("retry_in", delay))
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	dctx, cancel := context.WithTimeout(ctx, c.opts.DialTimeout)
	defer cancel()

	dialer := websocket.Dialer{HandshakeTimeout: c.opts.DialTimeout}
	conn, resp, err := dialer.DialContext(dctx, c.url, nil)
	if err != nil {
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		return nil, fmt.Errorf("dial %s: %w", c.url, err)
	}
	return conn, nil
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				c.logger.Warn("read failed", zap.Error(err))
			}
			return
		}

		ev, err := domain.ParseFrame(data)
		if err != nil {
			// Битый кадр не фатален для соединения
			c.metrics.FramesDropped.Inc()
			c.logger.Warn("dropping malformed frame",
				zap.Error(err),
				zap.Int("size", len(data)))
			continue
		}

		c.metrics.EventsTotal.WithLabelValues(string(ev.Kind)).Inc()

		// Синхронно и в порядке прихода — без очередей и батчинга
		for _, h := range c.eventHandlers() {
			h(ev)
		}
	}
}

// nextDelay — экспоненциальный бэкофф с потолком и джиттером до 50%,
// чтобы парк клиентов не переподключался синхронно.
func (c *Client) nextDelay(attempt int) time.Duration {
	d := c.opts.ReconnectBase
	for i := 0; i < attempt && d < c.opts.ReconnectMax; i++ {
		d *= 2
	}
	if d > c.opts.ReconnectMax {
		d = c.opts.ReconnectMax
	}
	half := d / 2
	return half + time.Duration(rand.Int64N(int64(half)+1))
}

// setState применяет переход, если сессия еще жива (не было Disconnect).
func (c *Client) setState(ctx context.Context, s domain.ConnectionState) {
	c.mu.Lock()
	if ctx.Err() != nil {
		c.mu.Unlock()
		return
	}
	hs := c.transitionLocked(s)
	c.mu.Unlock()
	c.fire(hs, s)
}

// transitionLocked меняет состояние под мьютексом и возвращает подписчиков,
// которых нужно оповестить (nil, если состояние не изменилось).
func (c *Client) transitionLocked(s domain.ConnectionState) []StateHandler {
	if c.state == s {
		return nil
	}
	c.state = s
	c.metrics.ConnectionState.Set(stateGauge(s))
	if s == domain.StateConnected {
		c.lastConnected = time.Now()
	}
	hs := make([]StateHandler, len(c.stateHandlers))
	copy(hs, c.stateHandlers)
	return hs
}

func (c *Client) fire(hs []StateHandler, s domain.ConnectionState) {
	for _, h := range hs {
		h(s)
	}
}

func (c *Client) eventHandlers() []EventHandler {
	c.mu.Lock()
	defer c.mu.Unlock()
	hs := make([]EventHandler, len(c.handlers))
	copy(hs, c.handlers)
	return hs
}

func stateGauge(s domain.ConnectionState) float64 {
	switch s {
	case domain.StateConnected:
		return 2
	case domain.StateConnecting:
		return 1
	default:
		return 0
	}
}
