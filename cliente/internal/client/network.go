package client

import (
	"errors"
	"log"
	"sync"
	"time"

	"FoliageForge/shared/proto/fnet"
	"FoliageForge/shared/util"

	"github.com/gorilla/websocket"
)

// ErrNotConnected é retornado ao enviar sem conexão ativa.
var ErrNotConnected = errors.New("cliente não conectado")

// NetworkClient lida com a comunicação com o Servidor FoliageForge.
// Os frames recebidos vão para Inbound e são aplicados na thread principal.
type NetworkClient struct {
	conn      *websocket.Conn
	url       string
	connected bool
	mu        sync.RWMutex
	writeMu   sync.Mutex

	Inbound *util.ThreadSafeQueue[[]byte]

	// Retries e intervalo das tentativas de conexão
	MaxRetries int
	RetryDelay time.Duration

	pingSent time.Time
	latency  time.Duration
}

func NewNetworkClient(url string) *NetworkClient {
	return &NetworkClient{
		url:        url,
		Inbound:    util.NewThreadSafeQueue[[]byte](),
		MaxRetries: 10,
		RetryDelay: 2 * time.Second,
	}
}

func (c *NetworkClient) Connect() error {
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	var conn *websocket.Conn
	var err error
	for i := 0; i < c.MaxRetries; i++ {
		log.Printf("[Network] Tentativa de conexão %d/%d em %s...", i+1, c.MaxRetries, c.url)
		conn, _, err = dialer.Dial(c.url, nil)
		if err == nil {
			break
		}
		log.Printf("[Network] Servidor ainda não está pronto: %v. Aguardando...", err)
		time.Sleep(c.RetryDelay)
	}

	if err != nil {
		log.Printf("[Network] ERRO CRÍTICO após %d tentativas: %v", c.MaxRetries, err)
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	go c.readLoop(conn)
	return nil
}

func (c *NetworkClient) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Latency retorna o último tempo de ida e volta medido por Ping.
func (c *NetworkClient) Latency() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.latency
}

// Close encerra a conexão; o readLoop termina em seguida.
func (c *NetworkClient) Close() {
	c.mu.Lock()
	conn := c.conn
	c.connected = false
	c.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}

func (c *NetworkClient) send(t fnet.MessageType, msg fnet.Message) error {
	c.mu.RLock()
	conn, ok := c.conn, c.connected
	c.mu.RUnlock()
	if !ok {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	err := conn.WriteMessage(websocket.BinaryMessage, fnet.Wrap(t, msg))
	c.writeMu.Unlock()

	if err != nil {
		log.Printf("[Network] Erro ao enviar %v: %v", t, err)
		c.mu.Lock()
		c.connected = false
		c.mu.Unlock()
	}
	return err
}

// SendPaint pede ao servidor para pintar com o pincel.
func (c *NetworkClient) SendPaint(req *fnet.BrushRequest) error {
	return c.send(fnet.MsgPaintRequest, req)
}

// SendErase pede ao servidor para apagar com o pincel.
func (c *NetworkClient) SendErase(req *fnet.BrushRequest) error {
	return c.send(fnet.MsgEraseRequest, req)
}

// Ping mede a latência; o PONG é tratado no readLoop.
func (c *NetworkClient) Ping() error {
	c.mu.Lock()
	c.pingSent = time.Now()
	c.mu.Unlock()
	return c.send(fnet.MsgPing, nil)
}

func (c *NetworkClient) readLoop(conn *websocket.Conn) {
	defer func() {
		c.mu.Lock()
		if c.conn == conn {
			c.connected = false
		}
		c.mu.Unlock()
		conn.Close()
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			log.Printf("[Network] Conexão perdida: %v", err)
			break
		}

		var env fnet.Envelope
		if err := env.Unmarshal(message); err != nil {
			log.Printf("[Network] Erro ao desempacotar envelope: %v", err)
			continue
		}
		if env.Type == fnet.MsgPong {
			c.mu.Lock()
			if !c.pingSent.IsZero() {
				c.latency = time.Since(c.pingSent)
			}
			c.mu.Unlock()
			continue
		}
		c.Inbound.Push(message)
	}
}
