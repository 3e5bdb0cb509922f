package main

import (
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// outbound é um item da fila do hub. Com join != nil o cliente é registrado
// e recebe frames antes de qualquer broadcast posterior; sem join, frames vão
// para todos. Uma fila só mantém a ordem entre snapshot e deltas.
type outbound struct {
	join   *websocket.Conn
	frames [][]byte
}

// Hub gerencia as conexões WebSocket ativas
type Hub struct {
	clients    map[*websocket.Conn]*sync.Mutex
	broadcast  chan outbound
	unregister chan *websocket.Conn
	mu         sync.Mutex

	// OnCount é chamado quando o número de clientes muda.
	OnCount func(n int)
}

func newHub() *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]*sync.Mutex),
		broadcast:  make(chan outbound, 4096), // Bufferizado para evitar deadlocks e bloqueios
		unregister: make(chan *websocket.Conn),
	}
}

func (h *Hub) run() {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Hub] Recuperado de pânico fatal: %v", r)
		}
	}()

	for {
		select {
		case client, ok := <-h.unregister:
			if !ok {
				return
			}
			h.mu.Lock()
			if lock, ok := h.clients[client]; ok {
				lock.Lock()
				delete(h.clients, client)
				client.Close()
				lock.Unlock()
				log.Printf("[Hub] Cliente desregistrado: %s", client.RemoteAddr())
			}
			h.mu.Unlock()
			h.notifyCount()
		case msg, ok := <-h.broadcast:
			if !ok {
				return
			}
			if msg.join != nil {
				h.mu.Lock()
				h.clients[msg.join] = &sync.Mutex{}
				h.mu.Unlock()
				log.Printf("[Hub] Cliente registrado: %s", msg.join.RemoteAddr())
				h.notifyCount()
				for _, frame := range msg.frames {
					if err := h.WriteSafe(msg.join, websocket.BinaryMessage, frame); err != nil {
						log.Printf("[Hub] Erro ao enviar estado inicial para %s: %v", msg.join.RemoteAddr(), err)
						break
					}
				}
				continue
			}

			h.mu.Lock()
			// Criamos uma lista de clientes para iterar fora do lock do hub
			type clientEntry struct {
				conn *websocket.Conn
				lock *sync.Mutex
			}
			var targets []clientEntry
			for c, l := range h.clients {
				targets = append(targets, clientEntry{c, l})
			}
			h.mu.Unlock()

			for _, target := range targets {
				target.lock.Lock()
				var err error
				for _, frame := range msg.frames {
					if err = target.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
						break
					}
				}
				if err != nil {
					log.Printf("[Hub] Erro ao enviar para cliente %s: %v", target.conn.RemoteAddr(), err)
					target.conn.Close()
					h.mu.Lock()
					delete(h.clients, target.conn)
					h.mu.Unlock()
				}
				target.lock.Unlock()
			}
		}
	}
}

func (h *Hub) notifyCount() {
	if h.OnCount != nil {
		h.OnCount(h.Count())
	}
}

// Count retorna quantos clientes estão registrados.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// WriteSafe garante que apenas uma goroutine escreva no WebSocket por vez
func (h *Hub) WriteSafe(conn *websocket.Conn, messageType int, data []byte) error {
	h.mu.Lock()
	lock, ok := h.clients[conn]
	h.mu.Unlock()

	if !ok {
		return fmt.Errorf("cliente não encontrado no hub")
	}

	lock.Lock()
	defer lock.Unlock()
	return conn.WriteMessage(messageType, data)
}

// safeSend envia para a fila do hub protegendo contra pânicos de canal fechado
func (h *Hub) safeSend(msg outbound) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Hub] Aviso: Falha ao enviar broadcast (canal fechado?): %v", r)
		}
	}()
	// IMPORTANTE: Não segurar h.mu.Lock() aqui, pois o envio pode bloquear
	// se o buffer estiver cheio, e o run() precisaria do lock para esvaziar o buffer.
	h.broadcast <- msg
}

// Broadcast envia frames para todos os clientes, na ordem.
func (h *Hub) Broadcast(frames [][]byte) {
	if h == nil || len(frames) == 0 {
		return
	}
	h.safeSend(outbound{frames: frames})
}

// Join registra o cliente; frames são enviados a ele antes de qualquer broadcast posterior.
func (h *Hub) Join(conn *websocket.Conn, frames [][]byte) {
	h.safeSend(outbound{join: conn, frames: frames})
}

// Leave remove o cliente e fecha a conexão.
func (h *Hub) Leave(conn *websocket.Conn) {
	h.unregister <- conn
}
