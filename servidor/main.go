package main

import (
	"flag"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"FoliageForge/shared/config"
	"FoliageForge/shared/proto/fnet"
	"FoliageForge/shared/worlddb"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// Garante que o working directory é o mesmo diretório do executável,
	// para que caminhos relativos (saves/, tmp/) funcionem corretamente.
	if exePath, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exePath)
		os.Chdir(exeDir)
	}

	addr := flag.String("addr", "", "Endereço HTTP (padrão do config: :8080)")
	world := flag.String("world", "", "Nome do mundo")
	flag.Parse()

	log.SetFlags(log.Ltime | log.Lshortfile)

	// Configurar Log em Arquivo para depuração de crash
	if err := os.MkdirAll("tmp", 0755); err == nil {
		logFile, err := os.OpenFile("tmp/server.log", os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err == nil {
			// MultiWriter para logar no console e no arquivo simultaneamente
			mw := io.MultiWriter(os.Stdout, logFile)
			log.SetOutput(mw)
		}
	}
	log.Println("╔══════════════════════════════════════╗")
	log.Println("║     FoliageForge SERVER v0.1.0       ║")
	log.Println("╚══════════════════════════════════════╝")

	cfg := config.Load()
	if *addr != "" {
		cfg.ListenAddr = *addr
	}
	if *world != "" {
		cfg.WorldName = *world
	}

	db, err := worlddb.Open(cfg.SaveDir, cfg.WorldName)
	if err != nil {
		log.Fatalf("Erro fatal: não foi possível abrir o banco: %v", err)
	}
	defer db.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	srv, err := NewServer(*cfg, db, reg)
	if err != nil {
		log.Fatalf("Erro fatal ao carregar o mundo: %v", err)
	}

	hub := newHub()
	hub.OnCount = srv.recorder.SetClients
	srv.hub = hub
	go hub.run()

	go autoSave(srv, time.Duration(cfg.SaveInterval)*time.Second)

	// Salvamento final em Ctrl+C
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		log.Println("[Server] Encerrando, salvando mundo...")
		if err := srv.Save(); err != nil {
			log.Printf("[Persistence] ERRO no salvamento final: %v", err)
		}
		db.Close()
		os.Exit(0)
	}()

	// Verificação de porta antes de subir o servidor HTTP
	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		log.Printf("╔══════════════════════════════════════════════════════════════╗")
		log.Printf("║ ERRO CRÍTICO: Não foi possível abrir %s.                     ", cfg.ListenAddr)
		log.Printf("║ Provavelmente há outra instância do servidor rodando.        ║")
		log.Printf("╚══════════════════════════════════════════════════════════════╝")
		log.Fatalf("Erro ao iniciar servidor: %v", err)
	}

	log.Printf("Servidor FoliageForge iniciado em %s", cfg.ListenAddr)
	if err := http.Serve(ln, routes(srv, hub, reg)); err != nil {
		log.Fatalf("Erro fatal no servidor HTTP: %v", err)
	}
}

// routes monta os endpoints /ws e /metrics.
func routes(srv *Server, hub *Hub, reg *prometheus.Registry) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		serveWs(srv, hub, w, r)
	})
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return mux
}

// autoSave grava os níveis alterados periodicamente.
func autoSave(srv *Server, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	for {
		time.Sleep(interval)
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("[AutoSave-Loop] Recuperado de pânico: %v", r)
				}
			}()
			if err := srv.Save(); err != nil {
				log.Printf("[Persistence] ERRO no auto-save: %v", err)
			}
			if srv.cfg.CheckInvariants {
				if err := srv.CheckInvariants(); err != nil {
					log.Printf("[Server] INVARIANTE VIOLADA: %v", err)
				}
			}
		}()
	}
}

// serveWs maneja requisições websocket do peer.
func serveWs(srv *Server, hub *Hub, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[Hub] Erro no upgrade do WebSocket: %v", err)
		return
	}
	if err := srv.Welcome(conn); err != nil {
		log.Printf("[Hub] Erro ao montar snapshot: %v", err)
		conn.Close()
		return
	}

	go func() {
		defer func() {
			hub.Leave(conn)
		}()

		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				log.Printf("[Hub] Conexão encerrada: %v", err)
				break
			}

			var env fnet.Envelope
			if err := env.Unmarshal(message); err != nil {
				log.Printf("[Hub] Erro ao desempacotar envelope: %v", err)
				continue
			}
			handleClientMessage(srv, hub, conn, &env)
		}
	}()
}

func handleClientMessage(srv *Server, hub *Hub, conn *websocket.Conn, env *fnet.Envelope) {
	switch env.Type {
	case fnet.MsgPing:
		if err := hub.WriteSafe(conn, websocket.BinaryMessage, fnet.Wrap(fnet.MsgPong, nil)); err != nil {
			log.Printf("[Hub] Erro ao enviar PONG: %v", err)
		}
	case fnet.MsgPaintRequest, fnet.MsgEraseRequest:
		var req fnet.BrushRequest
		if err := req.Unmarshal(env.Payload); err != nil {
			log.Printf("[Network] Erro ao ler %v: %v", env.Type, err)
			return
		}
		var n int
		var err error
		if env.Type == fnet.MsgPaintRequest {
			n, err = srv.Paint(&req)
		} else {
			n, err = srv.Erase(&req)
		}
		if err != nil {
			log.Printf("[Network] %v recusado: %v", env.Type, err)
			return
		}
		log.Printf("[Network] %v %s em %.0f,%.0f,%.0f → %d instâncias", env.Type, req.Type, req.Center[0], req.Center[1], req.Center[2], n)
	default:
		log.Printf("[Network] Mensagem ignorada: %v", env.Type)
	}
}
