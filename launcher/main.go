package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"
)

// exe acrescenta a extensão do sistema ao binário.
func exe(name string) string {
	if runtime.GOOS == "windows" {
		return name + ".exe"
	}
	return name
}

// waitReady consulta /metrics até o servidor responder ou o prazo acabar.
func waitReady(url string, timeout time.Duration) error {
	client := &http.Client{Timeout: time.Second}
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := client.Get(url)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		time.Sleep(250 * time.Millisecond)
	}
	return fmt.Errorf("servidor não respondeu em %s", url)
}

func main() {
	addr := flag.String("addr", "127.0.0.1:8080", "Endereço do servidor")
	world := flag.String("world", "", "Mundo a carregar (padrão: o do config)")
	flag.Parse()

	fmt.Println("╔══════════════════════════════════════╗")
	fmt.Println("║       FoliageForge Launcher          ║")
	fmt.Println("╚══════════════════════════════════════╝")

	fmt.Println("[1/2] Iniciando Servidor...")
	serverArgs := []string{"-addr", *addr}
	if *world != "" {
		serverArgs = append(serverArgs, "-world", *world)
	}
	var serverCmd *exec.Cmd
	if runtime.GOOS == "windows" {
		// Janela própria para os logs do servidor
		serverCmd = exec.Command("cmd", append([]string{"/c", "start", "FoliageForge SERVER", exe("server")}, serverArgs...)...)
	} else {
		serverCmd = exec.Command("./"+exe("server"), serverArgs...)
		serverCmd.Stdout = os.Stdout
		serverCmd.Stderr = os.Stderr
	}
	serverCmd.Dir = "servidor"
	if err := serverCmd.Start(); err != nil {
		log.Fatalf("Erro ao iniciar servidor: %v", err)
	}

	fmt.Println("Aguardando o servidor carregar o mundo...")
	if err := waitReady("http://"+*addr+"/metrics", 30*time.Second); err != nil {
		log.Fatalf("Erro: %v", err)
	}

	fmt.Println("[2/2] Abrindo Cliente...")
	absClientPath, err := filepath.Abs(filepath.Join("cliente", exe("client")))
	if err != nil {
		log.Fatalf("Erro ao resolver caminho do cliente: %v", err)
	}

	clientCmd := exec.Command(absClientPath, "-server", "ws://"+*addr+"/ws")
	clientCmd.Dir = "cliente" // assets/ é relativo ao cliente

	if err := clientCmd.Run(); err != nil {
		fmt.Printf("ERRO CRÍTICO: cliente em %s terminou com erro: %v\n", absClientPath, err)
	}

	// O servidor salva os níveis sujos ao receber o sinal
	if serverCmd.Process != nil && runtime.GOOS != "windows" {
		_ = serverCmd.Process.Signal(os.Interrupt)
		_ = serverCmd.Wait()
	}
	fmt.Println("FoliageForge encerrado.")
}
