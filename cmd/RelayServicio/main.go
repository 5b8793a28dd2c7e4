// Package main es el punto de entrada de RelayServicio.
// RelayServicio es un servicio que recibe mensajes de chat vía TCP o
// WebSocket y los retransmite a todos los clientes autenticados.
package main

import "github.com/adcondev/relay-daemon/internal/cli"

func main() {
	cli.Execute()
}
