package main

import (
	"fmt"
	"net"
	"os"

	"github.com/andy6609/relaychat/internal/client"
	"github.com/andy6609/relaychat/internal/config"
)

func main() {
	cfg, err := config.LoadClient(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "chat client: %v\n", err)
		os.Exit(2)
	}

	conn, err := net.Dial("tcp", cfg.Addr())
	if err != nil {
		fmt.Fprintf(os.Stderr, "chat client: %v\n", err)
		os.Exit(1)
	}

	if err := client.New(conn, os.Stdout).Run(os.Stdin); err != nil {
		fmt.Fprintf(os.Stderr, "chat client: %v\n", err)
		os.Exit(1)
	}
}
