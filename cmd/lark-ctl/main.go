package main

import (
	"fmt"
	"os"

	cli "github.com/spf13/pflag"

	"lark/internal/ipc"
)

func main() {
	socket := cli.StringP("socket", "s", ipc.DefaultSocket, "Control socket path")
	cli.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: lark-ctl [--socket path] [command]")
		cli.PrintDefaults()
	}
	cli.Parse()

	cmd := "stop"
	if cli.NArg() > 0 {
		cmd = cli.Arg(0)
	}

	if err := ipc.SendCommand(*socket, cmd); err != nil {
		fmt.Println("lark-listen not running:", err)
		os.Exit(1)
	}
}
