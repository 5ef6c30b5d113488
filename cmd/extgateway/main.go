package main

import (
	"os"

	"github.com/smarthome/extgateway/gateway"
)

func main() {
	if err := gateway.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
