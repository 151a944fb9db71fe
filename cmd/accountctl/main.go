package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/buddiesfinder/internal/accountctl"
)

func main() {
	if err := accountctl.Run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		log.Fatalf("%v", err)
	}
}
