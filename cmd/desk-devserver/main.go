package main

import (
	"os"

	"github.com/rs/zerolog/log"

	"github.com/mycelian/mycelian-desk/devserver"
)

func main() {
	if err := devserver.Run(); err != nil {
		log.Error().Err(err).Msg("desk-devserver exited with error")
		os.Exit(1)
	}
}
