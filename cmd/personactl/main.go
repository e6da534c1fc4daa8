// personactl manages chatbot personas from the terminal: CRUD against the
// persona service with a local mirror for offline reads, share links as QR
// codes, and an interactive chat client against the relay.
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
