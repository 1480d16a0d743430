package main

import (
	"fmt"
	"os"

	"github.com/clinicdesk/whatsapp-server-go/internal/util"
)

// Mints an operator API token. Store the printed hash in operators.token_hash
// and hand the plain token to the operator.
func main() {
	token, err := util.GenerateToken()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("token: %s\n", token)
	fmt.Printf("hash:  %s\n", util.HashToken(token))
}
