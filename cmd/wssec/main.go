// Command wssec secures and verifies SOAP messages with WS-Security.
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
