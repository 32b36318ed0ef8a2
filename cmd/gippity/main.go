// Command gippity turns a website description into a structured engineering
// brief with the help of a language model.
package main

import (
	"os"
)

func main() {
	if err := NewRoot().Execute(); err != nil {
		os.Exit(1)
	}
}
