// mealguard checks AI-generated meal plans against a user's medical
// condition before they are served.
package main

import "github.com/ppiankov/mealguard/internal/cli"

func main() {
	cli.Execute()
}
