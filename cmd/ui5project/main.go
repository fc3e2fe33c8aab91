// Command ui5project prints and inspects UI5 project graphs.
package main

import "github.com/albertocavalcante/go-ui5project/cmd/ui5project/internal/command"

func main() {
	command.Execute()
}
