// Command sessionmesh runs the conversational session engine on a terminal
// transport and inspects encrypted transcript stores.
package main

func main() {
	Execute()
}
