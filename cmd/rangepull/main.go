// Command rangepull is a console front-end over the download engine:
// an illustrative Observer consuming progress/log/finished events, not
// part of the engine itself.
package main

func main() {
	Execute()
}
