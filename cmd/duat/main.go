// Duat runs Hour-Glass combats from the command line.
package main

func main() {
	Execute()
}
