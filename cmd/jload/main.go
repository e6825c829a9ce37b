// Command jload drives the class-loading core from the command line.
package main

func main() {
	Execute()
}
