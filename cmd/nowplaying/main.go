// Package main is the entry point for the nowplaying daemon.
package main

func main() {
	Execute()
}
