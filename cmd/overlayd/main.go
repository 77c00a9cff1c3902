// Package main provides the CLI entrypoint for overlayd.
package main

func main() {
	Execute()
}
