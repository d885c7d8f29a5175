// Command synapse is the CLI entrypoint over pkg/synapse.
package main

func main() {
	Execute()
}
