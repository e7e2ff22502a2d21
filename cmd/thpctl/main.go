// Command thpctl exercises the THP secure channel from the command line: it
// runs simulated host/device sessions, decodes captured packets and
// generates static keys.
package main

func main() {
	Execute()
}
