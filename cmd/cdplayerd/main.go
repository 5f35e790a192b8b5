// Command cdplayerd is the networked CD-player appliance daemon.
package main

import "github.com/pisarenko-net/cdpsa/internal/cli"

func main() {
	cli.Execute()
}
