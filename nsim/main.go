// Command nsim runs network scenarios on the nsim discrete event scheduler.
package main

import "github.com/sarchlab/nsim/nsim/cmd"

func main() {
	cmd.Execute()
}
