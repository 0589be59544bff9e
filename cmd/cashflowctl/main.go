// Command cashflowctl computes cash-flow reports from the terminal.
package main

func main() {
	Execute()
}
