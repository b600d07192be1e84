package main

import "github.com/ValentinKolb/secstore/cmd"

func main() {
	cmd.Execute()
}
