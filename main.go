package main

import (
	"example.com/backstage/services/solar/cmd"
)

func main() {
	cmd.Execute()
}
