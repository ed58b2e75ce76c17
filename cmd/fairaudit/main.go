package main

import "github.com/mchmarny/fairaudit/pkg/cli"

func main() {
	cli.Execute()
}
