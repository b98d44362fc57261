package main

import "github.com/t114/support-clip/internal/cli"

func main() { cli.Main() }
