package main

import "github.com/Partho99/devops-learner/cmd"

// version is injected via ldflags: -X main.version=1.2.0
var version = "dev"

func main() {
	cmd.Execute(version)
}
