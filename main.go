package main

import "github.com/shouni/go-job-crawler/cmd"

func main() {
	cmd.Execute()
}
