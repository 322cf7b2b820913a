package main

import "github.com/kailas-cloud/faqsearch/internal/cli"

func main() {
	cli.Execute()
}
