package main

import (
	"github.com/eleven-am/nightstack/internal/bootstrap"
)

func main() {
	bootstrap.Run()
}
