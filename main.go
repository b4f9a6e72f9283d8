package main

import (
	_ "github.com/tanpawarit/Chative-Document-Assistant/pkg/logger/autoload"
)

func main() {
	Execute()
}
